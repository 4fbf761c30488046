// Package deltazip implements a benchmarking harness for batched,
// chunk-parallel compression and decompression on an accelerator device.
//
// Input buffers are split into fixed-size chunks, copied to device-resident
// batches, and driven through a batched codec contract with event-based
// device timing. Aggregated compression ratio and throughput are reported
// over repeated iterations, with warmup iterations excluded from the
// statistics.
//
// # Basic Usage
//
// Wire a device, stream, codec and artifact store into a Runner:
//
//	dev, err := deltazip.NewDevice(0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	stream, err := dev.NewStream()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer stream.Close()
//
//	codec, _ := deltazip.NewCodec("zstd", 0)
//	store, _ := deltazip.NewFileStore(".")
//	cfg := deltazip.DefaultConfig()
//
//	chunks, _ := deltazip.SplitChunks(data, cfg.ChunkSize)
//	result, err := deltazip.NewRunner(cfg, codec, dev, stream, store).Run(ctx, chunks)
//
// Every failure is fatal to the run: the harness has no retry path, since
// retries would corrupt timing measurements.
package deltazip
