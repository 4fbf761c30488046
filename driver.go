package deltazip

import (
	"fmt"
	"time"
)

// runCompress drives one batched compression over in. It queries scratch and
// worst-case output sizes, allocates both, issues the asynchronous batched
// call bracketed by timing events, synchronizes, and returns the compressed
// batch with the elapsed device time. Scratch memory is released on every
// exit path, immediately after synchronization on success.
func runCompress(codec BatchedCodec, dev *Device, stream *Stream, in *BatchData, chunkSize int) (*BatchData, time.Duration, error) {
	batchSize := in.BatchSize()

	tempBytes, st := codec.CompressTempSize(batchSize, chunkSize)
	if st != StatusSuccess {
		return nil, 0, statusErr("compress temp size query", st)
	}
	maxOut, st := codec.MaxCompressedChunkSize(chunkSize)
	if st != StatusSuccess {
		return nil, 0, statusErr("max compressed chunk size query", st)
	}

	out, err := NewOutputBatch(dev, maxOut, batchSize)
	if err != nil {
		return nil, 0, err
	}
	ok := false
	defer func() {
		if !ok {
			out.Free()
		}
	}()

	scratch, err := dev.Alloc(tempBytes)
	if err != nil {
		return nil, 0, fmt.Errorf("deltazip: compress scratch: %w", err)
	}
	defer scratch.Free()

	elapsed, err := timeBatchOp(stream, func() Status {
		return codec.CompressAsync(in.Args(), chunkSize, batchSize, scratch, out.Args(), stream)
	}, "batched compress")
	if err != nil {
		return nil, 0, err
	}

	ok = true
	return out, elapsed, nil
}

// runDecompress mirrors runCompress for the inverse operation. It needs no
// max-output query: decompressed sizes are bounded by the original chunk
// size, so the output batch is allocated at chunkSize capacity per chunk.
func runDecompress(codec BatchedCodec, dev *Device, stream *Stream, in *BatchData, chunkSize int) (*BatchData, time.Duration, error) {
	batchSize := in.BatchSize()

	tempBytes, st := codec.DecompressTempSize(batchSize, chunkSize)
	if st != StatusSuccess {
		return nil, 0, statusErr("decompress temp size query", st)
	}

	out, err := NewOutputBatch(dev, int64(chunkSize), batchSize)
	if err != nil {
		return nil, 0, err
	}
	ok := false
	defer func() {
		if !ok {
			out.Free()
		}
	}()

	scratch, err := dev.Alloc(tempBytes)
	if err != nil {
		return nil, 0, fmt.Errorf("deltazip: decompress scratch: %w", err)
	}
	defer scratch.Free()

	elapsed, err := timeBatchOp(stream, func() Status {
		return codec.DecompressAsync(in.Args(), chunkSize, batchSize, scratch, out.Args(), stream)
	}, "batched decompress")
	if err != nil {
		return nil, 0, err
	}

	ok = true
	return out, elapsed, nil
}

// timeBatchOp brackets an asynchronous batched call with device events,
// blocks until the stream drains, and returns the elapsed device time.
func timeBatchOp(stream *Stream, issue func() Status, what string) (time.Duration, error) {
	start, end := NewEvent(), NewEvent()
	if err := start.Record(stream); err != nil {
		return 0, fmt.Errorf("deltazip: %s: record start: %w", what, err)
	}
	if st := issue(); st != StatusSuccess {
		return 0, statusErr(what, st)
	}
	if err := end.Record(stream); err != nil {
		return 0, fmt.Errorf("deltazip: %s: record end: %w", what, err)
	}
	if err := stream.Synchronize(); err != nil {
		return 0, fmt.Errorf("deltazip: %s: %w", what, err)
	}
	return ElapsedTime(start, end)
}
