// Command deltazip-bench measures batched chunk-parallel compression and
// decompression throughput on an accelerator device.
//
// Run:
//
//	deltazip-bench -codec zstd -chunk-size 65536 -iterations 5 input.bin
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/dumpmemory/deltazip"
)

func main() {
	var (
		preset     = flag.String("preset", "", "YAML preset file applied before flags")
		gpu        = flag.Int("gpu", 0, "accelerator device index")
		codecName  = flag.String("codec", "zstd", "codec: snappy, lz4, zstd or gzip")
		codecLevel = flag.Int("level", 0, "codec compression level (0 = default)")
		chunkSize  = flag.Int("chunk-size", 64<<10, "chunk size in bytes for non-paged inputs")
		warmup     = flag.Int("warmup", 1, "untimed warmup iterations")
		iterations = flag.Int("iterations", 5, "timed iterations")
		duplicate  = flag.Int("duplicate", 0, "extra copies of the chunk set")
		paged      = flag.Bool("paged", false, "inputs carry an 8-byte size prefix per page")
		noVerify   = flag.Bool("no-verify", false, "skip the round-trip check")
		csvOut     = flag.Bool("csv", false, "report as CSV instead of a table")
		outDir     = flag.String("out", ".", "artifact directory")
		artifact   = flag.String("artifact", "deltazip-bench.out", "artifact file name")
		history    = flag.String("history", "", "SQLite history database path")
		s3Bucket   = flag.String("s3-bucket", "", "mirror the artifact to this S3 bucket")
		s3Region   = flag.String("s3-region", "", "S3 region")
		s3Endpoint = flag.String("s3-endpoint", "", "S3-compatible endpoint URL")
		s3Prefix   = flag.String("s3-prefix", "", "S3 key prefix")
	)
	flag.Usage = usage
	flag.Parse()

	cfg := deltazip.DefaultConfig()
	if *preset != "" {
		var err error
		cfg, err = deltazip.LoadPreset(*preset)
		if err != nil {
			fatal(err)
		}
	}

	// Flags given on the command line override the preset; flags left at
	// their defaults do not.
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	override := func(name string, apply func()) {
		if *preset == "" || set[name] {
			apply()
		}
	}
	override("gpu", func() { cfg.DeviceID = *gpu })
	override("codec", func() { cfg.Codec = *codecName })
	override("level", func() { cfg.CodecLevel = *codecLevel })
	override("chunk-size", func() { cfg.ChunkSize = *chunkSize })
	override("warmup", func() { cfg.WarmupCount = *warmup })
	override("iterations", func() { cfg.IterationCount = *iterations })
	override("duplicate", func() { cfg.DuplicateCount = *duplicate })
	override("no-verify", func() { cfg.VerifyRoundTrip = !*noVerify })
	override("paged", func() { cfg.Input.Paged = *paged })
	override("out", func() { cfg.Output.Dir = *outDir })
	override("artifact", func() { cfg.Output.ArtifactKey = *artifact })
	override("csv", func() { cfg.Output.CSV = *csvOut })
	override("history", func() { cfg.Output.HistoryPath = *history })
	if *s3Bucket != "" {
		cfg.Output.S3 = &deltazip.S3StoreConfig{
			Bucket:   *s3Bucket,
			Region:   *s3Region,
			Endpoint: *s3Endpoint,
			Prefix:   *s3Prefix,
		}
	}
	if args := flag.Args(); len(args) > 0 {
		cfg.Input.Files = args
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		usage()
		os.Exit(2)
	}

	if err := run(cfg); err != nil {
		fatal(err)
	}
}

func run(cfg deltazip.Config) error {
	ctx := context.Background()

	chunks, err := deltazip.LoadChunks(&cfg)
	if err != nil {
		return err
	}

	codec, err := deltazip.NewCodec(cfg.Codec, cfg.CodecLevel)
	if err != nil {
		return err
	}

	dev, err := deltazip.NewDevice(cfg.DeviceID)
	if err != nil {
		return err
	}
	defer dev.Close()

	stream, err := dev.NewStream()
	if err != nil {
		return err
	}
	defer stream.Close()

	store, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := deltazip.NewRunner(cfg, codec, dev, stream, store).Run(ctx, chunks)
	if err != nil {
		return err
	}

	if cfg.Output.HistoryPath != "" {
		hist, err := deltazip.OpenRunHistory(cfg.Output.HistoryPath)
		if err != nil {
			return err
		}
		defer hist.Close()
		if err := hist.Append(ctx, result); err != nil {
			return err
		}
	}

	results := []deltazip.RunResult{*result}
	if cfg.Output.CSV {
		return deltazip.WriteCSV(os.Stdout, results)
	}
	return deltazip.WriteTable(os.Stdout, results)
}

// newStore builds the artifact store: local files, optionally fronted by an
// S3 mirror.
func newStore(ctx context.Context, cfg deltazip.Config) (deltazip.ArtifactStore, error) {
	files, err := deltazip.NewFileStore(cfg.Output.Dir)
	if err != nil {
		return nil, err
	}
	if cfg.Output.S3 == nil {
		return files, nil
	}
	s3store, err := deltazip.NewS3Store(ctx, *cfg.Output.S3)
	if err != nil {
		files.Close()
		return nil, err
	}
	return &mirrorStore{primary: files, mirror: s3store}, nil
}

// mirrorStore writes each artifact to both backends.
type mirrorStore struct {
	primary, mirror deltazip.ArtifactStore
}

func (m *mirrorStore) Write(ctx context.Context, key string, data []byte) error {
	if err := m.primary.Write(ctx, key, data); err != nil {
		return err
	}
	return m.mirror.Write(ctx, key, data)
}

func (m *mirrorStore) Close() error {
	err := m.primary.Close()
	if merr := m.mirror.Close(); err == nil {
		err = merr
	}
	return err
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: deltazip-bench [flags] input-file...\n\n")
	fmt.Fprintf(os.Stderr, "Benchmarks batched chunk-parallel compression on an accelerator device.\n\n")
	flag.PrintDefaults()
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
