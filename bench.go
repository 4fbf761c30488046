package deltazip

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"
)

// LoadChunks reads the configured input files into the run's chunk set:
// paged files keep their page boundaries, everything else is split at
// ChunkSize, and the whole set is duplicated DuplicateCount times.
func LoadChunks(cfg *Config) ([][]byte, error) {
	var chunks [][]byte
	for _, path := range cfg.Input.Files {
		if cfg.Input.Paged {
			pages, err := ReadPagedFile(path)
			if err != nil {
				return nil, err
			}
			chunks = append(chunks, pages...)
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("deltazip: read input %s: %w", path, err)
		}
		split, err := SplitChunks(data, cfg.ChunkSize)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, split...)
	}
	return DuplicateChunks(chunks, cfg.DuplicateCount), nil
}

// Runner executes the benchmark loop: warmup iterations whose results are
// discarded, then timed iterations feeding the metrics accumulator. One
// device stream serves the whole run; output and scratch buffers are
// allocated and freed every iteration rather than pooled.
type Runner struct {
	cfg    Config
	codec  BatchedCodec
	dev    *Device
	stream *Stream
	store  ArtifactStore
}

// NewRunner wires a runner from its collaborators. The caller owns the
// device, stream and store lifetimes.
func NewRunner(cfg Config, codec BatchedCodec, dev *Device, stream *Stream, store ArtifactStore) *Runner {
	return &Runner{cfg: cfg, codec: codec, dev: dev, stream: stream, store: store}
}

// Run executes the full benchmark over the chunk set and returns aggregated
// metrics. Any failure anywhere aborts the run; there is no retry and no
// partial result. The context reaches only artifact writes: device work has
// no cancellation point by design.
func (r *Runner) Run(ctx context.Context, chunks [][]byte) (*RunResult, error) {
	if len(chunks) == 0 {
		return nil, ErrEmptyBatch
	}
	started := time.Now()

	// Fixed for the run: every batched call uses the largest chunk length.
	chunkSize := MaxChunkSize(chunks)
	if chunkSize == 0 {
		return nil, fmt.Errorf("deltazip: all input chunks are empty")
	}

	var inputBytes int64
	for _, c := range chunks {
		inputBytes += int64(len(c))
	}

	in, err := NewBatchData(r.dev, chunks)
	if err != nil {
		return nil, err
	}
	defer in.Free()

	var metrics IterationMetrics
	total := r.cfg.WarmupCount + r.cfg.IterationCount
	for iter := 0; iter < total; iter++ {
		compressed, compressedBytes, compressTime, err := r.compressIteration(ctx, in, chunkSize)
		if err != nil {
			return nil, err
		}

		decompressTime, err := r.decompressIteration(compressed, chunkSize, chunks, iter == 0)
		compressed.Free()
		if err != nil {
			return nil, err
		}

		if iter >= r.cfg.WarmupCount {
			metrics.Accumulate(inputBytes, compressedBytes, compressTime, decompressTime)
		}
	}

	ratio, err := metrics.CompressionRatio()
	if err != nil {
		return nil, err
	}
	return &RunResult{
		Codec:                r.codec.Name(),
		DeviceID:             r.dev.ID(),
		ChunkSize:            chunkSize,
		BatchSize:            len(chunks),
		WarmupCount:          r.cfg.WarmupCount,
		IterationCount:       metrics.Iterations,
		TotalInputBytes:      metrics.TotalInputBytes,
		TotalCompressedBytes: metrics.TotalCompressedBytes,
		CompressionRatio:     ratio,
		CompressGBps:         metrics.CompressThroughputGBps(),
		DecompressGBps:       metrics.DecompressThroughputGBps(),
		StartedAt:            started,
	}, nil
}

// compressIteration runs one timed batched compression and materializes its
// output to the artifact store. Every iteration writes the same key, so the
// artifact on disk is always the most recent iteration's output.
func (r *Runner) compressIteration(ctx context.Context, in *BatchData, chunkSize int) (*BatchData, int64, time.Duration, error) {
	out, elapsed, err := runCompress(r.codec, r.dev, r.stream, in, chunkSize)
	if err != nil {
		return nil, 0, 0, err
	}
	ok := false
	defer func() {
		if !ok {
			out.Free()
		}
	}()

	artifact, err := MaterializeBatch(out)
	if err != nil {
		return nil, 0, 0, err
	}
	if err := r.store.Write(ctx, r.cfg.Output.ArtifactKey, artifact); err != nil {
		return nil, 0, 0, fmt.Errorf("deltazip: write artifact: %w", err)
	}

	ok = true
	return out, int64(len(artifact)), elapsed, nil
}

// decompressIteration mirrors the compression path over the compressed
// batch. On the first iteration it optionally verifies the round trip
// against the original input.
func (r *Runner) decompressIteration(compressed *BatchData, chunkSize int, chunks [][]byte, verify bool) (time.Duration, error) {
	out, elapsed, err := runDecompress(r.codec, r.dev, r.stream, compressed, chunkSize)
	if err != nil {
		return 0, err
	}
	defer out.Free()

	if verify && r.cfg.VerifyRoundTrip {
		restored, err := MaterializeBatch(out)
		if err != nil {
			return 0, err
		}
		if !bytes.Equal(restored, bytes.Join(chunks, nil)) {
			return 0, fmt.Errorf("deltazip: %s round trip mismatch: %d bytes restored", r.codec.Name(), len(restored))
		}
	}
	return elapsed, nil
}
