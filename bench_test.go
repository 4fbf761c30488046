package deltazip

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/snappy"
)

// recordingStore keeps every artifact write so tests can inspect the
// overwrite pattern of the benchmark loop.
type recordingStore struct {
	keys   []string
	writes [][]byte
}

func (s *recordingStore) Write(ctx context.Context, key string, data []byte) error {
	s.keys = append(s.keys, key)
	s.writes = append(s.writes, append([]byte(nil), data...))
	return nil
}

func (s *recordingStore) Close() error { return nil }

func benchChunks(t *testing.T) [][]byte {
	t.Helper()
	big, err := SplitChunks(bytes.Repeat([]byte("benchmark input corpus line\n"), 100000/28+1)[:100000], 65536)
	if err != nil {
		t.Fatalf("SplitChunks() error = %v", err)
	}
	small, err := SplitChunks(bytes.Repeat([]byte("second input file contents\n"), 50000/27+1)[:50000], 65536)
	if err != nil {
		t.Fatalf("SplitChunks() error = %v", err)
	}
	return append(big, small...)
}

func TestRunnerRun(t *testing.T) {
	dev, stream := testDeviceAndStream(t)

	cfg := DefaultConfig()
	cfg.Codec = "snappy"
	cfg.WarmupCount = 1
	cfg.IterationCount = 2
	cfg.Output.ArtifactKey = "bench.bin"

	chunks := benchChunks(t)
	if len(chunks) != 3 {
		t.Fatalf("len(chunks) = %d, want 3", len(chunks))
	}
	if got := []int{len(chunks[0]), len(chunks[1]), len(chunks[2])}; got[0] != 65536 || got[1] != 34464 || got[2] != 50000 {
		t.Fatalf("chunk lengths = %v, want [65536 34464 50000]", got)
	}

	store := &recordingStore{}
	runner := NewRunner(cfg, NewSnappyCodec(), dev, stream, store)
	res, err := runner.Run(context.Background(), chunks)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.ChunkSize != 65536 {
		t.Errorf("ChunkSize = %d, want 65536", res.ChunkSize)
	}
	if res.BatchSize != 3 {
		t.Errorf("BatchSize = %d, want 3", res.BatchSize)
	}
	if res.IterationCount != 2 {
		t.Errorf("IterationCount = %d, want 2", res.IterationCount)
	}
	// Warmup iterations contribute nothing to the accumulators.
	if res.TotalInputBytes != 300000 {
		t.Errorf("TotalInputBytes = %d, want 300000", res.TotalInputBytes)
	}
	if res.TotalCompressedBytes <= 0 {
		t.Errorf("TotalCompressedBytes = %d, want > 0", res.TotalCompressedBytes)
	}
	if res.CompressionRatio <= 1 {
		t.Errorf("CompressionRatio = %v, want > 1 for repetitive input", res.CompressionRatio)
	}
	if res.CompressGBps <= 0 || res.DecompressGBps <= 0 {
		t.Errorf("throughput = (%v, %v), want both positive", res.CompressGBps, res.DecompressGBps)
	}

	// Every iteration, warmup included, writes the same key.
	if len(store.keys) != 3 {
		t.Fatalf("artifact writes = %d, want 3", len(store.keys))
	}
	for _, k := range store.keys {
		if k != "bench.bin" {
			t.Errorf("artifact key = %q, want bench.bin", k)
		}
	}
	last := store.writes[len(store.writes)-1]
	if int64(len(last))*int64(res.IterationCount) != res.TotalCompressedBytes {
		t.Errorf("last artifact %d bytes, want TotalCompressedBytes/iterations = %d",
			len(last), res.TotalCompressedBytes/int64(res.IterationCount))
	}

	// No device memory may leak across the run.
	if used := dev.MemoryUsed(); used != 0 {
		t.Errorf("device memory used = %d after run, want 0", used)
	}
}

func TestRunnerRunDeterministicAcrossRuns(t *testing.T) {
	dev, stream := testDeviceAndStream(t)

	cfg := DefaultConfig()
	cfg.WarmupCount = 0
	cfg.IterationCount = 1
	cfg.Output.ArtifactKey = "a.bin"

	chunks := benchChunks(t)
	runner := NewRunner(cfg, NewSnappyCodec(), dev, stream, &recordingStore{})

	first, err := runner.Run(context.Background(), chunks)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	second, err := runner.Run(context.Background(), chunks)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if first.TotalCompressedBytes != second.TotalCompressedBytes {
		t.Errorf("TotalCompressedBytes differs across runs: %d then %d",
			first.TotalCompressedBytes, second.TotalCompressedBytes)
	}
}

func TestRunnerRunEmptyBatch(t *testing.T) {
	dev, stream := testDeviceAndStream(t)

	runner := NewRunner(DefaultConfig(), NewSnappyCodec(), dev, stream, &recordingStore{})
	if _, err := runner.Run(context.Background(), nil); err == nil {
		t.Error("Run() expected error for empty chunk set")
	}
}

func TestRunnerRoundTripVerification(t *testing.T) {
	dev, stream := testDeviceAndStream(t)

	cfg := DefaultConfig()
	cfg.WarmupCount = 0
	cfg.IterationCount = 1
	cfg.VerifyRoundTrip = true
	cfg.Output.ArtifactKey = "v.bin"

	// A codec whose decompression corrupts output must fail verification.
	runner := NewRunner(cfg, &corruptingCodec{}, dev, stream, &recordingStore{})
	if _, err := runner.Run(context.Background(), compressibleChunks(1024)); err == nil {
		t.Error("Run() expected round trip verification failure")
	}
}

// corruptingCodec compresses correctly but flips the first byte on
// decompression.
type corruptingCodec struct{ SnappyCodec }

func (c *corruptingCodec) DecompressAsync(in BatchArgs, maxChunkBytes, batchSize int, scratch *DeviceBuffer, out BatchArgs, stream *Stream) Status {
	need, st := c.DecompressTempSize(batchSize, maxChunkBytes)
	if st != StatusSuccess {
		return st
	}
	if st := validateBatchArgs(in, maxChunkBytes, batchSize, scratch, need, out, stream); st != StatusSuccess {
		return st
	}
	return launchBatch(stream, c.Name(), batchSize, in, out, func(src []byte) ([]byte, error) {
		dst, err := snappy.Decode(nil, src)
		if err != nil {
			return nil, err
		}
		if len(dst) > 0 {
			dst[0] ^= 0xff
		}
		return dst, nil
	})
}

func TestLoadChunksSplitAndDuplicate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input.bin")
	if err := os.WriteFile(path, bytes.Repeat([]byte{0xab}, 1000), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg := DefaultConfig()
	cfg.ChunkSize = 400
	cfg.DuplicateCount = 1
	cfg.Input.Files = []string{path}

	chunks, err := LoadChunks(&cfg)
	if err != nil {
		t.Fatalf("LoadChunks() error = %v", err)
	}
	// 1000 bytes at 400 is 3 chunks, duplicated once is 6.
	if len(chunks) != 6 {
		t.Fatalf("len(chunks) = %d, want 6", len(chunks))
	}
	if len(chunks[2]) != 200 || len(chunks[5]) != 200 {
		t.Errorf("tail chunks = (%d, %d) bytes, want 200 each", len(chunks[2]), len(chunks[5]))
	}
}
