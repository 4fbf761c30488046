package deltazip

import "time"

// IterationMetrics accumulates sizes and device times across the timed
// iterations of a run. Warmup iterations never touch it, and it is never
// reset mid-run.
type IterationMetrics struct {
	TotalInputBytes      int64
	TotalCompressedBytes int64
	CompressSeconds      float64
	DecompressSeconds    float64
	Iterations           int
}

// Accumulate records one timed iteration.
func (m *IterationMetrics) Accumulate(inputBytes, compressedBytes int64, compress, decompress time.Duration) {
	m.TotalInputBytes += inputBytes
	m.TotalCompressedBytes += compressedBytes
	m.CompressSeconds += compress.Seconds()
	m.DecompressSeconds += decompress.Seconds()
	m.Iterations++
}

// CompressionRatio is total input bytes over total compressed bytes. At
// least one non-empty chunk must have been processed.
func (m *IterationMetrics) CompressionRatio() (float64, error) {
	if m.TotalCompressedBytes == 0 {
		return 0, ErrNoCompressedBytes
	}
	return float64(m.TotalInputBytes) / float64(m.TotalCompressedBytes), nil
}

// CompressThroughputGBps is uncompressed gigabytes processed per second of
// measured compression device time.
func (m *IterationMetrics) CompressThroughputGBps() float64 {
	if m.CompressSeconds == 0 {
		return 0
	}
	return float64(m.TotalInputBytes) / (1e9 * m.CompressSeconds)
}

// DecompressThroughputGBps is the symmetric decompression throughput.
func (m *IterationMetrics) DecompressThroughputGBps() float64 {
	if m.DecompressSeconds == 0 {
		return 0
	}
	return float64(m.TotalInputBytes) / (1e9 * m.DecompressSeconds)
}
