package deltazip

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestMetricsAccumulate(t *testing.T) {
	var m IterationMetrics
	m.Accumulate(300000, 120000, 2*time.Millisecond, 1*time.Millisecond)
	m.Accumulate(300000, 120000, 2*time.Millisecond, 1*time.Millisecond)

	if m.Iterations != 2 {
		t.Errorf("Iterations = %d, want 2", m.Iterations)
	}
	if m.TotalInputBytes != 600000 {
		t.Errorf("TotalInputBytes = %d, want 600000", m.TotalInputBytes)
	}
	if m.TotalCompressedBytes != 240000 {
		t.Errorf("TotalCompressedBytes = %d, want 240000", m.TotalCompressedBytes)
	}

	ratio, err := m.CompressionRatio()
	if err != nil {
		t.Fatalf("CompressionRatio() error = %v", err)
	}
	if ratio != 2.5 {
		t.Errorf("CompressionRatio() = %v, want 2.5", ratio)
	}

	want := 600000.0 / (1e9 * 0.004)
	if got := m.CompressThroughputGBps(); math.Abs(got-want) > 1e-9 {
		t.Errorf("CompressThroughputGBps() = %v, want %v", got, want)
	}
	want = 600000.0 / (1e9 * 0.002)
	if got := m.DecompressThroughputGBps(); math.Abs(got-want) > 1e-9 {
		t.Errorf("DecompressThroughputGBps() = %v, want %v", got, want)
	}
}

func TestMetricsNoCompressedBytes(t *testing.T) {
	var m IterationMetrics
	if _, err := m.CompressionRatio(); !errors.Is(err, ErrNoCompressedBytes) {
		t.Errorf("CompressionRatio() error = %v, want ErrNoCompressedBytes", err)
	}
	if got := m.CompressThroughputGBps(); got != 0 {
		t.Errorf("CompressThroughputGBps() = %v on empty metrics, want 0", got)
	}
}
