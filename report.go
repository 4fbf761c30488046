package deltazip

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"
)

// RunResult captures the aggregate outcome of one benchmark run.
type RunResult struct {
	Codec                string    `json:"codec"`
	DeviceID             int       `json:"device_id"`
	ChunkSize            int       `json:"chunk_size"`
	BatchSize            int       `json:"batch_size"`
	WarmupCount          int       `json:"warmup_count"`
	IterationCount       int       `json:"iteration_count"`
	TotalInputBytes      int64     `json:"total_input_bytes"`
	TotalCompressedBytes int64     `json:"total_compressed_bytes"`
	CompressionRatio     float64   `json:"compression_ratio"`
	CompressGBps         float64   `json:"compress_gbps"`
	DecompressGBps       float64   `json:"decompress_gbps"`
	StartedAt            time.Time `json:"started_at"`
}

var reportHeader = []string{
	"codec", "device", "chunk_size", "batch_size", "iterations",
	"input_bytes", "compressed_bytes", "ratio", "compress_gbps", "decompress_gbps",
}

func (r *RunResult) record() []string {
	return []string{
		r.Codec,
		strconv.Itoa(r.DeviceID),
		strconv.Itoa(r.ChunkSize),
		strconv.Itoa(r.BatchSize),
		strconv.Itoa(r.IterationCount),
		strconv.FormatInt(r.TotalInputBytes, 10),
		strconv.FormatInt(r.TotalCompressedBytes, 10),
		strconv.FormatFloat(r.CompressionRatio, 'f', 4, 64),
		strconv.FormatFloat(r.CompressGBps, 'f', 4, 64),
		strconv.FormatFloat(r.DecompressGBps, 'f', 4, 64),
	}
}

// WriteCSV renders results as CSV with a header row.
func WriteCSV(w io.Writer, results []RunResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(reportHeader); err != nil {
		return fmt.Errorf("deltazip: csv write error: %w", err)
	}
	for i := range results {
		if err := cw.Write(results[i].record()); err != nil {
			return fmt.Errorf("deltazip: csv write error: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("deltazip: csv write error: %w", err)
	}
	return nil
}

// WriteTable renders results as an aligned tab-separated table.
func WriteTable(w io.Writer, results []RunResult) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	for i, col := range reportHeader {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, col)
	}
	fmt.Fprintln(tw)
	for i := range results {
		rec := results[i].record()
		for j, col := range rec {
			if j > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, col)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
