package deltazip

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config defines one benchmark run.
type Config struct {
	// DeviceID selects the accelerator device.
	DeviceID int `yaml:"device_id"`

	// Codec names the batched codec to benchmark: snappy, lz4, zstd or gzip.
	Codec string `yaml:"codec"`

	// CodecLevel is the codec-specific compression level. 0 means default.
	CodecLevel int `yaml:"codec_level"`

	// ChunkSize is the split size for non-paged inputs in bytes.
	// Paged inputs keep their page boundaries; the batched calls always use
	// the largest chunk actually present.
	ChunkSize int `yaml:"chunk_size"`

	// WarmupCount is the number of untimed full-pipeline iterations run
	// before measurement starts. Their results are discarded.
	WarmupCount int `yaml:"warmup_count"`

	// IterationCount is the number of timed iterations.
	IterationCount int `yaml:"iteration_count"`

	// DuplicateCount appends this many extra copies of the chunk set to
	// scale the batch.
	DuplicateCount int `yaml:"duplicate_count"`

	// VerifyRoundTrip checks decompressed output against the input on the
	// first iteration.
	VerifyRoundTrip bool `yaml:"verify_round_trip"`

	// Input describes where chunks come from.
	Input InputConfig `yaml:"input"`

	// Output describes where results and artifacts go.
	Output OutputConfig `yaml:"output"`
}

// InputConfig describes the benchmark input files.
type InputConfig struct {
	// Files are the input paths, read in order.
	Files []string `yaml:"files"`

	// Paged marks inputs as pre-chunked with an 8-byte size prefix per page.
	Paged bool `yaml:"paged"`
}

// OutputConfig describes result and artifact destinations.
type OutputConfig struct {
	// Dir is the artifact directory. The compressed output of each
	// iteration is written to the same key inside it, so only the last
	// iteration's artifact survives.
	Dir string `yaml:"dir"`

	// ArtifactKey is the artifact name inside Dir.
	ArtifactKey string `yaml:"artifact_key"`

	// CSV renders the report as CSV instead of an aligned table.
	CSV bool `yaml:"csv"`

	// HistoryPath, when set, appends the run result to a SQLite history
	// database at this path.
	HistoryPath string `yaml:"history_path"`

	// S3, when non-nil, mirrors the artifact to object storage.
	S3 *S3StoreConfig `yaml:"s3"`
}

// DefaultConfig returns the harness defaults.
func DefaultConfig() Config {
	return Config{
		Codec:           "zstd",
		ChunkSize:       64 << 10,
		WarmupCount:     1,
		IterationCount:  5,
		VerifyRoundTrip: true,
		Output: OutputConfig{
			Dir:         ".",
			ArtifactKey: "deltazip-bench.out",
		},
	}
}

// Validate reports configuration errors before any device work starts.
func (c *Config) Validate() error {
	if c.DeviceID < 0 {
		return fmt.Errorf("deltazip: device id must be non-negative, got %d", c.DeviceID)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("deltazip: chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.WarmupCount < 0 {
		return fmt.Errorf("deltazip: warmup count must be non-negative, got %d", c.WarmupCount)
	}
	if c.IterationCount <= 0 {
		return fmt.Errorf("deltazip: iteration count must be positive, got %d", c.IterationCount)
	}
	if c.DuplicateCount < 0 {
		return fmt.Errorf("deltazip: duplicate count must be non-negative, got %d", c.DuplicateCount)
	}
	if len(c.Input.Files) == 0 {
		return fmt.Errorf("deltazip: at least one input file is required")
	}
	if c.Output.ArtifactKey == "" {
		return fmt.Errorf("deltazip: artifact key must not be empty")
	}
	if _, err := NewCodec(c.Codec, c.CodecLevel); err != nil {
		return err
	}
	return nil
}

// LoadPreset reads a YAML preset file over the defaults.
func LoadPreset(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("deltazip: read preset: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("deltazip: parse preset %s: %w", path, err)
	}
	return cfg, nil
}
