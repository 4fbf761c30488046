package deltazip

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

// GzipCodec implements the batched codec contract with gzip. It exists for
// baseline comparisons against the block codecs; each chunk becomes one
// gzip member.
type GzipCodec struct {
	level int
}

// NewGzipCodec creates a gzip batched codec at the given compression level.
// Level 0 selects gzip.DefaultCompression.
func NewGzipCodec(level int) (*GzipCodec, error) {
	if level == 0 {
		level = gzip.DefaultCompression
	}
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		return nil, fmt.Errorf("deltazip: gzip level %d out of range", level)
	}
	return &GzipCodec{level: level}, nil
}

func (c *GzipCodec) Name() string { return "gzip" }

func (c *GzipCodec) CompressTempSize(batchSize, maxChunkBytes int) (int64, Status) {
	if batchSize <= 0 || maxChunkBytes <= 0 {
		return 0, StatusInvalidArgument
	}
	// Deflate window and Huffman tables per concurrent chunk.
	return scratchSize(batchSize, maxChunkBytes, 1<<15), StatusSuccess
}

func (c *GzipCodec) MaxCompressedChunkSize(maxChunkBytes int) (int64, Status) {
	if maxChunkBytes <= 0 {
		return 0, StatusInvalidArgument
	}
	// Stored-block worst case: 5 bytes per 64 KiB block plus member
	// header and trailer.
	blocks := int64(maxChunkBytes+0xffff-1) / 0xffff
	return int64(maxChunkBytes) + blocks*5 + 32, StatusSuccess
}

func (c *GzipCodec) CompressAsync(in BatchArgs, maxChunkBytes, batchSize int, scratch *DeviceBuffer, out BatchArgs, stream *Stream) Status {
	need, st := c.CompressTempSize(batchSize, maxChunkBytes)
	if st != StatusSuccess {
		return st
	}
	if st := validateBatchArgs(in, maxChunkBytes, batchSize, scratch, need, out, stream); st != StatusSuccess {
		return st
	}
	level := c.level
	return launchBatch(stream, c.Name(), batchSize, in, out, func(src []byte) ([]byte, error) {
		var buf bytes.Buffer
		w, err := gzip.NewWriterLevel(&buf, level)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(src); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})
}

func (c *GzipCodec) DecompressTempSize(batchSize, maxChunkBytes int) (int64, Status) {
	if batchSize <= 0 || maxChunkBytes <= 0 {
		return 0, StatusInvalidArgument
	}
	return scratchSize(batchSize, maxChunkBytes, 1<<15), StatusSuccess
}

func (c *GzipCodec) DecompressAsync(in BatchArgs, maxChunkBytes, batchSize int, scratch *DeviceBuffer, out BatchArgs, stream *Stream) Status {
	need, st := c.DecompressTempSize(batchSize, maxChunkBytes)
	if st != StatusSuccess {
		return st
	}
	if st := validateBatchArgs(in, maxChunkBytes, batchSize, scratch, need, out, stream); st != StatusSuccess {
		return st
	}
	return launchBatch(stream, c.Name(), batchSize, in, out, func(src []byte) ([]byte, error) {
		r, err := gzip.NewReader(bytes.NewReader(src))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	})
}
