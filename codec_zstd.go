package deltazip

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// ZstdCodec implements the batched codec contract with zstd frames.
// EncodeAll and DecodeAll are safe for concurrent use, so one encoder and
// decoder pair serves every chunk of a batch.
type ZstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewZstdCodec creates a zstd batched codec at the given compression level
// (1 fastest through 4 best; 0 selects the default).
func NewZstdCodec(level int) (*ZstdCodec, error) {
	encLevel := zstd.SpeedDefault
	if level > 0 {
		encLevel = zstd.EncoderLevelFromZstd(level)
	}
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(encLevel),
		zstd.WithEncoderCRC(false),
	)
	if err != nil {
		return nil, fmt.Errorf("deltazip: zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("deltazip: zstd decoder: %w", err)
	}
	return &ZstdCodec{enc: enc, dec: dec}, nil
}

func (c *ZstdCodec) Name() string { return "zstd" }

func (c *ZstdCodec) CompressTempSize(batchSize, maxChunkBytes int) (int64, Status) {
	if batchSize <= 0 || maxChunkBytes <= 0 {
		return 0, StatusInvalidArgument
	}
	// Window and match-state working memory per concurrent chunk.
	return scratchSize(batchSize, maxChunkBytes, 1<<17), StatusSuccess
}

func (c *ZstdCodec) MaxCompressedChunkSize(maxChunkBytes int) (int64, Status) {
	if maxChunkBytes <= 0 {
		return 0, StatusInvalidArgument
	}
	// Raw-block worst case: 3 bytes per 128 KiB block plus frame header.
	blocks := int64(maxChunkBytes+(128<<10)-1) / (128 << 10)
	return int64(maxChunkBytes) + blocks*3 + 32, StatusSuccess
}

func (c *ZstdCodec) CompressAsync(in BatchArgs, maxChunkBytes, batchSize int, scratch *DeviceBuffer, out BatchArgs, stream *Stream) Status {
	need, st := c.CompressTempSize(batchSize, maxChunkBytes)
	if st != StatusSuccess {
		return st
	}
	if st := validateBatchArgs(in, maxChunkBytes, batchSize, scratch, need, out, stream); st != StatusSuccess {
		return st
	}
	return launchBatch(stream, c.Name(), batchSize, in, out, func(src []byte) ([]byte, error) {
		return c.enc.EncodeAll(src, nil), nil
	})
}

func (c *ZstdCodec) DecompressTempSize(batchSize, maxChunkBytes int) (int64, Status) {
	if batchSize <= 0 || maxChunkBytes <= 0 {
		return 0, StatusInvalidArgument
	}
	return scratchSize(batchSize, maxChunkBytes, 1<<16), StatusSuccess
}

func (c *ZstdCodec) DecompressAsync(in BatchArgs, maxChunkBytes, batchSize int, scratch *DeviceBuffer, out BatchArgs, stream *Stream) Status {
	need, st := c.DecompressTempSize(batchSize, maxChunkBytes)
	if st != StatusSuccess {
		return st
	}
	if st := validateBatchArgs(in, maxChunkBytes, batchSize, scratch, need, out, stream); st != StatusSuccess {
		return st
	}
	return launchBatch(stream, c.Name(), batchSize, in, out, func(src []byte) ([]byte, error) {
		return c.dec.DecodeAll(src, nil)
	})
}

// Close releases the encoder and decoder state.
func (c *ZstdCodec) Close() {
	c.enc.Close()
	c.dec.Close()
}
