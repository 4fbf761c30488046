package deltazip

import (
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// lz4 chunk framing. The block format has no escape for incompressible
// input, so each chunk carries a one-byte marker.
const (
	lz4BlockChunk byte = 0 // lz4 block follows
	lz4RawChunk   byte = 1 // stored uncompressed
)

// LZ4Codec implements the batched codec contract with LZ4 block compression.
type LZ4Codec struct {
	level lz4.CompressionLevel
}

// NewLZ4Codec creates an LZ4 batched codec. Level 0 selects the fast path;
// levels 1 through 9 select increasingly expensive high-compression modes.
func NewLZ4Codec(level int) *LZ4Codec {
	c := &LZ4Codec{level: lz4.Fast}
	switch {
	case level >= 9:
		c.level = lz4.Level9
	case level >= 1:
		// Level N maps onto the lz4 package's 1<<(8+N) constants.
		c.level = lz4.CompressionLevel(1 << (8 + level))
	}
	return c
}

func (c *LZ4Codec) Name() string { return "lz4" }

func (c *LZ4Codec) CompressTempSize(batchSize, maxChunkBytes int) (int64, Status) {
	if batchSize <= 0 || maxChunkBytes <= 0 {
		return 0, StatusInvalidArgument
	}
	// The hash table the block compressor keeps per concurrent chunk.
	return scratchSize(batchSize, maxChunkBytes, 1<<16), StatusSuccess
}

func (c *LZ4Codec) MaxCompressedChunkSize(maxChunkBytes int) (int64, Status) {
	if maxChunkBytes <= 0 {
		return 0, StatusInvalidArgument
	}
	return int64(lz4.CompressBlockBound(maxChunkBytes)) + 1, StatusSuccess
}

func (c *LZ4Codec) CompressAsync(in BatchArgs, maxChunkBytes, batchSize int, scratch *DeviceBuffer, out BatchArgs, stream *Stream) Status {
	need, st := c.CompressTempSize(batchSize, maxChunkBytes)
	if st != StatusSuccess {
		return st
	}
	if st := validateBatchArgs(in, maxChunkBytes, batchSize, scratch, need, out, stream); st != StatusSuccess {
		return st
	}
	level := c.level
	return launchBatch(stream, c.Name(), batchSize, in, out, func(src []byte) ([]byte, error) {
		dst := make([]byte, 1+lz4.CompressBlockBound(len(src)))
		var (
			n   int
			err error
		)
		if level == lz4.Fast {
			var cmp lz4.Compressor
			n, err = cmp.CompressBlock(src, dst[1:])
		} else {
			cmp := lz4.CompressorHC{Level: level}
			n, err = cmp.CompressBlock(src, dst[1:])
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			// Incompressible chunk: store it raw.
			dst[0] = lz4RawChunk
			return append(dst[:1], src...), nil
		}
		dst[0] = lz4BlockChunk
		return dst[:1+n], nil
	})
}

func (c *LZ4Codec) DecompressTempSize(batchSize, maxChunkBytes int) (int64, Status) {
	if batchSize <= 0 || maxChunkBytes <= 0 {
		return 0, StatusInvalidArgument
	}
	return scratchSize(batchSize, maxChunkBytes, 64), StatusSuccess
}

func (c *LZ4Codec) DecompressAsync(in BatchArgs, maxChunkBytes, batchSize int, scratch *DeviceBuffer, out BatchArgs, stream *Stream) Status {
	need, st := c.DecompressTempSize(batchSize, maxChunkBytes)
	if st != StatusSuccess {
		return st
	}
	if st := validateBatchArgs(in, maxChunkBytes, batchSize, scratch, need, out, stream); st != StatusSuccess {
		return st
	}
	return launchBatch(stream, c.Name(), batchSize, in, out, func(src []byte) ([]byte, error) {
		if len(src) == 0 {
			return nil, fmt.Errorf("lz4 chunk missing framing byte")
		}
		switch src[0] {
		case lz4RawChunk:
			return src[1:], nil
		case lz4BlockChunk:
			dst := make([]byte, maxChunkBytes)
			n, err := lz4.UncompressBlock(src[1:], dst)
			if err != nil {
				return nil, err
			}
			return dst[:n], nil
		default:
			return nil, fmt.Errorf("lz4 chunk has unknown framing byte %#x", src[0])
		}
	})
}
