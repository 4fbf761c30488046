package deltazip

import "github.com/golang/snappy"

// SnappyCodec implements the batched codec contract with snappy block
// encoding.
type SnappyCodec struct{}

// NewSnappyCodec creates a snappy batched codec. Snappy has no tuning knobs.
func NewSnappyCodec() *SnappyCodec { return &SnappyCodec{} }

func (c *SnappyCodec) Name() string { return "snappy" }

func (c *SnappyCodec) CompressTempSize(batchSize, maxChunkBytes int) (int64, Status) {
	if batchSize <= 0 || maxChunkBytes <= 0 {
		return 0, StatusInvalidArgument
	}
	return scratchSize(batchSize, maxChunkBytes, 32), StatusSuccess
}

func (c *SnappyCodec) MaxCompressedChunkSize(maxChunkBytes int) (int64, Status) {
	if maxChunkBytes <= 0 {
		return 0, StatusInvalidArgument
	}
	return int64(snappy.MaxEncodedLen(maxChunkBytes)), StatusSuccess
}

func (c *SnappyCodec) CompressAsync(in BatchArgs, maxChunkBytes, batchSize int, scratch *DeviceBuffer, out BatchArgs, stream *Stream) Status {
	need, st := c.CompressTempSize(batchSize, maxChunkBytes)
	if st != StatusSuccess {
		return st
	}
	if st := validateBatchArgs(in, maxChunkBytes, batchSize, scratch, need, out, stream); st != StatusSuccess {
		return st
	}
	return launchBatch(stream, c.Name(), batchSize, in, out, func(src []byte) ([]byte, error) {
		return snappy.Encode(nil, src), nil
	})
}

func (c *SnappyCodec) DecompressTempSize(batchSize, maxChunkBytes int) (int64, Status) {
	if batchSize <= 0 || maxChunkBytes <= 0 {
		return 0, StatusInvalidArgument
	}
	return scratchSize(batchSize, maxChunkBytes, 16), StatusSuccess
}

func (c *SnappyCodec) DecompressAsync(in BatchArgs, maxChunkBytes, batchSize int, scratch *DeviceBuffer, out BatchArgs, stream *Stream) Status {
	need, st := c.DecompressTempSize(batchSize, maxChunkBytes)
	if st != StatusSuccess {
		return st
	}
	if st := validateBatchArgs(in, maxChunkBytes, batchSize, scratch, need, out, stream); st != StatusSuccess {
		return st
	}
	return launchBatch(stream, c.Name(), batchSize, in, out, func(src []byte) ([]byte, error) {
		return snappy.Decode(nil, src)
	})
}
