package deltazip

import (
	"encoding/binary"
	"fmt"
	"runtime"
	"sync"
)

// BatchArgs references the device-resident parallel arrays of one batch:
// Ptrs[i] is the buffer backing chunk i and Sizes holds one little-endian
// uint64 byte length per chunk.
type BatchArgs struct {
	Ptrs  []*DeviceBuffer
	Sizes *DeviceBuffer
}

// BatchedCodec is the external batched-codec contract. Every operation
// reports a Status; any non-success value is fatal to the run. The async
// operations enqueue a single batched kernel on the stream and return
// immediately; kernel-side failures surface from Stream.Synchronize.
//
// Codec-specific tuning (compression level, window size) is fixed at
// construction time of each implementation.
type BatchedCodec interface {
	// Name identifies the codec in reports and history rows.
	Name() string

	// CompressTempSize reports the scratch bytes one batched compress call
	// needs for the given batch size and maximum chunk size.
	CompressTempSize(batchSize, maxChunkBytes int) (int64, Status)

	// MaxCompressedChunkSize reports the worst-case compressed size of a
	// single chunk of at most maxChunkBytes.
	MaxCompressedChunkSize(maxChunkBytes int) (int64, Status)

	// CompressAsync compresses all chunks of the batch simultaneously,
	// writing each chunk's true compressed size into out.Sizes.
	CompressAsync(in BatchArgs, maxChunkBytes, batchSize int, scratch *DeviceBuffer, out BatchArgs, stream *Stream) Status

	// DecompressTempSize reports the scratch bytes one batched decompress
	// call needs.
	DecompressTempSize(batchSize, maxChunkBytes int) (int64, Status)

	// DecompressAsync decompresses all chunks of the batch simultaneously,
	// writing each chunk's decompressed size into out.Sizes.
	DecompressAsync(in BatchArgs, maxChunkBytes, batchSize int, scratch *DeviceBuffer, out BatchArgs, stream *Stream) Status
}

// NewCodec constructs a batched codec by name. Supported names are
// "snappy", "lz4", "zstd" and "gzip". The level is ignored by codecs
// without a tunable level.
func NewCodec(name string, level int) (BatchedCodec, error) {
	switch name {
	case "snappy":
		return NewSnappyCodec(), nil
	case "lz4":
		return NewLZ4Codec(level), nil
	case "zstd":
		return NewZstdCodec(level)
	case "gzip":
		return NewGzipCodec(level)
	default:
		return nil, fmt.Errorf("deltazip: unknown codec %q", name)
	}
}

// chunkKernel transforms one chunk and returns the result.
type chunkKernel func(src []byte) ([]byte, error)

// validateBatchArgs performs the argument checks shared by every codec's
// async entry points.
func validateBatchArgs(in BatchArgs, maxChunkBytes, batchSize int, scratch *DeviceBuffer, scratchNeed int64, out BatchArgs, stream *Stream) Status {
	if stream == nil || maxChunkBytes <= 0 || batchSize <= 0 {
		return StatusInvalidArgument
	}
	if len(in.Ptrs) != batchSize || len(out.Ptrs) != batchSize {
		return StatusInvalidArgument
	}
	if in.Sizes == nil || out.Sizes == nil {
		return StatusInvalidArgument
	}
	if in.Sizes.Size() < int64(batchSize*8) || out.Sizes.Size() < int64(batchSize*8) {
		return StatusBufferTooSmall
	}
	if scratchNeed > 0 {
		if scratch == nil {
			return StatusInvalidArgument
		}
		if scratch.Size() < scratchNeed {
			return StatusBufferTooSmall
		}
	}
	return StatusSuccess
}

// launchBatch enqueues one batched kernel that processes every chunk of the
// batch concurrently, bounded by the host CPU count standing in for device
// parallelism. Per-chunk failures become the stream's sticky error.
func launchBatch(stream *Stream, name string, batchSize int, in, out BatchArgs, kernel chunkKernel) Status {
	err := stream.submit(func() error {
		inSizes, err := readSizes(in.Sizes, batchSize)
		if err != nil {
			return fmt.Errorf("deltazip: %s batch: read input sizes: %w", name, err)
		}

		outSizes := make([]uint64, batchSize)
		errs := make([]error, batchSize)

		var wg sync.WaitGroup
		sem := make(chan struct{}, runtime.NumCPU())
		for i := 0; i < batchSize; i++ {
			wg.Add(1)
			sem <- struct{}{}
			go func(i int) {
				defer wg.Done()
				defer func() { <-sem }()
				errs[i] = processChunk(name, in.Ptrs[i], inSizes[i], out.Ptrs[i], &outSizes[i], kernel)
			}(i)
		}
		wg.Wait()

		for i, e := range errs {
			if e != nil {
				return fmt.Errorf("deltazip: %s batch: chunk %d: %w", name, i, e)
			}
		}
		return writeSizes(out.Sizes, outSizes)
	})
	if err != nil {
		return StatusInternal
	}
	return StatusSuccess
}

func processChunk(name string, src *DeviceBuffer, srcSize uint64, dst *DeviceBuffer, dstSize *uint64, kernel chunkKernel) error {
	srcData, err := src.bytes()
	if err != nil {
		return err
	}
	if srcSize > uint64(len(srcData)) {
		return fmt.Errorf("chunk size %d exceeds buffer capacity %d", srcSize, len(srcData))
	}
	result, err := kernel(srcData[:srcSize])
	if err != nil {
		return err
	}
	dstData, err := dst.bytes()
	if err != nil {
		return err
	}
	if len(result) > len(dstData) {
		return fmt.Errorf("%s output of %d bytes exceeds %d-byte output buffer", name, len(result), len(dstData))
	}
	copy(dstData, result)
	*dstSize = uint64(len(result))
	return nil
}

// readSizes decodes the little-endian uint64 size array from a device buffer.
func readSizes(buf *DeviceBuffer, n int) ([]uint64, error) {
	raw, err := buf.CopyToHost()
	if err != nil {
		return nil, err
	}
	if len(raw) < n*8 {
		return nil, fmt.Errorf("sizes buffer holds %d bytes, need %d", len(raw), n*8)
	}
	sizes := make([]uint64, n)
	for i := range sizes {
		sizes[i] = binary.LittleEndian.Uint64(raw[i*8:])
	}
	return sizes, nil
}

// writeSizes encodes a size array into a device buffer.
func writeSizes(buf *DeviceBuffer, sizes []uint64) error {
	raw := make([]byte, len(sizes)*8)
	for i, s := range sizes {
		binary.LittleEndian.PutUint64(raw[i*8:], s)
	}
	return buf.CopyToDevice(raw)
}

// scratchSize models the per-call working memory an emulated codec charges,
// keeping scratch queries batch- and chunk-size-dependent the way a real
// codec's are.
func scratchSize(batchSize, maxChunkBytes, perChunkOverhead int) int64 {
	return int64(batchSize) * (int64(maxChunkBytes)/8 + int64(perChunkOverhead))
}
