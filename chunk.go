package deltazip

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// SplitChunks slices data into chunkSize-byte chunks plus one remainder
// chunk when the length is not a multiple. The chunks alias data; callers
// copy them to device memory before mutating anything.
func SplitChunks(data []byte, chunkSize int) ([][]byte, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("deltazip: chunk size must be positive, got %d", chunkSize)
	}
	chunks := make([][]byte, 0, len(data)/chunkSize+1)
	for off := 0; off < len(data); off += chunkSize {
		end := off + chunkSize
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[off:end])
	}
	return chunks, nil
}

// ReadPagedFile reads a file whose pages each carry an 8-byte little-endian
// size prefix, returning one chunk per page.
func ReadPagedFile(path string) ([][]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("deltazip: read paged file: %w", err)
	}
	var chunks [][]byte
	for off := 0; off < len(data); {
		if off+8 > len(data) {
			return nil, fmt.Errorf("deltazip: paged file %s: truncated size prefix at offset %d", path, off)
		}
		size := binary.LittleEndian.Uint64(data[off:])
		off += 8
		if size > uint64(len(data)-off) {
			return nil, fmt.Errorf("deltazip: paged file %s: page of %d bytes at offset %d exceeds file", path, size, off)
		}
		chunks = append(chunks, data[off:off+int(size)])
		off += int(size)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("deltazip: paged file %s: %w", path, io.ErrUnexpectedEOF)
	}
	return chunks, nil
}

// DuplicateChunks appends n additional copies of the chunk set, the
// mechanism the harness uses to scale batch size from small inputs.
func DuplicateChunks(chunks [][]byte, n int) [][]byte {
	if n <= 0 {
		return chunks
	}
	out := make([][]byte, 0, len(chunks)*(n+1))
	for i := 0; i <= n; i++ {
		out = append(out, chunks...)
	}
	return out
}

// MaxChunkSize returns the largest chunk length. This is the chunk_size
// value passed to every codec query and batched call of a run.
func MaxChunkSize(chunks [][]byte) int {
	max := 0
	for _, c := range chunks {
		if len(c) > max {
			max = len(c)
		}
	}
	return max
}

// BatchData is a batch of chunks as parallel device-resident arrays: one
// buffer per chunk plus a sizes array of little-endian uint64 lengths.
// A BatchData exclusively owns its buffers and destroys them with Free.
type BatchData struct {
	dev       *Device
	ptrs      []*DeviceBuffer
	sizes     *DeviceBuffer
	batchSize int
}

// NewBatchData builds the device-resident form of host chunks: each chunk
// is copied into a fresh allocation sized exactly to its length.
func NewBatchData(dev *Device, chunks [][]byte) (*BatchData, error) {
	if len(chunks) == 0 {
		return nil, ErrEmptyBatch
	}
	b := &BatchData{dev: dev, batchSize: len(chunks)}
	ok := false
	defer func() {
		if !ok {
			b.Free()
		}
	}()

	sizes := make([]uint64, len(chunks))
	for i, chunk := range chunks {
		buf, err := dev.Alloc(int64(len(chunk)))
		if err != nil {
			return nil, fmt.Errorf("deltazip: batch chunk %d: %w", i, err)
		}
		b.ptrs = append(b.ptrs, buf)
		if err := buf.CopyToDevice(chunk); err != nil {
			return nil, fmt.Errorf("deltazip: batch chunk %d: %w", i, err)
		}
		sizes[i] = uint64(len(chunk))
	}

	sizesBuf, err := dev.Alloc(int64(len(chunks) * 8))
	if err != nil {
		return nil, fmt.Errorf("deltazip: batch sizes array: %w", err)
	}
	b.sizes = sizesBuf
	if err := writeSizes(sizesBuf, sizes); err != nil {
		return nil, fmt.Errorf("deltazip: batch sizes array: %w", err)
	}
	ok = true
	return b, nil
}

// NewOutputBatch allocates batchSize buffers of maxChunkBytes capacity each.
// The sizes array starts at capacity; a batched operation overwrites it with
// the true result sizes.
func NewOutputBatch(dev *Device, maxChunkBytes int64, batchSize int) (*BatchData, error) {
	if batchSize <= 0 {
		return nil, ErrEmptyBatch
	}
	if maxChunkBytes < 0 {
		return nil, fmt.Errorf("deltazip: negative output capacity %d", maxChunkBytes)
	}
	b := &BatchData{dev: dev, batchSize: batchSize}
	ok := false
	defer func() {
		if !ok {
			b.Free()
		}
	}()

	sizes := make([]uint64, batchSize)
	for i := 0; i < batchSize; i++ {
		buf, err := dev.Alloc(maxChunkBytes)
		if err != nil {
			return nil, fmt.Errorf("deltazip: output chunk %d: %w", i, err)
		}
		b.ptrs = append(b.ptrs, buf)
		sizes[i] = uint64(maxChunkBytes)
	}

	sizesBuf, err := dev.Alloc(int64(batchSize * 8))
	if err != nil {
		return nil, fmt.Errorf("deltazip: output sizes array: %w", err)
	}
	b.sizes = sizesBuf
	if err := writeSizes(sizesBuf, sizes); err != nil {
		return nil, fmt.Errorf("deltazip: output sizes array: %w", err)
	}
	ok = true
	return b, nil
}

// BatchSize returns the number of chunks in the batch.
func (b *BatchData) BatchSize() int { return b.batchSize }

// Args returns the device-resident arrays for a batched codec call.
func (b *BatchData) Args() BatchArgs {
	return BatchArgs{Ptrs: b.ptrs, Sizes: b.sizes}
}

// ChunkSizes reads the per-chunk byte lengths back from the device.
func (b *BatchData) ChunkSizes() ([]uint64, error) {
	return readSizes(b.sizes, b.batchSize)
}

// TotalBytes reads the sizes array and sums it.
func (b *BatchData) TotalBytes() (int64, error) {
	sizes, err := b.ChunkSizes()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, s := range sizes {
		total += int64(s)
	}
	return total, nil
}

// Free destroys the batch and every device buffer it owns. Free is
// idempotent.
func (b *BatchData) Free() {
	for _, buf := range b.ptrs {
		buf.Free()
	}
	b.ptrs = nil
	if b.sizes != nil {
		b.sizes.Free()
		b.sizes = nil
	}
}
