package deltazip

import "fmt"

// MaterializeBatch transfers a batch back to host memory as one contiguous
// buffer: it reads the true per-chunk sizes from the device, then copies each
// chunk's true-size prefix, in chunk order, with no padding or separators.
// The result length equals the sum of the reported sizes exactly.
func MaterializeBatch(b *BatchData) ([]byte, error) {
	sizes, err := b.ChunkSizes()
	if err != nil {
		return nil, fmt.Errorf("deltazip: materialize: read sizes: %w", err)
	}
	var total int64
	for _, s := range sizes {
		total += int64(s)
	}

	out := make([]byte, 0, total)
	for i, buf := range b.ptrs {
		host, err := buf.CopyToHost()
		if err != nil {
			return nil, fmt.Errorf("deltazip: materialize: chunk %d: %w", i, err)
		}
		if sizes[i] > uint64(len(host)) {
			return nil, fmt.Errorf("deltazip: materialize: chunk %d size %d exceeds %d-byte buffer", i, sizes[i], len(host))
		}
		out = append(out, host[:sizes[i]]...)
	}
	return out, nil
}
