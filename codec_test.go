package deltazip

import (
	"bytes"
	"math/rand"
	"testing"
)

func testDeviceAndStream(t *testing.T) (*Device, *Stream) {
	t.Helper()
	dev, err := NewDevice(0)
	if err != nil {
		t.Fatalf("NewDevice() error = %v", err)
	}
	stream, err := dev.NewStream()
	if err != nil {
		t.Fatalf("NewStream() error = %v", err)
	}
	t.Cleanup(func() {
		stream.Close()
		dev.Close()
	})
	return dev, stream
}

// compressibleChunks builds ragged chunks of repetitive text.
func compressibleChunks(sizes ...int) [][]byte {
	chunks := make([][]byte, len(sizes))
	for i, n := range sizes {
		chunks[i] = bytes.Repeat([]byte("deltazip benchmark payload "), n/27+1)[:n]
	}
	return chunks
}

// randomChunks builds ragged chunks of incompressible data.
func randomChunks(seed int64, sizes ...int) [][]byte {
	rng := rand.New(rand.NewSource(seed))
	chunks := make([][]byte, len(sizes))
	for i, n := range sizes {
		chunks[i] = make([]byte, n)
		rng.Read(chunks[i])
	}
	return chunks
}

func allCodecs(t *testing.T) []BatchedCodec {
	t.Helper()
	var codecs []BatchedCodec
	for _, name := range []string{"snappy", "lz4", "zstd", "gzip"} {
		c, err := NewCodec(name, 0)
		if err != nil {
			t.Fatalf("NewCodec(%q) error = %v", name, err)
		}
		codecs = append(codecs, c)
	}
	return codecs
}

func TestNewCodecUnknown(t *testing.T) {
	if _, err := NewCodec("brotli", 0); err == nil {
		t.Error("NewCodec(brotli) expected error")
	}
}

func TestCodecQueries(t *testing.T) {
	for _, codec := range allCodecs(t) {
		t.Run(codec.Name(), func(t *testing.T) {
			temp, st := codec.CompressTempSize(4, 65536)
			if st != StatusSuccess || temp <= 0 {
				t.Errorf("CompressTempSize() = (%d, %v), want positive size", temp, st)
			}
			bigger, st := codec.CompressTempSize(8, 65536)
			if st != StatusSuccess || bigger <= temp {
				t.Errorf("CompressTempSize() does not scale with batch size: %d then %d", temp, bigger)
			}

			maxOut, st := codec.MaxCompressedChunkSize(65536)
			if st != StatusSuccess || maxOut < 65536 {
				t.Errorf("MaxCompressedChunkSize(65536) = (%d, %v), want >= 65536", maxOut, st)
			}

			if _, st := codec.CompressTempSize(0, 65536); st != StatusInvalidArgument {
				t.Errorf("CompressTempSize(batch=0) status = %v, want invalid argument", st)
			}
			if _, st := codec.MaxCompressedChunkSize(0); st != StatusInvalidArgument {
				t.Errorf("MaxCompressedChunkSize(0) status = %v, want invalid argument", st)
			}
		})
	}
}

func roundTrip(t *testing.T, codec BatchedCodec, chunks [][]byte) {
	t.Helper()
	dev, stream := testDeviceAndStream(t)

	in, err := NewBatchData(dev, chunks)
	if err != nil {
		t.Fatalf("NewBatchData() error = %v", err)
	}
	defer in.Free()

	chunkSize := MaxChunkSize(chunks)
	compressed, _, err := runCompress(codec, dev, stream, in, chunkSize)
	if err != nil {
		t.Fatalf("runCompress() error = %v", err)
	}
	defer compressed.Free()

	compressedSizes, err := compressed.ChunkSizes()
	if err != nil {
		t.Fatalf("ChunkSizes() error = %v", err)
	}
	for i, s := range compressedSizes {
		if len(chunks[i]) > 0 && s == 0 {
			t.Errorf("chunk %d compressed to 0 bytes", i)
		}
	}

	restored, _, err := runDecompress(codec, dev, stream, compressed, chunkSize)
	if err != nil {
		t.Fatalf("runDecompress() error = %v", err)
	}
	defer restored.Free()

	got, err := MaterializeBatch(restored)
	if err != nil {
		t.Fatalf("MaterializeBatch() error = %v", err)
	}
	if want := bytes.Join(chunks, nil); !bytes.Equal(got, want) {
		t.Fatalf("round trip produced %d bytes, want %d identical bytes", len(got), len(want))
	}
}

func TestCodecRoundTripCompressible(t *testing.T) {
	for _, codec := range allCodecs(t) {
		t.Run(codec.Name(), func(t *testing.T) {
			roundTrip(t, codec, compressibleChunks(65536, 34464, 50000))
		})
	}
}

func TestCodecRoundTripIncompressible(t *testing.T) {
	for _, codec := range allCodecs(t) {
		t.Run(codec.Name(), func(t *testing.T) {
			roundTrip(t, codec, randomChunks(42, 4096, 100, 8192))
		})
	}
}

func TestCodecRoundTripRaggedTail(t *testing.T) {
	for _, codec := range allCodecs(t) {
		t.Run(codec.Name(), func(t *testing.T) {
			roundTrip(t, codec, compressibleChunks(65536, 1))
		})
	}
}

func TestCompressAsyncArgumentChecks(t *testing.T) {
	dev, stream := testDeviceAndStream(t)
	codec := NewSnappyCodec()

	chunks := compressibleChunks(1024)
	in, err := NewBatchData(dev, chunks)
	if err != nil {
		t.Fatalf("NewBatchData() error = %v", err)
	}
	defer in.Free()

	maxOut, _ := codec.MaxCompressedChunkSize(1024)
	out, err := NewOutputBatch(dev, maxOut, 1)
	if err != nil {
		t.Fatalf("NewOutputBatch() error = %v", err)
	}
	defer out.Free()

	need, _ := codec.CompressTempSize(1, 1024)
	scratch, err := dev.Alloc(need)
	if err != nil {
		t.Fatalf("Alloc() error = %v", err)
	}
	defer scratch.Free()

	if st := codec.CompressAsync(in.Args(), 1024, 1, nil, out.Args(), stream); st != StatusInvalidArgument {
		t.Errorf("CompressAsync(nil scratch) = %v, want invalid argument", st)
	}
	small, err := dev.Alloc(need - 1)
	if err != nil {
		t.Fatalf("Alloc() error = %v", err)
	}
	defer small.Free()
	if st := codec.CompressAsync(in.Args(), 1024, 1, small, out.Args(), stream); st != StatusBufferTooSmall {
		t.Errorf("CompressAsync(undersized scratch) = %v, want buffer too small", st)
	}
	if st := codec.CompressAsync(in.Args(), 1024, 2, scratch, out.Args(), stream); st != StatusInvalidArgument {
		t.Errorf("CompressAsync(batch mismatch) = %v, want invalid argument", st)
	}
	if st := codec.CompressAsync(in.Args(), 0, 1, scratch, out.Args(), stream); st != StatusInvalidArgument {
		t.Errorf("CompressAsync(chunk size 0) = %v, want invalid argument", st)
	}
}

func TestUndersizedOutputSurfacesAtSync(t *testing.T) {
	dev, stream := testDeviceAndStream(t)
	codec := NewSnappyCodec()

	chunks := randomChunks(7, 4096)
	in, err := NewBatchData(dev, chunks)
	if err != nil {
		t.Fatalf("NewBatchData() error = %v", err)
	}
	defer in.Free()

	// Far below the worst case for incompressible input.
	out, err := NewOutputBatch(dev, 16, 1)
	if err != nil {
		t.Fatalf("NewOutputBatch() error = %v", err)
	}
	defer out.Free()

	need, _ := codec.CompressTempSize(1, 4096)
	scratch, err := dev.Alloc(need)
	if err != nil {
		t.Fatalf("Alloc() error = %v", err)
	}
	defer scratch.Free()

	if st := codec.CompressAsync(in.Args(), 4096, 1, scratch, out.Args(), stream); st != StatusSuccess {
		t.Fatalf("CompressAsync() = %v, want success at launch", st)
	}
	if err := stream.Synchronize(); err == nil {
		t.Error("Synchronize() expected kernel error for undersized output")
	}
}
