package deltazip

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// defaultDeviceMemory is the memory budget of an emulated device.
const defaultDeviceMemory int64 = 8 << 30

// VisibleDevices returns the number of accelerator devices visible to the
// process. The DELTAZIP_VISIBLE_DEVICES environment variable, a comma-separated
// device list, restricts the set the same way CUDA_VISIBLE_DEVICES does.
func VisibleDevices() int {
	if v := os.Getenv("DELTAZIP_VISIBLE_DEVICES"); v != "" {
		return len(strings.Split(v, ","))
	}
	return 1
}

// Device is an emulated accelerator. Allocations are host-backed but
// accounted against a fixed memory budget, so allocation failures and
// leaks behave as they would on real device memory.
type Device struct {
	id       int
	name     string
	memTotal int64

	mu      sync.Mutex
	memUsed int64
	memPeak int64
	nAllocs int64
	closed  bool
}

// NewDevice opens the device at the given index with the default memory budget.
func NewDevice(id int) (*Device, error) {
	return NewDeviceWithMemory(id, defaultDeviceMemory)
}

// NewDeviceWithMemory opens the device at the given index with an explicit
// memory budget in bytes.
func NewDeviceWithMemory(id int, memTotal int64) (*Device, error) {
	if id < 0 || id >= VisibleDevices() {
		return nil, fmt.Errorf("deltazip: device %d not visible (have %d)", id, VisibleDevices())
	}
	if memTotal <= 0 {
		return nil, fmt.Errorf("deltazip: device memory budget must be positive, got %d", memTotal)
	}
	return &Device{
		id:       id,
		name:     fmt.Sprintf("emulated accelerator %d", id),
		memTotal: memTotal,
	}, nil
}

// ID returns the device index.
func (d *Device) ID() int { return d.id }

// Name returns the device name.
func (d *Device) Name() string { return d.name }

// MemoryTotal returns the device memory budget in bytes.
func (d *Device) MemoryTotal() int64 { return d.memTotal }

// MemoryUsed returns the bytes currently allocated on the device.
func (d *Device) MemoryUsed() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.memUsed
}

// MemoryPeak returns the high-water mark of device allocations.
func (d *Device) MemoryPeak() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.memPeak
}

// AllocCount returns the number of allocations performed over the device's
// lifetime, freed or not.
func (d *Device) AllocCount() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nAllocs
}

// Alloc allocates a device buffer of the given size.
func (d *Device) Alloc(size int64) (*DeviceBuffer, error) {
	if size < 0 {
		return nil, fmt.Errorf("deltazip: negative allocation size %d", size)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrDeviceClosed
	}
	if d.memUsed+size > d.memTotal {
		return nil, fmt.Errorf("deltazip: alloc %d bytes: %w (used %d of %d)",
			size, ErrDeviceMemory, d.memUsed, d.memTotal)
	}
	d.memUsed += size
	if d.memUsed > d.memPeak {
		d.memPeak = d.memUsed
	}
	d.nAllocs++
	return &DeviceBuffer{
		dev:  d,
		size: size,
		data: make([]byte, size),
	}, nil
}

// Close releases the device. Outstanding buffers become invalid.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// DeviceBuffer is a device-resident allocation. A buffer is exclusively
// owned by whoever allocated it and is destroyed with Free.
type DeviceBuffer struct {
	dev  *Device
	size int64

	mu    sync.Mutex
	data  []byte
	freed bool
}

// Size returns the buffer capacity in bytes.
func (b *DeviceBuffer) Size() int64 { return b.size }

// CopyToDevice copies host data into the buffer. The data must fit.
func (b *DeviceBuffer) CopyToDevice(data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.freed {
		return ErrBufferFreed
	}
	if int64(len(data)) > b.size {
		return fmt.Errorf("deltazip: host-to-device copy of %d bytes into %d-byte buffer", len(data), b.size)
	}
	copy(b.data, data)
	return nil
}

// CopyToHost copies the full buffer contents back to a fresh host slice.
func (b *DeviceBuffer) CopyToHost() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.freed {
		return nil, ErrBufferFreed
	}
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out, nil
}

// Free releases the buffer. Free is idempotent so deferred releases on
// every exit path stay safe.
func (b *DeviceBuffer) Free() {
	b.mu.Lock()
	if b.freed {
		b.mu.Unlock()
		return
	}
	b.freed = true
	b.data = nil
	b.mu.Unlock()

	b.dev.mu.Lock()
	b.dev.memUsed -= b.size
	b.dev.mu.Unlock()
}

// bytes exposes the backing store to codec kernels executing on a stream.
func (b *DeviceBuffer) bytes() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.freed {
		return nil, ErrBufferFreed
	}
	return b.data, nil
}

// Stream is an ordered execution queue on a device. Submitted operations run
// one at a time in submission order on a dedicated goroutine, the way a
// single accelerator stream serializes kernels. The first operation error is
// sticky and surfaces from Synchronize.
type Stream struct {
	dev *Device
	ops chan func()

	mu     sync.Mutex
	err    error
	closed bool

	done chan struct{}
}

// NewStream creates an execution stream on the device. One stream is created
// per benchmark run and reused for every iteration.
func (d *Device) NewStream() (*Stream, error) {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return nil, ErrDeviceClosed
	}
	s := &Stream{
		dev:  d,
		ops:  make(chan func(), 64),
		done: make(chan struct{}),
	}
	go s.run()
	return s, nil
}

func (s *Stream) run() {
	defer close(s.done)
	for op := range s.ops {
		op()
	}
}

// submit enqueues an operation. The operation's error, if any, becomes the
// stream's sticky error.
func (s *Stream) submit(op func() error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStreamClosed
	}
	s.mu.Unlock()
	s.ops <- func() {
		if err := op(); err != nil {
			s.mu.Lock()
			if s.err == nil {
				s.err = err
			}
			s.mu.Unlock()
		}
	}
	return nil
}

// Synchronize blocks until every previously submitted operation has
// completed, then reports the stream's sticky error. There is no timeout: a
// stuck device operation blocks the caller indefinitely.
func (s *Stream) Synchronize() error {
	marker := make(chan struct{})
	if err := s.submit(func() error {
		close(marker)
		return nil
	}); err != nil {
		return err
	}
	<-marker
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close drains and shuts down the stream.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	close(s.ops)
	<-s.done
	return nil
}

// Event captures a device timestamp in stream order. Recording an event
// enqueues the capture on the stream, so the timestamp reflects when the
// stream reached the event, not when the host recorded it.
type Event struct {
	mu       sync.Mutex
	at       time.Time
	recorded bool
}

// NewEvent creates an unrecorded event.
func NewEvent() *Event { return &Event{} }

// Record enqueues the timestamp capture on the stream.
func (e *Event) Record(s *Stream) error {
	return s.submit(func() error {
		e.mu.Lock()
		e.at = time.Now()
		e.recorded = true
		e.mu.Unlock()
		return nil
	})
}

func (e *Event) timestamp() (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.at, e.recorded
}

// ElapsedTime returns the device time between two recorded events with
// nanosecond precision. The stream must be synchronized first.
func ElapsedTime(start, end *Event) (time.Duration, error) {
	s, ok := start.timestamp()
	if !ok {
		return 0, fmt.Errorf("deltazip: start event: %w", ErrEventNotRecorded)
	}
	t, ok := end.timestamp()
	if !ok {
		return 0, fmt.Errorf("deltazip: end event: %w", ErrEventNotRecorded)
	}
	return t.Sub(s), nil
}
