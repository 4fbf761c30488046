package deltazip

import (
	"errors"
	"fmt"
)

// Common sentinel errors for the deltazip package.
var (
	// ErrDeviceClosed is returned when operations are attempted on a closed device.
	ErrDeviceClosed = errors.New("device is closed")

	// ErrDeviceMemory is returned when a device allocation exceeds the memory budget.
	ErrDeviceMemory = errors.New("device out of memory")

	// ErrBufferFreed is returned when a freed device buffer is accessed.
	ErrBufferFreed = errors.New("device buffer already freed")

	// ErrEventNotRecorded is returned when elapsed time is requested
	// before both events have been recorded and synchronized.
	ErrEventNotRecorded = errors.New("event not recorded")

	// ErrStreamClosed is returned when work is submitted to a closed stream.
	ErrStreamClosed = errors.New("stream is closed")

	// ErrNoCompressedBytes is returned when a compression ratio is requested
	// but no compressed bytes were accumulated.
	ErrNoCompressedBytes = errors.New("no compressed bytes accumulated")

	// ErrEmptyBatch is returned when a batch is built from zero chunks.
	ErrEmptyBatch = errors.New("batch contains no chunks")
)

// Status is the result code reported by batched codec operations.
// Any value other than StatusSuccess aborts the run.
type Status int

const (
	// StatusSuccess indicates the operation completed or was issued successfully.
	StatusSuccess Status = iota
	// StatusInvalidArgument indicates a malformed argument (nil buffer,
	// mismatched batch arity, non-positive chunk size).
	StatusInvalidArgument
	// StatusBufferTooSmall indicates an output or scratch buffer below the
	// size the codec queries reported.
	StatusBufferTooSmall
	// StatusInternal indicates a failure inside the codec itself.
	StatusInternal
	// StatusUnsupported indicates the codec cannot handle the request.
	StatusUnsupported
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusInvalidArgument:
		return "invalid argument"
	case StatusBufferTooSmall:
		return "buffer too small"
	case StatusInternal:
		return "internal error"
	case StatusUnsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// statusErr converts a non-success codec status into an error carrying the
// failing call's description.
func statusErr(op string, s Status) error {
	return fmt.Errorf("deltazip: %s: codec status: %s", op, s)
}
