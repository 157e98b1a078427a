package icy

import (
	"errors"
	"fmt"
)

// Errors returned by Reader.Seek.
var (
	// ErrSeekFromEnd is returned for io.SeekEnd seeks. The logical stream
	// length cannot be known without scanning every interleaved frame, so
	// seeking relative to the end is not supported.
	ErrSeekFromEnd = errors.New("icy: seek from end is not supported")

	// ErrSeekHistory is returned by a backward seek that crosses more
	// frames than the size history retains. The reader is left unchanged.
	ErrSeekHistory = errors.New("icy: seek crosses more frames than history retains")

	// ErrNotSeekable is returned when the underlying source does not
	// implement io.Seeker.
	ErrNotSeekable = errors.New("icy: source does not support seeking")
)

// InvalidEncodingError reports a metadata block that is not valid UTF-8.
// Raw holds the undecoded block with its padding intact.
type InvalidEncodingError struct {
	Raw []byte
}

func (e *InvalidEncodingError) Error() string {
	return "icy: metadata block is not valid utf-8"
}

// EmptyMetadataError reports a metadata block that decoded cleanly but held
// no usable key/value pairs. Raw is the block text with NUL padding removed.
type EmptyMetadataError struct {
	Raw string
}

func (e *EmptyMetadataError) Error() string {
	return fmt.Sprintf("icy: no usable fields in metadata block %q", e.Raw)
}
