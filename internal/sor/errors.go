package sor

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfBounds indicates a read past the end of the input buffer.
	ErrOutOfBounds = errors.New("read beyond end of buffer")
	// ErrMalformedDirectory indicates the Map block cannot be trusted.
	ErrMalformedDirectory = errors.New("malformed block directory")
	// ErrSizeMismatch indicates a block consumed a different number of bytes
	// than its directory entry declares.
	ErrSizeMismatch = errors.New("block size mismatch")
	// ErrInvalidGroupIndex indicates a non-positive group index, which makes
	// the time-to-distance relation meaningless.
	ErrInvalidGroupIndex = errors.New("group index must be positive")
)

// BoundsError reports the exact byte range a failed read requested.
type BoundsError struct {
	Offset int
	Want   int
	Len    int
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("read of %d bytes at offset %d exceeds buffer length %d", e.Want, e.Offset, e.Len)
}

func (e *BoundsError) Unwrap() error { return ErrOutOfBounds }

// DirectoryError reports why the Map block was rejected.
type DirectoryError struct {
	Entry  string
	Offset int
	Reason string
}

func (e *DirectoryError) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("directory entry %q at offset %d: %s", e.Entry, e.Offset, e.Reason)
	}
	return fmt.Sprintf("directory at offset %d: %s", e.Offset, e.Reason)
}

func (e *DirectoryError) Unwrap() error { return ErrMalformedDirectory }

// SizeError reports a block whose decoded width disagrees with the directory.
type SizeError struct {
	Block    string
	Offset   int
	Declared int
	Consumed int
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("block %s at offset %d: declared %d bytes, consumed %d", e.Block, e.Offset, e.Declared, e.Consumed)
}

func (e *SizeError) Unwrap() error { return ErrSizeMismatch }
