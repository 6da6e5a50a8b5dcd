package storage

import "errors"

var (
	// ErrRowNotFound is returned when a requested row does not exist.
	ErrRowNotFound = errors.New("row not found")

	// ErrEmptyKey is returned for rows with an empty rowkey.
	ErrEmptyKey = errors.New("empty rowkey")

	// ErrClosed is returned for operations on a closed gateway or backend.
	ErrClosed = errors.New("storage closed")

	// ErrBadRow is returned when a stored value cannot be decoded.
	ErrBadRow = errors.New("malformed row value")
)
