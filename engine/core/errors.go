package core

import (
	"github.com/cockroachdb/errors"
)

var (
	ErrUnknown = errors.New("unknown")

	// texture conversion
	ErrInvalidDimensions = errors.New("invalid texture dimensions")
	ErrAlreadyArray      = errors.New("texture is already an array texture")
	ErrInvalidLayerCount = errors.New("invalid layer count")

	// texture table
	ErrInvalidHandle    = errors.New("invalid texture handle")
	ErrTextureNotFound  = errors.New("texture not found")
	ErrTooManyLoads     = errors.New("too many texture loads in flight")
	ErrTextureTableFull = errors.New("texture table is full")

	// jobs
	ErrJobSystemClosed     = errors.New("job system is shut down")
	ErrJobQueueFull        = errors.New("job queue is full")
	ErrNoWorkers           = errors.New("attempting to create worker pool with less than 1 worker")
	ErrNegativeChannelSize = errors.New("attempting to create worker pool with a negative channel size")

	// assets
	ErrAssetNotFound       = errors.New("asset not found")
	ErrUnknownResourceType = errors.New("unknown resource type")

	// shaders
	ErrShaderNotFound = errors.New("shader not found")
	ErrShaderCompile  = errors.New("shader compilation failed")

	// containers
	ErrQueueFull  = errors.New("queue is full")
	ErrQueueEmpty = errors.New("queue is empty")

	ErrInvalidConfig = errors.New("invalid configuration")
)

// Wrapf annotates err with a formatted message while keeping it matchable with errors.Is.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Combine joins two errors, either of which may be nil.
func Combine(err, other error) error {
	return errors.CombineErrors(err, other)
}
