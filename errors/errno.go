// Package errors defines the kernel's error taxonomy: a small set of string
// constants for each error kind recognized by the core, plus a wrapper type
// that lets callers attach context without losing the underlying kind.
package errors

import (
	"fmt"
)

// KernelError is a constant error kind. Comparing a returned error against one
// of these with errors.Is reports which taxonomy bucket a failure belongs to,
// independent of whatever context message was attached to it.
type KernelError string

// Hardware-absent: the ATA IDENTIFY command found no device on the channel.
const ErrHardwareAbsent = KernelError("hardware not present")

// Transient-busy / timeout: a status poll loop exceeded its iteration bound.
const ErrDeviceTimeout = KernelError("device timed out")

// Device-reported error: the ATA ERR bit was set after a command.
const ErrDeviceFault = KernelError("device reported an error")

// Filesystem-structural errors: the on-disk layout itself is invalid.
const ErrBadBootSignature = KernelError("invalid boot sector signature")
const ErrNotFAT32 = KernelError("filesystem type label is not FAT32")
const ErrZeroBPBField = KernelError("BIOS parameter block field must not be zero")
const ErrBadRootCluster = KernelError("root cluster must be >= 2")
const ErrInvalidCluster = KernelError("cluster number out of range")
const ErrFATReadFailed = KernelError("failed to read FAT sector")
const ErrNotMounted = KernelError("filesystem is not mounted")

// Filesystem-semantic errors: the request itself cannot be satisfied.
const ErrNotFound = KernelError("no such file or directory")
const ErrIsADirectory = KernelError("is a directory")
const ErrNotADirectory = KernelError("not a directory")
const ErrAlreadyExists = KernelError("name already exists")
const ErrDirectoryNotEmpty = KernelError("directory not empty")
const ErrNoSpaceOnDevice = KernelError("no free clusters available")
const ErrTooManyOpenFiles = KernelError("no free file descriptors")
const ErrInvalidPath = KernelError("path is null or empty")
const ErrBadFileDescriptor = KernelError("file descriptor is not open")

// Allocator failure: the heap has no chunk large enough for the request.
const ErrOutOfMemory = KernelError("heap allocator is out of memory")

// Allocator misuse: an access through a payload pointer ran past the bounds
// of the chunk it was allocated from.
const ErrChunkBoundsExceeded = KernelError("access past end of allocated chunk")

// Error implements the `error` interface.
func (e KernelError) Error() string {
	return string(e)
}

// WithMessage attaches additional context to the error kind without losing
// the kind itself: errors.Is(result, e) still succeeds.
func (e KernelError) WithMessage(message string) DriverError {
	return wrappedError{
		message: fmt.Sprintf("%s: %s", string(e), message),
		kind:    e,
	}
}

// WrapError attaches an unrelated Go error as additional context.
func (e KernelError) WrapError(err error) DriverError {
	return wrappedError{
		message: fmt.Sprintf("%s: %s", string(e), err.Error()),
		kind:    e,
	}
}
