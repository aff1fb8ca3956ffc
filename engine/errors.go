package engine

import "errors"

// Engine errors. Implementations wrap these so callers can classify
// failures with errors.Is.
var (
	// ErrNotAvailable is returned when an engine cannot run on this host.
	ErrNotAvailable = errors.New("engine: not available")

	// ErrNoDevice is returned when no device exists at the requested ordinal.
	ErrNoDevice = errors.New("engine: no device")

	// ErrNotInitialized is returned when a session is used before Initialize.
	ErrNotInitialized = errors.New("engine: session not initialized")

	// ErrAlreadyInitialized is returned when Initialize is called twice.
	ErrAlreadyInitialized = errors.New("engine: session already initialized")

	// ErrDestroyed is returned when a destroyed session or closed device is used.
	ErrDestroyed = errors.New("engine: already destroyed")

	// ErrInvalidParam is returned for malformed parameters.
	ErrInvalidParam = errors.New("engine: invalid parameter")

	// ErrUnsupported is returned for codecs, formats or modes the engine lacks.
	ErrUnsupported = errors.New("engine: unsupported")

	// ErrDimensionsExceeded is returned when a size is outside engine limits.
	ErrDimensionsExceeded = errors.New("engine: dimensions exceed engine limits")

	// ErrInvalidHandle is returned for unknown or already released handles.
	ErrInvalidHandle = errors.New("engine: invalid handle")

	// ErrResourceMapped is returned when unregistering a still mapped resource.
	ErrResourceMapped = errors.New("engine: resource is mapped")

	// ErrAlreadyMapped is returned when mapping a resource twice.
	ErrAlreadyMapped = errors.New("engine: resource already mapped")

	// ErrBufferLocked is returned when a locked buffer is locked again,
	// destroyed, or used as estimation output.
	ErrBufferLocked = errors.New("engine: buffer is locked")

	// ErrBufferNotLocked is returned when unlocking a buffer that is not locked.
	ErrBufferNotLocked = errors.New("engine: buffer is not locked")

	// ErrNotReady is returned when locking a buffer no estimation has filled.
	ErrNotReady = errors.New("engine: output not ready")

	// ErrResourcesLive is returned when a session or device is released
	// while resources it owns are still allocated.
	ErrResourcesLive = errors.New("engine: resources still allocated")

	// ErrOutOfMemory is returned when device memory cannot be allocated.
	ErrOutOfMemory = errors.New("engine: out of device memory")
)
