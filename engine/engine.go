package engine

import "fmt"

// APIVersion is an engine API version packed as (major << 4) | minor.
type APIVersion uint32

// Version packs a major and minor version.
func Version(major, minor uint32) APIVersion {
	return APIVersion(major<<4 | minor&0xf)
}

// Major returns the major version.
func (v APIVersion) Major() uint32 { return uint32(v) >> 4 }

// Minor returns the minor version.
func (v APIVersion) Minor() uint32 { return uint32(v) & 0xf }

func (v APIVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major(), v.Minor())
}

// RequiredVersion is the API version mvfield is written against. Devices
// reporting an older maximum version are rejected.
var RequiredVersion = Version(12, 1)

// Codec selects the codec profile a session is configured for.
type Codec uint8

const (
	CodecH264 Codec = iota
	CodecHEVC
)

func (c Codec) String() string {
	switch c {
	case CodecH264:
		return "H264"
	case CodecHEVC:
		return "HEVC"
	default:
		return fmt.Sprintf("Codec(%d)", uint8(c))
	}
}

// Preset selects a speed/quality tradeoff, P1 (fastest) to P7 (best).
type Preset uint8

const (
	PresetP1 Preset = iota + 1
	PresetP2
	PresetP3
	PresetP4
	PresetP5
	PresetP6
	PresetP7
)

// BufferFormat is the pixel layout of a registered surface. Both formats
// are 4 channels of 8 bits; they differ in memory order.
type BufferFormat uint8

const (
	// BufferFormatARGB stores each pixel as the bytes B, G, R, A
	// (a little-endian 0xAARRGGBB word).
	BufferFormatARGB BufferFormat = iota + 1

	// BufferFormatABGR stores each pixel as the bytes R, G, B, A
	// (a little-endian 0xAABBGGRR word).
	BufferFormatABGR
)

func (f BufferFormat) String() string {
	switch f {
	case BufferFormatARGB:
		return "ARGB"
	case BufferFormatABGR:
		return "ABGR"
	default:
		return fmt.Sprintf("BufferFormat(%d)", uint8(f))
	}
}

// BufferUsage declares how a registered surface is consumed.
type BufferUsage uint8

const (
	// UsageInputImage marks a surface as an estimation input or reference.
	UsageInputImage BufferUsage = iota + 1
)

// Opaque handles issued by a Session. The zero value is never valid.
type (
	RegisteredResource uint64
	MappedResource     uint64
	MVBuffer           uint64
)

// Surface is a pitched 2D allocation in device memory.
type Surface interface {
	// Pitch returns the byte stride between rows.
	Pitch() int

	// WidthBytes returns the number of meaningful bytes per row.
	WidthBytes() int

	// Height returns the number of rows.
	Height() int
}

// InitializeParams configures a session.
type InitializeParams struct {
	Codec  Codec
	Preset Preset

	Width, Height       int
	MaxWidth, MaxHeight int

	FrameRateNum, FrameRateDen int

	// EnableMEOnlyMode must be true: sessions produce vectors, not bitstreams.
	EnableMEOnlyMode bool

	// EnableOutputInVidmem keeps MV output in device memory. Not supported
	// by the engines in this module.
	EnableOutputInVidmem bool
}

// RegisterParams describes a surface to register with a session.
type RegisterParams struct {
	Surface Surface
	Width   int
	Height  int
	Pitch   int
	Format  BufferFormat
	Usage   BufferUsage
}

// MEOnlyParams describes one motion-estimation-only operation.
type MEOnlyParams struct {
	Input       MappedResource
	Reference   MappedResource
	InputWidth  int
	InputHeight int
	MVBuffer    MVBuffer
}

// LockParams controls LockBitstream.
type LockParams struct {
	// DoNotWait makes LockBitstream fail with ErrNotReady instead of
	// blocking until the output is complete.
	DoNotWait bool
}

// LockedBitstream is the readable view of a locked MV buffer. Data is only
// valid until UnlockBitstream.
type LockedBitstream struct {
	Data []byte
}

// Engine opens devices. Implementations are registered with Register.
type Engine interface {
	// Name returns the engine identifier (e.g., "software", "wgpu").
	Name() string

	// OpenDevice opens the device at ordinal and creates its context.
	OpenDevice(ordinal int) (Device, error)
}

// Device is an opened device context.
type Device interface {
	// Name returns a human-readable device name.
	Name() string

	// MaxSupportedVersion returns the newest API version the device driver supports.
	MaxSupportedVersion() (APIVersion, error)

	// AllocPitch allocates height rows of at least widthBytes bytes. The
	// pitch is a multiple of align, which must be a power of two.
	AllocPitch(widthBytes, height, align int) (Surface, error)

	// CopyToSurface copies height rows of widthBytes bytes from host memory
	// with row stride srcPitch into dst, respecting dst's pitch.
	CopyToSurface(dst Surface, src []byte, srcPitch, widthBytes, height int) error

	// Free releases a surface allocated by AllocPitch.
	Free(s Surface) error

	// OpenSession opens an estimation session bound to this device.
	OpenSession() (Session, error)

	// Close destroys the device context.
	Close() error
}

// Session is an estimation engine session.
type Session interface {
	Initialize(p InitializeParams) error

	RegisterResource(p RegisterParams) (RegisteredResource, error)
	UnregisterResource(r RegisteredResource) error

	MapInputResource(r RegisteredResource) (MappedResource, error)
	UnmapInputResource(m MappedResource) error

	CreateMVBuffer() (MVBuffer, error)
	DestroyMVBuffer(b MVBuffer) error

	// RunMotionEstimationOnly blocks until the engine has completed or
	// rejected the operation.
	RunMotionEstimationOnly(p MEOnlyParams) error

	// LockBitstream locks b for reading. Unless p.DoNotWait is set it waits
	// for pending output; it never polls.
	LockBitstream(b MVBuffer, p LockParams) (LockedBitstream, error)
	UnlockBitstream(b MVBuffer) error

	Destroy() error
}
