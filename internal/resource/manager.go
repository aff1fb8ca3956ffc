// Package resource places frames into registered device surfaces.
//
// A Manager allocates one pitched surface per frame, registers it with the
// estimation session and uploads the frame rows. Every acquired surface and
// registration pushes its release onto the caller's unwind stack.
package resource

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/mvfield/engine"
	"github.com/gogpu/mvfield/internal/frame"
	"github.com/gogpu/mvfield/internal/unwind"
)

// DefaultAlignment is the surface pitch alignment requested from devices.
const DefaultAlignment = 16

var (
	// ErrAlreadyAcquired is returned when Acquire is called twice.
	ErrAlreadyAcquired = errors.New("resource: surfaces already acquired")

	// ErrNotAcquired is returned when a surface is requested before Acquire.
	ErrNotAcquired = errors.New("resource: surfaces not acquired")

	// ErrUnsupportedFrame is returned for frames other than 4-channel 8-bit.
	ErrUnsupportedFrame = errors.New("resource: frame must be 4-channel 8-bit")
)

// Role identifies one of the two frames of a run.
type Role int

const (
	// Reference is the frame motion is measured against.
	Reference Role = iota
	// Input is the frame whose motion is measured.
	Input
	roleCount
)

func (r Role) String() string {
	switch r {
	case Reference:
		return "reference"
	case Input:
		return "input"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Surface is a frame placed on the device.
type Surface struct {
	Role       Role
	Surface    engine.Surface
	Registered engine.RegisteredResource
	Width      int
	Height     int
}

// Manager owns the two registered surfaces of one run.
type Manager struct {
	dev   engine.Device
	sess  engine.Session
	stack *unwind.Stack
	align int
	log   *slog.Logger

	surfaces [roleCount]*Surface
}

// NewManager returns a manager placing frames on dev and registering them
// with sess. Releases are pushed onto stack. align <= 0 selects
// DefaultAlignment.
func NewManager(dev engine.Device, sess engine.Session, stack *unwind.Stack, align int) *Manager {
	if align <= 0 {
		align = DefaultAlignment
	}
	return &Manager{dev: dev, sess: sess, stack: stack, align: align, log: slog.New(slog.DiscardHandler)}
}

// SetLogger sets the logger for this manager. Pass nil to discard output.
func (m *Manager) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	m.log = l
}

// Acquire allocates, registers and fills a surface for ref, then for in.
// The first failure stops the sequence; what was acquired before it stays
// on the unwind stack.
func (m *Manager) Acquire(ref, in *frame.Buffer) error {
	if m.surfaces[Reference] != nil || m.surfaces[Input] != nil {
		return ErrAlreadyAcquired
	}
	for role, f := range [roleCount]*frame.Buffer{ref, in} {
		if f == nil || f.Format() != frame.FormatRGBA8 {
			return fmt.Errorf("%w: %v frame", ErrUnsupportedFrame, Role(role))
		}
	}
	if err := m.place(Reference, ref); err != nil {
		return err
	}
	return m.place(Input, in)
}

func (m *Manager) place(role Role, f *frame.Buffer) error {
	w, h := f.Width(), f.Height()
	widthBytes := w * f.Format().BytesPerPixel()

	s, err := m.dev.AllocPitch(widthBytes, h, m.align)
	if err != nil {
		return fmt.Errorf("allocate %v surface: %w", role, err)
	}
	m.stack.Push("free "+role.String()+" surface", func() error { return m.dev.Free(s) })
	m.log.Debug("resource: surface allocated", "role", role, "pitch", s.Pitch(), "height", h)

	reg, err := m.sess.RegisterResource(engine.RegisterParams{
		Surface: s,
		Width:   w,
		Height:  h,
		Pitch:   s.Pitch(),
		Format:  engine.BufferFormatABGR,
		Usage:   engine.UsageInputImage,
	})
	if err != nil {
		return fmt.Errorf("register %v surface: %w", role, err)
	}
	m.stack.Push("unregister "+role.String()+" surface", func() error { return m.sess.UnregisterResource(reg) })

	if err := m.dev.CopyToSurface(s, f.Data(), f.Stride(), widthBytes, h); err != nil {
		return fmt.Errorf("copy %v frame: %w", role, err)
	}
	m.surfaces[role] = &Surface{Role: role, Surface: s, Registered: reg, Width: w, Height: h}
	return nil
}

// Registered returns the registered handle of the surface holding role.
func (m *Manager) Registered(role Role) (engine.RegisteredResource, error) {
	if role < 0 || role >= roleCount {
		return 0, fmt.Errorf("resource: unknown role %d", int(role))
	}
	s := m.surfaces[role]
	if s == nil {
		return 0, fmt.Errorf("%w: %v", ErrNotAcquired, role)
	}
	return s.Registered, nil
}

// Surface returns the placed surface for role, or nil before Acquire.
func (m *Manager) Surface(role Role) *Surface {
	if role < 0 || role >= roleCount {
		return nil
	}
	return m.surfaces[role]
}
