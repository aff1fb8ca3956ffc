//go:build !nogpu

package wgpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/mvfield/engine"
	"github.com/gogpu/mvfield/internal/vector"
)

// mvBuffer is the record buffer written by the shader and the staging
// buffer it is copied into for readback.
type mvBuffer struct {
	storage hal.Buffer
	staging hal.Buffer
	size    uint64
	host    []byte
}

// pipeline holds the compute objects built on Initialize.
type pipeline struct {
	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	compute    hal.ComputePipeline
}

type session struct {
	dev *device

	mu     sync.Mutex
	params engine.InitializeParams
	pipe   pipeline
	h      *engine.Handles[*surface, *mvBuffer]
}

var _ engine.Session = (*session)(nil)

func newSession(d *device) *session {
	return &session{dev: d, h: engine.NewHandles[*surface, *mvBuffer]()}
}

func (s *session) Initialize(p engine.InitializeParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.h.CanInitialize(); err != nil {
		return err
	}
	if err := engine.CheckInitialize(p, s.dev.cfg.Limits); err != nil {
		return err
	}
	if err := s.createPipeline(); err != nil {
		s.destroyPipeline()
		return err
	}
	s.params = p
	s.h.MarkInitialized()
	return nil
}

func (s *session) createPipeline() error {
	code, err := compileBlockMatch()
	if err != nil {
		return err
	}
	hd := s.dev.dev

	s.pipe.shader, err = hd.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "blockmatch",
		Source: hal.ShaderSource{SPIRV: code},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create shader module: %w", err)
	}

	s.pipe.bindLayout, err = hd.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "blockmatch_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 3, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create bind group layout: %w", err)
	}

	s.pipe.pipeLayout, err = hd.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: "blockmatch_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{s.pipe.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create pipeline layout: %w", err)
	}

	s.pipe.compute, err = hd.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: "blockmatch_pipeline", Layout: s.pipe.pipeLayout,
		Compute: hal.ComputeState{Module: s.pipe.shader, EntryPoint: "main"},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create compute pipeline: %w", err)
	}
	return nil
}

func (s *session) destroyPipeline() {
	hd := s.dev.dev
	if hd == nil {
		return
	}
	if s.pipe.compute != nil {
		hd.DestroyComputePipeline(s.pipe.compute)
	}
	if s.pipe.pipeLayout != nil {
		hd.DestroyPipelineLayout(s.pipe.pipeLayout)
	}
	if s.pipe.bindLayout != nil {
		hd.DestroyBindGroupLayout(s.pipe.bindLayout)
	}
	if s.pipe.shader != nil {
		hd.DestroyShaderModule(s.pipe.shader)
	}
	s.pipe = pipeline{}
}

func (s *session) RegisterResource(p engine.RegisterParams) (engine.RegisteredResource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.h.Usable(); err != nil {
		return 0, err
	}
	if err := engine.CheckRegister(p, s.params, s.dev.cfg.Limits); err != nil {
		return 0, err
	}
	surf, err := s.dev.surfaceBuffer(p.Surface)
	if err != nil {
		return 0, err
	}
	return s.h.Register(surf, p), nil
}

func (s *session) UnregisterResource(r engine.RegisteredResource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.h.Unregister(r)
}

func (s *session) MapInputResource(r engine.RegisteredResource) (engine.MappedResource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.h.Map(r)
}

func (s *session) UnmapInputResource(m engine.MappedResource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.h.Unmap(m)
}

func (s *session) CreateMVBuffer() (engine.MVBuffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.h.Usable(); err != nil {
		return 0, err
	}
	n, err := vector.BufferSize(s.params.Width, s.params.Height)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", engine.ErrInvalidParam, err)
	}
	size := uint64(n) //nolint:gosec // positive by construction

	hd := s.dev.dev
	storage, err := hd.CreateBuffer(&hal.BufferDescriptor{
		Label: "mv_records", Size: size,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: create record buffer: %w", engine.ErrOutOfMemory, err)
	}
	staging, err := hd.CreateBuffer(&hal.BufferDescriptor{
		Label: "mv_staging", Size: size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		hd.DestroyBuffer(storage)
		return 0, fmt.Errorf("%w: create staging buffer: %w", engine.ErrOutOfMemory, err)
	}

	b := s.h.AddBuffer(&mvBuffer{storage: storage, staging: staging, size: size})
	slogger().Debug("wgpu: MV buffer created", "bytes", size)
	return b, nil
}

func (s *session) destroyBuffer(buf *mvBuffer) {
	if s.dev.dev == nil {
		return
	}
	s.dev.dev.DestroyBuffer(buf.staging)
	s.dev.dev.DestroyBuffer(buf.storage)
}

func (s *session) DestroyMVBuffer(b engine.MVBuffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf, err := s.h.RemoveBuffer(b)
	if err != nil {
		return err
	}
	s.destroyBuffer(buf)
	return nil
}

func (s *session) RunMotionEstimationOnly(p engine.MEOnlyParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.h.Usable(); err != nil {
		return err
	}
	in, err := s.h.Input(p.Input)
	if err != nil {
		return fmt.Errorf("input: %w", err)
	}
	ref, err := s.h.Input(p.Reference)
	if err != nil {
		return fmt.Errorf("reference: %w", err)
	}
	slot, err := s.h.Writable(p.MVBuffer)
	if err != nil {
		return err
	}
	if p.InputWidth != s.params.Width || p.InputHeight != s.params.Height {
		return fmt.Errorf("%w: input %dx%d, session %dx%d",
			engine.ErrInvalidParam, p.InputWidth, p.InputHeight, s.params.Width, s.params.Height)
	}

	cols, rows, err := vector.Grid(s.params.Width, s.params.Height)
	if err != nil {
		return fmt.Errorf("%w: %w", engine.ErrInvalidParam, err)
	}
	rng := min(max(s.dev.cfg.SearchRange, 0), maxSearchRange)
	dp := dispatchParams{
		width:       uint32(s.params.Width),  //nolint:gosec // bounded by limits
		height:      uint32(s.params.Height), //nolint:gosec // bounded by limits
		refPitch:    uint32(ref.Surface.pitch / 4),
		inPitch:     uint32(in.Surface.pitch / 4),
		mbCols:      uint32(cols), //nolint:gosec // bounded by limits
		mbRows:      uint32(rows), //nolint:gosec // bounded by limits
		searchRange: int32(rng),   //nolint:gosec // clamped
	}
	if ref.Params.Format == engine.BufferFormatARGB {
		dp.formats |= formatRefARGB
	}
	if in.Params.Format == engine.BufferFormatARGB {
		dp.formats |= formatInARGB
	}

	slot.Ready = false
	if err := s.dispatch(dp, ref.Surface, in.Surface, slot.Buf); err != nil {
		return err
	}
	slot.Ready = true
	slogger().Debug("wgpu: motion estimation done", "mb_cols", cols, "mb_rows", rows)
	return nil
}

// dispatch runs the block matching shader and copies the records into the
// staging buffer, waiting for the GPU to finish.
func (s *session) dispatch(dp dispatchParams, ref, in *surface, buf *mvBuffer) error {
	hd, queue := s.dev.dev, s.dev.queue

	uniform, err := hd.CreateBuffer(&hal.BufferDescriptor{
		Label: "blockmatch_params", Size: paramsSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create uniform buffer: %w", err)
	}
	defer hd.DestroyBuffer(uniform)
	queue.WriteBuffer(uniform, 0, dp.bytes())

	bg, err := hd.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: "blockmatch_bind", Layout: s.pipe.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: uniform.NativeHandle(), Offset: 0, Size: paramsSize}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: ref.buf.NativeHandle(), Offset: 0, Size: ref.size()}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: in.buf.NativeHandle(), Offset: 0, Size: in.size()}},
			{Binding: 3, Resource: gputypes.BufferBinding{Buffer: buf.storage.NativeHandle(), Offset: 0, Size: buf.size}},
		},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create bind group: %w", err)
	}
	defer hd.DestroyBindGroup(bg)

	encoder, err := hd.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "blockmatch_encoder"})
	if err != nil {
		return fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("blockmatch"); err != nil {
		return fmt.Errorf("wgpu: begin encoding: %w", err)
	}
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "blockmatch_pass"})
	pass.SetPipeline(s.pipe.compute)
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch(workgroups(dp.mbCols), workgroups(dp.mbRows), 1)
	pass.End()

	encoder.CopyBufferToBuffer(buf.storage, buf.staging, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: buf.size},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("wgpu: end encoding: %w", err)
	}
	defer hd.FreeCommandBuffer(cmdBuf)

	fence, err := hd.CreateFence()
	if err != nil {
		return fmt.Errorf("wgpu: create fence: %w", err)
	}
	defer hd.DestroyFence(fence)
	if err := queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("wgpu: submit: %w", err)
	}
	ok, err := hd.Wait(fence, 1, s.dev.cfg.WaitTimeout)
	if err != nil {
		return fmt.Errorf("wgpu: wait for GPU: %w", err)
	}
	if !ok {
		return fmt.Errorf("wgpu: wait for GPU: timed out after %v", s.dev.cfg.WaitTimeout)
	}
	return nil
}

func (s *session) LockBitstream(b engine.MVBuffer, p engine.LockParams) (engine.LockedBitstream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// The fence wait in RunMotionEstimationOnly already completed the work.
	slot, err := s.h.Lockable(b)
	if err != nil {
		return engine.LockedBitstream{}, err
	}
	buf := slot.Buf
	if buf.host == nil {
		buf.host = make([]byte, buf.size)
	}
	if err := s.dev.queue.ReadBuffer(buf.staging, 0, buf.host); err != nil {
		return engine.LockedBitstream{}, fmt.Errorf("wgpu: read back MV buffer: %w", err)
	}
	slot.Locked = true
	return engine.LockedBitstream{Data: buf.host}, nil
}

func (s *session) UnlockBitstream(b engine.MVBuffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.h.Unlock(b)
}

// Destroy releases the pipeline and any MV buffers still alive. Leftover
// resources are reported with ErrResourcesLive.
func (s *session) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	left, err := s.h.Destroy()
	if errors.Is(err, engine.ErrDestroyed) {
		return err
	}
	for _, buf := range left {
		s.destroyBuffer(buf)
	}
	s.destroyPipeline()
	s.dev.sessionClosed()
	return err
}
