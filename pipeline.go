package mvfield

import (
	"errors"
	"fmt"

	"github.com/gogpu/mvfield/engine"
	"github.com/gogpu/mvfield/internal/estimate"
	"github.com/gogpu/mvfield/internal/frame"
	"github.com/gogpu/mvfield/internal/render"
	"github.com/gogpu/mvfield/internal/resource"
	"github.com/gogpu/mvfield/internal/unwind"
	"github.com/gogpu/mvfield/internal/vector"
)

// Result describes a completed estimation.
type Result struct {
	// Engine and Device name what ran the estimation.
	Engine string
	Device string

	// Version is the device's maximum supported API version.
	Version engine.APIVersion

	// Width and Height are the frame size; Cols and Rows the macroblock grid.
	Width, Height int
	Cols, Rows    int

	// Raw holds the bytes copied out of the motion vector buffer.
	Raw []byte

	// Stats aggregates the decoded record metadata.
	Stats render.Stats

	// Image is the 3-channel motion field image.
	Image *frame.Buffer
}

// Run loads the frames at refPath and inPath, estimates the motion between
// them and writes the motion field image to outPath. The output format
// follows the extension of outPath (PNG when it has none).
func Run(refPath, inPath, outPath string, opts ...Option) (*Result, error) {
	o := newOptions(opts)
	log := o.log()

	ref, in, err := frame.LoadPair(refPath, inPath)
	if err != nil {
		return nil, stageErr(StageLoad, err)
	}
	log.Debug("mvfield: frames loaded", "width", ref.Width(), "height", ref.Height())

	if o.debugDir != "" {
		if err := frame.SaveDebugCopies(o.debugDir, ref, in); err != nil {
			log.Warn("mvfield: debug copies not written", "dir", o.debugDir, "err", err)
		}
	}

	res, err := process(ref, in, o)
	if err != nil {
		return nil, err
	}

	if err := frame.Save(outPath, res.Image); err != nil {
		return res, stageErr(StageWrite, err)
	}
	log.Info("mvfield: motion field written", "path", outPath,
		"width", res.Image.Width(), "height", res.Image.Height())
	return res, nil
}

// Process estimates the motion from ref to in and renders the motion field
// image. Frames must be 4-channel 8-bit and of equal size; a mismatch fails
// with ErrLoad before any device is opened.
func Process(ref, in *frame.Buffer, opts ...Option) (*Result, error) {
	return process(ref, in, newOptions(opts))
}

func process(ref, in *frame.Buffer, o options) (*Result, error) {
	if err := frame.CheckPair(ref, in); err != nil {
		return nil, stageErr(StageLoad, err)
	}
	if ref.Format() != frame.FormatRGBA8 {
		return nil, stageErr(StageLoad, fmt.Errorf("%w: got %v", resource.ErrUnsupportedFrame, ref.Format()))
	}

	res := &Result{Width: ref.Width(), Height: ref.Height()}
	cols, rows, err := vector.Grid(res.Width, res.Height)
	if err != nil {
		return nil, stageErr(StageLoad, err)
	}
	res.Cols, res.Rows = cols, rows

	var stack unwind.Stack
	raw, err := estimateMotion(ref, in, o, &stack, res)
	if uerr := stack.Unwind(); uerr != nil {
		o.log().Warn("mvfield: releasing device resources failed", "err", uerr)
		err = errors.Join(err, stageErr(StageTeardown, uerr))
	}
	if err != nil {
		return nil, err
	}
	res.Raw = raw

	if res.Stats, err = render.Summarize(raw, res.Width, res.Height); err != nil {
		return nil, stageErr(StageRetrieval, err)
	}
	if res.Image, err = render.Render(raw, res.Width, res.Height); err != nil {
		return nil, stageErr(StageRetrieval, err)
	}
	return res, nil
}

// estimateMotion runs the device part of the pipeline. Every acquisition
// pushes its release onto stack; the caller unwinds it on all paths.
func estimateMotion(ref, in *frame.Buffer, o options, stack *unwind.Stack, res *Result) ([]byte, error) {
	log := o.log()

	eng, dev, err := openDevice(o)
	if err != nil {
		return nil, stageErr(StageDeviceInit, err)
	}
	stack.Push("close device", dev.Close)
	res.Engine, res.Device = eng.Name(), dev.Name()

	if res.Version, err = estimate.CheckVersion(dev); err != nil {
		return nil, stageErr(StageDeviceInit, err)
	}
	log.Info("mvfield: device selected", "engine", res.Engine, "device", res.Device, "api", res.Version)

	orch := estimate.New(dev, stack, res.Width, res.Height)
	orch.SetLogger(log)
	if err := orch.Initialize(); err != nil {
		return nil, stageErr(StageSession, err)
	}

	mgr := resource.NewManager(dev, orch.Session(), stack, o.alignment)
	mgr.SetLogger(log)
	if err := mgr.Acquire(ref, in); err != nil {
		return nil, stageErr(StageRegistration, err)
	}
	refReg, err := mgr.Registered(resource.Reference)
	if err != nil {
		return nil, stageErr(StageRegistration, err)
	}
	inReg, err := mgr.Registered(resource.Input)
	if err != nil {
		return nil, stageErr(StageRegistration, err)
	}

	if err := orch.Map(refReg, inReg); err != nil {
		return nil, stageErr(StageMapping, err)
	}
	if err := orch.AllocateOutput(); err != nil {
		return nil, stageErr(StageSession, err)
	}
	if err := orch.Run(); err != nil {
		return nil, stageErr(StageEstimation, err)
	}
	raw, err := orch.Retrieve()
	if err != nil {
		return nil, stageErr(StageRetrieval, err)
	}
	return raw, nil
}

// openDevice opens the configured engine, or the best registered one.
// Engines log through their package loggers, which follow SetLogger.
func openDevice(o options) (engine.Engine, engine.Device, error) {
	if o.engine != nil {
		propagateLogger(o.engine, Logger())
		dev, err := o.engine.OpenDevice(o.ordinal)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", o.engine.Name(), err)
		}
		return o.engine, dev, nil
	}
	for _, name := range engine.Available() {
		if e := engine.Get(name); e != nil {
			propagateLogger(e, Logger())
		}
	}
	return engine.OpenDefault(o.ordinal)
}
