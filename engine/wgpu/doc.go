// Package wgpu provides a GPU motion estimation engine on gogpu/wgpu.
//
// Surfaces are storage buffers and the ME-only operation is a compute
// shader (shaders/blockmatch.wgsl) that runs the same integer full search
// as the software engine, one invocation per macroblock. Results are
// copied into a MapRead staging buffer and read back on LockBitstream.
//
// Importing the package registers the engine under engine.NameWGPU. Build
// with -tags nogpu to compile the GPU path out; the engine then reports
// engine.ErrNotAvailable.
package wgpu
