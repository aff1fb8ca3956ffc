package wgpu

import (
	_ "embed"
	"encoding/binary"
	"fmt"

	"github.com/gogpu/naga"
)

//go:embed shaders/blockmatch.wgsl
var blockMatchWGSL string

const (
	// workgroupSize matches @workgroup_size in blockmatch.wgsl.
	workgroupSize = 8

	// paramsSize is the size of the Params uniform in bytes.
	paramsSize = 32

	// pitchAlign is the minimum surface pitch alignment, so rows start on
	// storage buffer offset boundaries.
	pitchAlign = 256

	// maxSearchRange caps the search window half-size.
	maxSearchRange = 256
)

// Format bits of dispatchParams.formats.
const (
	formatRefARGB uint32 = 1 << iota
	formatInARGB
)

// dispatchParams mirrors the Params uniform of blockmatch.wgsl.
type dispatchParams struct {
	width, height     uint32
	refPitch, inPitch uint32 // words
	mbCols, mbRows    uint32
	searchRange       int32
	formats           uint32
}

func (p dispatchParams) bytes() []byte {
	b := make([]byte, paramsSize)
	binary.LittleEndian.PutUint32(b[0:], p.width)
	binary.LittleEndian.PutUint32(b[4:], p.height)
	binary.LittleEndian.PutUint32(b[8:], p.refPitch)
	binary.LittleEndian.PutUint32(b[12:], p.inPitch)
	binary.LittleEndian.PutUint32(b[16:], p.mbCols)
	binary.LittleEndian.PutUint32(b[20:], p.mbRows)
	binary.LittleEndian.PutUint32(b[24:], uint32(p.searchRange)) //nolint:gosec // range is non-negative
	binary.LittleEndian.PutUint32(b[28:], p.formats)
	return b
}

// workgroups returns the dispatch size covering an n-item axis.
func workgroups(n uint32) uint32 {
	return (n + workgroupSize - 1) / workgroupSize
}

// compileBlockMatch compiles the embedded WGSL to SPIR-V words.
func compileBlockMatch() ([]uint32, error) {
	spirvBytes, err := naga.Compile(blockMatchWGSL)
	if err != nil {
		return nil, fmt.Errorf("wgpu: compile blockmatch shader: %w", err)
	}
	if len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("wgpu: SPIR-V length %d is not word aligned", len(spirvBytes))
	}
	code := make([]uint32, len(spirvBytes)/4)
	for i := range code {
		code[i] = binary.LittleEndian.Uint32(spirvBytes[i*4:])
	}
	return code, nil
}
