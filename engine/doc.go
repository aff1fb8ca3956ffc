// Package engine defines the contract between mvfield and a motion
// estimation engine.
//
// An Engine opens a Device. The Device owns pitched surfaces in its own
// memory and opens Sessions. A Session registers surfaces, maps them as
// estimation inputs, owns motion vector buffers and runs motion-estimation-only
// operations. Every acquiring call has a releasing counterpart and callers
// must pair them:
//
//	AllocPitch          / Free
//	OpenSession         / Session.Destroy
//	RegisterResource    / UnregisterResource
//	MapInputResource    / UnmapInputResource
//	CreateMVBuffer      / DestroyMVBuffer
//	LockBitstream       / UnlockBitstream
//
// Engines register themselves by name via Register, usually from init.
// OpenDefault tries registered engines by priority (wgpu, then software) and
// returns the first device that opens.
package engine
