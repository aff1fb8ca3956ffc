package mvfield

import (
	"errors"
	"fmt"
)

// Stage identifies the pipeline step a failure belongs to.
type Stage int

const (
	StageUsage Stage = iota
	StageLoad
	StageDeviceInit
	StageSession
	StageRegistration
	StageMapping
	StageEstimation
	StageRetrieval
	StageWrite
	StageTeardown
	stageCount
)

// Stage sentinels. A *StageError matches the sentinel of its stage with
// errors.Is.
var (
	ErrUsage        = errors.New("usage error")
	ErrLoad         = errors.New("load error")
	ErrDeviceInit   = errors.New("device init error")
	ErrSession      = errors.New("session error")
	ErrRegistration = errors.New("registration error")
	ErrMapping      = errors.New("mapping error")
	ErrEstimation   = errors.New("estimation error")
	ErrRetrieval    = errors.New("retrieval error")
	ErrWrite        = errors.New("write error")
	ErrTeardown     = errors.New("teardown error")
)

var stageSentinels = [stageCount]error{
	ErrUsage, ErrLoad, ErrDeviceInit, ErrSession, ErrRegistration,
	ErrMapping, ErrEstimation, ErrRetrieval, ErrWrite, ErrTeardown,
}

// Sentinel returns the sentinel error of s, or nil for an unknown stage.
func (s Stage) Sentinel() error {
	if s < 0 || s >= stageCount {
		return nil
	}
	return stageSentinels[s]
}

func (s Stage) String() string {
	if err := s.Sentinel(); err != nil {
		return err.Error()
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// StageError is a failure of one pipeline stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return e.Stage.String() + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel of e's stage.
func (e *StageError) Is(target error) bool {
	s := e.Stage.Sentinel()
	return s != nil && target == s
}

// stageErr wraps err for stage s. A nil err stays nil.
func stageErr(s Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: s, Err: err}
}

// StageOf returns the stage of the first *StageError in err's tree.
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return 0, false
}
