package manifest

import (
	"errors"
	"fmt"
)

var (
	// ErrAccumulatorShape marks a reduce applied to an accumulator it
	// cannot handle.
	ErrAccumulatorShape = errors.New("unsupported accumulator shape")

	// ErrInvalidConfig marks a Config that fails validation.
	ErrInvalidConfig = errors.New("invalid manifest config")
)

// Stage names a pipeline stage.
type Stage string

const (
	StageNormalize Stage = "normalize"
	StageMap       Stage = "map"
	StageFilter    Stage = "filter"
	StageSort      Stage = "sort"
	StageReduce    Stage = "reduce"
	StageSerialize Stage = "serialize"
)

// StageError reports the stage, and descriptor position where relevant,
// that aborted a pipeline run.
type StageError struct {
	Stage Stage
	// Index is the descriptor position within the stage's input, or -1.
	Index int
	Err   error
}

func (e *StageError) Error() string {
	if e == nil {
		return ""
	}
	if e.Index >= 0 {
		return fmt.Sprintf("manifest %s stage (descriptor %d): %v", e.Stage, e.Index, e.Err)
	}
	return fmt.Sprintf("manifest %s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// guard runs fn, converting a panic into a *StageError.
func guard(stage Stage, index int, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &StageError{Stage: stage, Index: index, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if err := fn(); err != nil {
		var se *StageError
		if errors.As(err, &se) {
			return err
		}
		return &StageError{Stage: stage, Index: index, Err: err}
	}
	return nil
}
