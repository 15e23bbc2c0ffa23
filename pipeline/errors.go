package pipeline

import (
	"fmt"

	"tickerlake/apperror"
)

// Stage labels the step of a run an error came from.
type Stage string

const (
	StageValidate Stage = "validate"
	StageFetch    Stage = "fetch"
	StageKey      Stage = "key"
	StageStore    Stage = "store"
	StageDispatch Stage = "dispatch"
)

// StageError is returned by Run. Err always carries an apperror code.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func (e *StageError) Code() apperror.Code { return apperror.CodeOf(e.Err) }

// stageError labels err, giving uncoded errors the stage's default code.
func stageError(stage Stage, err error) *StageError {
	if apperror.CodeOf(err) == "" {
		err = apperror.Wrap(defaultCode(stage), err, string(stage)+" failed")
	}
	return &StageError{Stage: stage, Err: err}
}

func defaultCode(stage Stage) apperror.Code {
	switch stage {
	case StageValidate, StageKey:
		return apperror.InvalidIdentifier
	case StageFetch:
		return apperror.ProviderError
	case StageStore:
		return apperror.StorageIOError
	default:
		return apperror.DataUnavailable
	}
}
