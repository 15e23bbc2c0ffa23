package pipeline

import (
	"tickerlake/apperror"
	"tickerlake/ohlcv"
	"tickerlake/partition"
	"tickerlake/processing"
	"tickerlake/storage"
)

// RunRequest is everything a run needs to know from its caller.
type RunRequest struct {
	Instrument string
	Period     ohlcv.Period
	Storage    storage.Target
	Processing processing.Target
}

// Validate checks the request without any I/O.
func (r RunRequest) Validate() error {
	if err := partition.ValidateInstrument(r.Instrument); err != nil {
		return err
	}
	if _, err := ohlcv.ParsePeriod(string(r.Period)); err != nil {
		return err
	}
	if r.Storage != storage.Local && r.Storage != storage.Cloud {
		return apperror.Newf(apperror.UnsupportedTarget, "unsupported storage target %q", r.Storage)
	}
	if r.Processing != processing.Local && r.Processing != processing.Remote {
		return apperror.Newf(apperror.UnsupportedTarget, "unsupported processing target %q", r.Processing)
	}
	return nil
}
