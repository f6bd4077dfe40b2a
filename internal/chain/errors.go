package chain

import "errors"

var (
	// ErrConfig wraps every chain definition failure.
	ErrConfig = errors.New("config error")

	ErrUnknownStepFunction = errors.New("unknown step function")
	ErrMissingReference    = errors.New("missing reference")
	ErrMissingStepName     = errors.New("missing step name")
	ErrNotLoaded           = errors.New("chain not loaded")
	ErrMissingInput        = errors.New("missing input")
)
