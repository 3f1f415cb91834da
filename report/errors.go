package report

import "errors"

// ErrInvalidConf signals that Extract was handed a configuration of the
// wrong type.
var ErrInvalidConf = errors.New("invalid reportlet configuration")

// RunError wraps any fatal failure of a report run: bad configuration,
// store errors, sink errors. Connector failures are recovered locally and
// never surface as a RunError.
type RunError struct {
	Cause error
}

func (e *RunError) Error() string {
	return "reconciliation report run failed: " + e.Cause.Error()
}

func (e *RunError) Unwrap() error {
	return e.Cause
}

func fatal(err error) error {
	if err == nil {
		return nil
	}
	var runErr *RunError
	if errors.As(err, &runErr) {
		return err
	}
	return &RunError{Cause: err}
}
