package errs

import "errors"

// systemicError marks failures of our own infrastructure (storage, audit
// trail) as opposed to failures of one external delivery. Batch processors
// use the distinction to decide between skip-and-continue and abort.
type systemicError struct{ err error }

func (e systemicError) Error() string { return e.err.Error() }
func (e systemicError) Unwrap() error { return e.err }

// Systemic wraps err so IsSystemic reports true for it.
func Systemic(err error) error {
	if err == nil {
		return nil
	}
	return systemicError{err: err}
}

func IsSystemic(err error) bool {
	var marker systemicError
	return errors.As(err, &marker)
}
