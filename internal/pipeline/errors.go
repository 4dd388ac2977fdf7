package pipeline

import "errors"

// permanentError marks failures that retrying cannot fix (unsupported media
// type, missing artifact). The worker's retry loop checks for it.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps an error so IsPermanent reports true for it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether the error (or any error it wraps) is not worth
// retrying.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
