package poll

import "errors"

var (
	// ErrNotModified is returned by a Fetcher when the upstream reports the
	// resource unchanged (HTTP 304). The cycle is treated as a no-op.
	ErrNotModified = errors.New("poll: resource not modified")

	// ErrIncomplete marks a response that parsed but lacks required fields.
	// It is handled exactly like a transient fetch failure.
	ErrIncomplete = errors.New("poll: incomplete snapshot")

	// ErrStopped is reported by Wait when the session was stopped by its owner.
	ErrStopped = errors.New("poll: session stopped")
)

type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

// Fatal marks err as fatal: a session configured to stop on fatal errors
// (the default) ends with err instead of retrying on the next tick.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// IsFatal reports whether any error in err's chain was marked with Fatal.
func IsFatal(err error) bool {
	var f *fatalError
	return errors.As(err, &f)
}
