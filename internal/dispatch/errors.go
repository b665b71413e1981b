package dispatch

import "errors"

var (
	// ErrDuplicateDispatch means the message id is already pending. The
	// existing entry is left untouched.
	ErrDuplicateDispatch = errors.New("dispatch already pending")
	// ErrUnknownDispatch means a signal arrived for a message id that is not
	// tracked, e.g. after a restart or eviction.
	ErrUnknownDispatch = errors.New("no pending dispatch")
	// ErrPhaseResolved means the same phase was signalled twice.
	ErrPhaseResolved = errors.New("dispatch phase already resolved")
	ErrStopped       = errors.New("correlator stopped")
)
