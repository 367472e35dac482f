package worker

import "errors"

// ErrWorkerClosed is returned by Submit after Close.
var ErrWorkerClosed = errors.New("worker closed")

// ErrNoModelLoaded signals an operation that needs a loaded model while the
// worker is in the empty state.
var ErrNoModelLoaded = errors.New("no model loaded")

// ErrInfoStale marks a runtime-info value served from cache because the
// worker did not answer within the deadline. The value is still usable.
var ErrInfoStale = errors.New("runtime info is stale")

// modelLoadError wraps a failed load/save/state operation for 500 mapping.
type modelLoadError struct {
	path string
	err  error
}

func (e modelLoadError) Error() string { return "model operation failed: " + e.path + ": " + e.err.Error() }
func (e modelLoadError) Unwrap() error { return e.err }

// IsModelLoadFailed reports whether err came from a failed model operation.
func IsModelLoadFailed(err error) bool {
	var e modelLoadError
	return errors.As(err, &e)
}
