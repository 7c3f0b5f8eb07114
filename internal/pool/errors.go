package pool

import "errors"

// ErrPoolClosed is returned by Acquire after Shutdown.
var ErrPoolClosed = errors.New("pool: closed")

// exhaustedError signals the per-endpoint cap was hit with nothing idle.
type exhaustedError struct{ endpoint string }

func (e exhaustedError) Error() string { return "pool: exhausted: " + e.endpoint }

// IsExhausted reports whether err indicates pool exhaustion.
func IsExhausted(err error) bool {
	var e exhaustedError
	return errors.As(err, &e)
}

// connectError signals a failed dial to a worker socket.
type connectError struct {
	endpoint string
	err      error
}

func (e connectError) Error() string { return "pool: connect " + e.endpoint + ": " + e.err.Error() }
func (e connectError) Unwrap() error { return e.err }

// IsConnectFailed reports whether err indicates a failed dial.
func IsConnectFailed(err error) bool {
	var e connectError
	return errors.As(err, &e)
}
