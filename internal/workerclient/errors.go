package workerclient

import "errors"

// transportError wraps an IPC failure talking to a worker.
type transportError struct {
	op       string
	endpoint string
	err      error
}

func (e transportError) Error() string {
	return "worker transport: " + e.op + " " + e.endpoint + ": " + e.err.Error()
}

func (e transportError) Unwrap() error { return e.err }

// IsTransport reports whether err is a worker transport failure.
func IsTransport(err error) bool {
	var e transportError
	return errors.As(err, &e)
}
