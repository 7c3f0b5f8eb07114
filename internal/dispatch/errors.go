package dispatch

import "errors"

// noRouteError means delegation found no peer for the capability.
type noRouteError struct{ query string }

func (e noRouteError) Error() string { return "dispatch: no route for " + e.query }

// IsNoRoute reports whether err means no peer dispatcher serves the
// capability.
func IsNoRoute(err error) bool {
	var e noRouteError
	return errors.As(err, &e)
}
