package directory

import "errors"

// noRouteError signals that no registered replica matched a capability query.
type noRouteError struct{ query string }

func (e noRouteError) Error() string { return "directory: no replica for " + e.query }

// IsNoRoute reports whether err means the directory had no matching replica.
func IsNoRoute(err error) bool {
	var e noRouteError
	return errors.As(err, &e)
}
