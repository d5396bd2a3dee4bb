package client

import "errors"

// Programming-misuse errors fail fast at the call boundary. Remote
// failures never surface here; they travel as Result.Err alongside a
// StatusError, or as the error return of Fetch.
var (
	// ErrEmptyKey — an entity operation was given an empty key.
	ErrEmptyKey = errors.New("entitycache: empty entity key")

	// ErrUnresolvedPath — a fetch was attempted on a path with an
	// unresolved segment.
	ErrUnresolvedPath = errors.New("entitycache: unresolved path segment")

	// ErrNoRemote — a remote operation was attempted on a client built
	// without a RemoteSource.
	ErrNoRemote = errors.New("entitycache: no remote source configured")

	// ErrClosed — a watch was requested on a closed client.
	ErrClosed = errors.New("entitycache: client closed")
)
