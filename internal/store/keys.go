// Package store holds the persistence backends of the learning-map
// engine: a Redis-backed local store, a typed client for the remote
// action-dispatch endpoint, and an optional Postgres reference catalog.
package store

// Local persistence keys. One JSON-serialized collection per key.
// These are stable across versions; changing one orphans user data.
const (
	KeyMaps        = "lm:maps"
	KeyAssignments = "lm:assignments"
	KeyProgress    = "lm:progress"
	KeyDevTasks    = "lm:devtasks"
	KeyUsers       = "lm:users"
	KeyMode        = "lm:mode"
	KeyRemoteURL   = "lm:remote_url"
)
