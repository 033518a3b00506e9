// Package state persists engine state snapshots so that load history
// and selection cursors survive restarts. A MemoryStore backs single
// process deployments; a RedisStore shares state across replicas.
package state
