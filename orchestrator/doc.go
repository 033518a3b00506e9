// Package orchestrator ties the engine together: it matches peers to a
// capability query, selects a subset, dispatches the request to them
// concurrently, and aggregates their responses into one result.
package orchestrator
