// Package types defines the shared data model for the agentmesh
// orchestration engine: peer and capability descriptors, the response
// value union, aggregation results, and the structured error taxonomy
// used across all components.
package types
