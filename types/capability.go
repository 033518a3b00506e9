package types

import "sort"

// Capability describes a single feature a peer advertises it can perform.
// Type is the semantic identifier; Name and Version narrow it further.
// The order of a peer's capability set is display-only.
type Capability struct {
	Type     string         `json:"type"`
	Name     string         `json:"name,omitempty"`
	Version  string         `json:"version,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// CapabilityRef is one required descriptor in a CapabilityQuery.
// Type must match exactly; Name and Version are matched exactly only
// when non-empty.
type CapabilityRef struct {
	Type    string `json:"type"`
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

// Matches reports whether cap satisfies this descriptor.
func (r CapabilityRef) Matches(cap Capability) bool {
	if cap.Type != r.Type {
		return false
	}
	if r.Name != "" && cap.Name != r.Name {
		return false
	}
	if r.Version != "" && cap.Version != r.Version {
		return false
	}
	return true
}

// CapabilityQuery is a set of required capability descriptors. A peer
// matches when every descriptor is satisfied by at least one of its
// owned capabilities (AND across descriptors, OR across capabilities).
type CapabilityQuery struct {
	Required []CapabilityRef `json:"required,omitempty"`
}

// BucketKey returns a stable key identifying this query's capability
// types, used to bucket round-robin cursors.
func (q CapabilityQuery) BucketKey() string {
	if len(q.Required) == 0 {
		return ""
	}
	types := make([]string, 0, len(q.Required))
	for _, ref := range q.Required {
		types = append(types, ref.Type)
	}
	sort.Strings(types)
	key := types[0]
	for _, t := range types[1:] {
		key += "," + t
	}
	return key
}

// PeerInfo is a known peer as supplied by the discovery collaborator.
// Reputation is an opaque trust signal in [0,1]; the engine never
// computes it, only consumes it.
type PeerInfo struct {
	ID           string       `json:"id"`
	Capabilities []Capability `json:"capabilities,omitempty"`
	Reputation   float64      `json:"reputation,omitempty"`
}

// CapabilityMatch is one entry in the matcher's ranked output.
type CapabilityMatch struct {
	Peer PeerInfo `json:"peer"`

	// MatchScore is the fraction of required descriptors the peer
	// satisfies, in [0,1].
	MatchScore float64 `json:"match_score"`

	// MatchedCapabilities lists the peer capabilities that satisfied
	// descriptors, one per satisfied descriptor.
	MatchedCapabilities []Capability `json:"matched_capabilities,omitempty"`
}
