package discovery

import (
	"sort"

	"github.com/agentmesh/agentmesh/types"
)

// Match scores every peer against the query and returns the matching
// peers ranked best-first. Pure and side-effect-free: no network calls,
// no state.
//
// A query with no required descriptors matches every peer with score 1.
// Peers satisfying none of the required descriptors are excluded.
func Match(peers []types.PeerInfo, query types.CapabilityQuery) []types.CapabilityMatch {
	matches := make([]types.CapabilityMatch, 0, len(peers))

	for _, peer := range peers {
		score, matched := scorePeer(peer, query)
		if score <= 0 {
			continue
		}
		matches = append(matches, types.CapabilityMatch{
			Peer:                peer,
			MatchScore:          score,
			MatchedCapabilities: matched,
		})
	}

	sortMatches(matches)
	return matches
}

// scorePeer returns the fraction of required descriptors the peer
// satisfies, with the capabilities that satisfied them.
func scorePeer(peer types.PeerInfo, query types.CapabilityQuery) (float64, []types.Capability) {
	if len(query.Required) == 0 {
		return 1.0, nil
	}

	var matched []types.Capability
	satisfied := 0
	for _, ref := range query.Required {
		for _, cap := range peer.Capabilities {
			if ref.Matches(cap) {
				matched = append(matched, cap)
				satisfied++
				break
			}
		}
	}

	if satisfied == 0 {
		return 0, nil
	}
	return float64(satisfied) / float64(len(query.Required)), matched
}

// sortMatches orders descending by score, then reputation, then
// matched-capability count, then peer ID ascending.
func sortMatches(matches []types.CapabilityMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.MatchScore != b.MatchScore {
			return a.MatchScore > b.MatchScore
		}
		if a.Peer.Reputation != b.Peer.Reputation {
			return a.Peer.Reputation > b.Peer.Reputation
		}
		if len(a.MatchedCapabilities) != len(b.MatchedCapabilities) {
			return len(a.MatchedCapabilities) > len(b.MatchedCapabilities)
		}
		return a.Peer.ID < b.Peer.ID
	})
}
