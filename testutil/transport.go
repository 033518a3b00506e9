// Package testutil provides scripted collaborators for exercising the
// orchestration engine without a network.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/agentmesh/agentmesh/dispatch"
	"github.com/agentmesh/agentmesh/types"
)

// PeerScript describes how a scripted peer answers.
type PeerScript struct {
	// Value is the response payload on success.
	Value types.Value

	// Delay is how long the peer takes to answer.
	Delay time.Duration

	// Err makes the peer fail instead of answering.
	Err error
}

// ScriptedTransport implements dispatch.Transport with per-peer
// scripts. Unscripted peers answer immediately with an empty text
// value.
type ScriptedTransport struct {
	mu      sync.Mutex
	scripts map[string]PeerScript
	calls   []string
}

// NewScriptedTransport creates a transport with the given scripts.
func NewScriptedTransport(scripts map[string]PeerScript) *ScriptedTransport {
	if scripts == nil {
		scripts = make(map[string]PeerScript)
	}
	return &ScriptedTransport{scripts: scripts}
}

// SetScript adds or replaces a peer's script.
func (t *ScriptedTransport) SetScript(peerID string, script PeerScript) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scripts[peerID] = script
}

// Send implements dispatch.Transport.
func (t *ScriptedTransport) Send(ctx context.Context, peerID string, req *dispatch.Request) (types.Value, error) {
	t.mu.Lock()
	script := t.scripts[peerID]
	t.calls = append(t.calls, peerID)
	t.mu.Unlock()

	if script.Delay > 0 {
		select {
		case <-time.After(script.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if script.Err != nil {
		return nil, script.Err
	}
	if script.Value == nil {
		return types.TextValue(""), nil
	}
	return script.Value, nil
}

// Calls returns the peer IDs contacted so far, in call order.
func (t *ScriptedTransport) Calls() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.calls))
	copy(out, t.calls)
	return out
}

// Peers builds a peer list where every peer advertises the given
// capability type.
func Peers(capabilityType string, ids ...string) []types.PeerInfo {
	out := make([]types.PeerInfo, len(ids))
	for i, id := range ids {
		out[i] = types.PeerInfo{
			ID:           id,
			Capabilities: []types.Capability{{Type: capabilityType}},
			Reputation:   0.5,
		}
	}
	return out
}

var _ dispatch.Transport = (*ScriptedTransport)(nil)
