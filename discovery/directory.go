package discovery

import (
	"sync"

	"go.uber.org/zap"

	"github.com/agentmesh/agentmesh/types"
)

// Directory is an in-memory set of known peers, fed by the discovery
// collaborator and consumed by the matcher.
type Directory struct {
	mu     sync.RWMutex
	peers  map[string]types.PeerInfo
	logger *zap.Logger
}

// NewDirectory creates an empty directory.
func NewDirectory(logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{
		peers:  make(map[string]types.PeerInfo),
		logger: logger.With(zap.String("component", "peer_directory")),
	}
}

// Upsert adds or replaces a peer.
func (d *Directory) Upsert(peer types.PeerInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, existed := d.peers[peer.ID]
	d.peers[peer.ID] = peer
	if !existed {
		d.logger.Debug("peer registered",
			zap.String("peer_id", peer.ID),
			zap.Int("capabilities", len(peer.Capabilities)),
		)
	}
}

// Remove drops a peer. Removing an unknown peer is a no-op.
func (d *Directory) Remove(peerID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.peers, peerID)
}

// Get returns a peer by ID.
func (d *Directory) Get(peerID string) (types.PeerInfo, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.peers[peerID]
	return p, ok
}

// UpdateReputation replaces a peer's reputation signal. Unknown peers
// are ignored.
func (d *Directory) UpdateReputation(peerID string, reputation float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.peers[peerID]
	if !ok {
		return
	}
	p.Reputation = reputation
	d.peers[peerID] = p
}

// List returns a copy of every known peer.
func (d *Directory) List() []types.PeerInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]types.PeerInfo, 0, len(d.peers))
	for _, p := range d.peers {
		out = append(out, p)
	}
	return out
}

// Len returns the number of known peers.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.peers)
}
