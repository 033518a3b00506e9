package state

import (
	"context"
	"sync"
	"time"

	"github.com/agentmesh/agentmesh/loadstate"
)

// Snapshot is the persisted engine state.
type Snapshot struct {
	// LoadStates holds per-peer load history keyed by peer ID.
	LoadStates map[string]loadstate.PeerLoadState `json:"load_states"`
	// Cursors holds round-robin positions keyed by query bucket.
	Cursors map[string]int `json:"cursors"`
	// SavedAt records when the snapshot was taken.
	SavedAt time.Time `json:"saved_at"`
}

// Store persists and restores engine snapshots.
type Store interface {
	// Save overwrites the stored snapshot.
	Save(ctx context.Context, snap Snapshot) error
	// Load returns the stored snapshot. A store with no snapshot
	// returns an empty snapshot and ok=false.
	Load(ctx context.Context) (Snapshot, bool, error)
	// Clear removes the stored snapshot.
	Clear(ctx context.Context) error
	// Close releases store resources.
	Close() error
}

// MemoryStore keeps the snapshot in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	snap Snapshot
	set  bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = copySnapshot(snap)
	s.set = true
	return nil
}

func (s *MemoryStore) Load(_ context.Context) (Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		return Snapshot{}, false, nil
	}
	return copySnapshot(s.snap), true, nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = Snapshot{}
	s.set = false
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func copySnapshot(snap Snapshot) Snapshot {
	out := Snapshot{SavedAt: snap.SavedAt}
	if snap.LoadStates != nil {
		out.LoadStates = make(map[string]loadstate.PeerLoadState, len(snap.LoadStates))
		for k, v := range snap.LoadStates {
			out.LoadStates[k] = v
		}
	}
	if snap.Cursors != nil {
		out.Cursors = make(map[string]int, len(snap.Cursors))
		for k, v := range snap.Cursors {
			out.Cursors[k] = v
		}
	}
	return out
}

var _ Store = (*MemoryStore)(nil)
