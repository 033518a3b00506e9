package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDirectory_UpsertAndGet(t *testing.T) {
	dir := NewDirectory(zap.NewNop())

	dir.Upsert(peer("p1", 0.4, cap("inference", "chat")))
	require.Equal(t, 1, dir.Len())

	got, ok := dir.Get("p1")
	require.True(t, ok)
	assert.Equal(t, 0.4, got.Reputation)

	// Upsert replaces in place.
	dir.Upsert(peer("p1", 0.9))
	got, _ = dir.Get("p1")
	assert.Equal(t, 0.9, got.Reputation)
	assert.Empty(t, got.Capabilities)
	assert.Equal(t, 1, dir.Len())
}

func TestDirectory_Remove(t *testing.T) {
	dir := NewDirectory(nil)
	dir.Upsert(peer("p1", 0))

	dir.Remove("p1")
	_, ok := dir.Get("p1")
	assert.False(t, ok)

	// Unknown peer is a no-op.
	dir.Remove("ghost")
}

func TestDirectory_UpdateReputation(t *testing.T) {
	dir := NewDirectory(nil)
	dir.Upsert(peer("p1", 0.1))

	dir.UpdateReputation("p1", 0.8)
	got, _ := dir.Get("p1")
	assert.Equal(t, 0.8, got.Reputation)

	dir.UpdateReputation("ghost", 0.5)
	assert.Equal(t, 1, dir.Len())
}

func TestDirectory_ListIsACopy(t *testing.T) {
	dir := NewDirectory(nil)
	dir.Upsert(peer("p1", 0.1))
	dir.Upsert(peer("p2", 0.2))

	listed := dir.List()
	require.Len(t, listed, 2)
	listed[0].Reputation = 99

	for _, p := range dir.List() {
		assert.LessOrEqual(t, p.Reputation, 1.0)
	}
}
