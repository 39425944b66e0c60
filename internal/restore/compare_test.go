package restore

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftbyte/snapharbor/internal/models"
)

func TestCompareSelectionPairwiseCap(t *testing.T) {
	var sel CompareSelection

	added, err := sel.Toggle("snap-a")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = sel.Toggle("snap-b")
	require.NoError(t, err)
	assert.True(t, added)

	// A third selection is rejected, the pair stays intact.
	_, err = sel.Toggle("snap-c")
	assert.ErrorIs(t, err, ErrCompareFull)

	a, b, ok := sel.Pair()
	require.True(t, ok)
	assert.Equal(t, "snap-a", a)
	assert.Equal(t, "snap-b", b)

	// Toggling a member removes it and makes room.
	added, err = sel.Toggle("snap-a")
	require.NoError(t, err)
	assert.False(t, added)
	_, _, ok = sel.Pair()
	assert.False(t, ok)

	_, err = sel.Toggle("snap-c")
	require.NoError(t, err)
	assert.Equal(t, []string{"snap-b", "snap-c"}, sel.IDs())

	sel.Clear()
	assert.Empty(t, sel.IDs())
}

func TestCompareRegistryPerUser(t *testing.T) {
	reg := NewCompareRegistry()
	alice, bob := uuid.New(), uuid.New()

	reg.For(alice).Toggle("snap-a")
	reg.For(bob).Toggle("snap-b")

	assert.Equal(t, []string{"snap-a"}, reg.For(alice).IDs())
	assert.Equal(t, []string{"snap-b"}, reg.For(bob).IDs())
}

func TestManagerOpenGetClose(t *testing.T) {
	m := NewManager()
	userID := uuid.New()
	session := m.Open(userID, testSnapshot(), 2)

	got, err := m.Get(userID, session.ID)
	require.NoError(t, err)
	assert.Same(t, session, got)

	// Sessions are private to their user.
	_, err = m.Get(uuid.New(), session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, m.Close(userID, session.ID))
	assert.True(t, session.Closed())
	_, err = m.Get(userID, session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManagerPruneStaleKeepsRestoring(t *testing.T) {
	m := NewManager()
	userID := uuid.New()

	idle := m.Open(userID, testSnapshot(), 1)
	restoring := m.Open(userID, testSnapshot(), 1)
	job := &models.RestoreJob{ID: uuid.New(), Status: models.RestoreStatusRunning}
	_, err := restoring.Start(context.Background(), &fakeSubmitter{job: job})
	require.NoError(t, err)

	// Everything is fresher than the TTL: nothing pruned.
	assert.Equal(t, 0, m.PruneStale(time.Hour))

	// With a zero TTL the idle configure-phase session goes; the session
	// with a dispatched job stays reachable.
	pruned := m.PruneStale(0)
	assert.Equal(t, 1, pruned)
	assert.True(t, idle.Closed())

	_, err = m.Get(userID, restoring.ID)
	assert.NoError(t, err)
}
