package restore

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrCompareFull is returned when a third snapshot is added to a compare
// selection; comparison is strictly pairwise.
var ErrCompareFull = errors.New("compare selection already holds two snapshots")

// CompareSelection tracks the snapshots a user has marked for pairwise
// comparison, at most two at a time, in pick order.
type CompareSelection struct {
	mu  sync.Mutex
	ids []string
}

// Toggle adds the snapshot to the selection or removes it if present.
// Adding beyond two returns ErrCompareFull.
func (c *CompareSelection) Toggle(snapshotID string) (selected bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, id := range c.ids {
		if id == snapshotID {
			c.ids = append(c.ids[:i], c.ids[i+1:]...)
			return false, nil
		}
	}
	if len(c.ids) >= 2 {
		return false, ErrCompareFull
	}
	c.ids = append(c.ids, snapshotID)
	return true, nil
}

// Pair returns both selected snapshots when exactly two are chosen.
func (c *CompareSelection) Pair() (a, b string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.ids) != 2 {
		return "", "", false
	}
	return c.ids[0], c.ids[1], true
}

// IDs returns the current selection in pick order.
func (c *CompareSelection) IDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.ids...)
}

// Clear empties the selection.
func (c *CompareSelection) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = nil
}

// CompareRegistry keeps one compare selection per console user.
type CompareRegistry struct {
	mu         sync.Mutex
	selections map[uuid.UUID]*CompareSelection
}

// NewCompareRegistry creates an empty registry.
func NewCompareRegistry() *CompareRegistry {
	return &CompareRegistry{selections: make(map[uuid.UUID]*CompareSelection)}
}

// For returns the user's compare selection, creating it on first use.
func (r *CompareRegistry) For(userID uuid.UUID) *CompareSelection {
	r.mu.Lock()
	defer r.mu.Unlock()
	sel, ok := r.selections[userID]
	if !ok {
		sel = &CompareSelection{}
		r.selections[userID] = sel
	}
	return sel
}
