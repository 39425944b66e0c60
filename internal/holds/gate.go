package holds

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/driftbyte/snapharbor/internal/models"
)

var (
	// ErrForbidden is returned when the caller's role may not manage holds.
	ErrForbidden = errors.New("legal holds can only be managed by owners and admins")

	// ErrReasonRequired is returned when a hold is placed without a reason.
	ErrReasonRequired = errors.New("a reason is required to place a legal hold")

	// ErrActionInFlight is returned when a hold action for the same snapshot
	// is already being processed.
	ErrActionInFlight = errors.New("a legal hold action for this snapshot is already in progress")
)

// API is the slice of the upstream surface the gate needs.
type API interface {
	ListLegalHolds(ctx context.Context) ([]models.LegalHold, error)
	CreateLegalHold(ctx context.Context, snapshotID, reason string) (*models.LegalHold, error)
	DeleteLegalHold(ctx context.Context, snapshotID string) error
}

// Gate manages legal holds on snapshots. Placing or removing a hold is
// restricted to owner and admin roles; a held snapshot cannot be deleted
// upstream, but restores from it stay allowed, so the gate is never
// consulted on the restore path.
//
// The gate keeps a cache of known holds so list views can annotate
// snapshots without a round trip per row. Mutations go through upstream
// first and update the cache from the response.
type Gate struct {
	api API

	mu       sync.RWMutex
	held     map[string]models.LegalHold
	inflight map[string]struct{}
}

// NewGate creates a gate with an empty cache. Call Refresh to warm it.
func NewGate(api API) *Gate {
	return &Gate{
		api:      api,
		held:     make(map[string]models.LegalHold),
		inflight: make(map[string]struct{}),
	}
}

// Refresh replaces the cache with the upstream hold list.
func (g *Gate) Refresh(ctx context.Context) error {
	list, err := g.api.ListLegalHolds(ctx)
	if err != nil {
		return fmt.Errorf("listing legal holds: %w", err)
	}

	held := make(map[string]models.LegalHold, len(list))
	for _, hold := range list {
		held[hold.SnapshotID] = hold
	}

	g.mu.Lock()
	g.held = held
	g.mu.Unlock()
	return nil
}

// Place puts a legal hold on the snapshot on behalf of the user. The role
// must be owner or admin and the reason must be non-empty after trimming.
func (g *Gate) Place(ctx context.Context, role models.OrgRole, snapshotID, reason string) (*models.LegalHold, error) {
	if !role.CanManageLegalHolds() {
		return nil, ErrForbidden
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}

	if err := g.begin(snapshotID); err != nil {
		return nil, err
	}
	defer g.finish(snapshotID)

	hold, err := g.api.CreateLegalHold(ctx, snapshotID, reason)
	if err != nil {
		return nil, fmt.Errorf("placing legal hold: %w", err)
	}

	g.mu.Lock()
	g.held[hold.SnapshotID] = *hold
	g.mu.Unlock()
	return hold, nil
}

// Remove lifts the legal hold on the snapshot. Same role restriction as
// Place.
func (g *Gate) Remove(ctx context.Context, role models.OrgRole, snapshotID string) error {
	if !role.CanManageLegalHolds() {
		return ErrForbidden
	}

	if err := g.begin(snapshotID); err != nil {
		return err
	}
	defer g.finish(snapshotID)

	if err := g.api.DeleteLegalHold(ctx, snapshotID); err != nil {
		return fmt.Errorf("removing legal hold: %w", err)
	}

	g.mu.Lock()
	delete(g.held, snapshotID)
	g.mu.Unlock()
	return nil
}

// IsHeld reports whether the snapshot has a hold in the cache.
func (g *Gate) IsHeld(snapshotID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.held[snapshotID]
	return ok
}

// HoldFor returns the cached hold for the snapshot, if any.
func (g *Gate) HoldFor(snapshotID string) (models.LegalHold, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	hold, ok := g.held[snapshotID]
	return hold, ok
}

// Holds returns all cached holds.
func (g *Gate) Holds() []models.LegalHold {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]models.LegalHold, 0, len(g.held))
	for _, hold := range g.held {
		out = append(out, hold)
	}
	return out
}

// begin marks a snapshot action as in flight; a second action on the same
// snapshot before the first finishes is rejected rather than queued.
func (g *Gate) begin(snapshotID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inflight[snapshotID]; busy {
		return ErrActionInFlight
	}
	g.inflight[snapshotID] = struct{}{}
	return nil
}

func (g *Gate) finish(snapshotID string) {
	g.mu.Lock()
	delete(g.inflight, snapshotID)
	g.mu.Unlock()
}
