// Package maintenance runs the console's periodic chores: pruning abandoned
// workflow sessions, refreshing the legal-hold cache and trimming the
// activity log.
package maintenance

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// SessionPruner removes idle workflow sessions.
type SessionPruner interface {
	PruneStale(ttl time.Duration) int
}

// HoldRefresher reloads the legal-hold cache from the backup server.
type HoldRefresher interface {
	Refresh(ctx context.Context) error
}

// ActivityCleaner trims old activity-log rows.
type ActivityCleaner interface {
	CleanupOldActivities(olderThan time.Duration) error
}

// Options configures the runner. Empty specs fall back to defaults; a nil
// dependency disables its chore.
type Options struct {
	Sessions   SessionPruner
	SessionTTL time.Duration

	Holds HoldRefresher

	Activity          ActivityCleaner
	ActivityRetention time.Duration

	PruneSpec   string // default "@every 10m"
	RefreshSpec string // default "@every 5m"
	CleanupSpec string // default "@daily"
}

// Runner schedules the chores on a cron. Each chore runs in the cron's own
// goroutine; failures are logged and retried on the next tick.
type Runner struct {
	cron *cron.Cron
	opts Options
}

// NewRunner creates a runner. Start must be called to begin scheduling.
func NewRunner(opts Options) *Runner {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = time.Hour
	}
	if opts.ActivityRetention <= 0 {
		opts.ActivityRetention = 90 * 24 * time.Hour
	}
	if opts.PruneSpec == "" {
		opts.PruneSpec = "@every 10m"
	}
	if opts.RefreshSpec == "" {
		opts.RefreshSpec = "@every 5m"
	}
	if opts.CleanupSpec == "" {
		opts.CleanupSpec = "@daily"
	}
	return &Runner{cron: cron.New(), opts: opts}
}

// Start registers the chores and starts the scheduler.
func (r *Runner) Start() error {
	if r.opts.Sessions != nil {
		if _, err := r.cron.AddFunc(r.opts.PruneSpec, r.pruneSessions); err != nil {
			return fmt.Errorf("invalid session prune schedule %q: %w", r.opts.PruneSpec, err)
		}
	}
	if r.opts.Holds != nil {
		if _, err := r.cron.AddFunc(r.opts.RefreshSpec, r.refreshHolds); err != nil {
			return fmt.Errorf("invalid hold refresh schedule %q: %w", r.opts.RefreshSpec, err)
		}
	}
	if r.opts.Activity != nil {
		if _, err := r.cron.AddFunc(r.opts.CleanupSpec, r.cleanupActivities); err != nil {
			return fmt.Errorf("invalid activity cleanup schedule %q: %w", r.opts.CleanupSpec, err)
		}
	}

	r.cron.Start()
	log.Printf("[Maintenance] Scheduler started (prune=%s, refresh=%s, cleanup=%s)",
		r.opts.PruneSpec, r.opts.RefreshSpec, r.opts.CleanupSpec)
	return nil
}

// Stop stops the scheduler and waits for running chores to finish.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	log.Printf("[Maintenance] Scheduler stopped")
}

func (r *Runner) pruneSessions() {
	if pruned := r.opts.Sessions.PruneStale(r.opts.SessionTTL); pruned > 0 {
		log.Printf("[Maintenance] Pruned %d stale restore sessions", pruned)
	}
}

func (r *Runner) refreshHolds() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := r.opts.Holds.Refresh(ctx); err != nil {
		log.Printf("[Maintenance] Legal hold refresh failed: %v", err)
	}
}

func (r *Runner) cleanupActivities() {
	if err := r.opts.Activity.CleanupOldActivities(r.opts.ActivityRetention); err != nil {
		log.Printf("[Maintenance] Activity cleanup failed: %v", err)
	}
}
