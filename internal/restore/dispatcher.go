package restore

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/driftbyte/snapharbor/internal/models"
	"github.com/driftbyte/snapharbor/internal/upstream"
)

// ProgressSink receives cloud-restore progress updates for fan-out to
// connected consoles.
type ProgressSink interface {
	PublishProgress(restoreID uuid.UUID, progress *models.CloudRestoreProgress)
}

// JobStore persists references to dispatched cloud jobs so a closed modal
// never loses a running upload, and so polling resumes across restarts.
type JobStore interface {
	SaveCloudJob(job *models.RestoreJob) error
	UpdateCloudJobStatus(restoreID uuid.UUID, status models.RestoreStatus) error
	ListActiveCloudJobs() ([]uuid.UUID, error)
}

// Dispatcher submits finalized restores to the backup server and tracks
// cloud-job progress. Agent restores are fire-and-forget: after acceptance
// the console watches them through the jobs list. Cloud restores keep their
// job id and are polled until a terminal status.
type Dispatcher struct {
	api      upstream.API
	sink     ProgressSink
	store    JobStore
	interval time.Duration

	mu      sync.Mutex
	pollers map[uuid.UUID]context.CancelFunc
	latest  map[uuid.UUID]*models.CloudRestoreProgress
	wg      sync.WaitGroup
}

var _ Submitter = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher polling cloud progress on the given
// interval.
func NewDispatcher(api upstream.API, sink ProgressSink, store JobStore, interval time.Duration) *Dispatcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Dispatcher{
		api:      api,
		sink:     sink,
		store:    store,
		interval: interval,
		pollers:  make(map[uuid.UUID]context.CancelFunc),
		latest:   make(map[uuid.UUID]*models.CloudRestoreProgress),
	}
}

// SubmitAgent submits an agent-target restore.
func (d *Dispatcher) SubmitAgent(ctx context.Context, req models.CreateRestoreRequest) (*models.RestoreJob, error) {
	return d.api.CreateRestore(ctx, req)
}

// SubmitCloud submits a cloud-target restore, persists the job reference
// and starts progress polling.
func (d *Dispatcher) SubmitCloud(ctx context.Context, req models.CreateCloudRestoreRequest) (*models.RestoreJob, error) {
	job, err := d.api.CreateCloudRestore(ctx, req)
	if err != nil {
		return nil, err
	}

	if d.store != nil {
		if err := d.store.SaveCloudJob(job); err != nil {
			// The job is already running server-side; losing the journal
			// entry only affects restart resumption.
			log.Printf("[RestoreDispatcher] Failed to journal cloud job %s: %v", job.ID, err)
		}
	}

	d.StartPolling(job.ID)
	return job, nil
}

// StartPolling begins polling progress for a cloud restore. Polling an
// already-polled job is a no-op.
func (d *Dispatcher) StartPolling(restoreID uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, running := d.pollers[restoreID]; running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.pollers[restoreID] = cancel
	d.wg.Add(1)
	go d.poll(ctx, restoreID)
}

// StopPolling stops the poller for one job, e.g. when its modal closes. The
// job itself continues server-side and stays in the journal.
func (d *Dispatcher) StopPolling(restoreID uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cancel, ok := d.pollers[restoreID]; ok {
		cancel()
		delete(d.pollers, restoreID)
	}
}

// StopAll stops every poller and waits for them to exit.
func (d *Dispatcher) StopAll() {
	d.mu.Lock()
	for id, cancel := range d.pollers {
		cancel()
		delete(d.pollers, id)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// ResumeActive restarts pollers for journaled cloud jobs that were not
// terminal when the service last stopped.
func (d *Dispatcher) ResumeActive() {
	if d.store == nil {
		return
	}
	ids, err := d.store.ListActiveCloudJobs()
	if err != nil {
		log.Printf("[RestoreDispatcher] Failed to list journaled cloud jobs: %v", err)
		return
	}
	for _, id := range ids {
		log.Printf("[RestoreDispatcher] Resuming progress polling for cloud job %s", id)
		d.StartPolling(id)
	}
}

// LatestProgress returns the most recent poll result for a job.
func (d *Dispatcher) LatestProgress(restoreID uuid.UUID) (*models.CloudRestoreProgress, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.latest[restoreID]
	return p, ok
}

// poll fetches progress on a fixed interval until the job reaches a
// terminal status or the poller is stopped. A failed poll is transient:
// the next tick retries. Only an explicit failed status ends the job with
// an error state.
func (d *Dispatcher) poll(ctx context.Context, restoreID uuid.UUID) {
	defer d.wg.Done()
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			progress, err := d.api.GetCloudRestoreProgress(ctx, restoreID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("[RestoreDispatcher] Transient poll failure for %s: %v", restoreID, err)
				continue
			}

			d.recordProgress(restoreID, progress)

			if progress.Status.Terminal() {
				d.finishPolling(restoreID, progress.Status)
				return
			}
		}
	}
}

func (d *Dispatcher) recordProgress(restoreID uuid.UUID, progress *models.CloudRestoreProgress) {
	d.mu.Lock()
	d.latest[restoreID] = progress
	d.mu.Unlock()

	if d.sink != nil {
		d.sink.PublishProgress(restoreID, progress)
	}
}

func (d *Dispatcher) finishPolling(restoreID uuid.UUID, status models.RestoreStatus) {
	if d.store != nil {
		if err := d.store.UpdateCloudJobStatus(restoreID, status); err != nil {
			log.Printf("[RestoreDispatcher] Failed to journal terminal status for %s: %v", restoreID, err)
		}
	}

	d.mu.Lock()
	if cancel, ok := d.pollers[restoreID]; ok {
		cancel()
		delete(d.pollers, restoreID)
	}
	d.mu.Unlock()
	log.Printf("[RestoreDispatcher] Cloud job %s reached %s, polling stopped", restoreID, status)
}
