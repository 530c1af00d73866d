// Package bulk drives one asynchronous import job at a time: upload the
// file, poll the job-status endpoint on a fixed interval, and on terminal
// success invalidate the whole mirror and repopulate it with a fresh list
// fetch. Bulk imports can touch far more records than is efficient to
// reconcile incrementally, so the terminal path is always clear-then-refetch,
// never a merge.
package bulk

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"assetmirror/internal/remote"
	"assetmirror/internal/store"
	"assetmirror/internal/validation"
	"assetmirror/pkg/domain"
)

// State is the poller's lifecycle position.
type State string

const (
	StateIdle      State = "idle"
	StateUploading State = "uploading"
	StatePolling   State = "polling"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// DefaultPollInterval is the gap between job-status fetches.
const DefaultPollInterval = 2 * time.Second

// Refresher repopulates the mirror after a full invalidation. The syncer's
// ReadList satisfies it.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RefresherFunc adapts a function to the Refresher interface.
type RefresherFunc func(ctx context.Context) error

func (f RefresherFunc) Refresh(ctx context.Context) error { return f(ctx) }

// Snapshot is the caller-visible progress view.
type Snapshot struct {
	State  State
	JobID  string
	Status domain.JobStatus
	Err    error
}

// Config wires the poller's collaborators.
type Config struct {
	Store     *store.Store
	Client    remote.Client
	Refresher Refresher
	Interval  time.Duration
	Logger    *slog.Logger
}

// Poller owns the polling timer for at most one active job. Cancellation and
// terminal transitions are idempotent; the timer goroutine is released on
// every exit path.
type Poller struct {
	store     *store.Store
	client    remote.Client
	refresher Refresher
	interval  time.Duration
	logger    *slog.Logger

	mu     sync.Mutex
	state  State
	gen    uint64 // bumped per upload attempt; detects cancellation mid-upload
	jobID  string
	status domain.JobStatus
	err    error
	stop   func() // releases the active poll loop; nil when none
}

// New constructs an idle poller.
func New(cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Poller{
		store:     cfg.Store,
		client:    cfg.Client,
		refresher: cfg.Refresher,
		interval:  cfg.Interval,
		logger:    cfg.Logger,
		state:     StateIdle,
	}
}

// StartUpload validates the file, uploads it, and begins polling. Invalid
// files fail before any network call and leave the poller idle. A second
// upload while one is active is rejected.
func (p *Poller) StartUpload(ctx context.Context, filename string, size int64, content io.Reader) error {
	if err := validation.ValidateUploadFile(filename, size); err != nil {
		return err
	}

	p.mu.Lock()
	if p.state == StateUploading || p.state == StatePolling {
		p.mu.Unlock()
		return fmt.Errorf("bulk import already in progress (job %s)", p.jobID)
	}
	p.state = StateUploading
	p.gen++
	gen := p.gen
	p.jobID = ""
	p.status = domain.JobStatus{}
	p.err = nil
	p.mu.Unlock()

	jobID, err := p.client.BulkUpload(ctx, filename, content)

	p.mu.Lock()
	if p.state != StateUploading || p.gen != gen {
		// Cancelled (or superseded) while the upload was in flight: drop the
		// job id and never start polling.
		p.mu.Unlock()
		return fmt.Errorf("bulk import cancelled during upload")
	}
	if err != nil {
		p.state = StateFailed
		p.err = err
		p.mu.Unlock()
		return err
	}
	p.jobID = jobID
	p.state = StatePolling
	stopCh := make(chan struct{})
	var once sync.Once
	p.stop = func() { once.Do(func() { close(stopCh) }) }
	p.mu.Unlock()

	p.logger.Info("bulk import started", "job", jobID)
	go p.pollLoop(ctx, jobID, stopCh)
	return nil
}

// pollLoop owns the ticker. It exits on cancellation or on the first
// terminal status, releasing the timer either way.
func (p *Poller) pollLoop(ctx context.Context, jobID string, stopCh <-chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			p.fail(jobID, ctx.Err())
			return
		case <-ticker.C:
			status, err := p.client.JobStatus(ctx, jobID)
			if err != nil {
				p.fail(jobID, err)
				return
			}
			if p.advance(jobID, status) {
				return
			}
		}
	}
}

// advance applies one status fetch. Returns true when the job reached a
// terminal state and polling must stop.
func (p *Poller) advance(jobID string, status domain.JobStatus) bool {
	p.mu.Lock()
	if p.state != StatePolling || p.jobID != jobID {
		// Cancelled (or superseded) while the fetch was in flight; drop it.
		p.mu.Unlock()
		return true
	}
	p.status = status
	if !status.State.Terminal() {
		p.mu.Unlock()
		return false
	}
	p.releaseLocked()

	if status.State == domain.JobFailed {
		p.state = StateFailed
		p.err = domain.JobFailedError{JobID: jobID, Rows: status.Errors}
		p.mu.Unlock()
		p.logger.Warn("bulk import failed", "job", jobID, "row_errors", len(status.Errors))
		return true
	}

	p.state = StateCompleted
	p.mu.Unlock()
	p.logger.Info("bulk import completed", "job", jobID, "processed", status.Processed)

	// Full invalidation then repopulation; incremental merge is never correct
	// here because the import may have rewritten most of the record set.
	p.store.Clear()
	if p.refresher != nil {
		if err := p.refresher.Refresh(context.Background()); err != nil {
			p.logger.Warn("repopulation after bulk import failed", "job", jobID, "error", err)
		}
	}
	return true
}

func (p *Poller) fail(jobID string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StatePolling || p.jobID != jobID {
		return
	}
	p.releaseLocked()
	p.state = StateFailed
	p.err = err
	p.logger.Warn("bulk import polling failed", "job", jobID, "error", err)
}

// releaseLocked stops the poll loop and forgets the timer handle. Callers
// hold p.mu.
func (p *Poller) releaseLocked() {
	if p.stop != nil {
		p.stop()
		p.stop = nil
	}
}

// Cancel stops any in-flight job and returns the poller to idle. Safe to
// call from any state, any number of times; partial results are never
// applied. Also used for component teardown.
func (p *Poller) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.releaseLocked()
	if p.state == StateUploading || p.state == StatePolling {
		p.state = StateIdle
		p.jobID = ""
		p.status = domain.JobStatus{}
		p.err = nil
	}
}

// Status returns the current progress snapshot.
func (p *Poller) Status() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{State: p.state, JobID: p.jobID, Status: p.status, Err: p.err}
}
