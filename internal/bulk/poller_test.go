package bulk_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"assetmirror/internal/bulk"
	"assetmirror/internal/remote"
	"assetmirror/internal/store"
	"assetmirror/internal/validation"
	"assetmirror/pkg/domain"
)

// jobClient serves a scripted sequence of job statuses.
type jobClient struct {
	mu          sync.Mutex
	uploadCalls int
	statusCalls int
	uploadErr   error
	uploadGate  chan struct{} // when set, BulkUpload blocks until closed
	statusErr   error
	statuses    []domain.JobStatus
}

func (c *jobClient) BulkUpload(ctx context.Context, filename string, content io.Reader) (string, error) {
	c.mu.Lock()
	c.uploadCalls++
	err := c.uploadErr
	gate := c.uploadGate
	c.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return "", err
	}
	return "job-1", nil
}

func (c *jobClient) JobStatus(ctx context.Context, jobID string) (domain.JobStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statusCalls++
	if c.statusErr != nil {
		return domain.JobStatus{}, c.statusErr
	}
	idx := c.statusCalls - 1
	if idx >= len(c.statuses) {
		idx = len(c.statuses) - 1
	}
	return c.statuses[idx], nil
}

func (c *jobClient) calls() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uploadCalls, c.statusCalls
}

// Unused Client methods.
func (c *jobClient) List(context.Context, remote.ListOptions) (remote.ListResult, error) {
	return remote.ListResult{}, errors.New("not implemented")
}
func (c *jobClient) Get(context.Context, int64) (domain.Asset, error) {
	return domain.Asset{}, errors.New("not implemented")
}
func (c *jobClient) Create(context.Context, domain.NewAssetInput) (domain.Asset, error) {
	return domain.Asset{}, errors.New("not implemented")
}
func (c *jobClient) Update(context.Context, int64, domain.AssetPatch) (domain.Asset, error) {
	return domain.Asset{}, errors.New("not implemented")
}
func (c *jobClient) Delete(context.Context, int64) error { return errors.New("not implemented") }

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func uploadBody() io.Reader { return strings.NewReader("identifier,name\nLAP-001,Laptop\n") }

func TestInvalidFileNeverReachesNetwork(t *testing.T) {
	client := &jobClient{}
	p := bulk.New(bulk.Config{Store: store.New(store.Config{}), Client: client, Interval: time.Millisecond})

	err := p.StartUpload(context.Background(), "assets.pdf", 100, uploadBody())
	var ve domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if uploads, _ := client.calls(); uploads != 0 {
		t.Fatal("invalid file must not be uploaded")
	}
	if got := p.Status().State; got != bulk.StateIdle {
		t.Fatalf("state %s, want idle", got)
	}

	if err := p.StartUpload(context.Background(), "assets.csv", validation.MaxUploadSize+1, uploadBody()); !errors.As(err, &ve) {
		t.Fatalf("oversized file should fail validation, got %v", err)
	}
}

func TestSuccessClearsThenRepopulates(t *testing.T) {
	st := store.New(store.Config{})
	st.UpsertMany([]domain.Asset{{ID: 1, Identifier: "STALE-1", Type: domain.TypeDevice, Active: true, Name: "stale"}})

	client := &jobClient{statuses: []domain.JobStatus{
		{JobID: "job-1", State: domain.JobProcessing, Total: 2, Processed: 1},
		{JobID: "job-1", State: domain.JobCompleted, Total: 2, Processed: 2, Succeeded: 2},
	}}

	var observedEmpty bool
	refresher := bulk.RefresherFunc(func(ctx context.Context) error {
		observedEmpty = st.Empty()
		st.UpsertMany([]domain.Asset{
			{ID: 10, Identifier: "NEW-10", Type: domain.TypeDevice, Active: true, Name: "new"},
			{ID: 11, Identifier: "NEW-11", Type: domain.TypePerson, Active: true, Name: "new"},
		})
		return nil
	})

	p := bulk.New(bulk.Config{Store: st, Client: client, Refresher: refresher, Interval: time.Millisecond})
	if err := p.StartUpload(context.Background(), "assets.csv", 100, uploadBody()); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Completion is published before repopulation finishes; wait for both.
	waitFor(t, time.Second, func() bool {
		return p.Status().State == bulk.StateCompleted && st.Len() == 2
	})

	if !observedEmpty {
		t.Fatal("store must be cleared before repopulation, not merged")
	}
	if st.Len() != 2 {
		t.Fatalf("expected repopulated store with 2 records, got %d", st.Len())
	}
	if _, ok := st.GetByIdentifier("STALE-1"); ok {
		t.Fatal("stale record survived full invalidation")
	}
	if snap := p.Status(); snap.Status.Succeeded != 2 {
		t.Fatalf("final status snapshot %+v", snap.Status)
	}
}

func TestTerminalFailureSurfacesRowErrors(t *testing.T) {
	st := store.New(store.Config{})
	st.UpsertOne(domain.Asset{ID: 1, Identifier: "KEEP-1", Type: domain.TypeDevice, Name: "keep"})

	client := &jobClient{statuses: []domain.JobStatus{
		{JobID: "job-1", State: domain.JobFailed, Errors: []domain.RowError{{Row: 3, Message: "duplicate identifier"}}},
	}}
	p := bulk.New(bulk.Config{Store: st, Client: client, Interval: time.Millisecond})
	if err := p.StartUpload(context.Background(), "assets.csv", 100, uploadBody()); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, time.Second, func() bool { return p.Status().State == bulk.StateFailed })

	var jf domain.JobFailedError
	if snap := p.Status(); !errors.As(snap.Err, &jf) || len(jf.Rows) != 1 {
		t.Fatalf("expected JobFailedError with one row, got %v", p.Status().Err)
	}
	if st.Len() != 1 {
		t.Fatal("failed import must leave the cache untouched")
	}
}

func TestPollErrorFailsJob(t *testing.T) {
	client := &jobClient{statusErr: domain.TransportError{Op: "job status", Status: 503}}
	p := bulk.New(bulk.Config{Store: store.New(store.Config{}), Client: client, Interval: time.Millisecond})
	if err := p.StartUpload(context.Background(), "assets.csv", 100, uploadBody()); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, time.Second, func() bool { return p.Status().State == bulk.StateFailed })

	var te domain.TransportError
	if !errors.As(p.Status().Err, &te) {
		t.Fatalf("expected TransportError, got %v", p.Status().Err)
	}
}

func TestCancelStopsPolling(t *testing.T) {
	client := &jobClient{statuses: []domain.JobStatus{
		{JobID: "job-1", State: domain.JobProcessing},
	}}
	p := bulk.New(bulk.Config{Store: store.New(store.Config{}), Client: client, Interval: 2 * time.Millisecond})
	if err := p.StartUpload(context.Background(), "assets.csv", 100, uploadBody()); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, time.Second, func() bool { _, n := client.calls(); return n >= 1 })
	p.Cancel()
	if got := p.Status().State; got != bulk.StateIdle {
		t.Fatalf("state %s after cancel, want idle", got)
	}

	_, before := client.calls()
	time.Sleep(30 * time.Millisecond)
	_, after := client.calls()
	if after > before+1 {
		// At most one fetch already in flight when cancel landed.
		t.Fatalf("polling continued after cancel: %d -> %d", before, after)
	}

	// Cancel is idempotent from any state.
	p.Cancel()
	p.Cancel()
	if got := p.Status().State; got != bulk.StateIdle {
		t.Fatalf("state %s after repeated cancel", got)
	}
}

func TestCancelDuringUploadPreventsPolling(t *testing.T) {
	gate := make(chan struct{})
	client := &jobClient{uploadGate: gate, statuses: []domain.JobStatus{
		{JobID: "job-1", State: domain.JobProcessing},
	}}
	p := bulk.New(bulk.Config{Store: store.New(store.Config{}), Client: client, Interval: time.Millisecond})

	errCh := make(chan error, 1)
	go func() {
		errCh <- p.StartUpload(context.Background(), "assets.csv", 100, uploadBody())
	}()
	waitFor(t, time.Second, func() bool { uploads, _ := client.calls(); return uploads == 1 })

	// Cancel lands while the upload request is still in flight.
	p.Cancel()
	close(gate)

	if err := <-errCh; err == nil {
		t.Fatal("upload cancelled mid-flight must not report success")
	}
	if got := p.Status().State; got != bulk.StateIdle {
		t.Fatalf("state %s after cancelled upload, want idle", got)
	}
	if got := p.Status().JobID; got != "" {
		t.Fatalf("job id %q retained after cancellation", got)
	}
	time.Sleep(30 * time.Millisecond)
	if _, statuses := client.calls(); statuses != 0 {
		t.Fatalf("polling started despite cancellation during upload: %d status fetches", statuses)
	}
}

func TestSecondUploadWhileActiveRejected(t *testing.T) {
	client := &jobClient{statuses: []domain.JobStatus{{JobID: "job-1", State: domain.JobPending}}}
	p := bulk.New(bulk.Config{Store: store.New(store.Config{}), Client: client, Interval: time.Millisecond})
	if err := p.StartUpload(context.Background(), "assets.csv", 100, uploadBody()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.Cancel()

	if err := p.StartUpload(context.Background(), "more.csv", 100, uploadBody()); err == nil {
		t.Fatal("second upload while polling must be rejected")
	}
}

func TestCancelAfterCompletionIsNoOp(t *testing.T) {
	client := &jobClient{statuses: []domain.JobStatus{{JobID: "job-1", State: domain.JobCompleted}}}
	p := bulk.New(bulk.Config{Store: store.New(store.Config{}), Client: client, Interval: time.Millisecond})
	if err := p.StartUpload(context.Background(), "assets.csv", 100, uploadBody()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, time.Second, func() bool { return p.Status().State == bulk.StateCompleted })

	p.Cancel()
	if got := p.Status().State; got != bulk.StateCompleted {
		t.Fatalf("cancel after completion should not reset state, got %s", got)
	}
}
