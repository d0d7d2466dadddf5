package transfer

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/common"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/logging"
)

const (
	// DefaultMaxActive is the concurrency cap: at most this many transfers
	// download at once, the rest wait in FIFO order.
	DefaultMaxActive = 3

	DefaultMaxRetries = 3

	defaultHTTPTimeout = 25 * time.Second
)

// Options tune a Scheduler. Zero values take the defaults above.
type Options struct {
	MaxActive  int
	MaxRetries int

	// RetryBase is the first backoff delay; it doubles per attempt.
	RetryBase time.Duration

	// Client overrides the HTTP client, mostly for tests.
	Client *http.Client

	// OnProgress receives throttled progress snapshots plus every state
	// transition. Called without scheduler locks held.
	OnProgress func(Progress)
}

// Scheduler owns the set of transfers. Every state transition goes through
// its mutex, so observers always see a consistent picture and the
// concurrency cap is never exceeded.
type Scheduler struct {
	mu     sync.Mutex
	items  map[string]*item
	order  []string // submission order, for listings
	queue  []string // FIFO of pending ids
	active int

	maxActive  int
	maxRetries int
	retryBase  time.Duration
	client     *http.Client
	onProgress func(Progress)
	logger     logging.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewScheduler(opts Options, logger logging.Logger) *Scheduler {
	if opts.MaxActive <= 0 {
		opts.MaxActive = DefaultMaxActive
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = retryBaseDelay
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: defaultHTTPTimeout}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		items:      make(map[string]*item),
		maxActive:  opts.MaxActive,
		maxRetries: opts.MaxRetries,
		retryBase:  opts.RetryBase,
		client:     opts.Client,
		onProgress: opts.OnProgress,
		logger:     logger.With("module", "transfer"),
		baseCtx:    ctx,
		cancel:     cancel,
	}
}

// Submit enqueues a download and returns its id. A request whose destination
// already has a non-terminal transfer is a duplicate.
func (s *Scheduler) Submit(req Request) (string, error) {
	if req.URL == "" || req.Dest == "" {
		return "", fmt.Errorf("transfer: url and dest are required")
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	s.mu.Lock()
	for _, existing := range s.items {
		if existing.req.Dest == req.Dest && !existing.status.Terminal() {
			s.mu.Unlock()
			return "", fmt.Errorf("%w: %s", common.ErrDuplicateTransfer, req.Dest)
		}
	}
	if existing, ok := s.items[req.ID]; ok {
		if !existing.status.Terminal() {
			s.mu.Unlock()
			return "", fmt.Errorf("%w: id %s", common.ErrDuplicateTransfer, req.ID)
		}
		// A finished record does not block its id; the resubmit replaces it.
		delete(s.items, req.ID)
		s.removeFromOrderLocked(req.ID)
	}

	it := &item{req: req, status: StatusPending, totalBytes: req.Size}
	s.items[req.ID] = it
	s.order = append(s.order, req.ID)
	s.enqueueLocked(req.ID)
	s.promoteLocked()
	snap := it.snapshot()
	s.mu.Unlock()

	s.notify(snap)
	return req.ID, nil
}

// Pause stops a downloading transfer, keeping its partial bytes for resume.
// Pausing a transfer that is already paused or has finished is a no-op.
func (s *Scheduler) Pause(id string) error {
	s.mu.Lock()
	it, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return common.ErrNotFound
	}
	if it.status == StatusPaused || it.status.Terminal() {
		s.mu.Unlock()
		return nil
	}
	if it.status != StatusDownloading {
		s.mu.Unlock()
		return fmt.Errorf("transfer: cannot pause %s transfer", it.status)
	}
	it.pauseRequested = true
	cancel := it.cancel
	s.mu.Unlock()

	// The worker observes the cancellation and finishes as paused.
	cancel()
	return nil
}

// Resume re-enqueues a paused transfer. It joins the back of the FIFO queue
// and continues from the bytes already staged on disk.
func (s *Scheduler) Resume(id string) error {
	s.mu.Lock()
	it, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return common.ErrNotFound
	}
	if it.status != StatusPaused {
		s.mu.Unlock()
		return fmt.Errorf("transfer: cannot resume %s transfer", it.status)
	}
	it.status = StatusPending
	it.err = nil
	s.enqueueLocked(id)
	s.promoteLocked()
	snap := it.snapshot()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// Cancel terminates a transfer in any non-terminal state and discards its
// partial bytes.
func (s *Scheduler) Cancel(id string) error {
	s.mu.Lock()
	it, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return common.ErrNotFound
	}
	if it.status.Terminal() {
		s.mu.Unlock()
		return fmt.Errorf("transfer: cannot cancel %s transfer", it.status)
	}

	switch it.status {
	case StatusDownloading:
		it.cancelRequested = true
		cancel := it.cancel
		s.mu.Unlock()
		cancel()
		return nil
	default: // pending or paused
		it.status = StatusCancelled
		it.completedAt = time.Now()
		s.removeFromQueueLocked(id)
		snap := it.snapshot()
		s.mu.Unlock()

		discardPartFile(it.req.Dest)
		s.notify(snap)
		return nil
	}
}

// Retry re-enqueues a failed transfer at the back of the queue. Each
// transfer allows at most maxRetries explicit retries.
func (s *Scheduler) Retry(id string) error {
	s.mu.Lock()
	it, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return common.ErrNotFound
	}
	if it.status != StatusFailed {
		s.mu.Unlock()
		return fmt.Errorf("transfer: cannot retry %s transfer", it.status)
	}
	if it.retryCount >= s.maxRetries {
		s.mu.Unlock()
		return fmt.Errorf("%w: transfer %s", common.ErrMaxRetriesExceeded, id)
	}
	it.retryCount++
	it.status = StatusPending
	it.err = nil
	it.samples = nil
	it.completedAt = time.Time{}
	s.enqueueLocked(id)
	s.promoteLocked()
	snap := it.snapshot()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// Ack evicts a terminal transfer from memory once the caller has seen its
// outcome.
func (s *Scheduler) Ack(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return common.ErrNotFound
	}
	if !it.status.Terminal() {
		return fmt.Errorf("transfer: cannot dismiss %s transfer", it.status)
	}
	delete(s.items, id)
	s.removeFromOrderLocked(id)
	return nil
}

func (s *Scheduler) removeFromOrderLocked(id string) {
	for i, ordered := range s.order {
		if ordered == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

// Snapshot returns the current state of one transfer.
func (s *Scheduler) Snapshot(id string) (Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return Progress{}, common.ErrNotFound
	}
	return it.snapshot(), nil
}

// List returns all transfers in submission order.
func (s *Scheduler) List() []Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Progress, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id].snapshot())
	}
	return out
}

// Wait blocks until every worker goroutine has stopped. Queued transfers
// keep promoting while workers finish, so after Wait returns with no paused
// or failed items, everything submitted has completed.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Shutdown cancels all running workers and waits for them to stop.
func (s *Scheduler) Shutdown() {
	s.cancel()
	s.wg.Wait()
}

// promoteLocked starts queued transfers while slots are free. Caller holds
// the mutex.
func (s *Scheduler) promoteLocked() {
	for s.active < s.maxActive && len(s.queue) > 0 {
		id := s.queue[0]
		s.queue = s.queue[1:]

		it := s.items[id]
		if it.status != StatusPending {
			continue
		}

		ctx, cancel := context.WithCancel(s.baseCtx)
		it.status = StatusDownloading
		it.cancel = cancel
		it.pauseRequested = false
		it.cancelRequested = false
		if it.startedAt.IsZero() {
			it.startedAt = time.Now()
		}
		s.active++

		s.wg.Add(1)
		go s.runWorker(ctx, it)
	}
}

// enqueueLocked inserts id into the pending queue by priority, FIFO within
// the same class. Caller holds the mutex.
func (s *Scheduler) enqueueLocked(id string) {
	priority := s.items[id].req.Priority
	for i, queued := range s.queue {
		if s.items[queued].req.Priority < priority {
			s.queue = append(s.queue[:i], append([]string{id}, s.queue[i:]...)...)
			return
		}
	}
	s.queue = append(s.queue, id)
}

func (s *Scheduler) removeFromQueueLocked(id string) {
	for i, queued := range s.queue {
		if queued == id {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

// finishWorker records the worker's outcome and promotes the next queued
// transfer.
func (s *Scheduler) finishWorker(it *item, err error) {
	s.mu.Lock()
	it.cancel = nil
	s.active--

	switch {
	case it.cancelRequested:
		it.status = StatusCancelled
	case it.pauseRequested:
		it.status = StatusPaused
	case err != nil:
		it.status = StatusFailed
		it.err = err
	default:
		it.status = StatusCompleted
		it.err = nil
	}
	if it.status.Terminal() {
		it.completedAt = time.Now()
	}

	cancelled := it.status == StatusCancelled
	failed := it.status == StatusFailed
	snap := it.snapshot()
	s.promoteLocked()
	s.mu.Unlock()

	if cancelled {
		discardPartFile(it.req.Dest)
	}
	if failed {
		s.logger.Warn(context.Background(), "transfer failed",
			"id", it.req.ID, "dest", it.req.Dest, "error", err)
	}
	s.notify(snap)
}

func (s *Scheduler) notify(p Progress) {
	if s.onProgress != nil {
		s.onProgress(p)
	}
}
