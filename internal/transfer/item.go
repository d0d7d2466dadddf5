// Package transfer implements the client's concurrent download engine:
// a bounded scheduler with FIFO promotion and resumable range-based
// workers that decrypt protected content on completion.
package transfer

import (
	"context"
	"time"
)

// Status is a transfer's lifecycle state.
type Status string

const (
	StatusPending     Status = "pending"
	StatusDownloading Status = "downloading"
	StatusPaused      Status = "paused"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
)

// Terminal reports whether the state admits no further transitions except
// Retry (failed only).
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Request describes one download.
type Request struct {
	// ID is assigned by the scheduler when empty.
	ID string

	// URL is the content source, typically a presigned GET URL.
	URL string

	// Dest is the final path of the materialized file. The engine stages
	// bytes in Dest + ".part" until the transfer completes.
	Dest string

	// Size is the expected total size when known, 0 otherwise.
	Size int64

	// Encrypted content is decrypted with Passphrase once fully fetched.
	Encrypted  bool
	Passphrase []byte

	// Priority orders the pending queue: higher starts first, FIFO within
	// the same priority. Zero is the default class.
	Priority int

	// Name is a human-readable label for listings.
	Name string
}

// Progress is an externally visible snapshot of one transfer.
type Progress struct {
	ID         string
	Name       string
	Status     Status
	BytesDone  int64
	TotalBytes int64

	// Speed is a moving average in bytes per second; ETA derives from it.
	// Both are zero until enough samples accumulate.
	Speed float64
	ETA   time.Duration

	// StartedAt is when the transfer first entered downloading; CompletedAt
	// is when it reached a terminal state. Zero until then.
	StartedAt   time.Time
	CompletedAt time.Time

	Err error
}

// speedWindow holds the last few chunk timings for the moving average.
const speedWindow = 10

type sample struct {
	bytes   int64
	elapsed time.Duration
}

// item is the scheduler-internal state of one transfer. All fields are
// guarded by the scheduler mutex except those only touched by the owning
// worker between transitions.
type item struct {
	req    Request
	status Status
	err    error

	// retryCount tracks explicit Retry calls; the worker's own backoff
	// budget is separate.
	retryCount int

	startedAt   time.Time
	completedAt time.Time

	bytesDone  int64
	totalBytes int64

	// reportedBytes enforces monotone progress callbacks.
	reportedBytes int64
	lastNotify    time.Time

	samples []sample

	// Set while a worker runs; cancelling it stops the worker. The two
	// flags tell the finishing worker whether the cancellation was a pause
	// or a cancel.
	cancel          context.CancelFunc
	pauseRequested  bool
	cancelRequested bool
}

func (it *item) snapshot() Progress {
	var speed float64
	var eta time.Duration

	var sumBytes int64
	var sumElapsed time.Duration
	for _, s := range it.samples {
		sumBytes += s.bytes
		sumElapsed += s.elapsed
	}
	if sumElapsed > 0 {
		speed = float64(sumBytes) / sumElapsed.Seconds()
		if speed > 0 && it.totalBytes > it.bytesDone {
			eta = time.Duration(float64(it.totalBytes-it.bytesDone) / speed * float64(time.Second))
		}
	}

	done := it.bytesDone
	if done < it.reportedBytes {
		done = it.reportedBytes
	}

	return Progress{
		ID:          it.req.ID,
		Name:        it.req.Name,
		Status:      it.status,
		BytesDone:   done,
		TotalBytes:  it.totalBytes,
		Speed:       speed,
		ETA:         eta,
		StartedAt:   it.startedAt,
		CompletedAt: it.completedAt,
		Err:         it.err,
	}
}

func (it *item) addSample(bytes int64, elapsed time.Duration) {
	it.samples = append(it.samples, sample{bytes: bytes, elapsed: elapsed})
	if len(it.samples) > speedWindow {
		it.samples = it.samples[len(it.samples)-speedWindow:]
	}
}
