package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/common"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/cryptox"
)

const (
	chunkSize = 32 * 1024

	// notifyInterval throttles progress callbacks during a download; state
	// transitions always notify regardless.
	notifyInterval = 100 * time.Millisecond

	retryBaseDelay = 500 * time.Millisecond
)

func partPath(dest string) string { return dest + ".part" }

func discardPartFile(dest string) { _ = os.Remove(partPath(dest)) }

// runWorker drives one transfer to a terminal state (or pause) and hands the
// outcome back to the scheduler.
func (s *Scheduler) runWorker(ctx context.Context, it *item) {
	defer s.wg.Done()

	err := s.download(ctx, it)
	if err == nil {
		err = s.finalize(it)
	}
	if ctx.Err() != nil {
		s.mu.Lock()
		interrupted := it.pauseRequested || it.cancelRequested
		s.mu.Unlock()
		if interrupted {
			// Pause/cancel interrupted the worker; the flags on the item
			// decide the final state, not the copy error.
			err = nil
		} else if err == nil {
			err = ctx.Err()
		}
	}
	s.finishWorker(it, err)
}

// download fetches the remaining bytes, retrying transient failures with
// exponential backoff. When retries run out the last transient error is
// wrapped in ErrMaxRetriesExceeded.
func (s *Scheduler) download(ctx context.Context, it *item) error {
	backoff := retry.WithMaxRetries(uint64(s.maxRetries), retry.NewExponential(s.retryBase))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := s.attempt(ctx, it)
		if err != nil && transient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil && transient(err) {
		return fmt.Errorf("%w: %w", common.ErrMaxRetriesExceeded, err)
	}
	return err
}

// attempt performs one GET, resuming from the staged part file when it has
// bytes. A server that ignores the Range header falls back to a full
// restart within the same response.
func (s *Scheduler) attempt(ctx context.Context, it *item) error {
	part := partPath(it.req.Dest)

	var offset int64
	if info, err := os.Stat(part); err == nil {
		offset = info.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, it.req.URL, nil)
	if err != nil {
		return err
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if timeout(err) {
			return fmt.Errorf("%w: %v", common.ErrNetworkTimeout, err)
		}
		return err
	}
	defer resp.Body.Close()

	switch {
	case offset > 0 && resp.StatusCode == http.StatusPartialContent:
		// resuming from offset
	case offset > 0 && resp.StatusCode == http.StatusOK:
		// Range ignored: the response carries the whole file, so restart
		// the staging file from zero.
		s.logger.Warn(ctx, "resume not honored, restarting",
			"id", it.req.ID, "error", common.ErrRangeUnsupported)
		offset = 0
	case resp.StatusCode == http.StatusOK:
	default:
		return &statusError{code: resp.StatusCode, status: resp.Status}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if offset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(part, flags, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	total := it.req.Size
	if total == 0 && resp.ContentLength > 0 {
		total = offset + resp.ContentLength
	}

	s.mu.Lock()
	it.bytesDone = offset
	it.totalBytes = total
	s.mu.Unlock()

	return s.copyChunks(ctx, it, f, resp.Body)
}

// copyChunks streams the body in fixed-size chunks, checking the context
// between chunks and feeding the speed window.
func (s *Scheduler) copyChunks(ctx context.Context, it *item, dst io.Writer, src io.Reader) error {
	buf := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return err
			}
			s.recordChunk(it, int64(n), time.Since(start))
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			if timeout(readErr) {
				return fmt.Errorf("%w: %v", common.ErrNetworkTimeout, readErr)
			}
			return readErr
		}
	}
}

func (s *Scheduler) recordChunk(it *item, n int64, elapsed time.Duration) {
	s.mu.Lock()
	it.bytesDone += n
	it.addSample(n, elapsed)

	now := time.Now()
	shouldNotify := now.Sub(it.lastNotify) >= notifyInterval
	var snap Progress
	if shouldNotify {
		it.lastNotify = now
		if it.bytesDone > it.reportedBytes {
			it.reportedBytes = it.bytesDone
		}
		snap = it.snapshot()
	}
	s.mu.Unlock()

	if shouldNotify {
		s.notify(snap)
	}
}

// finalize turns the fully staged part file into the destination file,
// decrypting first when the content is protected. Decryption failures are
// terminal: retrying the same bytes cannot help.
func (s *Scheduler) finalize(it *item) error {
	part := partPath(it.req.Dest)

	if !it.req.Encrypted {
		return os.Rename(part, it.req.Dest)
	}

	envelope, err := os.ReadFile(part)
	if err != nil {
		return err
	}
	plaintext, err := cryptox.Decrypt(envelope, it.req.Passphrase)
	if err != nil {
		discardPartFile(it.req.Dest)
		return err
	}
	if err := os.WriteFile(it.req.Dest, plaintext, 0o600); err != nil {
		return err
	}
	return os.Remove(part)
}

// statusError carries a non-success HTTP status. 5xx counts as transient,
// anything else is terminal.
type statusError struct {
	code   int
	status string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status: %s", e.status)
}

// transient reports whether the error is worth another attempt.
func transient(err error) bool {
	if errors.Is(err, common.ErrNetworkTimeout) {
		return true
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func timeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
