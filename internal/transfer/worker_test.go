package transfer

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/common"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/cryptox"
)

// rangeHandler serves content honoring single-sided Range headers, the way a
// presigned object store does.
func rangeHandler(content []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset := 0
		if h := r.Header.Get("Range"); h != "" {
			v := strings.TrimSuffix(strings.TrimPrefix(h, "bytes="), "-")
			offset, _ = strconv.Atoi(v)
			w.Header().Set("Content-Range",
				fmt.Sprintf("bytes %d-%d/%d", offset, len(content)-1, len(content)))
			w.WriteHeader(http.StatusPartialContent)
		}
		_, _ = w.Write(content[offset:])
	}
}

func TestPauseResume_ResumesFromOffset(t *testing.T) {
	content := bytes.Repeat([]byte("abcdefgh"), 16*1024) // 128 KiB

	var rangeRequests atomic.Int32
	firstHalfSent := make(chan struct{})
	gate := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") != "" {
			rangeRequests.Add(1)
			rangeHandler(content)(w, r)
			return
		}
		// First request: send half, then stall until paused.
		_, _ = w.Write(content[:len(content)/2])
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		close(firstHalfSent)
		select {
		case <-gate:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	s := newTestScheduler(t, Options{})
	dest := filepath.Join(t.TempDir(), "resumable")

	id, err := s.Submit(Request{URL: srv.URL, Dest: dest, Size: int64(len(content))})
	require.NoError(t, err)

	<-firstHalfSent
	waitFor(t, func() bool {
		p, _ := s.Snapshot(id)
		return p.BytesDone >= int64(len(content)/2)
	}, "first half to arrive")

	require.NoError(t, s.Pause(id))
	waitFor(t, func() bool {
		p, _ := s.Snapshot(id)
		return p.Status == StatusPaused
	}, "pause to land")
	close(gate)

	info, err := os.Stat(dest + ".part")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, info.Size(), int64(len(content)/2), "partial bytes survive the pause")

	require.NoError(t, s.Resume(id))
	s.Wait()

	p, err := s.Snapshot(id)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, p.Status)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, content, got, "resumed bytes join the staged ones exactly")
	assert.Equal(t, int32(1), rangeRequests.Load(), "resume uses a range request")

	err = s.Pause(id)
	assert.Error(t, err, "completed is terminal")
}

func TestResume_RangeIgnoredRestartsFromZero(t *testing.T) {
	content := []byte("the whole payload, served without range support")

	var sawRange atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") != "" {
			sawRange.Store(true)
		}
		// Always 200 with the full body, Range or not.
		_, _ = w.Write(content)
	}))
	defer srv.Close()

	s := newTestScheduler(t, Options{})
	dest := filepath.Join(t.TempDir(), "norange")

	// Stale partial bytes from an earlier attempt.
	require.NoError(t, os.WriteFile(dest+".part", []byte("stale-partial-data"), 0o600))

	_, err := s.Submit(Request{URL: srv.URL, Dest: dest})
	require.NoError(t, err)
	s.Wait()

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, content, got, "fallback truncates the stale bytes")
	assert.True(t, sawRange.Load(), "resume attempt asked for a range first")
}

func TestRetry_TransientServerErrors(t *testing.T) {
	content := []byte("eventually available")

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(content)
	}))
	defer srv.Close()

	s := newTestScheduler(t, Options{MaxRetries: 3})
	dest := filepath.Join(t.TempDir(), "flaky")

	id, err := s.Submit(Request{URL: srv.URL, Dest: dest})
	require.NoError(t, err)
	s.Wait()

	p, err := s.Snapshot(id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, p.Status)
	assert.Equal(t, int32(3), requests.Load())
}

func TestRetry_ExhaustionThenManualRetry(t *testing.T) {
	content := []byte("fixed now")

	var healthy atomic.Bool
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if !healthy.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write(content)
	}))
	defer srv.Close()

	s := newTestScheduler(t, Options{MaxRetries: 2})
	dest := filepath.Join(t.TempDir(), "broken")

	id, err := s.Submit(Request{URL: srv.URL, Dest: dest})
	require.NoError(t, err)
	s.Wait()

	p, err := s.Snapshot(id)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, p.Status)
	assert.ErrorIs(t, p.Err, common.ErrMaxRetriesExceeded)
	assert.Equal(t, int32(3), requests.Load(), "initial attempt plus two retries")

	// failed -> pending: manual retry starts a fresh attempt budget.
	healthy.Store(true)
	require.NoError(t, s.Retry(id))
	s.Wait()

	p, err = s.Snapshot(id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, p.Status)
}

func TestClientErrorIsTerminal(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s := newTestScheduler(t, Options{MaxRetries: 3})
	id, err := s.Submit(Request{URL: srv.URL, Dest: filepath.Join(t.TempDir(), "denied")})
	require.NoError(t, err)
	s.Wait()

	p, err := s.Snapshot(id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, p.Status)
	assert.NotErrorIs(t, p.Err, common.ErrMaxRetriesExceeded)
	assert.Equal(t, int32(1), requests.Load(), "4xx is not retried")
}

func TestNetworkTimeoutClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	s := newTestScheduler(t, Options{
		MaxRetries: 1,
		Client:     &http.Client{Timeout: 20 * time.Millisecond},
	})
	id, err := s.Submit(Request{URL: srv.URL, Dest: filepath.Join(t.TempDir(), "slow")})
	require.NoError(t, err)
	s.Wait()

	p, err := s.Snapshot(id)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, p.Status)
	assert.ErrorIs(t, p.Err, common.ErrMaxRetriesExceeded)
	assert.ErrorIs(t, p.Err, common.ErrNetworkTimeout)
}

func TestDecryptOnComplete(t *testing.T) {
	plaintext := []byte("secret file body")
	passphrase := []byte("correct horse")

	envelope, err := cryptox.Encrypt(plaintext, passphrase)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(envelope)
	}))
	defer srv.Close()

	s := newTestScheduler(t, Options{})
	dest := filepath.Join(t.TempDir(), "decrypted")

	id, err := s.Submit(Request{
		URL:        srv.URL,
		Dest:       dest,
		Encrypted:  true,
		Passphrase: passphrase,
	})
	require.NoError(t, err)
	s.Wait()

	p, err := s.Snapshot(id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, p.Status)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)

	_, err = os.Stat(dest + ".part")
	assert.True(t, os.IsNotExist(err), "staging file is cleaned up")
}

func TestDecryptFailureIsTerminal(t *testing.T) {
	envelope, err := cryptox.Encrypt([]byte("secret file body"), []byte("right"))
	require.NoError(t, err)

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		_, _ = w.Write(envelope)
	}))
	defer srv.Close()

	s := newTestScheduler(t, Options{MaxRetries: 3})
	dest := filepath.Join(t.TempDir(), "undecryptable")

	id, err := s.Submit(Request{
		URL:        srv.URL,
		Dest:       dest,
		Encrypted:  true,
		Passphrase: []byte("wrong"),
	})
	require.NoError(t, err)
	s.Wait()

	p, err := s.Snapshot(id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, p.Status)
	assert.ErrorIs(t, p.Err, common.ErrDecryption)
	assert.Equal(t, int32(1), requests.Load(), "bad key is not a network problem")

	_, err = os.Stat(dest)
	assert.True(t, os.IsNotExist(err), "no plaintext is materialized")
}
