// session_test drives the per-connection lifecycle end to end against
// a fake transport and a stubbed extractor, with a real file-backed
// history store.
package session_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/reelgrab/reelgrab/internal/extractor"
	"github.com/reelgrab/reelgrab/internal/history"
	"github.com/reelgrab/reelgrab/internal/media"
	"github.com/reelgrab/reelgrab/internal/session"
	"github.com/reelgrab/reelgrab/pkg/logger"
	"github.com/stretchr/testify/assert"
)

func init() {
	logger.SetMinLoggingLevel(logger.FATAL.Level())
}

// fakeConnection is an in-memory session transport. Payloads pushed on
// to 'payloads' arrive via ReadText; closing the connection (by the
// session, or via drop() to simulate a client disconnect) unblocks any
// pending read with an error.
type fakeConnection struct {
	mu       sync.Mutex
	payloads chan string
	dropped  chan struct{}
	dropOnce sync.Once
	frames   []session.Event
}

func newFakeConnection() *fakeConnection {
	return &fakeConnection{
		payloads: make(chan string, 4),
		dropped:  make(chan struct{}),
	}
}

func (conn *fakeConnection) ReadText() (string, error) {
	select {
	case payload := <-conn.payloads:
		return payload, nil
	case <-conn.dropped:
		return "", errors.New("connection dropped")
	}
}

func (conn *fakeConnection) WriteEvent(event session.Event) error {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	conn.frames = append(conn.frames, event)
	return nil
}

func (conn *fakeConnection) Close() error {
	conn.drop()
	return nil
}

func (conn *fakeConnection) drop() {
	conn.dropOnce.Do(func() { close(conn.dropped) })
}

func (conn *fakeConnection) receivedFrames() []session.Event {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	out := make([]session.Event, len(conn.frames))
	copy(out, conn.frames)
	return out
}

// stubExtractor implements extractor.Extractor with canned behaviour.
type stubExtractor struct {
	record   *media.MediaRecord
	err      error
	progress []extractor.Progress
	blocking bool

	mu       sync.Mutex
	seenURLs []string
}

func (stub *stubExtractor) Resolve(ctx context.Context, url string, mode extractor.Mode, sink extractor.ProgressSink) (*media.MediaRecord, error) {
	stub.mu.Lock()
	stub.seenURLs = append(stub.seenURLs, url)
	stub.mu.Unlock()

	for _, progress := range stub.progress {
		if sink != nil {
			sink(progress)
		}
	}

	if stub.blocking {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if stub.err != nil {
		return nil, stub.err
	}

	record := *stub.record
	return &record, nil
}

func newHistoryStore(t *testing.T) *history.Store {
	store, err := history.New(filepath.Join(t.TempDir(), "videos_info.json"), history.DefaultCapacity)
	assert.Nil(t, err)
	return store
}

// runSession starts the session in its own goroutine and returns a
// wait function which blocks until the lifecycle has fully completed.
func runSession(t *testing.T, conn *fakeConnection, stub *stubExtractor, store *history.Store, config session.Config) func() {
	sess := session.New(conn, stub, store, config)

	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		sess.Run(context.Background())
	}()

	return func() {
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second * 5):
			t.Fatal("session did not reach its terminal state in time")
		}
	}
}

func Test_Session_SuccessfulDownloadEmitsProgressThenComplete(t *testing.T) {
	t.Parallel()
	conn := newFakeConnection()
	store := newHistoryStore(t)
	stub := &stubExtractor{
		record:   &media.MediaRecord{ID: "v1", Title: "T1", Author: media.UnknownAuthor, Duration: 10},
		progress: []extractor.Progress{{Percentage: 50}},
	}

	wait := runSession(t, conn, stub, store, session.Config{Mode: extractor.FetchArtifact})
	conn.payloads <- "u1"
	wait()

	frames := conn.receivedFrames()
	assert.Len(t, frames, 2)
	assert.Equal(t, session.StatusDownloading, frames[0].Status)
	assert.Equal(t, float64(50), frames[0].Percentage)
	assert.Equal(t, session.StatusComplete, frames[1].Status)
	assert.Equal(t, "v1", frames[1].Record.ID)
	assert.False(t, frames[1].Record.CreatedAt.IsZero(), "finalised record should carry a timestamp")

	assert.Equal(t, 1, store.Len())
	stored, found := store.Get("v1")
	assert.True(t, found)
	assert.Equal(t, "T1", stored.Title)
}

func Test_Session_ExtractionFailureEmitsTerminalError(t *testing.T) {
	t.Parallel()
	conn := newFakeConnection()
	store := newHistoryStore(t)
	stub := &stubExtractor{err: &extractor.ExtractionError{Reason: "no formats"}}

	wait := runSession(t, conn, stub, store, session.Config{Mode: extractor.MetadataOnly})
	conn.payloads <- "bad"
	wait()

	frames := conn.receivedFrames()
	assert.Len(t, frames, 1)
	assert.Equal(t, session.StatusError, frames[0].Status)
	assert.Equal(t, "no formats", frames[0].Message)

	assert.Equal(t, 0, store.Len(), "a failed operation must not touch the store")
}

func Test_Session_PercentEncodedURLIsDecodedBeforeResolution(t *testing.T) {
	t.Parallel()
	conn := newFakeConnection()
	store := newHistoryStore(t)
	stub := &stubExtractor{record: &media.MediaRecord{ID: "v1", Title: "T1"}}

	wait := runSession(t, conn, stub, store, session.Config{Mode: extractor.MetadataOnly})
	conn.payloads <- "https%3A%2F%2Fexample.com%2Fwatch%3Fv%3D1%20"
	wait()

	assert.Equal(t, []string{"https://example.com/watch?v=1"}, stub.seenURLs)
}

func Test_Session_EmptyURLPayloadIsRejected(t *testing.T) {
	t.Parallel()
	conn := newFakeConnection()
	store := newHistoryStore(t)
	stub := &stubExtractor{}

	wait := runSession(t, conn, stub, store, session.Config{})
	conn.payloads <- "%20%20"
	wait()

	frames := conn.receivedFrames()
	assert.Len(t, frames, 1)
	assert.Equal(t, session.StatusError, frames[0].Status)
	assert.Empty(t, stub.seenURLs, "extractor should never be invoked for an empty URL")
}

func Test_Session_SecondPayloadRejectedAndOperationAbandoned(t *testing.T) {
	t.Parallel()
	conn := newFakeConnection()
	store := newHistoryStore(t)
	stub := &stubExtractor{blocking: true}

	wait := runSession(t, conn, stub, store, session.Config{Mode: extractor.FetchArtifact})
	conn.payloads <- "u1"
	conn.payloads <- "u2"
	wait()

	frames := conn.receivedFrames()
	assert.Len(t, frames, 1)
	assert.Equal(t, session.StatusError, frames[0].Status)
	assert.Equal(t, 0, store.Len(), "an abandoned operation must not be finalised")
}

func Test_Session_DisconnectMidResolutionDiscardsResult(t *testing.T) {
	t.Parallel()
	conn := newFakeConnection()
	store := newHistoryStore(t)
	stub := &stubExtractor{blocking: true}

	wait := runSession(t, conn, stub, store, session.Config{Mode: extractor.FetchArtifact})
	conn.payloads <- "u1"

	// Give the session a moment to enter resolution, then drop the
	// client.
	time.Sleep(time.Millisecond * 50)
	conn.drop()
	wait()

	assert.Empty(t, conn.receivedFrames(), "nothing should be emitted after a disconnect")
	assert.Equal(t, 0, store.Len())
}

func Test_Session_ResolutionTimeoutSurfacesAsTimeoutError(t *testing.T) {
	t.Parallel()
	conn := newFakeConnection()
	store := newHistoryStore(t)
	stub := &stubExtractor{blocking: true}

	wait := runSession(t, conn, stub, store, session.Config{
		Mode:           extractor.MetadataOnly,
		ResolveTimeout: time.Millisecond * 50,
	})
	conn.payloads <- "u1"
	wait()

	frames := conn.receivedFrames()
	assert.Len(t, frames, 1)
	assert.Equal(t, session.StatusError, frames[0].Status)
	assert.Equal(t, "timeout", frames[0].Message)
	assert.Equal(t, 0, store.Len())
}

func Test_Session_FinishedProgressMapsToFinishedFrame(t *testing.T) {
	t.Parallel()
	conn := newFakeConnection()
	store := newHistoryStore(t)
	stub := &stubExtractor{
		record: &media.MediaRecord{ID: "v9", Title: "T9"},
		progress: []extractor.Progress{
			{Percentage: 100},
			{Finished: true},
		},
	}

	wait := runSession(t, conn, stub, store, session.Config{Mode: extractor.FetchArtifact})
	conn.payloads <- "u9"
	wait()

	frames := conn.receivedFrames()
	assert.Len(t, frames, 3)
	assert.Equal(t, session.StatusDownloading, frames[0].Status)
	assert.Equal(t, session.StatusFinished, frames[1].Status)
	assert.Equal(t, session.StatusComplete, frames[2].Status)
}
