// Package session implements the per-connection operation lifecycle:
// one URL accepted per connection, progress relayed back in order, and
// the terminal result reconciled in to the history store. Every path -
// success, extractor failure, or client disconnect at any point - ends
// with the connection released.
package session

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/reelgrab/reelgrab/internal/extractor"
	"github.com/reelgrab/reelgrab/internal/media"
	"github.com/reelgrab/reelgrab/pkg/logger"
)

var log = logger.Get("Session")

type (
	// Connection is the transport for a single session. Satisfied by
	// the websocket wrapper in the API layer; faked in tests.
	Connection interface {
		// ReadText blocks until the client sends a text payload, or
		// returns an error once the connection drops.
		ReadText() (string, error)
		WriteEvent(Event) error
		Close() error
	}

	recordStore interface {
		Append(media.MediaRecord) error
	}

	// Config tunes a session's single operation.
	Config struct {
		Mode extractor.Mode

		// ResolveTimeout bounds how long the extractor may run before
		// the operation fails with an extraction timeout. Zero means
		// no bound.
		ResolveTimeout time.Duration
	}

	// Session coordinates one connection and its single operation.
	Session struct {
		id        uuid.UUID
		conn      Connection
		relay     *Relay
		extractor extractor.Extractor
		store     recordStore
		config    Config
	}

	resolveResult struct {
		record *media.MediaRecord
		err    error
	}
)

const errUnexpectedFailure = "media resolution failed unexpectedly"

func New(conn Connection, ex extractor.Extractor, store recordStore, config Config) *Session {
	return &Session{
		id:        uuid.New(),
		conn:      conn,
		relay:     NewRelay(DefaultRelayCapacity),
		extractor: ex,
		store:     store,
		config:    config,
	}
}

func (session *Session) ID() uuid.UUID { return session.id }

// Run drives the session to completion and does not return until the
// connection has been released. The lifecycle is:
// await URL -> resolving -> finalising -> closed, with errors from any
// stage converted to a best-effort terminal error frame. Cancelling the
// provided context tears the session down.
func (session *Session) Run(ctx context.Context) {
	done := make(chan struct{})
	defer func() {
		close(done)
		session.relay.Close()
		session.conn.Close()
		log.Emit(logger.REMOVE, "Session {%v} closed\n", session.id)
	}()

	reads := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		for {
			payload, err := session.conn.ReadText()
			if err != nil {
				readErr <- err
				return
			}

			select {
			case reads <- payload:
			case <-done:
				return
			}
		}
	}()

	// Await the single URL payload for this session.
	var sourceURL string
	select {
	case <-ctx.Done():
		return
	case <-readErr:
		return
	case payload := <-reads:
		decoded, err := decodeURLPayload(payload)
		if err != nil {
			session.deliver(Errored(err.Error()))
			return
		}
		sourceURL = decoded
	}

	log.Emit(logger.INFO, "Session {%v} resolving '%s' (%s mode)\n", session.id, sourceURL, session.config.Mode)

	resolveCtx, cancelResolve := session.resolveContext(ctx)
	defer cancelResolve()

	results := make(chan resolveResult, 1)
	go func() {
		record, err := session.extractor.Resolve(resolveCtx, sourceURL, session.config.Mode, session.progressSink())
		results <- resolveResult{record, err}
	}()

	for {
		select {
		case event := <-session.relay.Events():
			session.deliver(event)

		case <-reads:
			// One operation per connection: a second payload is
			// rejected, and the in-flight extraction is abandoned.
			cancelResolve()
			<-results
			session.deliver(Errored("a request is already in progress on this connection"))
			return

		case <-readErr:
			// Client dropped mid-resolution. Drive the extraction to
			// abandonment and discard its result; nothing to emit.
			cancelResolve()
			<-results
			log.Emit(logger.INFO, "Session {%v} client disconnected during resolution, result discarded\n", session.id)
			return

		case <-ctx.Done():
			cancelResolve()
			<-results
			return

		case result := <-results:
			// The extractor has stopped emitting, so anything still
			// buffered can be flushed ahead of the terminal frame
			// without breaking emission order.
			session.drainRelay()
			session.finalise(sourceURL, result)
			return
		}
	}
}

// finalise converts the extraction result in to the terminal frame,
// persisting successful results to the history store first.
func (session *Session) finalise(sourceURL string, result resolveResult) {
	if result.err != nil {
		if errors.Is(result.err, context.Canceled) {
			return
		}

		var extractionErr *extractor.ExtractionError
		message := errUnexpectedFailure
		if errors.As(result.err, &extractionErr) {
			message = extractionErr.Reason
		} else if errors.Is(result.err, context.DeadlineExceeded) {
			message = "timeout"
		}

		log.Emit(logger.ERROR, "Session {%v} failed to resolve '%s': %v\n", session.id, sourceURL, result.err)
		session.deliver(Errored(message))
		return
	}

	record := *result.record
	record.CreatedAt = time.Now().UTC()
	if err := session.store.Append(record); err != nil {
		// Best-effort persistence: the client still gets its result.
		log.Emit(logger.WARNING, "Session {%v} could not persist record %s: %v\n", session.id, record.ID, err)
	}

	log.Emit(logger.SUCCESS, "Session {%v} finalised record %s ('%s')\n", session.id, record.ID, record.Title)
	session.deliver(Complete(&record))
}

// progressSink bridges the extractor's worker context back in to this
// session via the relay; the session goroutine is the only reader.
func (session *Session) progressSink() extractor.ProgressSink {
	return func(progress extractor.Progress) {
		if progress.Finished {
			session.relay.Emit(Finished())
			return
		}
		session.relay.Emit(Downloading(progress.Percentage, progress.Speed, progress.Eta))
	}
}

func (session *Session) resolveContext(parent context.Context) (context.Context, context.CancelFunc) {
	if session.config.ResolveTimeout > 0 {
		return context.WithTimeout(parent, session.config.ResolveTimeout)
	}
	return context.WithCancel(parent)
}

// deliver writes an event to the client on a best-effort basis; a
// failed write is swallowed as teardown follows regardless.
func (session *Session) deliver(event Event) {
	if err := session.conn.WriteEvent(event); err != nil {
		log.Emit(logger.VERBOSE, "Session {%v} dropped %s event: %v\n", session.id, event.Status, err)
	}
}

// drainRelay flushes any buffered, undelivered events.
func (session *Session) drainRelay() {
	for {
		select {
		case event := <-session.relay.Events():
			session.deliver(event)
		default:
			return
		}
	}
}

// decodeURLPayload percent-decodes and trims the raw payload the
// client sent, rejecting payloads which decode to nothing.
func decodeURLPayload(payload string) (string, error) {
	decoded, err := url.PathUnescape(payload)
	if err != nil {
		return "", errors.New("received a malformed URL payload")
	}

	decoded = strings.TrimSpace(decoded)
	if decoded == "" {
		return "", errors.New("received an empty URL")
	}

	return decoded, nil
}
