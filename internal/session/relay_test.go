package session_test

import (
	"testing"
	"time"

	"github.com/reelgrab/reelgrab/internal/media"
	"github.com/reelgrab/reelgrab/internal/session"
	"github.com/stretchr/testify/assert"
)

func Test_Relay_DeliversEventsInEmissionOrder(t *testing.T) {
	t.Parallel()
	relay := session.NewRelay(8)

	record := &media.MediaRecord{ID: "r"}
	emitted := []session.Event{
		session.Downloading(10, "1.0MB/s", "00:30"),
		session.Downloading(50, "1.2MB/s", "00:10"),
		session.Finished(),
		session.Complete(record),
	}
	for _, event := range emitted {
		relay.Emit(event)
	}
	relay.Close()

	received := make([]session.Event, 0, len(emitted))
	for event := range relay.Events() {
		received = append(received, event)
	}

	assert.Equal(t, emitted, received)
}

func Test_Relay_EmitAfterCloseIsSilentlyDropped(t *testing.T) {
	t.Parallel()
	relay := session.NewRelay(8)
	relay.Close()

	assert.NotPanics(t, func() {
		relay.Emit(session.Downloading(99, "", ""))
		relay.Emit(session.Errored("too late"))
	})

	_, open := <-relay.Events()
	assert.False(t, open, "no events should be delivered after close")
}

func Test_Relay_CloseIsIdempotent(t *testing.T) {
	t.Parallel()
	relay := session.NewRelay(2)

	assert.NotPanics(t, func() {
		relay.Close()
		relay.Close()
	})
}

func Test_Relay_EmitNeverBlocksWhenSaturated(t *testing.T) {
	t.Parallel()
	relay := session.NewRelay(1)
	relay.Emit(session.Downloading(10, "", ""))

	returned := make(chan struct{})
	go func() {
		relay.Emit(session.Downloading(20, "", ""))
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("emit on a saturated relay blocked the caller")
	}
}
