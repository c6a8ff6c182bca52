package session

import "github.com/reelgrab/reelgrab/internal/media"

type EventStatus string

const (
	StatusDownloading EventStatus = "downloading"
	StatusFinished    EventStatus = "finished"
	StatusComplete    EventStatus = "complete"
	StatusError       EventStatus = "error"
)

// Event is one progress/status frame relayed to the client. Events are
// transient and never persisted. Exactly one terminal event (complete
// or error) is produced per operation; zero or more downloading and
// finished events precede it.
//
// The JSON layout is the wire format verbatim.
type Event struct {
	Status     EventStatus        `json:"status"`
	Percentage float64            `json:"percentage,omitempty"`
	Speed      string             `json:"speed,omitempty"`
	Eta        string             `json:"eta,omitempty"`
	Record     *media.MediaRecord `json:"video_info,omitempty"`
	Message    string             `json:"message,omitempty"`
}

func Downloading(percentage float64, speed string, eta string) Event {
	return Event{Status: StatusDownloading, Percentage: percentage, Speed: speed, Eta: eta}
}

func Finished() Event {
	return Event{Status: StatusFinished}
}

func Complete(record *media.MediaRecord) Event {
	return Event{Status: StatusComplete, Record: record}
}

func Errored(message string) Event {
	return Event{Status: StatusError, Message: message}
}

// Terminal reports whether this event ends the operation.
func (event Event) Terminal() bool {
	return event.Status == StatusComplete || event.Status == StatusError
}
