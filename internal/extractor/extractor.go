// Package extractor wraps the black-box capability which resolves a
// source URL in to media metadata and, optionally, a retrievable
// artifact. It is the only package permitted to know about
// source-specific quirks (format selection, TLS verification,
// user-agent overrides); callers treat its failures opaquely.
package extractor

import (
	"context"
	"fmt"

	"github.com/reelgrab/reelgrab/internal/media"
)

// Mode selects how far the extractor takes a resolution.
type Mode int

const (
	// MetadataOnly resolves the source URL to a MediaRecord whose
	// artifact reference is the best direct-access remote URL the
	// capability reports. No local bytes are written.
	MetadataOnly Mode = iota

	// FetchArtifact retrieves the media bytes to local storage under a
	// deterministic, collision-avoiding filename derived from the
	// title, and references the local path from the returned record.
	FetchArtifact
)

func (m Mode) String() string {
	switch m {
	case MetadataOnly:
		return "metadata"
	case FetchArtifact:
		return "download"
	}
	return "unknown"
}

// ParseMode maps a configuration string on to a Mode, defaulting to
// MetadataOnly for unrecognised values.
func ParseMode(raw string) Mode {
	if raw == "download" {
		return FetchArtifact
	}
	return MetadataOnly
}

// Progress is a snapshot of an in-flight artifact retrieval, delivered
// via a ProgressSink zero or more times before Resolve returns.
// Finished marks the retrieval phase as done; no further snapshots
// follow it.
type Progress struct {
	Percentage float64
	Speed      string
	Eta        string
	Finished   bool
}

// ProgressSink receives retrieval progress. Implementations must be
// safe to call from the extractor's own worker context; the sink is
// expected to hand the update across to the owning session without
// blocking the retrieval.
type ProgressSink func(Progress)

// Extractor resolves a source URL in to a completed MediaRecord. The
// record's CreatedAt is left zero; finalisation timestamps belong to
// the caller. Failures which stem from the source itself (no metadata,
// no usable stream, missing artifact after fetch) are reported as
// *ExtractionError.
type Extractor interface {
	Resolve(ctx context.Context, url string, mode Mode, sink ProgressSink) (*media.MediaRecord, error)
}

// ExtractionError indicates the source yielded nothing usable. The
// reason is human-readable and safe to surface directly to clients.
type ExtractionError struct {
	Reason string
}

func (e *ExtractionError) Error() string {
	return e.Reason
}

func newExtractionError(format string, args ...interface{}) *ExtractionError {
	return &ExtractionError{Reason: fmt.Sprintf(format, args...)}
}
