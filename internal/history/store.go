// Package history implements the bounded, most-recent-first collection
// of completed download/resolution results. The collection is persisted
// as a single human-readable JSON array which is overwritten wholesale
// after every mutation; the small fixed capacity makes this acceptable.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/reelgrab/reelgrab/internal/media"
	"github.com/reelgrab/reelgrab/pkg/logger"
)

const DefaultCapacity = 3

var log = logger.Get("HistoryStore")

// Store holds the retained MediaRecords in memory and mirrors every
// mutation to the backing file. All load-mutate-save cycles are guarded
// by a single mutex: saves are whole-file overwrites with no merge
// logic, so concurrent sessions would otherwise silently drop each
// other's entries.
type Store struct {
	mu       sync.Mutex
	filePath string
	capacity int
	records  []media.MediaRecord
}

// New creates a Store backed by the file at the provided path, loading
// any previously persisted records. A missing or unreadable file is not
// an error: the store starts empty and logs the failure.
func New(filePath string, capacity int) (*Store, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("history store capacity must be positive, got %d", capacity)
	}

	if dir := filepath.Dir(filePath); dir != "" {
		if err := os.MkdirAll(dir, os.ModeDir|os.ModePerm); err != nil {
			return nil, fmt.Errorf("history store directory '%s' could not be created: %w", dir, err)
		}
	}

	store := &Store{filePath: filePath, capacity: capacity}
	store.records = store.loadRecords()

	return store, nil
}

// Append inserts the record, re-sorts the collection newest-first,
// trims it to capacity and persists the result. A persistence failure
// is returned for the caller to log, but the in-memory mutation has
// already been applied - the session carrying the record still
// completes.
func (store *Store) Append(record media.MediaRecord) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.records = append(store.records, record)
	sortNewestFirst(store.records)
	if len(store.records) > store.capacity {
		store.records = store.records[:store.capacity]
	}

	return store.save()
}

// Recent returns a defensive copy of the retained records, ordered
// most-recent-first. This is the listing surface used for rendering.
func (store *Store) Recent() []media.MediaRecord {
	store.mu.Lock()
	defer store.mu.Unlock()

	out := make([]media.MediaRecord, len(store.records))
	copy(out, store.records)
	return out
}

// Get returns the first retained record whose ID matches, or false if
// no record matches. Duplicate IDs are tolerated; first match wins.
func (store *Store) Get(id string) (media.MediaRecord, bool) {
	store.mu.Lock()
	defer store.mu.Unlock()

	for _, record := range store.records {
		if record.ID == id {
			return record, true
		}
	}
	return media.MediaRecord{}, false
}

// Delete removes the first retained record whose ID matches, removing
// the backing artifact from disk on a best-effort basis beforehand (an
// already-absent artifact, or a remote artifact reference, is not an
// error). The returned bool reports whether a record was found; a miss
// is a status, not a failure. Deleting the same ID twice therefore
// yields (true, _) then (false, nil).
func (store *Store) Delete(id string) (bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	for idx, record := range store.records {
		if record.ID != id {
			continue
		}

		if record.ArtifactRef != "" && isLocalArtifact(record.ArtifactRef) {
			if err := os.Remove(record.ArtifactRef); err != nil && !errors.Is(err, os.ErrNotExist) {
				log.Emit(logger.VERBOSE, "Ignoring artifact removal failure for record %s: %v\n", id, err)
			}
		}

		store.records = append(store.records[:idx], store.records[idx+1:]...)
		return true, store.save()
	}

	return false, nil
}

// isLocalArtifact reports whether an artifact reference points at a
// file on disk rather than a direct source URL.
func isLocalArtifact(ref string) bool {
	parsed, err := url.Parse(ref)
	return err != nil || parsed.Scheme == "" || parsed.Host == ""
}

// Len reports the number of retained records.
func (store *Store) Len() int {
	store.mu.Lock()
	defer store.mu.Unlock()
	return len(store.records)
}

// loadRecords reads the persisted history from disk. Any failure here
// (missing file, malformed JSON) is logged and treated as 'no history'
// rather than propagated - losing the bounded history must never stop
// the server from starting.
func (store *Store) loadRecords() []media.MediaRecord {
	data, err := os.ReadFile(store.filePath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Emit(logger.WARNING, "Failed to read history file '%s', starting empty: %v\n", store.filePath, err)
		}
		return make([]media.MediaRecord, 0)
	}

	var records []media.MediaRecord
	if err := json.Unmarshal(data, &records); err != nil {
		log.Emit(logger.WARNING, "History file '%s' is malformed, starting empty: %v\n", store.filePath, err)
		return make([]media.MediaRecord, 0)
	}

	sortNewestFirst(records)
	if len(records) > store.capacity {
		records = records[:store.capacity]
	}
	return records
}

// save overwrites the backing file with the current collection. Callers
// must hold the store mutex.
func (store *Store) save() error {
	data, err := json.MarshalIndent(store.records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	if err := os.WriteFile(store.filePath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write history file '%s': %w", store.filePath, err)
	}

	return nil
}

func sortNewestFirst(records []media.MediaRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}
