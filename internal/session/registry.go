package session

import (
	"github.com/google/uuid"
	"github.com/reelgrab/reelgrab/pkg/logger"
	pkgsync "github.com/reelgrab/reelgrab/pkg/sync"
)

// Registry tracks the live sessions owned by the server runtime, keyed
// by session identity. Sessions are added on connect and removed once
// their lifecycle completes; there is no ambient global - the registry
// is passed explicitly to whoever needs it.
type Registry struct {
	sessions pkgsync.TypedSyncMap[uuid.UUID, *Session]
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (registry *Registry) Add(session *Session) {
	registry.sessions.Store(session.ID(), session)
	log.Emit(logger.NEW, "Registered new session {%v}, %d active\n", session.ID(), registry.sessions.Len())
}

func (registry *Registry) Remove(id uuid.UUID) {
	if _, ok := registry.sessions.LoadAndDelete(id); ok {
		log.Emit(logger.REMOVE, "Deregistered session {%v}, %d active\n", id, registry.sessions.Len())
		return
	}

	log.Emit(logger.WARNING, "Attempted to deregister unknown session {%v}\n", id)
}

func (registry *Registry) Get(id uuid.UUID) (*Session, bool) {
	return registry.sessions.Load(id)
}

func (registry *Registry) Count() int {
	return registry.sessions.Len()
}
