package router

import (
	"sync"

	"github.com/wildcore/server/internal/entity"
	wsnet "github.com/wildcore/server/internal/net"
)

// connRegistry maps a player's entity GUID to the Connection sending for
// it, so a Sink callback (fired from whichever zone actor goroutine owns
// the event) can find every interested Connection without that actor ever
// touching a socket (spec.md §2 "zone stays ignorant of the wire format").
type connRegistry struct {
	mu     sync.RWMutex
	byGUID map[entity.GUID]*wsnet.Connection
}

func newConnRegistry() *connRegistry {
	return &connRegistry{byGUID: make(map[entity.GUID]*wsnet.Connection)}
}

func (r *connRegistry) bind(guid entity.GUID, conn *wsnet.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byGUID[guid] = conn
}

func (r *connRegistry) unbind(guid entity.GUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byGUID, guid)
}

func (r *connRegistry) lookup(guid entity.GUID) (*wsnet.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byGUID[guid]
	return c, ok
}
