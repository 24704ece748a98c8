package hub

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/Aeosoft95/Archei-Gestionale/domain"
)

type entry struct {
	conn domain.Connection
	ctx  domain.Context
	seq  uint64
}

// Hub is the connection registry: it owns the session context of every
// live connection and fans messages out to rooms. A connection may change
// rooms over its lifetime, so membership is derived from the stored
// context at call time rather than from room-keyed buckets.
type Hub struct {
	mu      sync.RWMutex
	clients map[domain.Connection]*entry
	seq     uint64
}

func New() *Hub {
	return &Hub{clients: make(map[domain.Connection]*entry)}
}

func (h *Hub) Register(conn domain.Connection, ctx domain.Context) {
	h.mu.Lock()
	h.seq++
	h.clients[conn] = &entry{conn: conn, ctx: ctx, seq: h.seq}
	count := len(h.clients)
	h.mu.Unlock()

	slog.Info("client connected", "room", ctx.Room, "clientId", conn.ID(), "clients", count)
}

func (h *Hub) Lookup(conn domain.Connection) (domain.Context, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	e, ok := h.clients[conn]
	if !ok {
		return domain.Context{}, false
	}
	return e.ctx, true
}

// Update applies fn to the connection's context under the lock and returns
// the resulting context. Reports false if the connection is already gone.
func (h *Hub) Update(conn domain.Connection, fn func(*domain.Context)) (domain.Context, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	e, ok := h.clients[conn]
	if !ok {
		return domain.Context{}, false
	}
	fn(&e.ctx)
	return e.ctx, true
}

// Unregister removes the connection and returns the context it last held,
// so the caller can rebroadcast presence for the vacated room.
func (h *Hub) Unregister(conn domain.Connection) (domain.Context, bool) {
	h.mu.Lock()
	e, ok := h.clients[conn]
	if !ok {
		h.mu.Unlock()
		return domain.Context{}, false
	}
	delete(h.clients, conn)
	count := len(h.clients)
	h.mu.Unlock()

	slog.Info("client disconnected", "room", e.ctx.Room, "clientId", conn.ID(), "clients", count)
	return e.ctx, true
}

// inRoom returns the members of a room in registration order. The caller
// must hold h.mu.
func (h *Hub) inRoom(room string) []*entry {
	var members []*entry
	for _, e := range h.clients {
		if e.ctx.Room == room {
			members = append(members, e)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].seq < members[j].seq })
	return members
}

// Broadcast sends the same bytes to every connection currently in the
// room, including the originator. A failed send is skipped so one slow or
// closed peer cannot stall the rest of the fan-out. The exclusive lock is
// held across the whole fan-out so that broadcasts to a room never
// interleave; sends are buffered channel pushes and cannot block here.
func (h *Hub) Broadcast(room string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, e := range h.inRoom(room) {
		if err := e.conn.Send(data); err != nil {
			slog.Warn("send failed", "room", room, "clientId", e.conn.ID(), "error", err)
		}
	}
}

// Presence returns the display names in the room, in join order.
func (h *Hub) Presence(room string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := h.inRoom(room)
	nicks := make([]string, 0, len(members))
	for _, e := range members {
		nicks = append(nicks, e.ctx.Nick)
	}
	return nicks
}

func (h *Hub) Stats() (rooms, clients int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, e := range h.clients {
		seen[e.ctx.Room] = struct{}{}
	}
	return len(seen), len(h.clients)
}
