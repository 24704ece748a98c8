package protocol

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Aeosoft95/Archei-Gestionale/domain"
	"github.com/Aeosoft95/Archei-Gestionale/state"
)

// Handler routes the messages of every connection: joins mutate the
// session context, display publishes update the room state and fan out,
// chat fans out untouched apart from a server timestamp. Anything it does
// not recognize is dropped and the connection stays usable.
type Handler struct {
	registry domain.Registry
	store    *state.Store
}

func NewHandler(registry domain.Registry, store *state.Store) *Handler {
	return &Handler{registry: registry, store: store}
}

func categoryFor(t string) (state.Category, bool) {
	switch t {
	case domain.TypeScene:
		return state.CategoryScene, true
	case domain.TypeCountdown:
		return state.CategoryCountdown, true
	case domain.TypeClocks:
		return state.CategoryClocks, true
	case domain.TypeInitiative:
		return state.CategoryInitiative, true
	}
	return "", false
}

// Connect registers a default session context and replays the last-known
// state of the default room so the client shows something immediately.
func (h *Handler) Connect(conn domain.Connection, defaultRoom string) {
	if defaultRoom == "" {
		defaultRoom = domain.DefaultRoom
	}
	h.registry.Register(conn, domain.NewContext(defaultRoom))
	h.replay(conn, defaultRoom)
}

func (h *Handler) Message(conn domain.Connection, data []byte) {
	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		slog.Warn("invalid message", "clientId", conn.ID(), "error", err)
		return
	}

	ctx, ok := h.registry.Lookup(conn)
	if !ok {
		return
	}

	switch env.T {
	case domain.TypeJoin:
		h.handleJoin(conn, env)
	case domain.TypeChat:
		h.handleChat(ctx, env, data)
	default:
		if cat, ok := categoryFor(env.T); ok {
			h.handlePublish(ctx, env, cat, data)
			return
		}
		slog.Debug("unrecognized message dropped", "clientId", conn.ID(), "type", env.T)
	}
}

// Disconnect removes the connection from the registry and tells the room
// it left that presence changed.
func (h *Handler) Disconnect(conn domain.Connection) {
	ctx, ok := h.registry.Unregister(conn)
	if !ok {
		return
	}
	h.broadcastPresence(ctx.Room)
}

func (h *Handler) handleJoin(conn domain.Connection, env domain.Envelope) {
	ctx, ok := h.registry.Update(conn, func(c *domain.Context) {
		if env.Room != "" {
			c.Room = env.Room
		}
		c.Nick = env.Nick
		if c.Nick == "" {
			c.Nick = domain.DefaultNick
		}
		c.Role = env.Role
		if c.Role == "" {
			c.Role = domain.RolePlayer
		}
	})
	if !ok {
		return
	}

	ack, err := json.Marshal(domain.Joined{T: domain.TypeJoined, Room: ctx.Room, Nick: ctx.Nick, Role: ctx.Role})
	if err == nil {
		if err := conn.Send(ack); err != nil {
			slog.Warn("join ack send failed", "clientId", conn.ID(), "error", err)
		}
	}

	h.broadcastPresence(ctx.Room)
	h.replay(conn, ctx.Room)
}

func (h *Handler) handlePublish(ctx domain.Context, env domain.Envelope, cat state.Category, data []byte) {
	room := env.Room
	if room == "" {
		room = ctx.Room
	}
	h.store.Publish(room, cat, json.RawMessage(data))
	h.registry.Broadcast(room, data)
}

func (h *Handler) handleChat(ctx domain.Context, env domain.Envelope, data []byte) {
	room := env.Room
	if room == "" {
		room = ctx.Room
	}

	out := data
	if env.Ts == nil {
		// Stamp a server timestamp without disturbing the rest of the
		// payload, which is opaque to the relay.
		var obj map[string]any
		if err := json.Unmarshal(data, &obj); err == nil {
			obj["ts"] = time.Now().UnixMilli()
			if stamped, err := json.Marshal(obj); err == nil {
				out = stamped
			}
		}
	}
	h.registry.Broadcast(room, out)
}

func (h *Handler) broadcastPresence(room string) {
	msg, err := json.Marshal(domain.Presence{T: domain.TypePresence, Room: room, Nicks: h.registry.Presence(room)})
	if err != nil {
		return
	}
	h.registry.Broadcast(room, msg)
}

// replay sends the stored snapshot of the room directly to one connection,
// one message per non-empty category.
func (h *Handler) replay(conn domain.Connection, room string) {
	for _, payload := range h.store.Snapshot(room) {
		if err := conn.Send(payload); err != nil {
			slog.Warn("replay send failed", "clientId", conn.ID(), "error", err)
		}
	}
}
