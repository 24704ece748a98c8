package domain

// Role of a participant within a room.
type Role string

const (
	RoleGameMaster Role = "gm"
	RolePlayer     Role = "player"
)

// Message types recognized on the wire. Each message is a JSON object with
// a mandatory "t" field; anything not listed here is dropped.
const (
	TypeJoin       = "join"
	TypeScene      = "DISPLAY_SCENE_STATE"
	TypeCountdown  = "DISPLAY_COUNTDOWN"
	TypeClocks     = "DISPLAY_CLOCKS_STATE"
	TypeInitiative = "DISPLAY_INITIATIVE_STATE"
	TypeChat       = "chat:msg"

	// Outbound only.
	TypeJoined   = "joined"
	TypePresence = "chat:presence"
)

const (
	DefaultRoom = "demo"
	DefaultNick = "anon"
)

// Context is the per-connection session state: which room the connection
// belongs to, the display name, and the role. It is owned by the registry
// and mutated only by join messages on the same connection.
type Context struct {
	Room string
	Nick string
	Role Role
}

// NewContext returns the default context for a fresh connection.
func NewContext(room string) Context {
	return Context{Room: room, Nick: DefaultNick, Role: RolePlayer}
}

// Envelope carries the fields needed to classify and route an inbound
// message. Payload fields beyond these are opaque to the relay.
type Envelope struct {
	T    string `json:"t"`
	Room string `json:"room,omitempty"`
	Nick string `json:"nick,omitempty"`
	Role Role   `json:"role,omitempty"`
	Ts   *int64 `json:"ts,omitempty"`
}

// Joined is the acknowledgement echoed to a connection after a join.
type Joined struct {
	T    string `json:"t"`
	Room string `json:"room"`
	Nick string `json:"nick"`
	Role Role   `json:"role"`
}

// Presence lists the display names currently in a room, in join order.
type Presence struct {
	T     string   `json:"t"`
	Room  string   `json:"room"`
	Nicks []string `json:"nicks"`
}

type Connection interface {
	ID() string
	Send(data []byte) error
	Close() error
}

// Registry tracks live connections and their session contexts, and fans
// messages out to rooms. Implementations must be safe for concurrent use.
type Registry interface {
	Register(conn Connection, ctx Context)
	Lookup(conn Connection) (Context, bool)
	Update(conn Connection, fn func(*Context)) (Context, bool)
	Unregister(conn Connection) (Context, bool)
	Broadcast(room string, data []byte)
	Presence(room string) []string
	Stats() (rooms, clients int)
}

// Session receives the lifecycle events of one connection: registration at
// connect time, each inbound frame, and teardown on disconnect.
type Session interface {
	Connect(conn Connection, defaultRoom string)
	Message(conn Connection, data []byte)
	Disconnect(conn Connection)
}
