package room

import (
	"time"

	"go.uber.org/zap"

	"switchboard/internal/logging"
	"switchboard/pkg/interfaces"
	"switchboard/pkg/types"
)

// DefaultAvatar is the avatar substituted for an anonymised chat author.
const DefaultAvatar = "default"

// Member is constructed from a signed-in user plus a live socket. It
// is a value object: mark_exit() and snapshot() are its only behavior,
// everything else is plain field access. A Member is owned by the socket
// that produced it — Room and Chat only ever hold pointers to it.
type Member struct {
	conn        interfaces.Connection
	email       string
	displayName string
	role        types.Role
	avatar      string
	joinedAt    time.Time
	exitedAt    *time.Time
}

// NewMember constructs a Member from an authenticated connection.
func NewMember(conn interfaces.Connection, email, displayName string, role types.Role, avatar string) *Member {
	return &Member{
		conn:        conn,
		email:       email,
		displayName: displayName,
		role:        role,
		avatar:      avatar,
		joinedAt:    time.Now(),
	}
}

func (m *Member) Email() string       { return m.email }
func (m *Member) DisplayName() string { return m.displayName }
func (m *Member) Role() types.Role    { return m.role }
func (m *Member) Avatar() string      { return m.avatar }
func (m *Member) IsOwner() bool       { return m.role == types.RoleOwner }
func (m *Member) Conn() interfaces.Connection { return m.conn }

// MarkExit stamps exited_at, once. Idempotent so a redundant leave cannot
// move the exit time forward.
func (m *Member) MarkExit() {
	if m.exitedAt != nil {
		return
	}
	now := time.Now()
	m.exitedAt = &now
}

// Snapshot returns a broadcastable, immutable view of the Member. A fresh
// copy is returned on every call; no pointer into live Member state
// escapes.
func (m *Member) Snapshot() types.MemberSnapshot {
	return types.MemberSnapshot{
		Email:       m.email,
		DisplayName: m.displayName,
		Role:        m.role,
		Avatar:      m.avatar,
		JoinedAt:    m.joinedAt,
		ExitedAt:    m.exitedAt,
	}
}

// Send writes a JSON message to the member's socket. A dropped transport
// write is never fatal to the caller; it is only logged.
func (m *Member) Send(v interface{}) {
	if err := m.conn.WriteJSON(v); err != nil {
		logging.L().Debug("member write failed", logging.Email(m.email), zap.Error(err))
	}
}
