// Package room implements presence, chat, breakout groups and the student
// question queue for one namespace+lesson classroom session: a Room owns
// its Members, Chats and Room Registry bookkeeping and supports multiple
// live sockets per member email (mirror-join from a second device or tab).
package room

import (
	"sync"

	"go.uber.org/zap"

	"switchboard/internal/logging"
	"switchboard/pkg/types"
)

// Group is one breakout configuration entry.
type Group struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// Question is one entry of the student question queue.
type Question struct {
	Email string `json:"email"`
	Value string `json:"value"`
}

const maxChatHistory = 500

// Room owns its Chats, groups and questions exclusively. All mutation runs
// under a single mutex, matching the single-lock-per-Room concurrency
// model: there is no finer-grained locking inside Room, Chat, Group or
// Question state.
type Room struct {
	mu sync.Mutex

	name    string
	members map[string]*Member   // email -> representative Member (latest socket)
	sockets map[string][]*Member // email -> every live socket
	owners  map[string]bool

	chats     map[string]*Chat
	groups    []Group
	questions []Question

	destroyed bool
	onEmpty   func(name string)
}

// NewRoom constructs an empty (pre-join) Room. onEmpty is invoked once the
// last member leaves, outside the Room's own lock.
func NewRoom(name string, onEmpty func(name string)) *Room {
	return &Room{
		name:    name,
		members: make(map[string]*Member),
		sockets: make(map[string][]*Member),
		owners:  make(map[string]bool),
		chats:   make(map[string]*Chat),
		onEmpty: onEmpty,
	}
}

func (r *Room) Name() string { return r.name }

func (r *Room) allSockets() []*Member {
	out := make([]*Member, 0, len(r.sockets))
	for _, list := range r.sockets {
		out = append(out, list...)
	}
	return out
}

func (r *Room) ownerSockets() []*Member {
	out := make([]*Member, 0)
	for email := range r.owners {
		out = append(out, r.sockets[email]...)
	}
	return out
}

func (r *Room) membersSnapshot() []types.MemberSnapshot {
	out := make([]types.MemberSnapshot, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, m.Snapshot())
	}
	return out
}

// Join adds member's socket to the room. Returns true when this was a
// mirror-join (email already present through another socket).
func (r *Room) Join(member *Member) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := member.Email()
	mirror := len(r.sockets[email]) > 0
	r.sockets[email] = append(r.sockets[email], member)

	if !mirror {
		r.members[email] = member
		if member.IsOwner() {
			r.owners[email] = true
		}
		for _, s := range r.allSockets() {
			if s != member {
				s.Send(envelope(types.MsgUserJoins, member.Snapshot()))
			}
		}
		r.sendRosterAndState(member)
		return false
	}

	// Mirror join: replay per-chat mirror_join for every chat this email
	// already belongs to, then re-send statistics/groups/questions/roster.
	for _, chat := range r.chats {
		if chat.hasEmail(email) {
			chat.Join(member)
		}
	}
	r.sendRosterAndState(member)
	return true
}

func (r *Room) sendRosterAndState(member *Member) {
	member.Send(envelope(types.MsgUserlist, r.membersSnapshot()))
	if len(r.groups) > 0 {
		member.Send(envelope(types.MsgCreatedGroups, r.groups))
	}
	member.Send(envelope(types.MsgQueueQuestions, r.questions))
	for _, chat := range r.chats {
		member.Send(envelope(types.MsgChatStatistics, chat.Statistics()))
	}
}

// Leave is Room.leave. Reports whether the Room is now empty (and has
// been destroyed) so the Room Registry can drop it.
func (r *Room) Leave(member *Member) (destroyed bool) {
	r.mu.Lock()

	email := member.Email()
	sockets := r.sockets[email]
	for i, s := range sockets {
		if s == member {
			sockets = append(sockets[:i], sockets[i+1:]...)
			break
		}
	}
	if len(sockets) > 0 {
		r.sockets[email] = sockets
		r.mu.Unlock()
		return false
	}

	delete(r.sockets, email)
	delete(r.members, email)
	delete(r.owners, email)
	for _, chat := range r.chats {
		chat.Leave(member)
	}
	member.MarkExit()
	for _, s := range r.allSockets() {
		s.Send(envelope(types.MsgUserLeaves, member.Snapshot()))
	}

	empty := len(r.members) == 0
	if empty {
		r.destroyed = true
	}
	// Unlock before the onEmpty callback: it may call back into this Room
	// (e.g. Destroyed()), which would deadlock against this same goroutine
	// while the lock is still held.
	r.mu.Unlock()
	if empty && r.onEmpty != nil {
		r.onEmpty(r.name)
	}
	return empty
}

// Destroyed reports whether the last member has already left. The
// Dispatcher uses this to detect a stale currentRoom by reference.
func (r *Room) Destroyed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.destroyed
}

func rewriteAnonymous(data map[string]interface{}) {
	if anon, _ := data["anonymous"].(bool); anon {
		data["email"] = "anonymous"
		data["name"] = "anonymous"
	}
}

// EmitToMembers is Room.emit_to_members: broadcast to the whole room,
// including back to the sender, applying the anonymity rewrite first.
func (r *Room) EmitToMembers(msgType string, data map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rewriteAnonymous(data)
	for _, s := range r.allSockets() {
		s.Send(envelope(msgType, data))
	}
}

// EmitToOwners is Room.emit_to_owners: emit only to the owners
// sub-channel and always echo back to the sender, regardless of the
// sender's own role.
func (r *Room) EmitToOwners(sender *Member, msgType string, data map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rewriteAnonymous(data)
	delivered := false
	for _, s := range r.ownerSockets() {
		s.Send(envelope(msgType, data))
		if s == sender {
			delivered = true
		}
	}
	if !delivered {
		sender.Send(envelope(msgType, data))
	}
}

// EmitToEmail is Room.emit_to_email: deliver to every socket of one
// member, regardless of role.
func (r *Room) EmitToEmail(targetEmail, msgType string, data map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sockets[targetEmail] {
		s.Send(envelope(msgType, data))
	}
}

// EmitProgress is Room.emit_progress: the owners sub-channel receives
// {email, progress}.
func (r *Room) EmitProgress(progress float64, member *Member) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data := map[string]interface{}{"email": member.Email(), "progress": progress}
	for _, s := range r.ownerSockets() {
		s.Send(envelope(types.MsgProgress, data))
	}
}

// CreateGroups replaces groups and broadcasts the new list.
func (r *Room) CreateGroups(groups []Group) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups = groups
	for _, s := range r.allSockets() {
		s.Send(envelope(types.MsgCreatedGroups, r.groups))
	}
}

// DeleteGroups clears groups and broadcasts the empty list.
func (r *Room) DeleteGroups() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups = nil
	for _, s := range r.allSockets() {
		s.Send(envelope(types.MsgDeletedGroups, r.groups))
	}
}

// AddQuestion appends to the FIFO and broadcasts the new list.
func (r *Room) AddQuestion(q Question) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.questions = append(r.questions, q)
	r.broadcastQuestionsLocked()
}

// RemoveQuestion removes the first exact (email, value) match and
// broadcasts the new list. A not-found match is a silent no-op.
func (r *Room) RemoveQuestion(q Question) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.questions {
		if existing == q {
			r.questions = append(r.questions[:i], r.questions[i+1:]...)
			break
		}
	}
	r.broadcastQuestionsLocked()
}

func (r *Room) broadcastQuestionsLocked() {
	for _, s := range r.allSockets() {
		s.Send(envelope(types.MsgQueueQuestions, r.questions))
	}
}

// GetOrCreateChat returns the named Chat, creating it on first reference
// (e.g. the main room channel, or a breakout chat named on first
// join_chat).
func (r *Room) GetOrCreateChat(localName string) *Chat {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.chats[localName]; ok {
		return c
	}
	c := NewChat(localName, maxChatHistory)
	r.chats[localName] = c
	return c
}

// JoinChat resolves (or creates) the named chat and joins member to it.
func (r *Room) JoinChat(localName string, member *Member) bool {
	chat := r.GetOrCreateChat(localName)
	r.mu.Lock()
	defer r.mu.Unlock()
	return chat.Join(member)
}

// LeaveChat delegates to the named Chat's leave, if it exists.
func (r *Room) LeaveChat(localName string, member *Member) error {
	r.mu.Lock()
	chat, ok := r.chats[localName]
	r.mu.Unlock()
	if !ok {
		return ErrChatNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	chat.Leave(member)
	return nil
}

// SendChatMessage delegates to the named Chat's send.
func (r *Room) SendChatMessage(localName string, sender *Member, body string, anonymous bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	chat, ok := r.chats[localName]
	if !ok {
		return ErrChatNotFound
	}
	chat.Send(sender, body, anonymous)
	return nil
}

// CloseChatForAll is Room.close_chat_for_all: delegate to Chat.close_for_all
// and drop the chat so its history does not linger in the Room.
func (r *Room) CloseChatForAll(initiator *Member, localName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	chat, ok := r.chats[localName]
	if !ok {
		return ErrChatNotFound
	}
	chat.CloseForAll(initiator)
	delete(r.chats, localName)
	return nil
}

// FindMemberByEmail returns the representative Member for an email, used
// to route chat_invitation/video_invitation to the first Member with a
// matching email.
func (r *Room) FindMemberByEmail(email string) (*Member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[email]
	return m, ok
}

// HasMember reports whether email currently has at least one live socket
// in this Room.
func (r *Room) HasMember(email string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sockets[email]) > 0
}

// IsOwner reports whether email is currently a room owner.
func (r *Room) IsOwner(email string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.owners[email]
}

// MemberCount is used by metrics (room_participants).
func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// ChatCount reports how many Chats (breakout or whole-room) are currently
// open in this Room, used by the read-only room listing endpoint.
func (r *Room) ChatCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chats)
}

func (r *Room) logger() *zap.Logger { return logging.L().With(logging.Room(r.name)) }
