package room

import (
	"time"

	"switchboard/pkg/types"
)

// Chat is one breakout/whole-room text channel owned by a Room. Chat
// is not safe for concurrent use on its own; every call runs under the
// owning Room's lock, matching the single-lock-per-Room concurrency model.
type Chat struct {
	name        string
	maxMessages int
	sockets     []*Member // one entry per joined socket; may repeat an email across mirror joins
	messages    []types.ChatMessage
}

// NewChat constructs an empty Chat with a bounded history.
func NewChat(name string, maxMessages int) *Chat {
	return &Chat{name: name, maxMessages: maxMessages}
}

func (c *Chat) hasEmail(email string) bool {
	for _, m := range c.sockets {
		if m.Email() == email {
			return true
		}
	}
	return false
}

// rosterEmails returns the set of distinct member emails, deduplicating
// the per-socket sockets slice.
func (c *Chat) rosterEmails() []string {
	seen := make(map[string]bool, len(c.sockets))
	out := make([]string, 0, len(c.sockets))
	for _, m := range c.sockets {
		if !seen[m.Email()] {
			seen[m.Email()] = true
			out = append(out, m.Email())
		}
	}
	return out
}

func (c *Chat) historyFor(m *Member) []types.ChatMessage {
	if m.Role() != types.RoleStudent {
		return c.messages
	}
	out := make([]types.ChatMessage, len(c.messages))
	for i, msg := range c.messages {
		out[i] = msg
		if msg.Anonymous {
			out[i].AuthorDisplay = "Anonymous"
			out[i].AuthorEmail = ""
			out[i].Avatar = DefaultAvatar
		}
	}
	return out
}

// Join is Chat.join. Returns true when this was a mirror-join (the
// member's email was already a roster member through another socket).
func (c *Chat) Join(member *Member) bool {
	mirror := c.hasEmail(member.Email())
	c.sockets = append(c.sockets, member)

	if !mirror {
		for _, other := range c.sockets[:len(c.sockets)-1] {
			other.Send(envelope(types.MsgMemberHasJoinedChat, map[string]interface{}{
				"name":  c.name,
				"email": member.Email(),
			}))
		}
	}

	member.Send(envelope(types.MsgChatHistory, map[string]interface{}{
		"name":    c.name,
		"history": c.historyFor(member),
	}))
	member.Send(envelope(types.MsgChatStatistics, c.Statistics()))
	return mirror
}

// Leave is Chat.leave. Emission is based on email equality: the
// member_has_left_chat broadcast only fires once the email has no
// remaining socket in this chat.
func (c *Chat) Leave(member *Member) {
	for i, m := range c.sockets {
		if m == member {
			c.sockets = append(c.sockets[:i], c.sockets[i+1:]...)
			break
		}
	}
	if c.hasEmail(member.Email()) {
		return
	}
	for _, m := range c.sockets {
		m.Send(envelope(types.MsgMemberHasLeftChat, map[string]interface{}{
			"name":  c.name,
			"email": member.Email(),
		}))
	}
}

// Send is Chat.send: write to owners raw, to students with anonymity
// redaction applied when anonymous is true; append to history (dropping
// the oldest entry once over cap); emit current statistics.
func (c *Chat) Send(sender *Member, body string, anonymous bool) {
	msg := types.ChatMessage{
		Body:          body,
		AuthorDisplay: sender.DisplayName(),
		AuthorEmail:   sender.Email(),
		Avatar:        sender.Avatar(),
		Timestamp:     time.Now(),
		Anonymous:     anonymous,
	}
	c.messages = append(c.messages, msg)
	if c.maxMessages > 0 && len(c.messages) > c.maxMessages {
		c.messages = c.messages[len(c.messages)-c.maxMessages:]
	}

	for _, m := range c.sockets {
		view := msg
		if anonymous && m.Role() == types.RoleStudent {
			view.AuthorDisplay = "Anonymous"
			view.AuthorEmail = ""
			view.Avatar = DefaultAvatar
		}
		m.Send(envelope(types.MsgChatMessage, map[string]interface{}{
			"name":    c.name,
			"message": view,
		}))
	}
	stats := c.Statistics()
	for _, m := range c.sockets {
		m.Send(envelope(types.MsgChatStatistics, stats))
	}
}

// CloseForAll is Chat.close_for_all: broadcast a closure notice, detach
// every member socket, clear roster and history.
func (c *Chat) CloseForAll(initiator *Member) {
	for _, m := range c.sockets {
		m.Send(envelope(types.MsgClosedChat, map[string]interface{}{"name": c.name}))
	}
	c.sockets = nil
	c.messages = nil
}

// Statistics is Chat.statistics().
func (c *Chat) Statistics() types.ChatStatistics {
	return types.ChatStatistics{
		Name:         c.name,
		MemberCount:  len(c.rosterEmails()),
		MessageCount: len(c.messages),
	}
}

func (c *Chat) Empty() bool { return len(c.sockets) == 0 }
