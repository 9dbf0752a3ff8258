package types

import (
	"time"
)

// Role distinguishes the two kinds of classroom participant.
type Role string

const (
	RoleStudent Role = "student"
	RoleOwner   Role = "owner"
)

// Scheduled event kinds understood by the scheduler.
const (
	EventTypeUnlockLesson       = "unlock_lesson"
	EventTypeSendEmail          = "send_email"
	EventTypeOverviewStatistics = "overview_statistics"
)

// Wire message names. Kept as constants rather than an enum type because
// the dispatcher matches on the raw string carried over the socket.
const (
	MsgJoin                             = "join"
	MsgUserJoins                        = "user_joins"
	MsgUserLeaves                       = "user_leaves"
	MsgUserlist                         = "userlist"
	MsgConsole                          = "console"
	MsgEvent                            = "event"
	MsgProgress                         = "progress"
	MsgJoinChat                         = "join_chat"
	MsgLeaveChat                        = "leave_chat"
	MsgCloseChat                        = "close_chat"
	MsgChatMessage                      = "chat_message"
	MsgMemberHasJoinedChat              = "member_has_joined_chat"
	MsgMemberHasLeftChat                = "member_has_left_chat"
	MsgClosedChat                       = "closed_chat"
	MsgChatHistory                      = "chat_history"
	MsgChatStatistics                   = "chat_statistics"
	MsgChatInvitation                   = "chat_invitation"
	MsgVideoInvitation                  = "video_invitation"
	MsgCreateGroups                     = "create_groups"
	MsgDeleteGroups                     = "delete_groups"
	MsgCreatedGroups                    = "created_groups"
	MsgDeletedGroups                    = "deleted_groups"
	MsgAddQuestion                      = "add_question"
	MsgRemoveQuestion                   = "remove_question"
	MsgQueueQuestions                   = "queue_questions"
	MsgJoinCollaborativeEditing         = "join_collaborative_editing"
	MsgJoinedCollaborativeEditing       = "joined_collaborative_editing"
	MsgSendCollaborativeEditingEvents   = "send_collaborative_editing_events"
	MsgSentCollaborativeEditingEvents   = "sent_collaborative_editing_events"
	MsgCollaborativeEditingEvents       = "collaborative_editing_events"
	MsgPollCollaborativeEditingEvents   = "poll_collaborative_editing_events"
	MsgPolledCollaborativeEditingEvents = "polled_collaborative_editing_events"
	MsgUpdateCursor                     = "update_cursor"
	MsgLeave                            = "leave"
	MsgDisconnect                       = "disconnect"
	MsgError                            = "error"
)

// EmitTarget is the routing tag carried on an "event" wire message.
type EmitTarget string

const (
	TargetMembers EmitTarget = "members"
	TargetOwners  EmitTarget = "owners"
)

// MemberSnapshot is the broadcastable, immutable view of a Member.
// Member.Snapshot() returns a fresh copy on every call; nothing retains
// a pointer into live Member state.
type MemberSnapshot struct {
	Email       string     `json:"email"`
	DisplayName string     `json:"displayName"`
	Role        Role       `json:"role"`
	Avatar      string     `json:"avatar"`
	JoinedAt    time.Time  `json:"joinedAt"`
	ExitedAt    *time.Time `json:"exitedAt,omitempty"`
}

// ChatMessage is one entry in a Chat's bounded history.
type ChatMessage struct {
	Body          string    `json:"body"`
	AuthorDisplay string    `json:"authorDisplay"`
	AuthorEmail   string    `json:"authorEmail"`
	Avatar        string    `json:"avatar"`
	Timestamp     time.Time `json:"timestamp"`
	Anonymous     bool      `json:"anonymous"`
}

// ChatStatistics is Chat.statistics()'s payload.
type ChatStatistics struct {
	Name         string `json:"name"`
	MemberCount  int    `json:"memberCount"`
	MessageCount int    `json:"messageCount"`
}

// ScheduledEvent is the persisted row the scheduler consumes.
type ScheduledEvent struct {
	ID   string                 `json:"id" db:"id"`
	Type string                 `json:"type" db:"type"`
	Time time.Time              `json:"time" db:"time"`
	Data map[string]interface{} `json:"data" db:"data"`
	Done bool                   `json:"done" db:"done"`
	User string                 `json:"user" db:"user"`
}

// CommentEvent is one entry of Comments.events.
type CommentEvent struct {
	Type string `json:"type"` // "create" | "delete"
	ID   string `json:"id"`
	Text string `json:"text,omitempty"`
	From int    `json:"from,omitempty"`
	To   int    `json:"to,omitempty"`
}

// Comment is one live annotation anchored to a document range.
type Comment struct {
	ID   string `json:"id"`
	From int    `json:"from"`
	To   int    `json:"to"`
	Text string `json:"text"`
}

// CursorSelection is one client's live cursor/selection range.
type CursorSelection struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// InstanceUser is the Document Instance's per-email presence entry.
type InstanceUser struct {
	Active       bool   `json:"active"`
	PersistentID string `json:"persistentId,omitempty"`
}

// DocumentSnapshot is what the collaborative-document store loads/saves.
type DocumentSnapshot struct {
	Version         int                    `json:"version"`
	Doc             string                 `json:"doc"`
	Comments        []Comment              `json:"comments"`
	CompressedSteps []CompressedStep       `json:"compressedSteps"`
	Users           map[string]string      `json:"users"` // email -> persistentID, active subset only
}

// CompressedStep is one persisted, merge-collapsed step record.
type CompressedStep struct {
	ClientID string `json:"clientId"`
	Payload  []byte `json:"payload"`
}
