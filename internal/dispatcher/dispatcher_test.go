package dispatcher

import (
	"context"
	"encoding/json"
	"testing"

	"switchboard/internal/collab"
	"switchboard/internal/ot"
	"switchboard/internal/room"
	"switchboard/pkg/types"
)

type fakeConn struct {
	email, role string
	sent        []map[string]interface{}
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	b, _ := json.Marshal(v)
	var m map[string]interface{}
	json.Unmarshal(b, &m)
	f.sent = append(f.sent, m)
	return nil
}
func (f *fakeConn) Close() error          { return nil }
func (f *fakeConn) GetUserEmail() string  { return f.email }
func (f *fakeConn) GetRole() string       { return f.role }
func (f *fakeConn) GetRoomName() string   { return "" }
func (f *fakeConn) IsAuthenticated() bool { return true }
func (f *fakeConn) SetCredentials(email, displayName, role string) error {
	f.email, f.role = email, role
	return nil
}

func (f *fakeConn) lastOfType(msgType string) map[string]interface{} {
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i]["type"] == msgType {
			return f.sent[i]
		}
	}
	return nil
}

type fakeNamespaceStore struct{ owners map[string]bool }

func (f *fakeNamespaceStore) IsOwner(ctx context.Context, userID, namespaceTitle string) (bool, error) {
	return f.owners[userID], nil
}

type memDocStore struct{ saved map[string]*types.DocumentSnapshot }

func (s *memDocStore) Load(ctx context.Context, ns, lesson, comp string) (*types.DocumentSnapshot, error) {
	id := types.DocumentID(ns, lesson, comp)
	return s.saved[id], nil
}
func (s *memDocStore) Save(ctx context.Context, id string, snap *types.DocumentSnapshot) error {
	s.saved[id] = snap
	return nil
}

func newTestDispatcher() (*Dispatcher, *room.Registry, *collab.Registry) {
	rooms := room.NewRegistry()
	docs := collab.NewRegistry(&memDocStore{saved: make(map[string]*types.DocumentSnapshot)}, 200, 10000, ot.SameAuthorMerger{})
	d := New(rooms, docs, &fakeNamespaceStore{owners: map[string]bool{"owner-1": true}})
	return d, rooms, docs
}

func joinRaw(namespace, lesson, userID string) []byte {
	b, _ := json.Marshal(map[string]interface{}{
		"type": types.MsgJoin,
		"data": map[string]interface{}{"namespace": namespace, "lesson": lesson, "userID": userID},
	})
	return b
}

func TestDispatcher_Join_ResolvesOwnerRole(t *testing.T) {
	d, _, _ := newTestDispatcher()
	conn := &fakeConn{email: "owner@example.com"}
	s := NewSession(conn)

	if err := d.Handle(context.Background(), s, joinRaw("ns", "lesson1", "owner-1")); err != nil {
		t.Fatalf("Handle(join) error = %v", err)
	}
	if s.member == nil || !s.member.IsOwner() {
		t.Fatal("expected member to be resolved as owner")
	}
	if s.currentRoom == nil {
		t.Fatal("expected currentRoom to be set")
	}
}

func TestDispatcher_ChatMessage_AnonymizesForStudents(t *testing.T) {
	d, _, _ := newTestDispatcher()
	ownerConn := &fakeConn{email: "owner@example.com"}
	ownerSession := NewSession(ownerConn)
	studentConn := &fakeConn{email: "student@example.com"}
	studentSession := NewSession(studentConn)

	if err := d.Handle(context.Background(), ownerSession, joinRaw("ns", "l1", "owner-1")); err != nil {
		t.Fatal(err)
	}
	if err := d.Handle(context.Background(), studentSession, joinRaw("ns", "l1", "student-1")); err != nil {
		t.Fatal(err)
	}

	joinChat, _ := json.Marshal(map[string]interface{}{"type": types.MsgJoinChat, "data": map[string]interface{}{"name": "general"}})
	d.Handle(context.Background(), ownerSession, joinChat)
	d.Handle(context.Background(), studentSession, joinChat)

	chatMsg, _ := json.Marshal(map[string]interface{}{
		"type": types.MsgChatMessage,
		"data": map[string]interface{}{"name": "general", "body": "hi", "anonymous": true},
	})
	if err := d.Handle(context.Background(), studentSession, chatMsg); err != nil {
		t.Fatal(err)
	}

	ownerMsg := ownerConn.lastOfType(types.MsgChatMessage)
	payload := ownerMsg["payload"].(map[string]interface{})
	inner := payload["message"].(map[string]interface{})
	if inner["authorEmail"] != "student@example.com" {
		t.Errorf("owner must see raw author, got %+v", inner)
	}
}

func TestDispatcher_CreateGroups_RequiresOwner(t *testing.T) {
	d, _, _ := newTestDispatcher()
	conn := &fakeConn{email: "student@example.com"}
	s := NewSession(conn)
	d.Handle(context.Background(), s, joinRaw("ns", "l1", "student-1"))

	raw, _ := json.Marshal(map[string]interface{}{
		"type": types.MsgCreateGroups,
		"data": map[string]interface{}{"groups": []map[string]interface{}{{"name": "g1", "members": []string{"a@b.com"}}}},
	})
	if err := d.Handle(context.Background(), s, raw); err != ErrOwnerRequired {
		t.Errorf("expected ErrOwnerRequired, got %v", err)
	}
}

func TestDispatcher_CollaborativeEditing_JoinThenSend(t *testing.T) {
	d, _, _ := newTestDispatcher()
	conn := &fakeConn{email: "owner@example.com"}
	s := NewSession(conn)
	d.Handle(context.Background(), s, joinRaw("ns", "l1", "owner-1"))

	joinEdit, _ := json.Marshal(map[string]interface{}{
		"type": types.MsgJoinCollaborativeEditing,
		"data": map[string]interface{}{"docID": "ns-l1-comp1"},
	})
	if err := d.Handle(context.Background(), s, joinEdit); err != nil {
		t.Fatal(err)
	}
	joined := conn.lastOfType(types.MsgJoinedCollaborativeEditing)
	if joined == nil {
		t.Fatal("expected joined_collaborative_editing reply")
	}

	seedLen := len([]rune(collab.DefaultSeedDoc))
	send, _ := json.Marshal(map[string]interface{}{
		"type": types.MsgSendCollaborativeEditingEvents,
		"data": map[string]interface{}{
			"docID":   "ns-l1-comp1",
			"version": 0,
			"steps": []map[string]interface{}{{
				"ops": []map[string]interface{}{
					{"kind": "retain", "n": seedLen},
					{"kind": "insert", "text": "hi"},
				},
			}},
			"clientID": "client-1",
		},
	})
	if err := d.Handle(context.Background(), s, send); err != nil {
		t.Fatalf("send_collaborative_editing_events error = %v", err)
	}
	sent := conn.lastOfType(types.MsgSentCollaborativeEditingEvents)
	payload := sent["payload"].(map[string]interface{})
	if payload["version"].(float64) != 1 {
		t.Errorf("expected version 1 after one applied step, got %+v", payload)
	}
}

func TestDispatcher_Leave_ClearsSession(t *testing.T) {
	d, rooms, _ := newTestDispatcher()
	conn := &fakeConn{email: "owner@example.com"}
	s := NewSession(conn)
	d.Handle(context.Background(), s, joinRaw("ns", "l1", "owner-1"))

	leave, _ := json.Marshal(map[string]interface{}{"type": types.MsgLeave})
	if err := d.Handle(context.Background(), s, leave); err != nil {
		t.Fatal(err)
	}
	if s.member != nil || s.currentRoom != nil {
		t.Error("expected session state cleared after leave")
	}
	if rooms.Len() != 0 {
		t.Error("expected the room to be destroyed once its only member leaves")
	}
}
