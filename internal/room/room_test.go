package room

import (
	"testing"

	"switchboard/pkg/types"
)

func countType(conn *fakeConn, msgType string) int {
	n := 0
	for _, env := range conn.sent {
		if env.Type == msgType {
			n++
		}
	}
	return n
}

// TestRoom_Presence_S1 implements spec scenario S1.
func TestRoom_Presence_S1(t *testing.T) {
	r := NewRoom("ns/l", nil)
	alice, aliceConn := newTestMember("alice@example.com", types.RoleOwner)
	bobTab1, bobConn1 := newTestMember("bob@example.com", types.RoleStudent)
	bobTab2, bobConn2 := newTestMember("bob@example.com", types.RoleStudent)

	r.Join(alice)
	aliceConn.sent = nil

	if mirror := r.Join(bobTab1); mirror {
		t.Fatal("bob's first tab must not be a mirror join")
	}
	if got := countType(aliceConn, types.MsgUserJoins); got != 1 {
		t.Errorf("alice must see exactly one user_joins for bob, got %d", got)
	}
	if countType(bobConn1, types.MsgUserlist) == 0 {
		t.Error("bob's first tab must receive the roster")
	}

	aliceConn.sent = nil
	if mirror := r.Join(bobTab2); !mirror {
		t.Fatal("bob's second tab must be a mirror join")
	}
	if got := countType(aliceConn, types.MsgUserJoins); got != 0 {
		t.Errorf("alice must not see another user_joins for bob's second tab, got %d", got)
	}
	if countType(bobConn2, types.MsgUserlist) == 0 {
		t.Error("bob's second tab must also receive the roster")
	}

	aliceConn.sent = nil
	if destroyed := r.Leave(bobTab1); destroyed {
		t.Fatal("room must not be destroyed while bob's second tab is open")
	}
	if got := countType(aliceConn, types.MsgUserLeaves); got != 0 {
		t.Errorf("alice must receive no user_leaves while bob's second tab is still open, got %d", got)
	}

	aliceConn.sent = nil
	if destroyed := r.Leave(bobTab2); destroyed {
		t.Fatal("room must not be destroyed while alice is still present")
	}
	if got := countType(aliceConn, types.MsgUserLeaves); got != 1 {
		t.Errorf("alice must receive exactly one user_leaves once bob's last tab closes, got %d", got)
	}
}

func TestRoom_Leave_DestroysWhenLastMemberLeaves(t *testing.T) {
	destroyedNames := make(chan string, 1)
	r := NewRoom("ns/l", func(name string) { destroyedNames <- name })
	alice, _ := newTestMember("alice@example.com", types.RoleOwner)
	r.Join(alice)

	if destroyed := r.Leave(alice); !destroyed {
		t.Fatal("expected room to be destroyed once its only member leaves")
	}
	if !r.Destroyed() {
		t.Error("expected Destroyed() to report true")
	}
	select {
	case name := <-destroyedNames:
		if name != "ns/l" {
			t.Errorf("onEmpty called with %q, want ns/l", name)
		}
	default:
		t.Error("expected onEmpty callback to fire")
	}
}

func TestRoom_EmitToOwners_AlwaysEchoesSender(t *testing.T) {
	r := NewRoom("ns/l", nil)
	owner, ownerConn := newTestMember("owner@example.com", types.RoleOwner)
	student, studentConn := newTestMember("student@example.com", types.RoleStudent)
	r.Join(owner)
	r.Join(student)
	ownerConn.sent, studentConn.sent = nil, nil

	r.EmitToOwners(student, "note", map[string]interface{}{"body": "hi"})

	if countType(studentConn, "note") != 1 {
		t.Error("expected emit_to_owners to echo back to the sender even though it is a student")
	}
	if countType(ownerConn, "note") != 1 {
		t.Error("expected the owner sub-channel to receive the message")
	}
}

func TestRoom_EmitToMembers_AnonymityRewrite(t *testing.T) {
	r := NewRoom("ns/l", nil)
	alice, aliceConn := newTestMember("alice@example.com", types.RoleStudent)
	r.Join(alice)
	aliceConn.sent = nil

	r.EmitToMembers("note", map[string]interface{}{"email": "alice@example.com", "name": "Alice", "anonymous": true})

	payload := lastOf(aliceConn).Payload.(map[string]interface{})
	if payload["email"] != "anonymous" || payload["name"] != "anonymous" {
		t.Errorf("expected anonymity rewrite, got %+v", payload)
	}
}

func TestRoom_Questions_AddAndRemoveExactMatch(t *testing.T) {
	r := NewRoom("ns/l", nil)
	m, conn := newTestMember("a@example.com", types.RoleStudent)
	r.Join(m)
	conn.sent = nil

	r.AddQuestion(Question{Email: "a@example.com", Value: "why?"})
	r.RemoveQuestion(Question{Email: "a@example.com", Value: "something else"})
	if len(r.questions) != 1 {
		t.Fatal("removing a non-matching question must be a no-op")
	}
	r.RemoveQuestion(Question{Email: "a@example.com", Value: "why?"})
	if len(r.questions) != 0 {
		t.Error("expected exact-match removal to drop the question")
	}
}

func TestRoom_CloseChatForAll_DropsChat(t *testing.T) {
	r := NewRoom("ns/l", nil)
	m, _ := newTestMember("a@example.com", types.RoleOwner)
	r.Join(m)
	r.JoinChat("general", m)

	if err := r.CloseChatForAll(m, "general"); err != nil {
		t.Fatalf("CloseChatForAll() error = %v", err)
	}
	if err := r.LeaveChat("general", m); err != ErrChatNotFound {
		t.Errorf("expected chat to be gone after close_for_all, got %v", err)
	}
}
