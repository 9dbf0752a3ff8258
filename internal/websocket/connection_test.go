package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"switchboard/pkg/interfaces"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// dialTestConnection spins up an httptest server that upgrades the single
// request it receives, and returns both ends of the socket.
func dialTestConnection(t *testing.T) (*Connection, *websocket.Conn, func()) {
	t.Helper()

	serverConnCh := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("server upgrade: %v", err)
		}
		serverConnCh <- c
	}))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("client dial: %v", err)
	}

	serverConn := <-serverConnCh
	conn := NewConnection(serverConn)

	cleanup := func() {
		_ = conn.Close()
		_ = clientConn.Close()
		srv.Close()
	}
	return conn, clientConn, cleanup
}

func TestConnection_ImplementsInterface(t *testing.T) {
	var _ interfaces.Connection = &Connection{}
}

func TestConnection_NewConnectionInitialState(t *testing.T) {
	conn, _, cleanup := dialTestConnection(t)
	defer cleanup()

	if conn.IsAuthenticated() {
		t.Error("a fresh connection should not be authenticated")
	}
	if conn.GetUserEmail() != "" {
		t.Error("a fresh connection should have no email")
	}
	if conn.RemoteAddr() == "" {
		t.Error("expected a non-empty remote address")
	}
}

func TestConnection_SetCredentials(t *testing.T) {
	conn, _, cleanup := dialTestConnection(t)
	defer cleanup()

	if err := conn.SetCredentials("student@example.com", "Student One", "student"); err != nil {
		t.Fatalf("SetCredentials: %v", err)
	}
	if !conn.IsAuthenticated() {
		t.Error("expected connection to be authenticated after SetCredentials")
	}
	if conn.GetUserEmail() != "student@example.com" {
		t.Errorf("GetUserEmail = %q", conn.GetUserEmail())
	}
	if conn.GetDisplayName() != "Student One" {
		t.Errorf("GetDisplayName = %q", conn.GetDisplayName())
	}
	if conn.GetRole() != "student" {
		t.Errorf("GetRole = %q", conn.GetRole())
	}
}

func TestConnection_SetRoomName(t *testing.T) {
	conn, _, cleanup := dialTestConnection(t)
	defer cleanup()

	conn.SetRoomName("ns/lesson-one")
	if conn.GetRoomName() != "ns/lesson-one" {
		t.Errorf("GetRoomName = %q", conn.GetRoomName())
	}
}

func TestConnection_WriteJSONDeliversToPeer(t *testing.T) {
	conn, client, cleanup := dialTestConnection(t)
	defer cleanup()

	type payload struct {
		Type string `json:"type"`
	}
	if err := conn.WriteJSON(payload{Type: "ping"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got payload
	if err := client.ReadJSON(&got); err != nil {
		t.Fatalf("client ReadJSON: %v", err)
	}
	if got.Type != "ping" {
		t.Errorf("got type %q, want ping", got.Type)
	}
}

func TestConnection_CloseIsIdempotent(t *testing.T) {
	conn, _, cleanup := dialTestConnection(t)
	defer cleanup()

	if err := conn.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got: %v", err)
	}
}

func TestConnection_WriteAfterCloseFails(t *testing.T) {
	conn, _, cleanup := dialTestConnection(t)
	defer cleanup()

	_ = conn.Close()
	if err := conn.WriteJSON(map[string]string{"type": "x"}); err == nil {
		t.Error("expected WriteJSON to fail after Close")
	}
}
