package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"switchboard/internal/collab"
	"switchboard/internal/dispatcher"
	"switchboard/internal/ot"
	"switchboard/internal/room"
	"switchboard/pkg/interfaces"
	"switchboard/pkg/types"
)

type fakeAuth struct {
	user *interfaces.AuthUser
	err  error
}

func (f *fakeAuth) Authenticate(ctx context.Context, token string) (*interfaces.AuthUser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

func (f *fakeAuth) IsOwnerOfNamespace(ctx context.Context, userID, namespaceID string) (bool, error) {
	return false, nil
}

type fakeDocumentStore struct{}

func (fakeDocumentStore) Load(ctx context.Context, namespaceID, lessonID, componentID string) (*types.DocumentSnapshot, error) {
	return nil, errors.New("not found")
}
func (fakeDocumentStore) Save(ctx context.Context, documentID string, snapshot *types.DocumentSnapshot) error {
	return nil
}

type fakeNamespaceStore struct{}

func (fakeNamespaceStore) IsOwner(ctx context.Context, userID, namespaceTitle string) (bool, error) {
	return false, nil
}

func newTestHandler(auth interfaces.Auth) *Handler {
	rooms := room.NewRegistry()
	docs := collab.NewRegistry(fakeDocumentStore{}, 10, 50, ot.SameAuthorMerger{})
	disp := dispatcher.New(rooms, docs, fakeNamespaceStore{})
	return NewHandler(auth, disp, NewRegistry(), 30*time.Second, 30*time.Second)
}

func TestHandler_RejectsMissingToken(t *testing.T) {
	h := newTestHandler(&fakeAuth{err: errors.New("invalid token")})
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
}

func TestHandler_AcceptsValidToken(t *testing.T) {
	h := newTestHandler(&fakeAuth{user: &interfaces.AuthUser{Email: "student@example.com", DisplayName: "Student"}})
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=anything"
	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	time.Sleep(50 * time.Millisecond)
	if h.registry.Count() != 1 {
		t.Errorf("expected registry to track one connection, got %d", h.registry.Count())
	}
}

func TestHandler_RateLimiterRejectsExcessMessages(t *testing.T) {
	h := newTestHandler(&fakeAuth{user: &interfaces.AuthUser{Email: "student@example.com", DisplayName: "Student"}})
	if !h.limiter.Allow("student@example.com") {
		t.Fatal("expected first message to be allowed")
	}
	for i := 1; i < 100; i++ {
		h.limiter.Allow("student@example.com")
	}
	if h.limiter.Allow("student@example.com") {
		t.Error("expected the 101st message in the same window to be rejected")
	}
}
