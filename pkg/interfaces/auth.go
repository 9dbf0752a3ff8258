package interfaces

import "context"

// AuthUser is the record an Auth collaborator resolves a bearer token to.
type AuthUser struct {
	ID          string
	Email       string
	DisplayName string
	IsAdmin     bool
}

// Auth verifies a transport-supplied bearer token. The core calls this
// once per dispatcher connection and never re-derives identity itself —
// token verification, like password hashing, is explicitly out of scope.
type Auth interface {
	Authenticate(ctx context.Context, bearerToken string) (*AuthUser, error)
	IsOwnerOfNamespace(ctx context.Context, userID, namespaceID string) (bool, error)
}
