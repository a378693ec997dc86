package storage

import (
	"context"
	"errors"
	"net/url"
	"time"
)

// ErrUserNotFound is returned when a user doesn't exist
var ErrUserNotFound = errors.New("user not found")

// TrackedUser is a user who has authenticated through saml-front
type TrackedUser struct {
	Username   string     `json:"username" firestore:"username"`
	Realm      string     `json:"realm" firestore:"realm"`
	FirstSeen  time.Time  `json:"first_seen" firestore:"first_seen"`
	LastSeen   time.Time  `json:"last_seen" firestore:"last_seen"`
	LastLogout *time.Time `json:"last_logout,omitempty" firestore:"last_logout,omitempty"`
}

// Storage tracks authenticated users. Tracking is advisory: callers log
// failures instead of failing the request.
type Storage interface {
	// UpsertUser records that username of realm has been seen now
	UpsertUser(ctx context.Context, username, realm string) error

	// RecordLogout stamps the user's last logout time
	RecordLogout(ctx context.Context, username, realm string) error

	GetAllUsers(ctx context.Context) ([]TrackedUser, error)

	// PruneUsers removes users not seen since before and returns how many were removed
	PruneUsers(ctx context.Context, before time.Time) (int, error)

	Close() error
}

// userKey identifies a user within a realm. Both parts are escaped so the
// key is safe as a Firestore document ID or Redis key suffix.
func userKey(username, realm string) string {
	return url.PathEscape(realm) + "__" + url.PathEscape(username)
}
