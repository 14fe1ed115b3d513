package refresh

import (
	"time"
)

// StoredRefreshToken represents the server-side storage of refresh token metadata.
// The client only receives the Token field (a random string).
type StoredRefreshToken struct {
	Token  string    // The actual random token string (sent to client)
	UserID string    // Server-side metadata, owner of the token
	Iat    time.Time // Server-side metadata (issued at time)
}

// Repo manages server-side storage of refresh token metadata, keyed by the
// opaque token string.
type Repo interface {
	Upsert(refreshToken *StoredRefreshToken) error
	Delete(token string) error
	Get(token string) (*StoredRefreshToken, error)
	GetByUserID(userID string) (*StoredRefreshToken, error)
}
