package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/user/entity"
)

// Claims is the payload of a session token. The jti (RegisteredClaims.ID)
// identifies the session for revocation and for its edit draft.
type Claims struct {
	Username string      `json:"username"`
	Role     entity.Role `json:"role"`
	jwt.RegisteredClaims
}

// Token is an issued session.
type Token struct {
	Value     string    `json:"token"`
	ID        string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}
