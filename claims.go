package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind selects one of the four token flavors the service mints. Access
// tokens are signed with RSA, the rest with per-kind HMAC secrets.
type TokenKind string

const (
	KindAccess        TokenKind = "access"
	KindConfirmation  TokenKind = "confirmation"
	KindResetPassword TokenKind = "reset_password"
	KindRefresh       TokenKind = "refresh"
)

func (k TokenKind) String() string {
	return string(k)
}

// accessClaims is the minimal claim set: subject email in the registered
// claims plus the user id.
type accessClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"id"`
}

// emailClaims adds the credential version used by confirmation and reset
// tokens, so links die when the password or email changes.
type emailClaims struct {
	accessClaims
	Version uint64 `json:"version"`
}

// refreshClaims adds the rotating token id checked against the blacklist.
type refreshClaims struct {
	emailClaims
	TokenID string `json:"tokenId"`
}

// TokenClaims is the verified, typed view of a token handed back to callers.
type TokenClaims struct {
	UserID    uuid.UUID
	Subject   string
	Version   uint64
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func newClaimsFor(kind TokenKind, user *User, issuer, audience string, ttl time.Duration, tokenID string, now time.Time) jwt.Claims {
	base := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: user.ID.String(),
	}

	switch kind {
	case KindAccess:
		return base
	case KindConfirmation, KindResetPassword:
		return emailClaims{accessClaims: base, Version: user.Credentials.Version}
	case KindRefresh:
		return refreshClaims{
			emailClaims: emailClaims{accessClaims: base, Version: user.Credentials.Version},
			TokenID:     tokenID,
		}
	}
	return base
}

// view lifts any claim flavor into the full shape so verification can read
// the optional fields uniformly; absent fields stay zero.
func (c accessClaims) view() refreshClaims {
	return refreshClaims{emailClaims: emailClaims{accessClaims: c}}
}

func (c emailClaims) view() refreshClaims {
	return refreshClaims{emailClaims: c}
}

func (c refreshClaims) view() refreshClaims {
	return c
}
