package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UnsetPassword marks accounts created through an external provider that
// never set a local password. It can never match a bcrypt comparison.
const UnsetPassword = "UNSET"

// OAuthProvider identifies where an account's identity originates.
type OAuthProvider string

const (
	ProviderLocal     OAuthProvider = "local"
	ProviderGoogle    OAuthProvider = "google"
	ProviderGithub    OAuthProvider = "github"
	ProviderFacebook  OAuthProvider = "facebook"
	ProviderMicrosoft OAuthProvider = "microsoft"
)

func (p OAuthProvider) String() string {
	return string(p)
}

// Credentials carries the invalidation state for versioned tokens. Version
// increases by one on every password or email change; tokens minted against
// an older version stop verifying. LastPassword keeps the previous hash so
// sign-in attempts with a stale password can be answered with a recency hint.
type Credentials struct {
	Version           uint64 `bun:"version,notnull,default:0" json:"version"`
	LastPassword      string `bun:"last_password,notnull,default:''" json:"-"`
	PasswordUpdatedAt int64  `bun:"password_updated_at,notnull,default:0" json:"-"`
}

// Bump records a credential change: the previous hash is retained and the
// version advances.
func (c *Credentials) Bump(previousHash string, now time.Time) {
	c.Version++
	c.LastPassword = previousHash
	c.PasswordUpdatedAt = now.UnixMilli()
}

type User struct {
	bun.BaseModel `bun:"table:users,alias:usr" json:"-"`

	ID           uuid.UUID   `bun:"id,pk,nullzero,type:uuid" json:"id"`
	Name         string      `bun:"name,notnull" json:"name"`
	Username     string      `bun:"username,notnull,unique" json:"username"`
	Email        string      `bun:"email,notnull,unique" json:"email"`
	PasswordHash string      `bun:"password_hash,notnull" json:"-"`
	Confirmed    bool        `bun:"confirmed,notnull,default:false" json:"-"`
	Credentials  Credentials `bun:"embed:credentials_" json:"-"`

	CreatedAt *time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"-"`
}

// HasSetPassword reports whether the account carries a usable local password.
func (u *User) HasSetPassword() bool {
	return u.PasswordHash != "" && u.PasswordHash != UnsetPassword
}

// OAuthProviderLink records that an external provider identity is attached
// to a user. The pair (user, provider) is unique.
type OAuthProviderLink struct {
	bun.BaseModel `bun:"table:oauth_provider_links,alias:opl" json:"-"`

	UserID   uuid.UUID     `bun:"user_id,pk,notnull,type:uuid" json:"user_id"`
	Provider OAuthProvider `bun:"provider,pk,notnull" json:"provider"`

	CreatedAt *time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at,omitempty"`
}
