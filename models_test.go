package identity_test

import (
	"testing"
	"time"

	"github.com/goliatone/go-identity"
	"github.com/stretchr/testify/assert"
)

func TestCredentialsBump(t *testing.T) {
	creds := identity.Credentials{}
	now := time.Now()

	creds.Bump("old-hash", now)

	assert.Equal(t, uint64(1), creds.Version)
	assert.Equal(t, "old-hash", creds.LastPassword)
	assert.Equal(t, now.UnixMilli(), creds.PasswordUpdatedAt)

	creds.Bump("newer-hash", now.Add(time.Hour))
	assert.Equal(t, uint64(2), creds.Version)
	assert.Equal(t, "newer-hash", creds.LastPassword)
}

func TestUserHasSetPassword(t *testing.T) {
	assert.False(t, (&identity.User{}).HasSetPassword())
	assert.False(t, (&identity.User{PasswordHash: identity.UnsetPassword}).HasSetPassword())
	assert.True(t, (&identity.User{PasswordHash: "$2a$10$something"}).HasSetPassword())
}

func TestNewMessage(t *testing.T) {
	msg := identity.NewMessage("hello")
	assert.Equal(t, "hello", msg.Message)
	assert.NotEmpty(t, msg.ID)

	other := identity.NewMessage("hello")
	assert.NotEqual(t, msg.ID, other.ID)
}
