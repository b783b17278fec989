package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Message is the acknowledgement envelope returned by operations that do
// not yield tokens (sign-up, logout, password reset requests).
type Message struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// NewMessage wraps a human readable acknowledgement with a unique id.
func NewMessage(message string) *Message {
	return &Message{
		ID:      uuid.NewString(),
		Message: message,
	}
}

// AuthResult couples a user with a freshly issued token pair. Every
// successful authentication path returns one.
type AuthResult struct {
	User         *User  `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Mailer delivers lifecycle emails. Implementations are fire and forget:
// delivery failures are logged by the mailer, never surfaced to callers.
type Mailer interface {
	SendConfirmationEmail(user *User, token string)
	SendResetPasswordEmail(user *User, token string)
}

// RevocationCache is a TTL bearing key-value store. It backs the refresh
// token blacklist and the ephemeral OAuth state/code entries. Reads must
// observe writes to the same key (read-your-writes), and a missing or
// expired key is reported as ErrCacheMiss.
type RevocationCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] IDENTITY "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] IDENTITY "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] IDENTITY "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] IDENTITY "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
