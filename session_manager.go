package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// SessionManager orchestrates the credential lifecycle: sign up and email
// confirmation, sign in, refresh rotation, logout blacklisting, and the
// password reset and update flows.
type SessionManager struct {
	repo     RepositoryManager
	tokens   *TokenService
	cache    RevocationCache
	mailer   Mailer
	logger   Logger
	activity ActivitySink
}

func NewSessionManager(repo RepositoryManager, tokens *TokenService, cache RevocationCache) *SessionManager {
	return &SessionManager{
		repo:     repo,
		tokens:   tokens,
		cache:    cache,
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
}

func (s *SessionManager) WithLogger(logger Logger) *SessionManager {
	if logger != nil {
		s.logger = logger
	}
	return s
}

func (s *SessionManager) WithMailer(mailer Mailer) *SessionManager {
	s.mailer = mailer
	return s
}

func (s *SessionManager) WithActivitySink(sink ActivitySink) *SessionManager {
	s.activity = normalizeActivitySink(sink)
	return s
}

// SignUpInput carries the registration payload. Domain optionally scopes
// the confirmation token audience to the requesting host.
type SignUpInput struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
	Domain          string
}

// SignUp registers a local account and emails a confirmation link. The
// account stays unusable for sign in until the email is confirmed.
func (s *SessionManager) SignUp(ctx context.Context, input SignUpInput) (*Message, error) {
	input.Email = strings.ToLower(input.Email)

	if err := ValidateEmail(input.Email); err != nil {
		return nil, err
	}
	if err := ValidatePasswordPair(input.Password, input.ConfirmPassword); err != nil {
		return nil, err
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.Users().Register(ctx, &User{
		Name:         formatName(input.Name),
		Email:        input.Email,
		PasswordHash: hash,
	})
	if err != nil {
		return nil, err
	}

	s.sendConfirmation(user, input.Domain)
	s.record(ctx, ActivityEventSignUp, user.ID)

	return NewMessage("Registration successful"), nil
}

// ConfirmEmail consumes a confirmation token and signs the user in. Tokens
// minted before a credential change no longer confirm anything.
func (s *SessionManager) ConfirmEmail(ctx context.Context, token, domain string) (*AuthResult, error) {
	claims, err := s.tokens.Verify(token, KindConfirmation, tokenOpts(domain)...)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.Users().GetByCredentials(ctx, claims.UserID, claims.Version)
	if err != nil {
		return nil, err
	}
	if user.Confirmed {
		return nil, ErrAlreadyConfirmed
	}

	if user, err = s.repo.Users().ConfirmEmail(ctx, user.ID); err != nil {
		return nil, err
	}

	s.record(ctx, ActivityEventEmailConfirmed, user.ID)
	return s.authResult(user, domain)
}

// SignIn authenticates by email or username. Unconfirmed accounts get a
// fresh confirmation email and an explanatory error. A correct previous
// password is answered with a hint about when it changed.
func (s *SessionManager) SignIn(ctx context.Context, identifier, password, domain string) (*AuthResult, error) {
	user, err := s.userByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}

	if !user.HasSetPassword() {
		return nil, ErrInvalidCredentials
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if !goerrors.Is(err, ErrMismatchedHashAndPassword) {
			return nil, err
		}
		s.record(ctx, ActivityEventLoginFailure, user.ID)
		return nil, s.checkLastPassword(user.Credentials, password)
	}

	if !user.Confirmed {
		s.sendConfirmation(user, domain)
		return nil, ErrNotConfirmed
	}

	s.record(ctx, ActivityEventLoginSuccess, user.ID)
	return s.authResult(user, domain)
}

// RefreshTokenAccess rotates an auth pair. The token id survives rotation,
// so a later logout revokes every descendant of the original pair at once.
func (s *SessionManager) RefreshTokenAccess(ctx context.Context, refreshToken, domain string) (*AuthResult, error) {
	claims, err := s.tokens.Verify(refreshToken, KindRefresh, tokenOpts(domain)...)
	if err != nil {
		return nil, err
	}

	if _, err := s.cache.Get(ctx, blacklistKey(claims.UserID, claims.TokenID)); err == nil {
		return nil, ErrTokenRevoked
	} else if !goerrors.Is(err, ErrCacheMiss) {
		return nil, err
	}

	user, err := s.repo.Users().GetByCredentials(ctx, claims.UserID, claims.Version)
	if err != nil {
		return nil, err
	}

	s.record(ctx, ActivityEventTokenRefresh, user.ID)

	opts := append(tokenOpts(domain), WithTokenID(claims.TokenID))
	return s.authResultWith(user, opts...)
}

// Logout blacklists the refresh token id for its remaining lifetime. An
// already expired token has nothing to revoke and succeeds quietly.
func (s *SessionManager) Logout(ctx context.Context, refreshToken, domain string) (*Message, error) {
	claims, err := s.tokens.Verify(refreshToken, KindRefresh, tokenOpts(domain)...)
	if err != nil {
		return nil, err
	}

	if ttl := time.Until(claims.ExpiresAt); ttl > 0 {
		key := blacklistKey(claims.UserID, claims.TokenID)
		if err := s.cache.Set(ctx, key, "1", ttl); err != nil {
			return nil, err
		}
	}

	s.record(ctx, ActivityEventLogout, claims.UserID)
	return NewMessage("Logout successful"), nil
}

// ResetPasswordEmail sends a reset link when the email belongs to an
// account. The response never discloses whether it did.
func (s *SessionManager) ResetPasswordEmail(ctx context.Context, email, domain string) (*Message, error) {
	email = strings.ToLower(email)

	if err := ValidateEmail(email); err != nil {
		return nil, err
	}

	user, err := s.repo.Users().UncheckedByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if user != nil {
		token, err := s.tokens.Generate(user, KindResetPassword, tokenOpts(domain)...)
		if err != nil {
			return nil, err
		}
		s.sendResetPassword(user, token)
	}

	return NewMessage("Reset password email sent"), nil
}

// ResetPassword consumes a reset token and installs the new password. The
// credential bump invalidates the token itself along with every other
// versioned token out there.
func (s *SessionManager) ResetPassword(ctx context.Context, token, password, confirmation string) (*Message, error) {
	if err := ValidatePasswordPair(password, confirmation); err != nil {
		return nil, err
	}

	claims, err := s.tokens.Verify(token, KindResetPassword)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.Users().GetByCredentials(ctx, claims.UserID, claims.Version)
	if err != nil {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.Users().UpdatePassword(ctx, user, hash); err != nil {
		return nil, err
	}

	s.record(ctx, ActivityEventPasswordReset, user.ID)
	return NewMessage("Password reset successfully"), nil
}

// UpdatePassword changes the password of a signed in user and hands back a
// fresh auth pair, since the bump just killed the old one.
func (s *SessionManager) UpdatePassword(ctx context.Context, userID uuid.UUID, current, password, confirmation, domain string) (*AuthResult, error) {
	if err := ValidatePasswordPair(password, confirmation); err != nil {
		return nil, err
	}

	user, err := s.repo.Users().GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.HasSetPassword() {
		if err := ComparePasswordAndHash(current, user.PasswordHash); err != nil {
			return nil, ErrWrongPassword
		}
		if current == password {
			return nil, ErrPasswordUnchanged
		}
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err = s.repo.Users().UpdatePassword(ctx, user, hash)
	if err != nil {
		return nil, err
	}

	s.record(ctx, ActivityEventPasswordUpdated, user.ID)
	return s.authResult(user, domain)
}

func (s *SessionManager) userByIdentifier(ctx context.Context, identifier string) (*User, error) {
	var (
		user *User
		err  error
	)

	if IsEmailIdentifier(identifier) {
		if err := ValidateEmail(identifier); err != nil {
			return nil, err
		}
		user, err = s.repo.Users().GetByEmail(ctx, strings.ToLower(identifier))
	} else {
		if err := ValidateUsername(identifier); err != nil {
			return nil, err
		}
		user, err = s.repo.Users().GetByUsername(ctx, identifier)
	}

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return user, nil
}

// checkLastPassword turns a failed comparison into either the generic
// credentials error or, when the attempt used the previous password, a hint
// about how long ago it was changed.
func (s *SessionManager) checkLastPassword(creds Credentials, password string) error {
	if creds.LastPassword == "" {
		return ErrInvalidCredentials
	}
	if err := ComparePasswordAndHash(password, creds.LastPassword); err != nil {
		return ErrInvalidCredentials
	}

	updated := time.UnixMilli(creds.PasswordUpdatedAt)
	now := time.Now()
	hours := int(now.Sub(updated).Hours())
	days := hours / 24
	months := 0
	for !updated.AddDate(0, months+1, 0).After(now) {
		months++
	}

	message := "You changed your password "
	switch {
	case months > 0:
		message += fmt.Sprintf("%d month%s ago", months, plural(months))
	case days > 0:
		message += fmt.Sprintf("%d day%s ago", days, plural(days))
	case hours > 0:
		message += fmt.Sprintf("%d hour%s ago", hours, plural(hours))
	default:
		message += "recently"
	}

	return goerrors.New(message, goerrors.CategoryAuth).
		WithTextCode(TextCodeLastPasswordUsed).
		WithCode(goerrors.CodeUnauthorized)
}

func (s *SessionManager) authResult(user *User, domain string) (*AuthResult, error) {
	return s.authResultWith(user, tokenOpts(domain)...)
}

func (s *SessionManager) authResultWith(user *User, opts ...TokenOption) (*AuthResult, error) {
	access, refresh, err := s.tokens.GenerateAuthPair(user, opts...)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		User:         user,
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

func (s *SessionManager) sendConfirmation(user *User, domain string) {
	if s.mailer == nil {
		s.logger.Warn("no mailer configured, skipping confirmation email for %s", user.Email)
		return
	}
	token, err := s.tokens.Generate(user, KindConfirmation, tokenOpts(domain)...)
	if err != nil {
		s.logger.Error("failed to generate confirmation token for %s: %v", user.Email, err)
		return
	}
	s.mailer.SendConfirmationEmail(user, token)
}

func (s *SessionManager) sendResetPassword(user *User, token string) {
	if s.mailer == nil {
		s.logger.Warn("no mailer configured, skipping reset email for %s", user.Email)
		return
	}
	s.mailer.SendResetPasswordEmail(user, token)
}

func (s *SessionManager) record(ctx context.Context, event ActivityEventType, userID uuid.UUID) {
	err := s.activity.Record(ctx, ActivityEvent{
		EventType:  event,
		UserID:     userID.String(),
		OccurredAt: time.Now(),
	})
	if err != nil {
		s.logger.Debug("activity sink rejected %s: %v", event, err)
	}
}

func blacklistKey(userID uuid.UUID, tokenID string) string {
	return fmt.Sprintf("blacklist:%s:%s", userID, tokenID)
}

func tokenOpts(domain string) []TokenOption {
	if domain == "" {
		return nil
	}
	return []TokenOption{WithAudience(domain)}
}

func plural(n int) string {
	if n > 1 {
		return "s"
	}
	return ""
}
