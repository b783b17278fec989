package identity_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-identity"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// testKey is generated once, RSA keygen is slow enough to notice per test.
var testKey = func() *rsa.PrivateKey {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	return key
}()

func testJWTConfig() identity.JWTConfig {
	return identity.JWTConfig{
		Issuer: "go-identity-test",
		Domain: "example.com",
		Access: identity.AccessTokenConfig{
			PrivateKey: testKey,
			PublicKey:  &testKey.PublicKey,
			TTL:        10 * time.Minute,
		},
		Confirmation: identity.SecretTokenConfig{
			Secret: []byte("confirmation-secret"),
			TTL:    time.Hour,
		},
		ResetPassword: identity.SecretTokenConfig{
			Secret: []byte("reset-secret"),
			TTL:    30 * time.Minute,
		},
		Refresh: identity.SecretTokenConfig{
			Secret: []byte("refresh-secret"),
			TTL:    time.Hour * 24,
		},
	}
}

var (
	_ identity.Users             = (*fakeUsers)(nil)
	_ identity.ProviderLinks     = (*fakeLinks)(nil)
	_ identity.RepositoryManager = (*fakeRepoManager)(nil)
	_ identity.Mailer            = (*fakeMailer)(nil)
)

// fakeUsers is an in-memory Users implementation. The embedded repository
// interface is left nil, none of its methods are exercised by these tests.
type fakeUsers struct {
	repository.Repository[*identity.User]

	mu      sync.Mutex
	byID    map[uuid.UUID]*identity.User
	counter int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[uuid.UUID]*identity.User{}}
}

func (f *fakeUsers) Register(ctx context.Context, user *identity.User) (*identity.User, error) {
	return f.RegisterTx(ctx, nil, user)
}

func (f *fakeUsers) RegisterTx(_ context.Context, _ bun.IDB, user *identity.User) (*identity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.byID {
		if u.Email == user.Email {
			return nil, identity.ErrEmailTaken
		}
		if user.Username != "" && u.Username == user.Username {
			return nil, identity.ErrUsernameTaken
		}
	}

	clone := *user
	if clone.ID == uuid.Nil {
		clone.ID = uuid.New()
	}
	if clone.Username == "" {
		f.counter++
		clone.Username = fmt.Sprintf("user%d", f.counter)
	}
	f.byID[clone.ID] = &clone

	out := clone
	return &out, nil
}

func (f *fakeUsers) GetOrRegisterExternal(ctx context.Context, email, name string) (*identity.User, error) {
	if user, err := f.UncheckedByEmail(ctx, email); err != nil || user != nil {
		return user, err
	}
	return f.Register(ctx, &identity.User{
		Name:         name,
		Email:        email,
		PasswordHash: identity.UnsetPassword,
		Confirmed:    true,
	})
}

func (f *fakeUsers) GetByUserID(_ context.Context, id uuid.UUID) (*identity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.byID[id]
	if !ok {
		return nil, repository.NewRecordNotFound()
	}
	out := *user
	return &out, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*identity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.byID {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, repository.NewRecordNotFound()
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*identity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.byID {
		if u.Username == username {
			out := *u
			return &out, nil
		}
	}
	return nil, repository.NewRecordNotFound()
}

func (f *fakeUsers) UncheckedByEmail(ctx context.Context, email string) (*identity.User, error) {
	user, err := f.GetByEmail(ctx, email)
	if err != nil {
		return nil, nil
	}
	return user, nil
}

func (f *fakeUsers) GetByCredentials(ctx context.Context, id uuid.UUID, version uint64) (*identity.User, error) {
	user, err := f.GetByUserID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Credentials.Version != version {
		return nil, identity.ErrStaleCredentials
	}
	return user, nil
}

func (f *fakeUsers) ConfirmEmail(_ context.Context, id uuid.UUID) (*identity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.byID[id]
	if !ok {
		return nil, repository.NewRecordNotFound()
	}
	user.Confirmed = true
	out := *user
	return &out, nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, ref *identity.User, newHash string) (*identity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.byID[ref.ID]
	if !ok {
		return nil, repository.NewRecordNotFound()
	}
	user.Credentials.Bump(user.PasswordHash, time.Now())
	user.PasswordHash = newHash
	out := *user
	return &out, nil
}

func (f *fakeUsers) UpdateEmail(_ context.Context, id uuid.UUID, email string) (*identity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.byID[id]
	if !ok {
		return nil, repository.NewRecordNotFound()
	}
	user.Email = email
	user.Credentials.Version++
	out := *user
	return &out, nil
}

func (f *fakeUsers) Remove(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.byID, id)
	return nil
}

type fakeLinks struct {
	mu    sync.Mutex
	links map[string][]identity.OAuthProvider
}

func newFakeLinks() *fakeLinks {
	return &fakeLinks{links: map[string][]identity.OAuthProvider{}}
}

func (f *fakeLinks) Link(_ context.Context, userID uuid.UUID, provider identity.OAuthProvider) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := userID.String()
	for _, p := range f.links[key] {
		if p == provider {
			return nil
		}
	}
	f.links[key] = append(f.links[key], provider)
	return nil
}

func (f *fakeLinks) ListByUser(_ context.Context, userID uuid.UUID) ([]*identity.OAuthProviderLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*identity.OAuthProviderLink
	for _, p := range f.links[userID.String()] {
		out = append(out, &identity.OAuthProviderLink{UserID: userID, Provider: p})
	}
	return out, nil
}

func (f *fakeLinks) Unlink(_ context.Context, userID uuid.UUID, provider identity.OAuthProvider) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := userID.String()
	kept := f.links[key][:0]
	for _, p := range f.links[key] {
		if p != provider {
			kept = append(kept, p)
		}
	}
	f.links[key] = kept
	return nil
}

type fakeRepoManager struct {
	users *fakeUsers
	links *fakeLinks
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		users: newFakeUsers(),
		links: newFakeLinks(),
	}
}

func (f *fakeRepoManager) Validate() error { return nil }
func (f *fakeRepoManager) MustValidate()   {}

func (f *fakeRepoManager) RunInTx(ctx context.Context, _ *sql.TxOptions, fn func(ctx context.Context, tx bun.Tx) error) error {
	return fn(ctx, bun.Tx{})
}

func (f *fakeRepoManager) Users() identity.Users                 { return f.users }
func (f *fakeRepoManager) ProviderLinks() identity.ProviderLinks { return f.links }

type sentMail struct {
	kind  string
	email string
	token string
}

// fakeMailer records outgoing emails synchronously so tests can pluck the
// confirmation and reset tokens out of them.
type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (f *fakeMailer) SendConfirmationEmail(user *identity.User, token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{kind: "confirmation", email: user.Email, token: token})
}

func (f *fakeMailer) SendResetPasswordEmail(user *identity.User, token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{kind: "reset", email: user.Email, token: token})
}

func (f *fakeMailer) last() (sentMail, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return sentMail{}, false
	}
	return f.sent[len(f.sent)-1], true
}

func (f *fakeMailer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}
