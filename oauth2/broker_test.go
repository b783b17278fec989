package oauth2

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-identity"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = func() *rsa.PrivateKey {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	return key
}()

func testTokenService() *identity.TokenService {
	return identity.NewTokenService(identity.JWTConfig{
		Issuer: "go-identity-test",
		Domain: "example.com",
		Access: identity.AccessTokenConfig{
			PrivateKey: testKey,
			PublicKey:  &testKey.PublicKey,
			TTL:        10 * time.Minute,
		},
		Confirmation:  identity.SecretTokenConfig{Secret: []byte("c"), TTL: time.Hour},
		ResetPassword: identity.SecretTokenConfig{Secret: []byte("r"), TTL: time.Hour},
		Refresh:       identity.SecretTokenConfig{Secret: []byte("f"), TTL: time.Hour},
	})
}

// stubUsers overrides just the methods the broker touches; the embedded
// interface stays nil and panics loudly on anything unexpected.
type stubUsers struct {
	identity.Users

	mu       sync.Mutex
	byEmail  map[string]*identity.User
	received []string
}

func newStubUsers() *stubUsers {
	return &stubUsers{byEmail: map[string]*identity.User{}}
}

func (s *stubUsers) GetOrRegisterExternal(_ context.Context, email, name string) (*identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.received = append(s.received, email)

	if user, ok := s.byEmail[email]; ok {
		out := *user
		return &out, nil
	}

	user := &identity.User{
		ID:           uuid.New(),
		Name:         name,
		Username:     "ext.user",
		Email:        email,
		PasswordHash: identity.UnsetPassword,
		Confirmed:    true,
	}
	s.byEmail[email] = user
	out := *user
	return &out, nil
}

func (s *stubUsers) GetByEmail(_ context.Context, email string) (*identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byEmail[email]
	if !ok {
		return nil, repository.NewRecordNotFound()
	}
	out := *user
	return &out, nil
}

type stubLinks struct {
	mu     sync.Mutex
	linked []string
}

func (s *stubLinks) Link(_ context.Context, userID uuid.UUID, provider identity.OAuthProvider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.linked = append(s.linked, provider.String())
	return nil
}

func (s *stubLinks) ListByUser(context.Context, uuid.UUID) ([]*identity.OAuthProviderLink, error) {
	return nil, nil
}

func (s *stubLinks) Unlink(context.Context, uuid.UUID, identity.OAuthProvider) error {
	return nil
}

type stubRepo struct {
	identity.RepositoryManager

	users *stubUsers
	links *stubLinks
}

func (s *stubRepo) Users() identity.Users                 { return s.users }
func (s *stubRepo) ProviderLinks() identity.ProviderLinks { return s.links }

type brokerFixture struct {
	broker *Broker
	cache  *identity.MemoryCache
	repo   *stubRepo
	tokens *identity.TokenService
}

func newBrokerFixture(t *testing.T, providerURL string) *brokerFixture {
	t.Helper()

	cfg := &Config{
		RedirectBase: "http://localhost:5000/api/auth",
		FrontendURL:  "http://localhost:3000",
		Github: Credentials{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
		},
	}

	repo := &stubRepo{users: newStubUsers(), links: &stubLinks{}}
	cache := identity.NewMemoryCache()
	tokens := testTokenService()

	broker := NewBroker(cfg, repo, tokens, cache)

	if providerURL != "" {
		client := broker.clients[identity.ProviderGithub]
		client.endpoints.tokenURL = providerURL + "/token"
		client.endpoints.userURL = providerURL + "/user"
	}

	return &brokerFixture{broker: broker, cache: cache, repo: repo, tokens: tokens}
}

func stateFromURL(t *testing.T, rawURL string) string {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return u.Query().Get("state")
}

func TestBroker_AuthorizationURL(t *testing.T) {
	f := newBrokerFixture(t, "")

	t.Run("unconfigured provider", func(t *testing.T) {
		_, err := f.broker.AuthorizationURL(context.Background(), identity.ProviderGoogle)
		assert.ErrorIs(t, err, ErrProviderNotFound)
	})

	t.Run("unknown provider name", func(t *testing.T) {
		_, err := f.broker.AuthorizationURL(context.Background(), identity.OAuthProvider("myspace"))
		assert.ErrorIs(t, err, ErrProviderNotFound)
	})

	t.Run("builds a redirect with stored state", func(t *testing.T) {
		rawURL, err := f.broker.AuthorizationURL(context.Background(), identity.ProviderGithub)
		require.NoError(t, err)

		u, err := url.Parse(rawURL)
		require.NoError(t, err)
		assert.Equal(t, "github.com", u.Host)
		assert.Equal(t, "client-id", u.Query().Get("client_id"))
		assert.Contains(t, u.Query().Get("redirect_uri"), "/ext/github/callback")

		state := u.Query().Get("state")
		require.NotEmpty(t, state)

		stored, err := f.cache.Get(context.Background(), stateKey(state))
		require.NoError(t, err)
		assert.Equal(t, "github", stored)
	})
}

func newProviderServer(t *testing.T, email string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("code") != "provider-code" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "bad_verification_code"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": "provider-token"})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer provider-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"name":  "Jane Doe",
			"email": email,
			"login": "janedoe",
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestBroker_CompleteCallback(t *testing.T) {
	srv := newProviderServer(t, "jane@example.com")
	f := newBrokerFixture(t, srv.URL)
	ctx := context.Background()

	var recorded []identity.ActivityEvent
	f.broker.WithActivitySink(identity.ActivitySinkFunc(func(_ context.Context, event identity.ActivityEvent) error {
		recorded = append(recorded, event)
		return nil
	}))

	rawURL, err := f.broker.AuthorizationURL(ctx, identity.ProviderGithub)
	require.NoError(t, err)
	state := stateFromURL(t, rawURL)

	redirect, err := f.broker.CompleteCallback(ctx, identity.ProviderGithub, "provider-code", state)
	require.NoError(t, err)

	u, err := url.Parse(redirect)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(redirect, "http://localhost:3000/callback?code="))

	code := u.Query().Get("code")
	assert.Len(t, code, codeLength)

	t.Run("provider is linked", func(t *testing.T) {
		assert.Contains(t, f.repo.links.linked, "github")
	})

	t.Run("external login is recorded", func(t *testing.T) {
		require.Len(t, recorded, 1)
		assert.Equal(t, identity.ActivityEventExternalLogin, recorded[0].EventType)
		assert.Equal(t, "github", recorded[0].Metadata["provider"])
	})

	t.Run("code exchanges for a local pair", func(t *testing.T) {
		result, err := f.broker.ExchangeCode(ctx, code, "")
		require.NoError(t, err)
		assert.Equal(t, "jane@example.com", result.User.Email)

		claims, err := f.tokens.Verify(result.AccessToken, identity.KindAccess)
		require.NoError(t, err)
		assert.Equal(t, result.User.ID, claims.UserID)
	})

	t.Run("code is single use", func(t *testing.T) {
		_, err := f.broker.ExchangeCode(ctx, code, "")
		assert.ErrorIs(t, err, ErrInvalidCode)
	})
}

func TestBroker_CompleteCallbackStateChecks(t *testing.T) {
	srv := newProviderServer(t, "jane@example.com")
	f := newBrokerFixture(t, srv.URL)
	ctx := context.Background()

	t.Run("unknown state", func(t *testing.T) {
		_, err := f.broker.CompleteCallback(ctx, identity.ProviderGithub, "provider-code", "bogus")
		assert.ErrorIs(t, err, ErrCorruptedState)
	})

	t.Run("state bound to another provider", func(t *testing.T) {
		require.NoError(t, f.cache.Set(ctx, stateKey("foreign"), "google", time.Minute))

		_, err := f.broker.CompleteCallback(ctx, identity.ProviderGithub, "provider-code", "foreign")
		assert.ErrorIs(t, err, ErrCorruptedState)
	})

	t.Run("state is burned after one use", func(t *testing.T) {
		rawURL, err := f.broker.AuthorizationURL(ctx, identity.ProviderGithub)
		require.NoError(t, err)
		state := stateFromURL(t, rawURL)

		_, err = f.broker.CompleteCallback(ctx, identity.ProviderGithub, "provider-code", state)
		require.NoError(t, err)

		_, err = f.broker.CompleteCallback(ctx, identity.ProviderGithub, "provider-code", state)
		assert.ErrorIs(t, err, ErrCorruptedState)
	})
}

func TestBroker_CompleteCallbackExchangeFailure(t *testing.T) {
	srv := newProviderServer(t, "jane@example.com")
	f := newBrokerFixture(t, srv.URL)
	ctx := context.Background()

	rawURL, err := f.broker.AuthorizationURL(ctx, identity.ProviderGithub)
	require.NoError(t, err)
	state := stateFromURL(t, rawURL)

	_, err = f.broker.CompleteCallback(ctx, identity.ProviderGithub, "wrong-code", state)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token exchange failed")
}

func TestBroker_CompleteCallbackFoldsEmail(t *testing.T) {
	srv := newProviderServer(t, "Jane@Example.COM")
	f := newBrokerFixture(t, srv.URL)
	ctx := context.Background()

	rawURL, err := f.broker.AuthorizationURL(ctx, identity.ProviderGithub)
	require.NoError(t, err)
	state := stateFromURL(t, rawURL)

	redirect, err := f.broker.CompleteCallback(ctx, identity.ProviderGithub, "provider-code", state)
	require.NoError(t, err)

	require.Equal(t, []string{"jane@example.com"}, f.repo.users.received)

	u, err := url.Parse(redirect)
	require.NoError(t, err)

	result, err := f.broker.ExchangeCode(ctx, u.Query().Get("code"), "")
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", result.User.Email)
}

func TestBroker_ExchangeCodeUnknown(t *testing.T) {
	f := newBrokerFixture(t, "")
	ctx := context.Background()

	t.Run("unknown code", func(t *testing.T) {
		_, err := f.broker.ExchangeCode(ctx, "nope", "")
		assert.ErrorIs(t, err, ErrInvalidCode)
	})

	t.Run("code resolving to a missing account", func(t *testing.T) {
		require.NoError(t, f.cache.Set(ctx, codeKey("orphan"), "ghost@example.com", time.Minute))

		_, err := f.broker.ExchangeCode(ctx, "orphan", "")
		assert.ErrorIs(t, err, ErrInvalidCode)
	})
}
