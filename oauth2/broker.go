package oauth2

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity"
	repository "github.com/goliatone/go-repository-bun"
)

const (
	defaultStateTTL    = 120 * time.Second
	defaultHTTPTimeout = 5 * time.Second
	maxRedirects       = 5
)

// Config holds the provider credentials and the URLs the broker redirects
// through. Providers with missing credentials are simply not registered.
type Config struct {
	RedirectBase string `env:"OAUTH_REDIRECT_BASE" envDefault:"http://localhost:5000/api/auth"`
	FrontendURL  string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
	StateTime    int    `env:"OAUTH_STATE_TIME" envDefault:"120"`

	Microsoft Credentials `envPrefix:"MICROSOFT_"`
	Google    Credentials `envPrefix:"GOOGLE_"`
	Facebook  Credentials `envPrefix:"FACEBOOK_"`
	Github    Credentials `envPrefix:"GITHUB_"`
}

// LoadConfig parses the broker configuration from the environment.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse oauth environment")
	}
	return cfg, nil
}

func (c *Config) credentials() map[identity.OAuthProvider]Credentials {
	return map[identity.OAuthProvider]Credentials{
		identity.ProviderMicrosoft: c.Microsoft,
		identity.ProviderGoogle:    c.Google,
		identity.ProviderFacebook:  c.Facebook,
		identity.ProviderGithub:    c.Github,
	}
}

// Broker runs the provider sign in choreography: authorization redirect,
// state-guarded callback, account linking, and the bridge code exchange
// that turns a provider identity into a local auth pair.
type Broker struct {
	clients     map[identity.OAuthProvider]*client
	cache       identity.RevocationCache
	users       identity.Users
	links       identity.ProviderLinks
	tokens      *identity.TokenService
	logger      identity.Logger
	activity    identity.ActivitySink
	frontendURL string
	stateTTL    time.Duration
}

func NewBroker(cfg *Config, repo identity.RepositoryManager, tokens *identity.TokenService, cache identity.RevocationCache) *Broker {
	httpClient := &http.Client{
		Timeout: defaultHTTPTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	clients := map[identity.OAuthProvider]*client{}
	for provider, creds := range cfg.credentials() {
		if creds.configured() {
			clients[provider] = newClient(provider, creds, cfg.RedirectBase, httpClient)
		}
	}

	stateTTL := defaultStateTTL
	if cfg.StateTime > 0 {
		stateTTL = time.Duration(cfg.StateTime) * time.Second
	}

	return &Broker{
		clients:     clients,
		cache:       cache,
		users:       repo.Users(),
		links:       repo.ProviderLinks(),
		tokens:      tokens,
		logger:      defLogger{},
		activity:    identity.ActivitySinkFunc(nil),
		frontendURL: cfg.FrontendURL,
		stateTTL:    stateTTL,
	}
}

func (b *Broker) WithLogger(logger identity.Logger) *Broker {
	if logger != nil {
		b.logger = logger
	}
	return b
}

func (b *Broker) WithActivitySink(sink identity.ActivitySink) *Broker {
	if sink != nil {
		b.activity = sink
	}
	return b
}

// Providers lists the providers that came up configured.
func (b *Broker) Providers() []identity.OAuthProvider {
	out := make([]identity.OAuthProvider, 0, len(b.clients))
	for provider := range b.clients {
		out = append(out, provider)
	}
	return out
}

// AuthorizationURL starts a provider flow. The state entry is stored before
// the URL is handed out, so the callback can never race the redirect.
func (b *Broker) AuthorizationURL(ctx context.Context, provider identity.OAuthProvider) (string, error) {
	client, ok := b.clients[provider]
	if !ok {
		return "", ErrProviderNotFound
	}

	state, err := generateState()
	if err != nil {
		return "", err
	}

	if err := b.cache.Set(ctx, stateKey(state), provider.String(), b.stateTTL); err != nil {
		return "", err
	}

	return client.AuthCodeURL(state), nil
}

// CompleteCallback consumes the provider redirect: it validates the state,
// exchanges the code, loads the profile, attaches the provider to a local
// account, and returns the frontend URL carrying a one-time bridge code.
func (b *Broker) CompleteCallback(ctx context.Context, provider identity.OAuthProvider, code, state string) (string, error) {
	client, ok := b.clients[provider]
	if !ok {
		return "", ErrProviderNotFound
	}

	if err := b.consumeState(ctx, provider, state); err != nil {
		return "", err
	}

	accessToken, err := client.Exchange(ctx, code)
	if err != nil {
		return "", err
	}

	profile, err := client.FetchUser(ctx, accessToken)
	if err != nil {
		return "", err
	}

	user, err := b.linkOrCreateAccount(ctx, provider, profile)
	if err != nil {
		return "", err
	}

	bridge, err := b.bridgeCode(ctx, user)
	if err != nil {
		return "", err
	}

	b.logger.Info("external sign in for %s via %s", user.Email, provider)

	redirect := fmt.Sprintf("%s/callback?code=%s", b.frontendURL, url.QueryEscape(bridge))
	return redirect, nil
}

// ExchangeCode spends a bridge code and returns the local auth pair. A code
// works exactly once; replays see the same error as expiry.
func (b *Broker) ExchangeCode(ctx context.Context, code, domain string) (*identity.AuthResult, error) {
	email, err := b.cache.Get(ctx, codeKey(code))
	if err != nil {
		if errors.Is(err, identity.ErrCacheMiss) {
			return nil, ErrInvalidCode
		}
		return nil, err
	}

	if err := b.cache.Delete(ctx, codeKey(code)); err != nil {
		return nil, err
	}

	user, err := b.users.GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvalidCode
		}
		return nil, err
	}

	var opts []identity.TokenOption
	if domain != "" {
		opts = append(opts, identity.WithAudience(domain))
	}

	access, refresh, err := b.tokens.GenerateAuthPair(user, opts...)
	if err != nil {
		return nil, err
	}

	return &identity.AuthResult{
		User:         user,
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

// consumeState checks the callback state against the stored entry and
// burns it either way.
func (b *Broker) consumeState(ctx context.Context, provider identity.OAuthProvider, state string) error {
	stored, err := b.cache.Get(ctx, stateKey(state))
	if err != nil {
		if errors.Is(err, identity.ErrCacheMiss) {
			return ErrCorruptedState
		}
		return err
	}

	if err := b.cache.Delete(ctx, stateKey(state)); err != nil {
		return err
	}

	if stored != provider.String() {
		return ErrCorruptedState
	}
	return nil
}

func (b *Broker) linkOrCreateAccount(ctx context.Context, provider identity.OAuthProvider, profile *Profile) (*identity.User, error) {
	user, err := b.users.GetOrRegisterExternal(ctx, strings.ToLower(profile.Email), profile.Name)
	if err != nil {
		return nil, err
	}

	if err := b.links.Link(ctx, user.ID, provider); err != nil {
		return nil, err
	}

	err = b.activity.Record(ctx, identity.ActivityEvent{
		EventType:  identity.ActivityEventExternalLogin,
		UserID:     user.ID.String(),
		Metadata:   map[string]any{"provider": provider.String()},
		OccurredAt: time.Now(),
	})
	if err != nil {
		b.logger.Debug("activity sink rejected %s: %v", identity.ActivityEventExternalLogin, err)
	}

	return user, nil
}

// bridgeCode stores a one-time code resolving to the user's email. It lives
// exactly as long as an access token.
func (b *Broker) bridgeCode(ctx context.Context, user *identity.User) (string, error) {
	code := generateCode()
	if err := b.cache.Set(ctx, codeKey(code), user.Email, b.tokens.AccessTTL()); err != nil {
		return "", err
	}
	return code, nil
}
