package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity"
)

// Credentials is the client id and secret registered with a provider.
type Credentials struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
}

func (c Credentials) configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

type endpoints struct {
	authURL  string
	tokenURL string
	userURL  string
	scopes   []string
}

var providerEndpoints = map[identity.OAuthProvider]endpoints{
	identity.ProviderMicrosoft: {
		authURL:  "https://login.microsoftonline.com/common/oauth2/v2.0/authorize",
		tokenURL: "https://login.microsoftonline.com/common/oauth2/v2.0/token",
		userURL:  "https://graph.microsoft.com/v1.0/me",
		scopes:   []string{"openid", "profile", "email"},
	},
	identity.ProviderGoogle: {
		authURL:  "https://accounts.google.com/o/oauth2/v2/auth",
		tokenURL: "https://www.googleapis.com/oauth2/v4/token",
		userURL:  "https://www.googleapis.com/oauth2/v3/userinfo",
		scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
	},
	identity.ProviderFacebook: {
		authURL:  "https://facebook.com/v9.0/dialog/oauth",
		tokenURL: "https://graph.facebook.com/v9.0/oauth/access_token",
		userURL:  "https://graph.facebook.com/v16.0/me?fields=email,name",
		scopes:   []string{"email", "public_profile"},
	},
	identity.ProviderGithub: {
		authURL:  "https://github.com/login/oauth/authorize",
		tokenURL: "https://github.com/login/oauth/access_token",
		userURL:  "https://api.github.com/user",
		scopes:   []string{"user:email", "read:user"},
	},
}

// client talks to one provider's authorization, token, and profile
// endpoints.
type client struct {
	provider    identity.OAuthProvider
	creds       Credentials
	redirectURL string
	endpoints   endpoints
	httpClient  *http.Client
}

func newClient(provider identity.OAuthProvider, creds Credentials, redirectBase string, httpClient *http.Client) *client {
	return &client{
		provider:    provider,
		creds:       creds,
		redirectURL: fmt.Sprintf("%s/ext/%s/callback", redirectBase, provider),
		endpoints:   providerEndpoints[provider],
		httpClient:  httpClient,
	}
}

// AuthCodeURL builds the provider's authorization redirect carrying our
// state parameter.
func (c *client) AuthCodeURL(state string) string {
	params := url.Values{
		"client_id":     {c.creds.ClientID},
		"redirect_uri":  {c.redirectURL},
		"response_type": {"code"},
		"scope":         {strings.Join(c.endpoints.scopes, " ")},
		"state":         {state},
	}
	return c.endpoints.authURL + "?" + params.Encode()
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	Error       string `json:"error"`
	ErrorDesc   string `json:"error_description"`
}

// Exchange trades the authorization code for the provider access token.
func (c *client) Exchange(ctx context.Context, code string) (string, error) {
	data := url.Values{
		"client_id":     {c.creds.ClientID},
		"client_secret": {c.creds.ClientSecret},
		"code":          {code},
		"redirect_uri":  {c.redirectURL},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoints.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", wrapProviderErr(ErrExchangeFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", wrapProviderErr(ErrExchangeFailed, err)
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", wrapProviderErr(ErrExchangeFailed, err)
	}
	if resp.StatusCode != http.StatusOK || token.Error != "" || token.AccessToken == "" {
		return "", goerrors.New(ErrExchangeFailed.Message, ErrExchangeFailed.Category).
			WithTextCode(ErrExchangeFailed.TextCode).
			WithMetadata(map[string]any{
				"provider": c.provider.String(),
				"status":   resp.StatusCode,
				"error":    token.Error,
			})
	}

	return token.AccessToken, nil
}

// FetchUser loads and normalizes the provider profile.
func (c *client) FetchUser(ctx context.Context, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoints.userURL, nil)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build user info request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, wrapProviderErr(ErrUserInfoFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, goerrors.New(ErrUserInfoFailed.Message, ErrUserInfoFailed.Category).
			WithTextCode(ErrUserInfoFailed.TextCode).
			WithMetadata(map[string]any{
				"provider": c.provider.String(),
				"status":   resp.StatusCode,
			})
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapProviderErr(ErrUserInfoFailed, err)
	}

	return normalizeProfile(c.provider, body)
}

func wrapProviderErr(sentinel *goerrors.Error, err error) error {
	return goerrors.Wrap(err, sentinel.Category, sentinel.Message).
		WithTextCode(sentinel.TextCode)
}
