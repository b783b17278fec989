package identity

import (
	"crypto/rsa"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// AccessTokenConfig holds the RSA key pair used for access tokens.
type AccessTokenConfig struct {
	PrivateKey *rsa.PrivateKey
	PublicKey  *rsa.PublicKey
	TTL        time.Duration
}

// SecretTokenConfig holds the HMAC secret for one of the symmetric kinds.
type SecretTokenConfig struct {
	Secret []byte
	TTL    time.Duration
}

// JWTConfig configures issuance and verification for all four token kinds.
// Each symmetric kind carries its own secret so a leaked confirmation token
// can never pass as a refresh token.
type JWTConfig struct {
	Issuer        string
	Domain        string
	Access        AccessTokenConfig
	Confirmation  SecretTokenConfig
	ResetPassword SecretTokenConfig
	Refresh       SecretTokenConfig
}

type tokenOptions struct {
	audience string
	tokenID  string
}

// TokenOption tweaks a single Generate or Verify call.
type TokenOption func(*tokenOptions)

// WithAudience overrides the configured domain for this call. Used by
// multi-tenant fronts that issue tokens scoped to a subdomain.
func WithAudience(domain string) TokenOption {
	return func(o *tokenOptions) {
		o.audience = domain
	}
}

// WithTokenID pins the refresh token id instead of minting a new one.
// Rotation relies on this to keep the id stable across the pair's lifetime.
func WithTokenID(id string) TokenOption {
	return func(o *tokenOptions) {
		o.tokenID = id
	}
}

// TokenService mints and verifies the four token kinds.
type TokenService struct {
	cfg    JWTConfig
	logger Logger
	now    func() time.Time
}

func NewTokenService(cfg JWTConfig) *TokenService {
	return &TokenService{
		cfg:    cfg,
		logger: defLogger{},
		now:    time.Now,
	}
}

func (ts *TokenService) WithLogger(logger Logger) *TokenService {
	if logger != nil {
		ts.logger = logger
	}
	return ts
}

// AccessTTL exposes the access token lifetime, which doubles as the TTL for
// one-time bridge codes.
func (ts *TokenService) AccessTTL() time.Duration {
	return ts.cfg.Access.TTL
}

func (ts *TokenService) RefreshTTL() time.Duration {
	return ts.cfg.Refresh.TTL
}

func (ts *TokenService) ttlFor(kind TokenKind) time.Duration {
	switch kind {
	case KindAccess:
		return ts.cfg.Access.TTL
	case KindConfirmation:
		return ts.cfg.Confirmation.TTL
	case KindResetPassword:
		return ts.cfg.ResetPassword.TTL
	case KindRefresh:
		return ts.cfg.Refresh.TTL
	}
	return 0
}

func (ts *TokenService) signingKeyFor(kind TokenKind) (jwt.SigningMethod, any, error) {
	switch kind {
	case KindAccess:
		if ts.cfg.Access.PrivateKey == nil {
			return nil, nil, goerrors.New("access private key not configured", goerrors.CategoryInternal)
		}
		return jwt.SigningMethodRS256, ts.cfg.Access.PrivateKey, nil
	case KindConfirmation:
		return jwt.SigningMethodHS256, ts.cfg.Confirmation.Secret, nil
	case KindResetPassword:
		return jwt.SigningMethodHS256, ts.cfg.ResetPassword.Secret, nil
	case KindRefresh:
		return jwt.SigningMethodHS256, ts.cfg.Refresh.Secret, nil
	}
	return nil, nil, goerrors.New(fmt.Sprintf("unknown token kind: %s", kind), goerrors.CategoryBadInput)
}

func (ts *TokenService) verifyKeyFor(kind TokenKind) (any, error) {
	if kind == KindAccess {
		if ts.cfg.Access.PublicKey == nil {
			return nil, goerrors.New("access public key not configured", goerrors.CategoryInternal)
		}
		return ts.cfg.Access.PublicKey, nil
	}
	_, secret, err := ts.signingKeyFor(kind)
	return secret, err
}

// Generate mints a token of the given kind for the user. Refresh tokens get
// a fresh uuid token id unless WithTokenID pins one.
func (ts *TokenService) Generate(user *User, kind TokenKind, opts ...TokenOption) (string, error) {
	o := tokenOptions{audience: ts.cfg.Domain}
	for _, opt := range opts {
		opt(&o)
	}

	if kind == KindRefresh && o.tokenID == "" {
		o.tokenID = uuid.NewString()
	}

	method, key, err := ts.signingKeyFor(kind)
	if err != nil {
		return "", err
	}

	claims := newClaimsFor(kind, user, ts.cfg.Issuer, o.audience, ts.ttlFor(kind), o.tokenID, ts.now())

	signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}
	return signed, nil
}

// GenerateAuthPair mints the access and refresh tokens handed out on
// sign-in, external sign-in, and refresh.
func (ts *TokenService) GenerateAuthPair(user *User, opts ...TokenOption) (access, refresh string, err error) {
	if access, err = ts.Generate(user, KindAccess, opts...); err != nil {
		return "", "", err
	}
	if refresh, err = ts.Generate(user, KindRefresh, opts...); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// Verify checks signature, expiry, issuer, and audience for the given kind
// and returns the typed claims. Expired tokens map to ErrTokenExpired,
// everything else to ErrTokenMalformed.
func (ts *TokenService) Verify(tokenString string, kind TokenKind, opts ...TokenOption) (*TokenClaims, error) {
	o := tokenOptions{audience: ts.cfg.Domain}
	for _, opt := range opts {
		opt(&o)
	}

	key, err := ts.verifyKeyFor(kind)
	if err != nil {
		return nil, err
	}

	var claims interface {
		jwt.Claims
		view() refreshClaims
	}
	switch kind {
	case KindAccess:
		claims = &accessClaims{}
	case KindConfirmation, KindResetPassword:
		claims = &emailClaims{}
	default:
		claims = &refreshClaims{}
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if kind == KindAccess {
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
		} else if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	}, jwt.WithIssuer(ts.cfg.Issuer))

	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).WithTextCode(ErrTokenMalformed.TextCode)
	}
	if !token.Valid {
		return nil, ErrTokenMalformed
	}

	full := claims.view()
	if !audienceMatches(full.Audience, o.audience) {
		ts.logger.Debug("token audience rejected: %v != %s", full.Audience, o.audience)
		return nil, ErrTokenMalformed
	}

	userID, err := uuid.Parse(full.UserID)
	if err != nil {
		return nil, ErrTokenMalformed
	}

	out := &TokenClaims{
		UserID:  userID,
		Subject: full.Subject,
		Version: full.Version,
		TokenID: full.TokenID,
	}
	if full.IssuedAt != nil {
		out.IssuedAt = full.IssuedAt.Time
	}
	if full.ExpiresAt != nil {
		out.ExpiresAt = full.ExpiresAt.Time
	}
	return out, nil
}

// audienceMatches accepts the domain itself or any of its subdomains.
func audienceMatches(aud jwt.ClaimStrings, domain string) bool {
	if domain == "" {
		return true
	}
	for _, a := range aud {
		if a == domain || strings.HasSuffix(a, "."+domain) {
			return true
		}
	}
	return false
}
