package oauth2

import (
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity"
	"github.com/goliatone/go-router"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// HTTPController exposes the external provider flow: the redirect out, the
// callback in, and the bridge code exchange.
type HTTPController struct {
	broker *Broker
	config HTTPConfig
}

// HTTPConfig configures the HTTP controller.
type HTTPConfig struct {
	// RefreshCookieName for the refresh token cookie set on code exchange
	// (default: identity.RefreshCookieName).
	RefreshCookieName string

	// RefreshTTL bounds the refresh cookie lifetime.
	RefreshTTL time.Duration

	// ErrorHandler handles errors (optional).
	ErrorHandler func(ctx router.Context, err error) error
}

// NewHTTPController creates the external auth HTTP controller.
func NewHTTPController(broker *Broker, cfg HTTPConfig) *HTTPController {
	if cfg.RefreshCookieName == "" {
		cfg.RefreshCookieName = identity.RefreshCookieName
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrHandler
	}

	return &HTTPController{
		broker: broker,
		config: cfg,
	}
}

// RegisterRoutes registers the external auth routes on a group, typically
// mounted under /auth.
func (c *HTTPController) RegisterRoutes(group RouteRegistrar) {
	group.Post("/ext/token", c.TokenPost)
	group.Get("/ext/:provider/callback", c.CallbackGet)
	group.Get("/ext/:provider", c.AuthorizeGet)
}

// AuthorizeGet sends the browser to the provider's consent screen.
func (c *HTTPController) AuthorizeGet(ctx router.Context) error {
	provider := identity.OAuthProvider(ctx.Param("provider"))

	url, err := c.broker.AuthorizationURL(ctx.Context(), provider)
	if err != nil {
		return c.config.ErrorHandler(ctx, err)
	}

	return ctx.Redirect(url, http.StatusTemporaryRedirect)
}

// CallbackGet lands the provider redirect and bounces the browser to the
// frontend with a one-time bridge code.
func (c *HTTPController) CallbackGet(ctx router.Context) error {
	provider := identity.OAuthProvider(ctx.Param("provider"))
	code := ctx.Query("code")
	state := ctx.Query("state")

	if code == "" || state == "" {
		return c.config.ErrorHandler(ctx, ErrCorruptedState)
	}

	redirect, err := c.broker.CompleteCallback(ctx.Context(), provider, code, state)
	if err != nil {
		return c.config.ErrorHandler(ctx, err)
	}

	return ctx.Redirect(redirect, http.StatusTemporaryRedirect)
}

// TokenRequest payload
type TokenRequest struct {
	Code string `form:"code" json:"code"`
}

// TokenPost trades a bridge code for a local auth pair.
func (c *HTTPController) TokenPost(ctx router.Context) error {
	payload := new(TokenRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.config.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid payload"))
	}
	if payload.Code == "" {
		return c.config.ErrorHandler(ctx, ErrInvalidCode)
	}

	result, err := c.broker.ExchangeCode(ctx.Context(), payload.Code, "")
	if err != nil {
		return c.config.ErrorHandler(ctx, err)
	}

	if c.config.RefreshTTL > 0 {
		ctx.Cookie(&router.Cookie{
			Name:     c.config.RefreshCookieName,
			Value:    result.RefreshToken,
			Path:     "/",
			Expires:  time.Now().Add(c.config.RefreshTTL),
			HTTPOnly: true,
			Secure:   true,
			SameSite: "Strict",
		})
	}

	return ctx.JSON(http.StatusOK, result)
}

func defaultErrHandler(ctx router.Context, err error) error {
	var e *goerrors.Error
	if !goerrors.As(err, &e) {
		e = goerrors.Wrap(err, goerrors.CategoryInternal, "internal error")
	}

	status := http.StatusInternalServerError
	switch e.Category {
	case goerrors.CategoryNotFound:
		status = http.StatusNotFound
	case goerrors.CategoryAuth:
		status = http.StatusUnauthorized
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		status = http.StatusBadRequest
	}

	return ctx.JSON(status, map[string]any{
		"message":  e.Message,
		"textCode": e.TextCode,
	})
}
