package identity

import (
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// ClaimsContextKey is where RequireAuth stores the verified access claims.
const ClaimsContextKey = "identity_claims"

// RefreshCookieName is the cookie carrying the refresh token.
const RefreshCookieName = "rf"

type ControllerRoutes struct {
	SignUp             string
	SignIn             string
	ConfirmEmail       string
	RefreshAccess      string
	Logout             string
	ResetPasswordEmail string
	ResetPassword      string
	UpdatePassword     string
}

// Controller exposes the session lifecycle over HTTP. Refresh tokens ride
// an http-only cookie, everything else is JSON.
type Controller struct {
	Logger       Logger
	Sessions     *SessionManager
	Tokens       *TokenService
	Routes       *ControllerRoutes
	ErrorHandler router.ErrorHandler
}

type ControllerOption func(*Controller) *Controller

func NewController(sessions *SessionManager, tokens *TokenService, opts ...ControllerOption) *Controller {
	c := &Controller{
		Logger:       defLogger{},
		Sessions:     sessions,
		Tokens:       tokens,
		ErrorHandler: defaultErrHandler,
		Routes: &ControllerRoutes{
			SignUp:             "/auth/sign-up",
			SignIn:             "/auth/sign-in",
			ConfirmEmail:       "/auth/confirm-email",
			RefreshAccess:      "/auth/refresh-access",
			Logout:             "/auth/logout",
			ResetPasswordEmail: "/auth/reset-password-email",
			ResetPassword:      "/auth/reset-password",
			UpdatePassword:     "/auth/update-password",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Sessions == nil {
		panic("Missing SessionManager in identity controller...")
	}
	if c.Tokens == nil {
		panic("Missing TokenService in identity controller...")
	}

	return c
}

func WithControllerLogger(logger Logger) ControllerOption {
	return func(c *Controller) *Controller {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerRoutes(routes *ControllerRoutes) ControllerOption {
	return func(c *Controller) *Controller {
		if routes != nil {
			c.Routes = routes
		}
		return c
	}
}

func RegisterRoutes[T any](app router.Router[T], controller *Controller) {
	app.Post(controller.Routes.SignUp, controller.SignUpPost).
		SetName("auth.sign-up.post")
	app.Post(controller.Routes.SignIn, controller.SignInPost).
		SetName("auth.sign-in.post")
	app.Post(controller.Routes.ConfirmEmail, controller.ConfirmEmailPost).
		SetName("auth.confirm-email.post")
	app.Post(controller.Routes.RefreshAccess, controller.RefreshAccessPost).
		SetName("auth.refresh-access.post")
	app.Post(controller.Routes.Logout, controller.LogoutPost).
		SetName("auth.logout.post")
	app.Post(controller.Routes.ResetPasswordEmail, controller.ResetPasswordEmailPost).
		SetName("auth.reset-password-email.post")
	app.Post(controller.Routes.ResetPassword, controller.ResetPasswordPost).
		SetName("auth.reset-password.post")
	app.Post(controller.Routes.UpdatePassword,
		controller.RequireAuth()(controller.UpdatePasswordPost)).
		SetName("auth.update-password.post")
}

// RequireAuth verifies the bearer access token and stores the claims under
// ClaimsContextKey for downstream handlers.
func (a *Controller) RequireAuth() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			header := ctx.GetString("Authorization", "")
			if len(header) < len("Bearer ") || !strings.EqualFold(header[:7], "Bearer ") {
				return a.ErrorHandler(ctx, ErrTokenMalformed)
			}

			claims, err := a.Tokens.Verify(strings.TrimSpace(header[7:]), KindAccess)
			if err != nil {
				return a.ErrorHandler(ctx, err)
			}

			ctx.Locals(ClaimsContextKey, claims)
			return next(ctx)
		}
	}
}

// ClaimsFromContext returns the access claims RequireAuth stashed, if any.
func ClaimsFromContext(ctx router.Context) (*TokenClaims, bool) {
	claims, ok := ctx.Locals(ClaimsContextKey).(*TokenClaims)
	return claims, ok
}

// SignUpRequest payload
type SignUpRequest struct {
	Name            string `form:"name" json:"name"`
	Email           string `form:"email" json:"email"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will run validation rules
func (r SignUpRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(3, 100)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(&r.ConfirmPassword, validation.Required),
	)
}

func (a *Controller) SignUpPost(ctx router.Context) error {
	payload := new(SignUpRequest)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, badRequest(err))
	}
	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(ctx, badRequest(err))
	}

	msg, err := a.Sessions.SignUp(ctx.Context(), SignUpInput{
		Name:            payload.Name,
		Email:           payload.Email,
		Password:        payload.Password,
		ConfirmPassword: payload.ConfirmPassword,
	})
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, msg)
}

// SignInRequest payload
type SignInRequest struct {
	Identifier string `form:"identifier" json:"identifier"`
	Password   string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r SignInRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *Controller) SignInPost(ctx router.Context) error {
	payload := new(SignInRequest)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, badRequest(err))
	}
	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(ctx, badRequest(err))
	}

	result, err := a.Sessions.SignIn(ctx.Context(), payload.Identifier, payload.Password, "")
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return a.respondWithAuth(ctx, result)
}

// ConfirmEmailRequest payload
type ConfirmEmailRequest struct {
	ConfirmationToken string `form:"confirmation_token" json:"confirmationToken"`
}

func (a *Controller) ConfirmEmailPost(ctx router.Context) error {
	payload := new(ConfirmEmailRequest)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, badRequest(err))
	}
	if payload.ConfirmationToken == "" {
		return a.ErrorHandler(ctx, ErrTokenMalformed)
	}

	result, err := a.Sessions.ConfirmEmail(ctx.Context(), payload.ConfirmationToken, "")
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return a.respondWithAuth(ctx, result)
}

// RefreshRequest payload, only consulted when the cookie is absent.
type RefreshRequest struct {
	RefreshToken string `form:"refresh_token" json:"refreshToken"`
}

func (a *Controller) RefreshAccessPost(ctx router.Context) error {
	token := a.refreshTokenFrom(ctx)
	if token == "" {
		return a.ErrorHandler(ctx, ErrTokenMalformed)
	}

	result, err := a.Sessions.RefreshTokenAccess(ctx.Context(), token, "")
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return a.respondWithAuth(ctx, result)
}

func (a *Controller) LogoutPost(ctx router.Context) error {
	token := a.refreshTokenFrom(ctx)
	if token == "" {
		return a.ErrorHandler(ctx, ErrTokenMalformed)
	}

	msg, err := a.Sessions.Logout(ctx.Context(), token, "")
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	a.clearRefreshCookie(ctx)
	return ctx.JSON(http.StatusOK, msg)
}

// ResetPasswordEmailRequest payload
type ResetPasswordEmailRequest struct {
	Email string `form:"email" json:"email"`
}

func (a *Controller) ResetPasswordEmailPost(ctx router.Context) error {
	payload := new(ResetPasswordEmailRequest)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, badRequest(err))
	}

	msg, err := a.Sessions.ResetPasswordEmail(ctx.Context(), payload.Email, "")
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, msg)
}

// ResetPasswordRequest payload
type ResetPasswordRequest struct {
	ResetToken      string `form:"reset_token" json:"resetToken"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirmPassword"`
}

// Validate will run validation rules
func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ResetToken, validation.Required),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(&r.ConfirmPassword, validation.Required),
	)
}

func (a *Controller) ResetPasswordPost(ctx router.Context) error {
	payload := new(ResetPasswordRequest)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, badRequest(err))
	}
	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(ctx, badRequest(err))
	}

	msg, err := a.Sessions.ResetPassword(ctx.Context(), payload.ResetToken, payload.Password, payload.ConfirmPassword)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, msg)
}

// UpdatePasswordRequest payload
type UpdatePasswordRequest struct {
	CurrentPassword string `form:"current_password" json:"currentPassword"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirmPassword"`
}

// Validate will run validation rules
func (r UpdatePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(&r.ConfirmPassword, validation.Required),
	)
}

func (a *Controller) UpdatePasswordPost(ctx router.Context) error {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return a.ErrorHandler(ctx, ErrTokenMalformed)
	}

	payload := new(UpdatePasswordRequest)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, badRequest(err))
	}
	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(ctx, badRequest(err))
	}

	result, err := a.Sessions.UpdatePassword(ctx.Context(),
		claims.UserID, payload.CurrentPassword, payload.Password, payload.ConfirmPassword, "")
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return a.respondWithAuth(ctx, result)
}

func (a *Controller) respondWithAuth(ctx router.Context, result *AuthResult) error {
	ctx.Cookie(&router.Cookie{
		Name:     RefreshCookieName,
		Value:    result.RefreshToken,
		Path:     "/",
		Expires:  time.Now().Add(a.Tokens.RefreshTTL()),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Strict",
	})
	return ctx.JSON(http.StatusOK, result)
}

func (a *Controller) refreshTokenFrom(ctx router.Context) string {
	if token := ctx.Cookies(RefreshCookieName); token != "" {
		return token
	}
	payload := new(RefreshRequest)
	if err := ctx.Bind(payload); err != nil {
		return ""
	}
	return payload.RefreshToken
}

func (a *Controller) clearRefreshCookie(ctx router.Context) {
	ctx.Cookie(&router.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
	})
}

func badRequest(err error) error {
	var e *goerrors.Error
	if goerrors.As(err, &e) {
		return err
	}
	return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid payload").
		WithCode(goerrors.CodeBadRequest)
}

func defaultErrHandler(ctx router.Context, err error) error {
	var e *goerrors.Error
	if !goerrors.As(err, &e) {
		e = goerrors.Wrap(err, goerrors.CategoryInternal, "internal error")
	}

	return ctx.JSON(categoryStatus(e.Category), map[string]any{
		"message":  e.Message,
		"textCode": e.TextCode,
	})
}

func categoryStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
