package oauth2

import "github.com/goliatone/go-errors"

const (
	TextCodeProviderNotFound = "oauth_provider_not_found"
	TextCodeCorruptedState   = "oauth_corrupted_state"
	TextCodeExchangeFail     = "oauth_token_exchange_failed"
	TextCodeUserInfoFail     = "oauth_user_info_failed"
	TextCodeInvalidCode      = "oauth_invalid_code"
)

// ErrProviderNotFound is returned when a requested provider is not configured.
var ErrProviderNotFound = errors.New("page not found", errors.CategoryNotFound).
	WithTextCode(TextCodeProviderNotFound).
	WithCode(errors.CodeNotFound)

// ErrCorruptedState is returned when the callback state is unknown, expired,
// or was issued for a different provider.
var ErrCorruptedState = errors.New("corrupted state", errors.CategoryAuth).
	WithTextCode(TextCodeCorruptedState).
	WithCode(errors.CodeUnauthorized)

// ErrExchangeFailed is returned when the provider rejects the code exchange.
var ErrExchangeFailed = errors.New("token exchange failed", errors.CategoryAuth).
	WithTextCode(TextCodeExchangeFail).
	WithCode(errors.CodeUnauthorized)

// ErrUserInfoFailed is returned when the provider profile fetch fails.
var ErrUserInfoFailed = errors.New("failed to fetch user info", errors.CategoryAuth).
	WithTextCode(TextCodeUserInfoFail).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidCode is returned when a bridge code is unknown, expired, or
// already spent.
var ErrInvalidCode = errors.New("code is invalid or expired", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCode).
	WithCode(errors.CodeUnauthorized)
