package identity

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCredentials = "invalid_credentials"
	TextCodeStaleCredentials   = "stale_credentials"
	TextCodePasswordMismatch   = "password_mismatch"
	TextCodeInvalidEmail       = "invalid_email"
	TextCodeInvalidUsername    = "invalid_username"
	TextCodeNotConfirmed       = "email_not_confirmed"
	TextCodeAlreadyConfirmed   = "email_already_confirmed"
	TextCodeTokenExpired       = "token_expired"
	TextCodeTokenMalformed     = "token_malformed"
	TextCodeTokenRevoked       = "token_revoked"
	TextCodeLastPasswordUsed   = "last_password_used"
	TextCodeWrongPassword      = "wrong_password"
	TextCodePasswordUnchanged  = "password_unchanged"
	TextCodeEmailTaken         = "email_in_use"
	TextCodeUsernameTaken      = "username_in_use"
	TextCodeEmptyPassword      = "empty_password"
	TextCodeCacheMiss          = "cache_miss"
)

// ErrInvalidCredentials is the generic failure for credential lookups. The
// message is deliberately non specific so responses cannot be used to
// enumerate accounts.
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrStaleCredentials is returned when a versioned token no longer matches
// the user's current credential version.
var ErrStaleCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeStaleCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrPasswordMismatch is returned when the two password inputs differ.
var ErrPasswordMismatch = goerrors.New("passwords do not match", goerrors.CategoryValidation).
	WithTextCode(TextCodePasswordMismatch).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidEmail is returned for malformed email identifiers.
var ErrInvalidEmail = goerrors.New("invalid email", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidEmail).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidUsername is returned for malformed username identifiers.
var ErrInvalidUsername = goerrors.New("invalid username", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidUsername).
	WithCode(goerrors.CodeBadRequest)

// ErrNotConfirmed blocks sign-in for unconfirmed accounts. The session
// manager re-sends the confirmation email before returning it.
var ErrNotConfirmed = goerrors.New("please confirm your email, a new email has been sent", goerrors.CategoryAuth).
	WithTextCode(TextCodeNotConfirmed).
	WithCode(goerrors.CodeUnauthorized)

// ErrAlreadyConfirmed is returned when a confirmation token is presented
// for an account that is already confirmed.
var ErrAlreadyConfirmed = goerrors.New("email already confirmed", goerrors.CategoryValidation).
	WithTextCode(TextCodeAlreadyConfirmed).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenExpired is returned when a token's expiry has passed.
var ErrTokenExpired = goerrors.New("token expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed covers unparseable tokens, bad signatures, and claim
// mismatches.
var ErrTokenMalformed = goerrors.New("invalid token", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenRevoked is returned when a refresh token's id is blacklisted.
var ErrTokenRevoked = goerrors.New("invalid token", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenRevoked).
	WithCode(goerrors.CodeUnauthorized)

// ErrWrongPassword is returned when the current password check fails on
// authenticated password or email changes.
var ErrWrongPassword = goerrors.New("wrong password", goerrors.CategoryValidation).
	WithTextCode(TextCodeWrongPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrPasswordUnchanged rejects password updates that reuse the current one.
var ErrPasswordUnchanged = goerrors.New("new password must be different", goerrors.CategoryValidation).
	WithTextCode(TextCodePasswordUnchanged).
	WithCode(goerrors.CodeBadRequest)

// ErrEmailTaken is returned on unique email violations.
var ErrEmailTaken = goerrors.New("email already in use", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(goerrors.CodeConflict)

// ErrUsernameTaken is returned on unique username violations.
var ErrUsernameTaken = goerrors.New("username already in use", goerrors.CategoryConflict).
	WithTextCode(TextCodeUsernameTaken).
	WithCode(goerrors.CodeConflict)

// ErrNoEmptyString rejects empty passwords before hashing.
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword is the normalized bcrypt mismatch error.
var ErrMismatchedHashAndPassword = goerrors.New("hashed password does not match", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrCacheMiss reports an absent or expired cache key.
var ErrCacheMiss = goerrors.New("cache key not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeCacheMiss).
	WithCode(goerrors.CodeNotFound)
