// Package identity implements the credential lifecycle for a multi-provider
// authentication service: JWT issuance and verification across four token
// kinds, credential-version invalidation, refresh token rotation with
// blacklisting, and the OAuth2 brokering that bridges external providers
// into first-party sessions.
//
// Token kinds:
//   - Access tokens are signed with RSA so downstream services can verify
//     them with the public key alone.
//   - Confirmation, reset-password, and refresh tokens are HMAC signed with
//     per-kind secrets and embed the user's credential version. Bumping the
//     version (password change, email confirmation) silently invalidates
//     every outstanding versioned token without enumerating them.
//   - Refresh tokens additionally carry a stable token id. Rotation issues a
//     new bearer string that reuses the id, so a single blacklist entry
//     written at logout covers every rotated generation of the session.
//
// The SessionManager orchestrates sign-up, sign-in, refresh, logout, and
// password recovery against a Users repository (Bun), a RevocationCache
// (Redis in production, in-memory for tests), and a Mailer. The oauth2
// subpackage brokers authorization-code flows for external providers and
// exchanges them for first-party token pairs through a short-lived,
// single-use bridge code.
package identity
