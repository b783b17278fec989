// Package oauth2 brokers external provider sign in for the identity
// service. It owns the authorization redirect, the state entry that guards
// the callback, the code-for-token exchange with the provider, and the
// short-lived bridge code the frontend trades for a local auth pair.
package oauth2
