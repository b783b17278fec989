package oauth2

import (
	"encoding/json"

	"github.com/goliatone/go-identity"
)

// Profile is the normalized view of a provider user record. Only the name
// and email survive normalization, which is all account creation needs.
type Profile struct {
	Name  string
	Email string
}

type microsoftUser struct {
	DisplayName string `json:"displayName"`
	Mail        string `json:"mail"`
}

type googleUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type facebookUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type githubUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Login string `json:"login"`
}

// normalizeProfile decodes a provider specific payload into a Profile. A
// payload without an email is unusable and reported as a user info failure,
// since the email is the account identity.
func normalizeProfile(provider identity.OAuthProvider, body []byte) (*Profile, error) {
	var profile Profile

	switch provider {
	case identity.ProviderMicrosoft:
		var u microsoftUser
		if err := json.Unmarshal(body, &u); err != nil {
			return nil, wrapProviderErr(ErrUserInfoFailed, err)
		}
		profile = Profile{Name: u.DisplayName, Email: u.Mail}
	case identity.ProviderGoogle:
		var u googleUser
		if err := json.Unmarshal(body, &u); err != nil {
			return nil, wrapProviderErr(ErrUserInfoFailed, err)
		}
		profile = Profile{Name: u.Name, Email: u.Email}
	case identity.ProviderFacebook:
		var u facebookUser
		if err := json.Unmarshal(body, &u); err != nil {
			return nil, wrapProviderErr(ErrUserInfoFailed, err)
		}
		profile = Profile{Name: u.Name, Email: u.Email}
	case identity.ProviderGithub:
		var u githubUser
		if err := json.Unmarshal(body, &u); err != nil {
			return nil, wrapProviderErr(ErrUserInfoFailed, err)
		}
		name := u.Name
		if name == "" {
			name = u.Login
		}
		profile = Profile{Name: name, Email: u.Email}
	default:
		return nil, ErrProviderNotFound
	}

	if profile.Email == "" {
		return nil, ErrUserInfoFailed
	}
	return &profile, nil
}
