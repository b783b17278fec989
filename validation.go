package identity

import (
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// slugRE matches lowercase point-slugs: runs of [a-z0-9] joined by a single
// '.', '-', or '_'.
var slugRE = regexp.MustCompile(`^[a-z\d]+(?:(\.|-|_)[a-z\d]+)*$`)

var whitespaceRE = regexp.MustCompile(`\s+`)

// ValidateEmail checks the identifier is a well formed email address.
func ValidateEmail(email string) error {
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateUsername checks the identifier is a well formed slug between 3 and
// 255 characters.
func ValidateUsername(username string) error {
	if err := validation.Validate(username,
		validation.Required,
		validation.Length(3, 255),
		validation.Match(slugRE),
	); err != nil {
		return ErrInvalidUsername
	}
	return nil
}

// IsEmailIdentifier reports whether a free-form sign-in identifier should be
// treated as an email rather than a username. Anything carrying an '@' is an
// email attempt, well formed or not.
func IsEmailIdentifier(identifier string) bool {
	return strings.Contains(identifier, "@")
}

// ValidatePasswordPair ensures both password inputs match.
func ValidatePasswordPair(password, confirmation string) error {
	if password != confirmation {
		return ErrPasswordMismatch
	}
	return nil
}

// formatName collapses runs of whitespace and trims the edges.
func formatName(name string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(name), " ")
}

// pointSlug lowercases a display name and joins its words with points:
// "Jane Doe" becomes "jane.doe". Characters outside [a-z0-9._-] are dropped.
func pointSlug(name string) string {
	name = strings.ToLower(formatName(name))

	var b strings.Builder
	lastSep := true
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSep = false
		case r == ' ', r == '.', r == '-', r == '_':
			if !lastSep {
				b.WriteByte('.')
				lastSep = true
			}
		}
	}

	return strings.TrimSuffix(b.String(), ".")
}
