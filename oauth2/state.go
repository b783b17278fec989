package oauth2

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const codeLength = 22

const base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// generateState produces the CSRF guard for the authorization redirect:
// 16 random bytes, hex encoded.
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate state")
	}
	return hex.EncodeToString(b), nil
}

// generateCode produces a one-time bridge code: a uuid's 128 bits rendered
// as base 62 and left padded to 22 characters.
func generateCode() string {
	id := uuid.New()

	n := new(big.Int).SetBytes(id[:])
	base := big.NewInt(int64(len(base62Alphabet)))
	mod := new(big.Int)

	buf := make([]byte, 0, codeLength)
	for n.Sign() > 0 {
		n.DivMod(n, base, mod)
		buf = append(buf, base62Alphabet[mod.Int64()])
	}
	for len(buf) < codeLength {
		buf = append(buf, '0')
	}

	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}

func stateKey(state string) string {
	return "oauth_state:" + state
}

func codeKey(code string) string {
	return "oauth_code:" + code
}
