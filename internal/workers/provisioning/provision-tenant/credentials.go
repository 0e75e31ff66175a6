package provisiontenant

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	passwordLength = 10
	// No 0/O, I/l/1: passwords are read off an email by humans.
	passwordAlphabet = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	loginFallback    = "admin"
	maxLoginDraws    = 5
)

// LoginBase sanitizes the local part of email into lowercase ASCII letters and digits.
func LoginBase(email string) string {
	local := email
	if at := strings.IndexByte(email, '@'); at >= 0 {
		local = email[:at]
	}
	var b strings.Builder
	for _, r := range strings.ToLower(local) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return loginFallback
	}
	return b.String()
}

// drawLogin appends a random disambiguator in 1000..9999 to base.
func drawLogin(random io.Reader, base string) (string, error) {
	n, err := rand.Int(random, big.NewInt(9000))
	if err != nil {
		return "", fmt.Errorf("draw login suffix: %w", err)
	}
	return fmt.Sprintf("%s%d", base, 1000+n.Int64()), nil
}

// GeneratePassword returns a random password over passwordAlphabet.
func GeneratePassword(random io.Reader) (string, error) {
	out := make([]byte, passwordLength)
	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := range out {
		n, err := rand.Int(random, max)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}

// HashPassword bcrypt-hashes a generated password for storage.
func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
