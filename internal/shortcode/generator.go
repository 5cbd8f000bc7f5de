// Package shortcode generates and validates the compact codes that map to
// original URLs.
package shortcode

import (
	"crypto/rand"
	"errors"
)

// Alphabet is the character set for generated codes.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Custom code length bounds.
const (
	MinCustomLen = 3
	MaxCustomLen = 20
)

var (
	ErrInvalidFormat = errors.New("code must be 3-20 alphanumeric characters")
	ErrCodeTaken     = errors.New("code already in use")
	ErrExhausted     = errors.New("could not generate a unique code")
)

// Generator produces random short codes with bounded collision retries.
type Generator struct {
	length     int
	maxRetries int
}

// NewGenerator creates a generator producing codes of the given length,
// giving up after maxRetries collisions.
func NewGenerator(length, maxRetries int) *Generator {
	return &Generator{length: length, maxRetries: maxRetries}
}

// Generate draws random candidates until one misses the existing set.
// At 62^6 combinations exhaustion is practically unreachable for the
// default length, but a saturated keyspace must fail with ErrExhausted
// rather than loop forever.
func (g *Generator) Generate(existing map[string]struct{}) (string, error) {
	for attempt := 0; attempt < g.maxRetries; attempt++ {
		candidate, err := randomCode(g.length)
		if err != nil {
			return "", err
		}
		if _, taken := existing[candidate]; !taken {
			return candidate, nil
		}
	}
	return "", ErrExhausted
}

// ValidateCustom checks a user-supplied code: 3-20 alphanumeric characters
// and not present in the existing set. Pure, no side effects.
func ValidateCustom(code string, existing map[string]struct{}) error {
	if len(code) < MinCustomLen || len(code) > MaxCustomLen {
		return ErrInvalidFormat
	}
	for _, c := range code {
		if !isAlphanumeric(c) {
			return ErrInvalidFormat
		}
	}
	if _, taken := existing[code]; taken {
		return ErrCodeTaken
	}
	return nil
}

func isAlphanumeric(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func randomCode(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	code := make([]byte, length)
	for i, b := range buf {
		code[i] = Alphabet[int(b)%len(Alphabet)]
	}
	return string(code), nil
}
