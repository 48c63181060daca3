package session

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
)

// TokenLength is the fixed length of every session token in bytes.
const TokenLength = 64

// Token is an opaque session token.
type Token []byte

// String returns a shortened hex form of the token for logs.
func (t Token) String() string {
	if len(t) < 4 {
		return hex.EncodeToString(t)
	}
	return hex.EncodeToString(t[:4]) + "..."
}

// TokenProvider generates and compares session tokens.
type TokenProvider struct {
	random io.Reader
}

// NewTokenProvider creates a provider reading from crypto/rand.
func NewTokenProvider() *TokenProvider {
	return &TokenProvider{random: rand.Reader}
}

// NewTokenProviderWithSource creates a provider reading from r. Tests use it
// to get deterministic tokens.
func NewTokenProviderWithSource(r io.Reader) *TokenProvider {
	return &TokenProvider{random: r}
}

// Generate returns a new random token.
func (p *TokenProvider) Generate() (Token, error) {
	token := make(Token, TokenLength)
	if _, err := io.ReadFull(p.random, token); err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}
	return token, nil
}

// Valid reports whether t has the expected length.
func (p *TokenProvider) Valid(t Token) bool {
	return len(t) == TokenLength
}

// Equal compares two tokens over their full byte sequence.
func (p *TokenProvider) Equal(a, b Token) bool {
	if !p.Valid(a) || !p.Valid(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
