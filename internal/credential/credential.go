// Package credential hashes and checks user passwords.
package credential

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	SchemePlain  = "plain"
	SchemeBcrypt = "bcrypt"
)

// Verifier turns passwords into stored hashes and checks presented
// passwords against them.
type Verifier interface {
	Hash(password string) (string, error)
	Verify(storedHash, password string) bool
}

// New returns the verifier for scheme.
func New(scheme string) (Verifier, error) {
	switch scheme {
	case SchemePlain, "":
		return Plain{}, nil
	case SchemeBcrypt:
		return Bcrypt{Cost: bcrypt.DefaultCost}, nil
	default:
		return nil, fmt.Errorf("unknown hash scheme %q", scheme)
	}
}

// Plain treats the presented value as the hash itself, for clients that hash
// before sending. Comparison is constant time.
type Plain struct{}

func (Plain) Hash(password string) (string, error) {
	return password, nil
}

func (Plain) Verify(storedHash, password string) bool {
	return subtle.ConstantTimeCompare([]byte(storedHash), []byte(password)) == 1
}

// Bcrypt stores bcrypt hashes.
type Bcrypt struct {
	Cost int
}

func (b Bcrypt) Hash(password string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash: %w", err)
	}
	return string(h), nil
}

func (Bcrypt) Verify(storedHash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password)) == nil
}
