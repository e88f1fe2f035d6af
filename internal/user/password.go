package user

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher defines minimal hashing interface (abstract so we can swap to argon2 later).
type PasswordHasher interface {
	Hash(pw string) (hash string, algo string, err error)
	Verify(hash, pw string) bool
	NeedsRehash(hash string) bool
}

const (
	SchemeSHA256 = "sha256"
	SchemeBcrypt = "bcrypt"
)

// HashPassword is the legacy digest: hex encoded SHA-256 of the password,
// with no salt. Identical input always yields the identical digest.
func HashPassword(pw string) string {
	sum := sha256.Sum256([]byte(pw))
	return hex.EncodeToString(sum[:])
}

// VerifyPassword reports whether pw hashes to digest.
func VerifyPassword(pw, digest string) bool {
	return ConstantTimeCompare(HashPassword(pw), digest)
}

// Sha256Hasher keeps digests readable by installations that predate bcrypt
// support. It is unsalted and fast; prefer BcryptHasher for new deployments.
type Sha256Hasher struct{}

func (Sha256Hasher) Hash(pw string) (string, string, error) {
	return HashPassword(pw), SchemeSHA256, nil
}

func (Sha256Hasher) Verify(hash, pw string) bool { return VerifyPassword(pw, hash) }

func (Sha256Hasher) NeedsRehash(string) bool { return false }

// BcryptHasher implementation.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) cost() int {
	if b.Cost == 0 {
		return bcrypt.DefaultCost
	}
	return b.Cost
}

func (b BcryptHasher) Hash(pw string) (string, string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), b.cost())
	if err != nil {
		return "", "", err
	}
	return string(h), fmt.Sprintf("%s:%d", SchemeBcrypt, b.cost()), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// NeedsRehash is true when hash was produced with a lower cost than b's.
func (b BcryptHasher) NeedsRehash(hash string) bool {
	c, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return c < b.cost()
}

// scheme strips the parameters from a stored algo tag ("bcrypt:12" -> "bcrypt").
func scheme(algo string) string {
	s, _, _ := strings.Cut(algo, ":")
	if s == "" {
		return SchemeSHA256
	}
	return s
}

// verifierFor returns the hasher able to check a digest stored under algo.
func verifierFor(algo string) PasswordHasher {
	if scheme(algo) == SchemeBcrypt {
		return BcryptHasher{}
	}
	return Sha256Hasher{}
}

// NewHasher builds the hasher used for new and rehashed passwords.
func NewHasher(cfg Config) (PasswordHasher, error) {
	switch cfg.PasswordScheme {
	case "", SchemeSHA256:
		return Sha256Hasher{}, nil
	case SchemeBcrypt:
		if cfg.BcryptCost != 0 && (cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost) {
			return nil, fmt.Errorf("bcrypt cost %d out of range", cfg.BcryptCost)
		}
		return BcryptHasher{Cost: cfg.BcryptCost}, nil
	default:
		return nil, fmt.Errorf("unknown password scheme %q", cfg.PasswordScheme)
	}
}

// ConstantTimeCompare helper (exposed if later we store API keys etc.)
func ConstantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
