package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword_DeterministicHex(t *testing.T) {
	assert.Equal(t, HashPassword("admin"), HashPassword("admin"))
	assert.Equal(t, "8c6976e5b5410415bde908bd4dee15dfb167a9c873fc4bb8a81f6f2ab448a918", HashPassword("admin"))
	assert.NotEqual(t, HashPassword("admin"), HashPassword("Admin"))
	assert.True(t, VerifyPassword("admin", HashPassword("admin")))
	assert.False(t, VerifyPassword("admin ", HashPassword("admin")))
}

func TestBcryptHasher(t *testing.T) {
	h := BcryptHasher{Cost: bcrypt.MinCost}
	hash, algo, err := h.Hash("s3cret")
	require.NoError(t, err)
	assert.Equal(t, "bcrypt:4", algo)
	assert.True(t, h.Verify(hash, "s3cret"))
	assert.False(t, h.Verify(hash, "wrong"))
	assert.False(t, h.NeedsRehash(hash))
	assert.True(t, BcryptHasher{Cost: bcrypt.MinCost + 1}.NeedsRehash(hash))
	assert.True(t, h.NeedsRehash(HashPassword("s3cret")))
}

func TestVerifierFor(t *testing.T) {
	assert.IsType(t, Sha256Hasher{}, verifierFor(""))
	assert.IsType(t, Sha256Hasher{}, verifierFor("sha256"))
	assert.IsType(t, BcryptHasher{}, verifierFor("bcrypt:12"))
}

func TestNewHasher(t *testing.T) {
	h, err := NewHasher(Config{})
	require.NoError(t, err)
	assert.IsType(t, Sha256Hasher{}, h)

	h, err = NewHasher(Config{PasswordScheme: "bcrypt", BcryptCost: 10})
	require.NoError(t, err)
	assert.Equal(t, BcryptHasher{Cost: 10}, h)

	_, err = NewHasher(Config{PasswordScheme: "bcrypt", BcryptCost: 99})
	assert.Error(t, err)
	_, err = NewHasher(Config{PasswordScheme: "md5"})
	assert.Error(t, err)
}
