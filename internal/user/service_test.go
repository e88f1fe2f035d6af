package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-caps-intake/internal/user/repo"
)

func setupService(t *testing.T, hasher PasswordHasher) (*UserService, *userrepo.LevelRepo) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	r := userrepo.NewLevelRepo(db)
	return NewUserService(r, hasher, Config{AdminPassword: "admin"}, zap.NewNop().Sugar()), r
}

func ptr[T any](v T) *T { return &v }

func TestBootstrap_Idempotent(t *testing.T) {
	svc, _ := setupService(t, nil)
	ctx := context.Background()

	created, err := svc.Bootstrap(ctx)
	require.NoError(t, err)
	assert.True(t, created)

	// a changed password must survive a second bootstrap
	admin, err := svc.FindByUsername(ctx, "admin")
	require.NoError(t, err)
	_, err = svc.UpdateCredentials(ctx, admin.ID, CredentialsUpdate{Password: ptr("nova-senha")})
	require.NoError(t, err)

	created, err = svc.Bootstrap(ctx)
	require.NoError(t, err)
	assert.False(t, created)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, entity.RoleAdmin, all[0].Role)

	_, err = svc.Authenticate(ctx, "admin", "admin")
	assert.ErrorIs(t, err, apperr.ErrAuthFailed)
	_, err = svc.Authenticate(ctx, "admin", "nova-senha")
	assert.NoError(t, err)
}

func TestAuthenticate_NoEnumerationSignal(t *testing.T) {
	svc, _ := setupService(t, nil)
	ctx := context.Background()
	_, err := svc.Bootstrap(ctx)
	require.NoError(t, err)

	_, errUnknown := svc.Authenticate(ctx, "nope", "x")
	_, errWrong := svc.Authenticate(ctx, "admin", "wrongpass")
	assert.ErrorIs(t, errUnknown, apperr.ErrAuthFailed)
	assert.ErrorIs(t, errWrong, apperr.ErrAuthFailed)
	assert.Equal(t, errUnknown.Error(), errWrong.Error())

	u, err := svc.Authenticate(ctx, "admin", "admin")
	require.NoError(t, err)
	assert.Equal(t, "admin", u.Username)
}

func TestCreate_DuplicateUsername(t *testing.T) {
	svc, _ := setupService(t, nil)
	ctx := context.Background()

	u, err := svc.Create(ctx, "ana", "pw", "")
	require.NoError(t, err)
	assert.Equal(t, entity.RoleUser, u.Role)
	assert.Equal(t, HashPassword("pw"), u.PasswordHash)

	_, err = svc.Create(ctx, "ana", "other", entity.RoleAdmin)
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)

	// exact match only
	_, err = svc.Create(ctx, "Ana", "pw", entity.RoleUser)
	assert.NoError(t, err)

	_, err = svc.Create(ctx, " ", "pw", entity.RoleUser)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.Create(ctx, "bia", "pw", entity.Role("root"))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestUpdateCredentials_Partial(t *testing.T) {
	svc, _ := setupService(t, nil)
	ctx := context.Background()

	ana, err := svc.Create(ctx, "ana", "pw", entity.RoleUser)
	require.NoError(t, err)
	_, err = svc.Create(ctx, "bia", "pw", entity.RoleUser)
	require.NoError(t, err)

	got, err := svc.UpdateCredentials(ctx, ana.ID, CredentialsUpdate{Role: ptr(entity.RoleAdmin)})
	require.NoError(t, err)
	assert.Equal(t, "ana", got.Username)
	assert.Equal(t, entity.RoleAdmin, got.Role)
	_, err = svc.Authenticate(ctx, "ana", "pw")
	assert.NoError(t, err)

	_, err = svc.UpdateCredentials(ctx, ana.ID, CredentialsUpdate{Username: ptr("bia")})
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)

	// renaming to its own name is not a conflict
	_, err = svc.UpdateCredentials(ctx, ana.ID, CredentialsUpdate{Username: ptr("ana")})
	assert.NoError(t, err)

	got, err = svc.UpdateCredentials(ctx, ana.ID, CredentialsUpdate{Username: ptr("ana.souza"), Password: ptr("new")})
	require.NoError(t, err)
	assert.Equal(t, "ana.souza", got.Username)
	_, err = svc.FindByUsername(ctx, "ana")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.Authenticate(ctx, "ana.souza", "new")
	assert.NoError(t, err)

	_, err = svc.UpdateCredentials(ctx, 999, CredentialsUpdate{Password: ptr("x")})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateCredentials_BootstrapNameIsFixed(t *testing.T) {
	svc, _ := setupService(t, nil)
	ctx := context.Background()
	_, err := svc.Bootstrap(ctx)
	require.NoError(t, err)
	admin, err := svc.FindByUsername(ctx, "admin")
	require.NoError(t, err)
	ana, err := svc.Create(ctx, "ana", "pw", entity.RoleAdmin)
	require.NoError(t, err)

	_, err = svc.UpdateCredentials(ctx, admin.ID, CredentialsUpdate{Username: ptr("root")})
	assert.ErrorIs(t, err, apperr.ErrDenied)
	_, err = svc.UpdateCredentials(ctx, ana.ID, CredentialsUpdate{Username: ptr("admin")})
	assert.ErrorIs(t, err, apperr.ErrDenied)

	created, err := svc.Bootstrap(ctx)
	require.NoError(t, err)
	assert.False(t, created)
	n, err := svc.CountAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestUsernames_AreExact(t *testing.T) {
	svc, _ := setupService(t, nil)
	ctx := context.Background()
	_, err := svc.Bootstrap(ctx)
	require.NoError(t, err)

	for _, name := range []string{" admin", "admin ", "\tana", ""} {
		_, err := svc.Create(ctx, name, "pw", entity.RoleUser)
		assert.ErrorIs(t, err, apperr.ErrValidation, "%q", name)
	}
	ana, err := svc.Create(ctx, "Ana", "pw", entity.RoleUser)
	require.NoError(t, err)
	_, err = svc.Create(ctx, "ana", "pw", entity.RoleUser)
	assert.NoError(t, err)

	_, err = svc.UpdateCredentials(ctx, ana.ID, CredentialsUpdate{Username: ptr("Ana ")})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Authenticate(ctx, " admin", "admin")
	assert.ErrorIs(t, err, apperr.ErrAuthFailed)
}

func TestDeleteAndCountAdmins(t *testing.T) {
	svc, _ := setupService(t, nil)
	ctx := context.Background()

	_, err := svc.Bootstrap(ctx)
	require.NoError(t, err)
	chefe, err := svc.Create(ctx, "chefe", "pw", entity.RoleAdmin)
	require.NoError(t, err)

	n, err := svc.CountAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, svc.Delete(ctx, chefe.ID))
	assert.ErrorIs(t, svc.Delete(ctx, chefe.ID), apperr.ErrNotFound)

	n, err = svc.CountAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAuthenticate_RehashesToConfiguredScheme(t *testing.T) {
	legacy, r := setupService(t, nil)
	ctx := context.Background()
	_, err := legacy.Create(ctx, "ana", "pw", entity.RoleUser)
	require.NoError(t, err)

	upgraded := NewUserService(r, BcryptHasher{Cost: bcrypt.MinCost}, Config{}, nil)
	u, err := upgraded.Authenticate(ctx, "ana", "pw")
	require.NoError(t, err)
	assert.Equal(t, "bcrypt:4", u.PasswordAlgo)

	stored, err := upgraded.FindByUsername(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, "bcrypt:4", stored.PasswordAlgo)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("pw")))

	_, err = upgraded.Authenticate(ctx, "ana", "pw")
	assert.NoError(t, err)
}

func TestAuthenticate_KeepsStrongerDigest(t *testing.T) {
	strong, r := setupService(t, BcryptHasher{Cost: bcrypt.MinCost + 1})
	ctx := context.Background()
	_, err := strong.Create(ctx, "ana", "pw", entity.RoleUser)
	require.NoError(t, err)
	before, err := strong.FindByUsername(ctx, "ana")
	require.NoError(t, err)

	// an instance still on the default scheme, or a lower cost
	for _, h := range []PasswordHasher{Sha256Hasher{}, BcryptHasher{Cost: bcrypt.MinCost}} {
		svc := NewUserService(r, h, Config{}, nil)
		_, err := svc.Authenticate(ctx, "ana", "pw")
		require.NoError(t, err)

		stored, err := svc.FindByUsername(ctx, "ana")
		require.NoError(t, err)
		assert.Equal(t, before.PasswordAlgo, stored.PasswordAlgo)
		assert.Equal(t, before.PasswordHash, stored.PasswordHash)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("PASSWORD_SCHEME", "")
	t.Setenv("BCRYPT_COST", "")
	t.Setenv("ADMIN_DEFAULT_PASSWORD", "")
	assert.Equal(t, Config{PasswordScheme: "sha256", AdminPassword: "admin"}, ConfigFromEnv())

	t.Setenv("PASSWORD_SCHEME", "BCRYPT")
	t.Setenv("BCRYPT_COST", "11")
	cfg := ConfigFromEnv()
	assert.Equal(t, "bcrypt", cfg.PasswordScheme)
	assert.Equal(t, 11, cfg.BcryptCost)
}
