package user

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/access"
	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-caps-intake/internal/user/repo"
)

// Config holds the credential settings.
type Config struct {
	PasswordScheme string
	BcryptCost     int
	// AdminPassword is the initial password of the bootstrap administrator.
	AdminPassword string
}

// ConfigFromEnv reads PASSWORD_SCHEME, BCRYPT_COST and ADMIN_DEFAULT_PASSWORD.
func ConfigFromEnv() Config {
	cfg := Config{
		PasswordScheme: strings.ToLower(os.Getenv("PASSWORD_SCHEME")),
		AdminPassword:  os.Getenv("ADMIN_DEFAULT_PASSWORD"),
	}
	if v, err := strconv.Atoi(os.Getenv("BCRYPT_COST")); err == nil {
		cfg.BcryptCost = v
	}
	if cfg.PasswordScheme == "" {
		cfg.PasswordScheme = SchemeSHA256
	}
	if cfg.AdminPassword == "" {
		cfg.AdminPassword = "admin"
	}
	return cfg
}

// UserService orchestrates authentication and user lifecycle flows.
type UserService struct {
	repo   userrepo.Repository
	hasher PasswordHasher
	cfg    Config
	logger *zap.SugaredLogger
}

func NewUserService(r userrepo.Repository, hasher PasswordHasher, cfg Config, logger *zap.SugaredLogger) *UserService {
	if hasher == nil {
		hasher = Sha256Hasher{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &UserService{repo: r, hasher: hasher, cfg: cfg, logger: logger}
}

// CredentialsUpdate lists the changes of UpdateCredentials; nil fields are
// left untouched.
type CredentialsUpdate struct {
	Username *string      `json:"username,omitempty"`
	Password *string      `json:"password,omitempty"`
	Role     *entity.Role `json:"role,omitempty"`
}

func (s *UserService) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	return s.repo.GetByUsername(ctx, username)
}

func (s *UserService) Get(ctx context.Context, id int64) (*entity.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) List(ctx context.Context) ([]*entity.User, error) {
	return s.repo.List(ctx)
}

// CountAdmins is used by the access gate to protect the last administrator.
func (s *UserService) CountAdmins(ctx context.Context) (int, error) {
	return s.repo.CountByRole(ctx, entity.RoleAdmin)
}

// Create hashes password and stores a new identity. An empty role means
// RoleUser.
func (s *UserService) Create(ctx context.Context, username, password string, role entity.Role) (*entity.User, error) {
	if err := validUsername(username); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, apperr.Validation("password is required")
	}
	if role == "" {
		role = entity.RoleUser
	}
	if !role.Valid() {
		return nil, apperr.Validation("unknown role %q", role)
	}
	hash, algo, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	u := &entity.User{Username: username, PasswordHash: hash, PasswordAlgo: algo, Role: role}
	if _, err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Infow("identity created", "id", u.ID, "username", u.Username, "role", u.Role)
	return u, nil
}

// validUsername refuses empty names and names with surrounding whitespace.
// Usernames are matched exactly.
func validUsername(name string) error {
	if name == "" {
		return apperr.Validation("username is required")
	}
	if strings.TrimSpace(name) != name {
		return apperr.Validation("username must not start or end with whitespace")
	}
	return nil
}

// UpdateCredentials applies a partial update. Renaming onto a username held
// by another identity fails with ErrAlreadyExists; renames touching the
// bootstrap account are refused by the access gate.
func (s *UserService) UpdateCredentials(ctx context.Context, id int64, upd CredentialsUpdate) (*entity.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Username != nil {
		name := *upd.Username
		if err := validUsername(name); err != nil {
			return nil, err
		}
		if err := access.CheckRename(u, name); err != nil {
			return nil, err
		}
		if name != u.Username {
			other, err := s.repo.GetByUsername(ctx, name)
			switch {
			case err == nil && other.ID != id:
				return nil, apperr.ErrAlreadyExists
			case err != nil && !errors.Is(err, apperr.ErrNotFound):
				return nil, err
			}
		}
		u.Username = name
	}
	if upd.Role != nil {
		if !upd.Role.Valid() {
			return nil, apperr.Validation("unknown role %q", *upd.Role)
		}
		u.Role = *upd.Role
	}
	if upd.Password != nil {
		if *upd.Password == "" {
			return nil, apperr.Validation("password must not be empty")
		}
		hash, algo, err := s.hasher.Hash(*upd.Password)
		if err != nil {
			return nil, err
		}
		u.PasswordHash, u.PasswordAlgo = hash, algo
	}
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Infow("identity updated", "id", id, "username", u.Username, "role", u.Role,
		"password_changed", upd.Password != nil)
	return u, nil
}

// Delete removes an identity unconditionally; callers guard the last admin.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Infow("identity deleted", "id", id)
	return nil
}

// Authenticate checks a username/password pair. Unknown usernames and wrong
// passwords both yield ErrAuthFailed so callers cannot tell them apart.
// Store failures are returned as they are.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*entity.User, error) {
	if username == "" {
		return nil, apperr.ErrAuthFailed
	}
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		// same error as a wrong password
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.ErrAuthFailed
		}
		return nil, err
	}
	if u.PasswordHash == "" || !verifierFor(u.PasswordAlgo).Verify(u.PasswordHash, password) {
		s.logger.Debugw("login failed", "username", username)
		return nil, apperr.ErrAuthFailed
	}

	if s.needsRehash(u) {
		if newHash, algo, hErr := s.hasher.Hash(password); hErr == nil {
			if err := s.repo.UpdatePassword(ctx, u.ID, newHash, algo); err != nil {
				s.logger.Warnw("password rehash failed", "id", u.ID, "err", err)
			} else {
				u.PasswordHash, u.PasswordAlgo = newHash, algo
			}
		}
	}
	return u, nil
}

// needsRehash is true when the stored digest is weaker than what the
// configured hasher produces: legacy SHA-256 under bcrypt, or a bcrypt cost
// below the configured one. A bcrypt digest is never downgraded.
func (s *UserService) needsRehash(u *entity.User) bool {
	if _, ok := s.hasher.(BcryptHasher); !ok {
		return false
	}
	if scheme(u.PasswordAlgo) != SchemeBcrypt {
		return true
	}
	return s.hasher.NeedsRehash(u.PasswordHash)
}

// Bootstrap creates the "admin" identity when it does not exist yet. An
// existing admin keeps its credentials and role. It reports whether an
// identity was created.
func (s *UserService) Bootstrap(ctx context.Context) (bool, error) {
	_, err := s.repo.GetByUsername(ctx, entity.BootstrapUsername)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return false, err
	}
	_, err = s.Create(ctx, entity.BootstrapUsername, s.cfg.AdminPassword, entity.RoleAdmin)
	if errors.Is(err, apperr.ErrAlreadyExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.logger.Infow("bootstrap administrator created", "username", entity.BootstrapUsername)
	return true, nil
}
