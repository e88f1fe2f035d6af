// Package app assembles the stores and services from environment config.
// Both the HTTP server and the admin CLI start from here.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/syndtr/goleveldb/leveldb"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/assessment"
	assessmentrepo "github.com/ovaphlow/pitchfork/service-caps-intake/internal/assessment/repo"
	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/router"
	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/session"
	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/user"
	userrepo "github.com/ovaphlow/pitchfork/service-caps-intake/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-caps-intake/pkg/database"
)

// Config gathers the per-package configs.
type Config struct {
	Database   database.Config
	Users      user.Config
	Assessment assessment.Config
	Session    session.Config
}

func ConfigFromEnv() Config {
	return Config{
		Database:   database.ConfigFromEnv(),
		Users:      user.ConfigFromEnv(),
		Assessment: assessment.ConfigFromEnv(),
		Session:    session.ConfigFromEnv(),
	}
}

// App holds the wired services. Close releases every store it opened.
type App struct {
	Users       *user.UserService
	Assessments *assessment.Service
	Drafts      *assessment.Drafts
	Sessions    *session.Service

	logger  *zap.SugaredLogger
	closers []func() error
}

// Stores is the pair of repositories backing one store driver.
type Stores struct {
	Users       userrepo.Repository
	Assessments assessmentrepo.Repository
}

// OpenStores connects the configured driver and ensures its schema.
func OpenStores(ctx context.Context, cfg database.Config) (Stores, func() error, error) {
	var (
		s       Stores
		closeFn func() error
	)
	switch cfg.Driver {
	case database.DriverPostgres:
		db, err := database.Connect(ctx, cfg)
		if err != nil {
			return Stores{}, nil, err
		}
		s = Stores{Users: userrepo.NewUserRepo(db), Assessments: assessmentrepo.NewPostgresRepo(db)}
		closeFn = db.Close
	case database.DriverLevelDB:
		db, err := database.OpenLevel(cfg)
		if err != nil {
			return Stores{}, nil, err
		}
		s = Stores{Users: userrepo.NewLevelRepo(db), Assessments: assessmentrepo.NewLevelRepo(db)}
		closeFn = func() error { return closeLevel(db) }
	default:
		return Stores{}, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.Driver)
	}
	if err := s.Users.EnsureTable(ctx); err != nil {
		_ = closeFn()
		return Stores{}, nil, fmt.Errorf("ensure users table: %w", err)
	}
	if err := s.Assessments.EnsureTable(ctx); err != nil {
		_ = closeFn()
		return Stores{}, nil, fmt.Errorf("ensure assessments table: %w", err)
	}
	return s, closeFn, nil
}

func closeLevel(db *leveldb.DB) error {
	if err := db.Close(); err != nil && !errors.Is(err, leveldb.ErrClosed) {
		return err
	}
	return nil
}

// New wires the services over already opened stores and creates the
// bootstrap administrator when it is missing.
func New(ctx context.Context, cfg Config, stores Stores, logger *zap.SugaredLogger) (*App, error) {
	hasher, err := user.NewHasher(cfg.Users)
	if err != nil {
		return nil, err
	}
	users := user.NewUserService(stores.Users, hasher, cfg.Users, logger)
	created, err := users.Bootstrap(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}
	if created {
		logger.Warnw("bootstrap administrator created with the configured default password; change it")
	}

	a := &App{Users: users, logger: logger}
	revoker, closeRevoker, err := session.NewRevoker(ctx, cfg.Session)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeRevoker)
	a.Sessions, err = session.NewService(cfg.Session, revoker)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	if cfg.Session.Secret == "" {
		logger.Warnw("SESSION_SECRET not set; sessions end on restart")
	}

	a.Assessments = assessment.NewService(stores.Assessments, cfg.Assessment, logger)
	a.Drafts = assessment.NewDrafts(a.Assessments)
	return a, nil
}

// Open is OpenStores followed by New; the store is closed with the App.
func Open(ctx context.Context, cfg Config, logger *zap.SugaredLogger) (*App, error) {
	stores, closeStores, err := OpenStores(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a, err := New(ctx, cfg, stores, logger)
	if err != nil {
		_ = closeStores()
		return nil, err
	}
	a.closers = append(a.closers, closeStores)
	logger.Infow("store ready", "driver", cfg.Database.Driver)
	return a, nil
}

// Handler mounts the HTTP routes over the App's services.
func (a *App) Handler() http.Handler {
	return router.RegisterRoutes(a.logger, router.Deps{
		Sessions:    a.Sessions,
		Users:       a.Users,
		Assessments: a.Assessments,
		Drafts:      a.Drafts,
	})
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
