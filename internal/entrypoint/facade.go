package entrypoint

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/nutrinani/nutrinani/internal/auth"
	"github.com/nutrinani/nutrinani/internal/config"
	"github.com/nutrinani/nutrinani/internal/database"
	"github.com/nutrinani/nutrinani/internal/storage"
	"github.com/nutrinani/nutrinani/internal/tokenstore"
)

// Facade is the configured authenticator and the resources backing it.
// The server and the CLI both build one.
type Facade struct {
	Auth auth.Authenticator

	closers []func() error
}

// NewFacade selects the auth mode and builds only that mode's backend:
// demo storage in demo mode, the encrypted provider session cache in
// production mode.
func NewFacade(ctx context.Context, cfg *config.Config, db *database.Database, log *zap.Logger, observers ...auth.Observer) (*Facade, error) {
	f := &Facade{}
	deps := auth.Deps{Logger: log}

	switch auth.SelectMode(cfg.Auth) {
	case config.AuthModeCognito:
		sealer, err := tokenstore.ResolveSealer(cfg.TokenStore, cfg.Database.Path, log)
		if err != nil {
			return nil, fmt.Errorf("token store key: %w", err)
		}
		deps.Cache = tokenstore.New(db.DB, sealer)

	default:
		sqlDB, err := db.SQL()
		if err != nil {
			return nil, err
		}
		store, closeStore, err := storage.Open(ctx, cfg.Demo, sqlDB)
		if err != nil {
			return nil, err
		}
		f.closers = append(f.closers, closeStore)
		deps.Storage = store
		log.Info("demo session storage ready", zap.String("backend", string(cfg.Demo.Storage)))
	}

	a, err := auth.New(ctx, cfg, deps)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	f.Auth = auth.Observe(a, observers...)
	return f, nil
}

// Close releases the storage behind the facade.
func (f *Facade) Close() error {
	var errs []error
	for _, c := range f.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	f.closers = nil
	return errors.Join(errs...)
}
