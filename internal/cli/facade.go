package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/nutrinani/nutrinani/internal/audit"
	"github.com/nutrinani/nutrinani/internal/config"
	"github.com/nutrinani/nutrinani/internal/database"
	auditRepo "github.com/nutrinani/nutrinani/internal/database/audit"
	"github.com/nutrinani/nutrinani/internal/entrypoint"
	"github.com/nutrinani/nutrinani/internal/logging"
)

// session is everything a command needs to drive the facade from a terminal.
type session struct {
	facade *entrypoint.Facade
	audit  *audit.Service
	db     *database.Database
	log    *zap.Logger
}

// openSession builds the same facade the server uses, so a demo session
// created here is visible to the server and to later commands.
func openSession(ctx context.Context, cfg *config.Config) (*session, error) {
	logCfg := cfg.Log
	if logCfg.Format == "" || logCfg.Format == "json" {
		logCfg.Format = "console"
	}
	if logCfg.Level == "" || logCfg.Level == "info" {
		logCfg.Level = "warn"
	}
	log, err := logging.New(logCfg)
	if err != nil {
		return nil, err
	}

	db, err := database.NewDatabase(cfg.Database.Path, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	auditSvc := audit.NewService(auditRepo.NewRepository(db.DB), log)
	facade, err := entrypoint.NewFacade(ctx, cfg, db, log, auditSvc)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &session{facade: facade, audit: auditSvc, db: db, log: log}, nil
}

func (s *session) Close() error {
	s.audit.Wait()
	err := errors.Join(s.facade.Close(), s.db.Close())
	_ = s.log.Sync()
	return err
}

func output(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}
	return w
}

// usage prints a command's help in one shape for every command.
func usage(name, summary string, examples ...string) func(printDefaults func()) {
	return func(printDefaults func()) {
		fmt.Fprintf(os.Stderr, "Usage: %s %s [options]\n\n", os.Args[0], name)
		fmt.Fprintf(os.Stderr, "%s\n\n", summary)
		fmt.Fprintf(os.Stderr, "Options:\n")
		printDefaults()
		if len(examples) > 0 {
			fmt.Fprintf(os.Stderr, "\nExamples:\n")
			for _, e := range examples {
				fmt.Fprintf(os.Stderr, "  %s %s\n", os.Args[0], e)
			}
		}
	}
}
