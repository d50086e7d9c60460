// Package tokenstore persists the identity provider's session with its tokens
// sealed by AES-256-GCM, one row per session key: the user pool app client id,
// plus the browser session id when the session belongs to a browser.
package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nutrinani/nutrinani/internal/config"
	"github.com/nutrinani/nutrinani/internal/crypto"
	"github.com/nutrinani/nutrinani/internal/entities"
	"github.com/nutrinani/nutrinani/internal/identity"
)

// DefaultKeyFileName is created next to the database when no key is configured.
const DefaultKeyFileName = ".token_key"

type Store struct {
	db     *gorm.DB
	sealer *crypto.Sealer
}

func New(db *gorm.DB, sealer *crypto.Sealer) *Store {
	return &Store{db: db, sealer: sealer}
}

// ResolveSealer picks the encryption secret: configured key first, then the
// key file, generating and saving a new key when the file does not exist.
func ResolveSealer(cfg config.TokenStore, dbPath string, log *zap.Logger) (*crypto.Sealer, error) {
	if cfg.EncryptionKey != "" {
		return crypto.NewSealerFromSecret(cfg.EncryptionKey)
	}

	keyFile := cfg.KeyFile
	if keyFile == "" {
		keyFile = filepath.Join(filepath.Dir(dbPath), DefaultKeyFileName)
	}

	data, err := os.ReadFile(keyFile)
	if err == nil {
		return crypto.NewSealerFromSecret(strings.TrimSpace(string(data)))
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read key file %s: %w", keyFile, err)
	}

	key, err := crypto.NewKey()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(keyFile, []byte(key), 0o600); err != nil {
		return nil, fmt.Errorf("failed to save encryption key to %s: %w", keyFile, err)
	}
	log.Info("generated token encryption key", zap.String("path", keyFile))
	return crypto.NewSealerFromSecret(key)
}

func additionalData(key, field string) string {
	return key + ":" + field
}

// Save replaces the stored session under key.
func (s *Store) Save(ctx context.Context, key string, sess *identity.Session) error {
	row := entities.ProviderSession{
		SessionKey: key,
		Username:   sess.Username,
		ExpiresAt:  sess.ExpiresAt,
	}

	var err error
	if row.AccessToken, err = s.sealer.Seal(sess.AccessToken, additionalData(key, "access")); err != nil {
		return fmt.Errorf("failed to seal access token: %w", err)
	}
	if row.IDToken, err = s.sealer.Seal(sess.IDToken, additionalData(key, "id")); err != nil {
		return fmt.Errorf("failed to seal id token: %w", err)
	}
	if row.RefreshToken, err = s.sealer.Seal(sess.RefreshToken, additionalData(key, "refresh")); err != nil {
		return fmt.Errorf("failed to seal refresh token: %w", err)
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "access_token", "id_token", "refresh_token", "expires_at", "updated_at"}),
	}).Create(&row)
	if result.Error != nil {
		return fmt.Errorf("failed to save session: %w", result.Error)
	}
	return nil
}

// Load returns the session stored under key, or nil when there is none.
func (s *Store) Load(ctx context.Context, key string) (*identity.Session, error) {
	var row entities.ProviderSession
	err := s.db.WithContext(ctx).Where("session_key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	sess := &identity.Session{Username: row.Username, ExpiresAt: row.ExpiresAt}
	if sess.AccessToken, err = s.sealer.Open(row.AccessToken, additionalData(key, "access")); err != nil {
		return nil, fmt.Errorf("failed to open access token: %w", err)
	}
	if sess.IDToken, err = s.sealer.Open(row.IDToken, additionalData(key, "id")); err != nil {
		return nil, fmt.Errorf("failed to open id token: %w", err)
	}
	if sess.RefreshToken, err = s.sealer.Open(row.RefreshToken, additionalData(key, "refresh")); err != nil {
		return nil, fmt.Errorf("failed to open refresh token: %w", err)
	}
	return sess, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("session_key = ?", key).Delete(&entities.ProviderSession{}).Error; err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
