package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nutrinani/nutrinani/internal/auth"
	"github.com/nutrinani/nutrinani/internal/database/audit"
	"github.com/nutrinani/nutrinani/internal/entities"
)

// Service records state-changing facade calls as auth events.
type Service struct {
	repo *audit.Repository
	log  *zap.Logger
	wg   sync.WaitGroup
}

var _ auth.Observer = (*Service)(nil)

// NewService creates a new audit service.
func NewService(repo *audit.Repository, log *zap.Logger) *Service {
	return &Service{repo: repo, log: log.Named("audit")}
}

// Log records an event synchronously.
func (s *Service) Log(event *entities.AuthEvent) error {
	if event.CorrelationID == "" {
		event.CorrelationID = uuid.NewString()
	}
	return s.repo.LogEvent(event)
}

// LogAsync records an event in the background (non-blocking).
func (s *Service) LogAsync(event *entities.AuthEvent) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Log(event); err != nil {
			s.log.Warn("failed to log auth event",
				zap.String("operation", string(event.Operation)),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until pending LogAsync writes have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// ObserveAuth turns a facade event into an audit record. Queries are skipped.
func (s *Service) ObserveAuth(_ context.Context, e auth.Event) {
	if e.Query {
		return
	}

	event := &entities.AuthEvent{
		Operation:  e.Operation,
		Mode:       string(e.Mode),
		Email:      truncate(e.Email, 255),
		Status:     entities.AuthStatusSuccess,
		DurationMs: e.Duration.Milliseconds(),
		CreatedAt:  e.At,
	}
	if e.Err != nil {
		event.Status = entities.AuthStatusFailed
		event.ErrorMsg = truncate(auth.ErrorMessage(e.Err), 500)
	}

	s.LogAsync(event)
}

// GetEvents retrieves paginated auth events, newest first.
func (s *Service) GetEvents(f audit.Filter, limit, offset int) ([]entities.AuthEvent, int64, error) {
	return s.repo.ListEvents(f, limit, offset)
}

// DeleteOldEvents removes events older than the specified duration.
func (s *Service) DeleteOldEvents(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	return s.repo.DeleteOldEvents(cutoff)
}

// truncate shortens a string to max length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
