package audit

import (
	"time"

	"gorm.io/gorm"

	"github.com/nutrinani/nutrinani/internal/entities"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// LogEvent saves an auth event.
func (r *Repository) LogEvent(event *entities.AuthEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	return r.db.Create(event).Error
}

// Filter narrows ListEvents. Zero values match everything.
type Filter struct {
	Email     string
	Operation entities.AuthOperation
	Status    entities.AuthStatus
}

// ListEvents returns a page of events, newest first, and the total match count.
func (r *Repository) ListEvents(f Filter, limit, offset int) ([]entities.AuthEvent, int64, error) {
	query := r.db.Model(&entities.AuthEvent{})
	if f.Email != "" {
		query = query.Where("email = ?", f.Email)
	}
	if f.Operation != "" {
		query = query.Where("operation = ?", f.Operation)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var events []entities.AuthEvent
	err := query.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&events).Error
	return events, total, err
}

// DeleteOldEvents removes events created before olderThan and returns how many were deleted.
func (r *Repository) DeleteOldEvents(olderThan time.Time) (int64, error) {
	result := r.db.Where("created_at < ?", olderThan).Delete(&entities.AuthEvent{})
	return result.RowsAffected, result.Error
}
