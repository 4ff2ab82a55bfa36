package database

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/cursorbeacon/cursorbeacon/internal/models"
)

// Repository handles all database operations for activation history
type Repository struct {
	db *DB
}

// NewRepository creates a new repository instance
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// CreateActivation inserts a finished session
func (r *Repository) CreateActivation(a *models.Activation) error {
	result := r.db.Create(a)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert activation")
	}
	return nil
}

// GetActivation retrieves an activation by its session ID
func (r *Repository) GetActivation(sessionID string) (*models.Activation, error) {
	var a models.Activation
	result := r.db.Where("session_id = ?", sessionID).First(&a)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, errors.Wrap(result.Error, "failed to get activation")
	}
	return &a, nil
}

// GetActivationsSince retrieves activations since a given time, newest first
func (r *Repository) GetActivationsSince(since time.Time, limit int) ([]*models.Activation, error) {
	var out []*models.Activation
	q := r.db.Where("timestamp >= ?", since).Order("timestamp DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if result := q.Find(&out); result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query activations")
	}
	return out, nil
}

// GetLatest retrieves the most recent activation
func (r *Repository) GetLatest() (*models.Activation, error) {
	var a models.Activation
	result := r.db.Order("timestamp DESC").First(&a)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(result.Error, "failed to get latest activation")
	}
	return &a, nil
}

// GetOutcomeSummarySince aggregates activations per outcome
func (r *Repository) GetOutcomeSummarySince(since time.Time) ([]models.OutcomeSummary, error) {
	var summaries []models.OutcomeSummary

	result := r.db.Model(&models.Activation{}).
		Select("outcome, COUNT(*) as count, AVG(duration_ms) as avg_duration_ms").
		Where("timestamp >= ?", since).
		Group("outcome").
		Order("count DESC").
		Scan(&summaries)

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query outcome summary")
	}
	return summaries, nil
}

// GetHourSummarySince counts activations per local hour of day
func (r *Repository) GetHourSummarySince(since time.Time) ([]models.HourSummary, error) {
	var stamps []time.Time
	result := r.db.Model(&models.Activation{}).
		Where("timestamp >= ?", since).
		Pluck("timestamp", &stamps)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query activation times")
	}

	var counts [24]int
	for _, ts := range stamps {
		counts[ts.Local().Hour()]++
	}

	var out []models.HourSummary
	for h, n := range counts {
		if n > 0 {
			out = append(out, models.HourSummary{Hour: h, Count: n})
		}
	}
	return out, nil
}

// CountErrorsSince counts error log entries from source since a given time.
// An empty source counts all sources.
func (r *Repository) CountErrorsSince(since time.Time, source string) (int64, error) {
	var n int64
	q := r.db.Model(&models.ErrorLog{}).Where("timestamp >= ?", since)
	if source != "" {
		q = q.Where("source = ?", source)
	}
	if result := q.Count(&n); result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to count errors")
	}
	return n, nil
}

// DeleteOldActivations deletes activations older than a specified date (soft delete)
func (r *Repository) DeleteOldActivations(before time.Time) (int64, error) {
	result := r.db.Where("timestamp < ?", before).Delete(&models.Activation{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to delete old activations")
	}
	return result.RowsAffected, nil
}

// CreateErrorLog inserts a new error log into the database
func (r *Repository) CreateErrorLog(errorLog *models.ErrorLog) error {
	result := r.db.Create(errorLog)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert error log")
	}
	return nil
}

// Clear removes all history from the database
func (r *Repository) Clear() error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM activations").Error; err != nil {
			return err
		}
		return tx.Exec("DELETE FROM error_logs").Error
	})
	if err != nil {
		return errors.Wrap(err, "failed to clear history")
	}
	return nil
}
