package federation

import (
	"errors"
	"fmt"

	"github.com/worldindex/core/internal/models"
	"gorm.io/gorm"
)

// Ledger is the append-only record of federation activities. The current row
// count doubles as the next activity's sequence number, so appends always go
// through the caller's transaction to keep count and insert atomic.
type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Count returns the number of ledger rows.
func (l *Ledger) Count(tx *gorm.DB) (int64, error) {
	var n int64
	err := tx.Model(&models.ActivityModel{}).Count(&n).Error
	return n, err
}

// Append inserts a new activity inside tx. Its id is the prior row count and
// its identity is derived from it, so the ledger stays gap-free under the
// identity unique index.
func (l *Ledger) Append(tx *gorm.DB, baseURL, kind, actor, object string) (*models.ActivityModel, error) {
	n, err := l.Count(tx)
	if err != nil {
		return nil, err
	}
	row := models.ActivityModel{
		ID:       n,
		Identity: fmt.Sprintf("%s/activities/%d", baseURL, n),
		Actor:    actor,
		Object:   object,
		Kind:     kind,
	}
	if err := tx.Create(&row).Error; err != nil {
		return nil, fmt.Errorf("append activity: %w", err)
	}
	return &row, nil
}

// Get fetches an activity by sequence number, returning (nil, nil) when the
// id is past the end of the ledger.
func (l *Ledger) Get(id int64) (*models.ActivityModel, error) {
	var row models.ActivityModel
	if err := l.db.First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// GetByIdentity fetches an activity by its federation identity.
func (l *Ledger) GetByIdentity(identity string) (*models.ActivityModel, error) {
	var row models.ActivityModel
	if err := l.db.First(&row, "identity = ?", identity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// Recent returns the newest activities, most recent first.
func (l *Ledger) Recent(limit int) ([]models.ActivityModel, error) {
	var rows []models.ActivityModel
	return rows, l.db.Order("id DESC").Limit(limit).Find(&rows).Error
}
