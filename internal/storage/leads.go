package storage

import (
	"context"

	"github.com/rotisserie/eris"
	"gorm.io/gorm"

	"github.com/Ananth-NQI/clinic-leadbot/internal/models"
)

// LeadJournal keeps an audit record of every dispatched lead. It is write-only:
// sessions are never restored from it.
type LeadJournal interface {
	Record(ctx context.Context, lead *models.Lead) error
}

// GormJournal writes leads to PostgreSQL through gorm.
type GormJournal struct {
	db *gorm.DB
}

// NewGormJournal creates a journal over an open database handle.
func NewGormJournal(db *gorm.DB) *GormJournal {
	return &GormJournal{db: db}
}

func (j *GormJournal) Record(ctx context.Context, lead *models.Lead) error {
	if err := j.db.WithContext(ctx).Create(lead).Error; err != nil {
		return eris.Wrapf(err, "journal lead %s", lead.LeadID)
	}
	return nil
}

// NopJournal discards leads. Used when no database is configured.
type NopJournal struct{}

func (NopJournal) Record(context.Context, *models.Lead) error { return nil }
