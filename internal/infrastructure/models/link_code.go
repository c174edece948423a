package models

import (
	"time"

	"github.com/google/uuid"
)

// LinkCode backs the single-pending-code rule with a partial unique index
type LinkCode struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	DiscordID string    `gorm:"type:varchar(32);not null;index;uniqueIndex:idx_link_codes_pending_owner,where:status = 'pending'"`
	Code      string    `gorm:"type:varchar(16);not null;index"`
	Status    string    `gorm:"type:varchar(20);not null;index"`
	IssuedAt  time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time
}

func (LinkCode) TableName() string {
	return "link_codes"
}
