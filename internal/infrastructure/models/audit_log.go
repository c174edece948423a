package models

import (
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	DiscordID string    `gorm:"type:varchar(32);not null;index"`
	Action    string    `gorm:"type:varchar(50);not null"`
	Details   *string   `gorm:"type:text"`
	Timestamp time.Time `gorm:"not null;index"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
