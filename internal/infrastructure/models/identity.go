package models

import (
	"time"

	"github.com/google/uuid"
)

// Identity is one chat user and, once verified, their game account
type Identity struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey"`
	DiscordID         string    `gorm:"type:varchar(32);uniqueIndex;not null"`
	DiscordUsername   string    `gorm:"type:varchar(100);not null"`
	MinecraftUsername *string   `gorm:"type:varchar(64)"`
	MinecraftID       *string   `gorm:"type:varchar(64);index"`
	IsVerified        bool      `gorm:"not null;default:false"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (Identity) TableName() string {
	return "users"
}
