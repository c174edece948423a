package models

import (
	"time"

	"github.com/google/uuid"
)

type BlockBreak struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	MinecraftID string    `gorm:"type:varchar(64);not null;index"`
	Block       string    `gorm:"type:varchar(100);not null"`
	PositionX   int       `gorm:"not null"`
	PositionY   int       `gorm:"not null"`
	PositionZ   int       `gorm:"not null"`
	MinedAt     time.Time `gorm:"not null"`
	Hash        string    `gorm:"type:varchar(64);uniqueIndex;not null"`
}

func (BlockBreak) TableName() string {
	return "block_breaks"
}
