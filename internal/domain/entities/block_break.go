package entities

import (
	"time"

	"github.com/google/uuid"
)

// BlockPosition is a block coordinate in the game world
type BlockPosition struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// BlockBreak is one gameplay telemetry event
type BlockBreak struct {
	ID          uuid.UUID     `json:"id"`
	MinecraftID string        `json:"minecraftId"`
	Block       string        `json:"block"`
	Position    BlockPosition `json:"position"`
	MinedAt     time.Time     `json:"minedAt"`
	Hash        string        `json:"hash"`
}

// BlockBreakInput is a raw block break report from the game server
type BlockBreakInput struct {
	MinecraftID string
	Block       string
	Position    string
}
