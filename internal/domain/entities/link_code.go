package entities

import (
	"time"

	"github.com/google/uuid"
)

// LinkCodeStatus represents the state of a verification code
type LinkCodeStatus string

const (
	LinkCodeStatusPending     LinkCodeStatus = "pending"
	LinkCodeStatusVerified    LinkCodeStatus = "verified"
	LinkCodeStatusExpired     LinkCodeStatus = "expired"
	LinkCodeStatusInvalidated LinkCodeStatus = "invalidated"
)

// IsTerminal reports whether no further transition is possible
func (s LinkCodeStatus) IsTerminal() bool {
	return s != LinkCodeStatusPending
}

// LinkCode is a single-use verification code issued to a Discord user
type LinkCode struct {
	ID        uuid.UUID      `json:"id"`
	DiscordID string         `json:"discordId"`
	Code      string         `json:"code"`
	Status    LinkCodeStatus `json:"status"`
	IssuedAt  time.Time      `json:"issuedAt"`
	ExpiresAt time.Time      `json:"expiresAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// IsExpiredAt reports whether the code is past its expiry at now
func (c *LinkCode) IsExpiredAt(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// RequestLinkCodeInput asks for a new code on behalf of a Discord user
type RequestLinkCodeInput struct {
	DiscordID       string `json:"-"`
	DiscordUsername string `json:"discordUsername" binding:"required,max=100"`
	Confirm         bool   `json:"confirm"`
}

// ConsumeLinkCodeInput is a code typed in game, forwarded by the game server
type ConsumeLinkCodeInput struct {
	Code              string
	MinecraftID       string
	MinecraftUsername string
}

// LinkOutcome describes a successful consumption
type LinkOutcome struct {
	DiscordID                 string    `json:"discordId"`
	MinecraftID               string    `json:"minecraftId"`
	MinecraftUsername         string    `json:"minecraftUsername"`
	PreviousMinecraftUsername string    `json:"previousMinecraftUsername,omitempty"`
	LinkedAt                  time.Time `json:"linkedAt"`
}

// LinkCodeResponse is what the chat side renders after a request
type LinkCodeResponse struct {
	Code          string    `json:"code"`
	ExpiresAt     time.Time `json:"expiresAt"`
	ExpiresInSecs int64     `json:"expiresInSecs"`
	Superseded    bool      `json:"superseded"`
}
