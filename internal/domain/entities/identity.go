package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// Identity is the durable link state for one Discord user.
// IsVerified implies both Minecraft fields are set.
type Identity struct {
	ID                uuid.UUID   `json:"id"`
	DiscordID         string      `json:"discordId"`
	DiscordUsername   string      `json:"discordUsername"`
	MinecraftUsername null.String `json:"minecraftUsername"`
	MinecraftID       null.String `json:"minecraftId"`
	IsVerified        bool        `json:"isVerified"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

// IsLinked reports whether the identity currently has a verified game account
func (i *Identity) IsLinked() bool {
	return i != nil && i.IsVerified && i.MinecraftID.Valid && i.MinecraftUsername.Valid
}

// GameAccount is the Minecraft side of a link
type GameAccount struct {
	MinecraftID       string `json:"minecraftId"`
	MinecraftUsername string `json:"minecraftUsername"`
}

// AccountView is the account details screen: the identity plus its live code, if any
type AccountView struct {
	Identity    *Identity `json:"identity"`
	PendingCode *LinkCode `json:"pendingCode,omitempty"`
}
