package repositories

import (
	"context"

	"nexus.backend/internal/domain/entities"
)

// IdentityRepository defines identity data operations
type IdentityRepository interface {
	GetByDiscordID(ctx context.Context, discordID string) (*entities.Identity, error)
	Create(ctx context.Context, identity *entities.Identity) error
	UpdateDiscordUsername(ctx context.Context, discordID, username string) error
	SetLink(ctx context.Context, discordID string, account entities.GameAccount) error
	ClearLink(ctx context.Context, discordID string) error
}
