package usecases_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"nexus.backend/internal/domain/entities"
	domainerrors "nexus.backend/internal/domain/errors"
	"nexus.backend/pkg/utils"
)

// memoryStore is a mutex-guarded record store with the same conditional
// update semantics as the SQL repositories, safe for concurrent tests.
type memoryStore struct {
	mu         sync.Mutex
	identities map[string]entities.Identity
	codes      map[uuid.UUID]entities.LinkCode
	audits     []entities.AuditLog
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		identities: map[string]entities.Identity{},
		codes:      map[uuid.UUID]entities.LinkCode{},
	}
}

func (s *memoryStore) identityRepo() *memIdentityRepo { return &memIdentityRepo{s} }
func (s *memoryStore) codeRepo() *memLinkCodeRepo     { return &memLinkCodeRepo{s} }
func (s *memoryStore) auditRepo() *memAuditLogRepo    { return &memAuditLogRepo{s} }

func (s *memoryStore) codesFor(discordID string, status entities.LinkCodeStatus) []entities.LinkCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entities.LinkCode
	for _, c := range s.codes {
		if c.DiscordID == discordID && (status == "" || c.Status == status) {
			out = append(out, c)
		}
	}
	return out
}

func (s *memoryStore) actionsFor(discordID string) []entities.AuditAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entities.AuditAction
	for _, a := range s.audits {
		if a.DiscordID == discordID {
			out = append(out, a.Action)
		}
	}
	return out
}

type passthroughUoW struct{}

func (passthroughUoW) Do(ctx context.Context, f func(context.Context) error) error { return f(ctx) }

type memIdentityRepo struct{ s *memoryStore }

func (r *memIdentityRepo) GetByDiscordID(_ context.Context, discordID string) (*entities.Identity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	identity, ok := r.s.identities[discordID]
	if !ok {
		return nil, domainerrors.ErrNotFound
	}
	return &identity, nil
}

func (r *memIdentityRepo) Create(_ context.Context, identity *entities.Identity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.identities[identity.DiscordID]; ok {
		return domainerrors.ErrAlreadyExists
	}
	r.s.identities[identity.DiscordID] = *identity
	return nil
}

func (r *memIdentityRepo) UpdateDiscordUsername(_ context.Context, discordID, username string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	identity, ok := r.s.identities[discordID]
	if !ok {
		return domainerrors.ErrNotFound
	}
	identity.DiscordUsername = username
	r.s.identities[discordID] = identity
	return nil
}

func (r *memIdentityRepo) SetLink(_ context.Context, discordID string, account entities.GameAccount) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	identity, ok := r.s.identities[discordID]
	if !ok {
		return domainerrors.ErrNotFound
	}
	identity.MinecraftID = null.StringFrom(account.MinecraftID)
	identity.MinecraftUsername = null.StringFrom(account.MinecraftUsername)
	identity.IsVerified = true
	r.s.identities[discordID] = identity
	return nil
}

func (r *memIdentityRepo) ClearLink(_ context.Context, discordID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	identity, ok := r.s.identities[discordID]
	if !ok || !identity.IsVerified {
		return domainerrors.ErrNotFound
	}
	identity.MinecraftID = null.String{}
	identity.MinecraftUsername = null.String{}
	identity.IsVerified = false
	r.s.identities[discordID] = identity
	return nil
}

type memLinkCodeRepo struct{ s *memoryStore }

func (r *memLinkCodeRepo) Create(_ context.Context, code *entities.LinkCode) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if code.Status == entities.LinkCodeStatusPending {
		for _, c := range r.s.codes {
			if c.DiscordID == code.DiscordID && c.Status == entities.LinkCodeStatusPending {
				return domainerrors.ErrAlreadyExists
			}
		}
	}
	r.s.codes[code.ID] = *code
	return nil
}

func (r *memLinkCodeRepo) GetByCode(_ context.Context, value string) (*entities.LinkCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var found *entities.LinkCode
	for _, c := range r.s.codes {
		if c.Code == value && (found == nil || c.IssuedAt.After(found.IssuedAt)) {
			c := c
			found = &c
		}
	}
	if found == nil {
		return nil, domainerrors.ErrNotFound
	}
	return found, nil
}

func (r *memLinkCodeRepo) GetByID(_ context.Context, id uuid.UUID) (*entities.LinkCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.codes[id]
	if !ok {
		return nil, domainerrors.ErrNotFound
	}
	return &c, nil
}

func (r *memLinkCodeRepo) GetPendingByDiscordID(_ context.Context, discordID string) (*entities.LinkCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.codes {
		if c.DiscordID == discordID && c.Status == entities.LinkCodeStatusPending {
			return &c, nil
		}
	}
	return nil, domainerrors.ErrNotFound
}

func (r *memLinkCodeRepo) Transition(_ context.Context, id uuid.UUID, from, to entities.LinkCodeStatus) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.codes[id]
	if !ok || c.Status != from {
		return 0, nil
	}
	c.Status = to
	r.s.codes[id] = c
	return 1, nil
}

func (r *memLinkCodeRepo) MarkVerified(_ context.Context, id uuid.UUID, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.codes[id]
	if !ok || c.Status != entities.LinkCodeStatusPending || c.ExpiresAt.Before(now) {
		return 0, nil
	}
	c.Status = entities.LinkCodeStatusVerified
	c.UpdatedAt = now
	r.s.codes[id] = c
	return 1, nil
}

func (r *memLinkCodeRepo) invalidateWhere(match func(entities.LinkCode) bool) int64 {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, c := range r.s.codes {
		if c.Status == entities.LinkCodeStatusPending && match(c) {
			c.Status = entities.LinkCodeStatusInvalidated
			r.s.codes[id] = c
			n++
		}
	}
	return n
}

func (r *memLinkCodeRepo) InvalidatePendingForOwner(_ context.Context, discordID string) (int64, error) {
	return r.invalidateWhere(func(c entities.LinkCode) bool { return c.DiscordID == discordID }), nil
}

func (r *memLinkCodeRepo) InvalidateAllPending(context.Context) (int64, error) {
	return r.invalidateWhere(func(entities.LinkCode) bool { return true }), nil
}

func (r *memLinkCodeRepo) GetExpiredPending(_ context.Context, now time.Time, limit int) ([]*entities.LinkCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entities.LinkCode
	for _, c := range r.s.codes {
		if c.Status == entities.LinkCodeStatusPending && c.ExpiresAt.Before(now) && len(out) < limit {
			c := c
			out = append(out, &c)
		}
	}
	return out, nil
}

type memAuditLogRepo struct{ s *memoryStore }

func (r *memAuditLogRepo) Create(_ context.Context, entry *entities.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if entry.ID == uuid.Nil {
		entry.ID = utils.GenerateUUIDv7()
	}
	r.s.audits = append(r.s.audits, *entry)
	return nil
}

func (r *memAuditLogRepo) ListByDiscordID(_ context.Context, discordID string, p utils.PaginationParams) ([]*entities.AuditLog, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []*entities.AuditLog
	for i := len(r.s.audits) - 1; i >= 0; i-- {
		if r.s.audits[i].DiscordID == discordID {
			a := r.s.audits[i]
			all = append(all, &a)
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Timestamp.After(all[j].Timestamp) })
	total := int64(len(all))
	offset := p.CalculateOffset()
	if offset >= len(all) {
		return []*entities.AuditLog{}, total, nil
	}
	end := offset + p.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}
