package usecases_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"nexus.backend/internal/domain/entities"
	"nexus.backend/pkg/redis"
	"nexus.backend/pkg/utils"
)

// Mock UnitOfWork
type MockUnitOfWork struct {
	mock.Mock
}

func (m *MockUnitOfWork) Do(ctx context.Context, f func(context.Context) error) error {
	m.Called(ctx, f)
	return f(ctx)
}

// Mock IdentityRepository
type MockIdentityRepository struct {
	mock.Mock
}

func (m *MockIdentityRepository) GetByDiscordID(ctx context.Context, discordID string) (*entities.Identity, error) {
	args := m.Called(ctx, discordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Identity), args.Error(1)
}

func (m *MockIdentityRepository) Create(ctx context.Context, identity *entities.Identity) error {
	args := m.Called(ctx, identity)
	return args.Error(0)
}

func (m *MockIdentityRepository) UpdateDiscordUsername(ctx context.Context, discordID, username string) error {
	args := m.Called(ctx, discordID, username)
	return args.Error(0)
}

func (m *MockIdentityRepository) SetLink(ctx context.Context, discordID string, account entities.GameAccount) error {
	args := m.Called(ctx, discordID, account)
	return args.Error(0)
}

func (m *MockIdentityRepository) ClearLink(ctx context.Context, discordID string) error {
	args := m.Called(ctx, discordID)
	return args.Error(0)
}

// Mock LinkCodeRepository
type MockLinkCodeRepository struct {
	mock.Mock
}

func (m *MockLinkCodeRepository) Create(ctx context.Context, code *entities.LinkCode) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *MockLinkCodeRepository) GetByCode(ctx context.Context, code string) (*entities.LinkCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.LinkCode), args.Error(1)
}

func (m *MockLinkCodeRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.LinkCode, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.LinkCode), args.Error(1)
}

func (m *MockLinkCodeRepository) GetPendingByDiscordID(ctx context.Context, discordID string) (*entities.LinkCode, error) {
	args := m.Called(ctx, discordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.LinkCode), args.Error(1)
}

func (m *MockLinkCodeRepository) Transition(ctx context.Context, id uuid.UUID, from, to entities.LinkCodeStatus) (int64, error) {
	args := m.Called(ctx, id, from, to)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLinkCodeRepository) MarkVerified(ctx context.Context, id uuid.UUID, now time.Time) (int64, error) {
	args := m.Called(ctx, id, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLinkCodeRepository) InvalidatePendingForOwner(ctx context.Context, discordID string) (int64, error) {
	args := m.Called(ctx, discordID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLinkCodeRepository) InvalidateAllPending(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLinkCodeRepository) GetExpiredPending(ctx context.Context, now time.Time, limit int) ([]*entities.LinkCode, error) {
	args := m.Called(ctx, now, limit)
	return args.Get(0).([]*entities.LinkCode), args.Error(1)
}

// Mock AuditLogRepository
type MockAuditLogRepository struct {
	mock.Mock
}

func (m *MockAuditLogRepository) Create(ctx context.Context, entry *entities.AuditLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditLogRepository) ListByDiscordID(ctx context.Context, discordID string, pagination utils.PaginationParams) ([]*entities.AuditLog, int64, error) {
	args := m.Called(ctx, discordID, pagination)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*entities.AuditLog), args.Get(1).(int64), args.Error(2)
}

// Mock BlockBreakRepository
type MockBlockBreakRepository struct {
	mock.Mock
}

func (m *MockBlockBreakRepository) Create(ctx context.Context, event *entities.BlockBreak) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockBlockBreakRepository) CountByMinecraftID(ctx context.Context, minecraftID string) (int64, error) {
	args := m.Called(ctx, minecraftID)
	return args.Get(0).(int64), args.Error(1)
}

// Mock RateLimiter
type MockRateLimiter struct {
	mock.Mock
}

func (m *MockRateLimiter) Allow(ctx context.Context, key string) (redis.RateDecision, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(redis.RateDecision), args.Error(1)
}

// fixedGenerator hands out codes from a list, then repeats the last one.
// A set err is returned once errAfter codes have been handed out.
type fixedGenerator struct {
	codes    []string
	next     int
	err      error
	errAfter int
	calls    int
}

func (g *fixedGenerator) Generate() (string, error) {
	g.calls++
	if g.err != nil && g.calls > g.errAfter {
		return "", g.err
	}
	c := g.codes[g.next]
	if g.next < len(g.codes)-1 {
		g.next++
	}
	return c, nil
}

// countingGuard records calls and answers with err
type countingGuard struct {
	calls int
	err   error
}

func (g *countingGuard) Allow(context.Context, string) error {
	g.calls++
	return g.err
}
