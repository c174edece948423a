package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// AuditAction is a link lifecycle event
type AuditAction string

const (
	AuditVerificationStarted AuditAction = "verification_started"
	AuditAccountLinked       AuditAction = "account_linked"
	AuditAccountUnlinked     AuditAction = "account_unlinked"
	AuditVerificationExpired AuditAction = "verification_expired"
	AuditVerificationFailed  AuditAction = "verification_failed"
)

// AuditLog is an append-only lifecycle record
type AuditLog struct {
	ID        uuid.UUID   `json:"id"`
	DiscordID string      `json:"discordId"`
	Action    AuditAction `json:"action"`
	Details   null.String `json:"details"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewAuditLog builds an entry stamped at now; empty details are stored as null
func NewAuditLog(discordID string, action AuditAction, details string, now time.Time) *AuditLog {
	return &AuditLog{
		DiscordID: discordID,
		Action:    action,
		Details:   null.NewString(details, details != ""),
		Timestamp: now,
	}
}
