package usecases

import "time"

// Verification codes
const (
	LinkCodeAlphabet    = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	LinkCodeGroupLength = 3
	DefaultLinkCodeTTL  = 5 * time.Minute

	// concurrent issuers for one owner can collide on the pending index
	maxIssueAttempts = 3
)

// History listing
const (
	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 50
)

// Telemetry
const BlockNamePrefix = "block.matscraft."

// Consumption outcomes, used as metric labels
const (
	consumeResultSuccess  = "success"
	consumeResultInvalid  = "invalid"
	consumeResultExpired  = "expired"
	consumeResultConsumed = "already_consumed"
	consumeResultError    = "error"
)
