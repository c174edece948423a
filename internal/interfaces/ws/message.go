package ws

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	domainerrors "nexus.backend/internal/domain/errors"
)

// Event names sent by the game server
const (
	EventLinkAccount = "linkAccount"
	EventBlockBreak  = "BlockBreak"
)

// Replies to linkAccount, rendered verbatim by the game server
const (
	ReplyLinked      = "Account Linked Successfully"
	ReplyInvalid     = "Invalid Token"
	ReplyExpired     = "Token Expired"
	ReplyConsumed    = "Token Already Used"
	ReplyUnavailable = "Verification Unavailable"
)

// Envelope is one inbound text frame
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// LinkAccountPayload is a code typed in game
type LinkAccountPayload struct {
	Token      string `json:"token" validate:"required,max=32"`
	PlayerName string `json:"playerName" validate:"required,max=64"`
	UserID     string `json:"userId" validate:"required,max=64"`
}

// BlockBreakPayload is one mined block
type BlockBreakPayload struct {
	UUID     string `json:"uuid" validate:"required,max=64"`
	Block    string `json:"block" validate:"required,max=128"`
	Position string `json:"position" validate:"required,max=128"`
}

var validate = validator.New()

// decodeData unmarshals an envelope payload into v and validates it. The
// game server sends some payloads as a JSON object and others as a string
// holding JSON; both are accepted.
func decodeData(raw json.RawMessage, v interface{}) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return fmt.Errorf("%w: missing data", domainerrors.ErrMalformedMessage)
	}

	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return fmt.Errorf("%w: %v", domainerrors.ErrMalformedMessage, err)
		}
		raw = json.RawMessage(inner)
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrMalformedMessage, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %s", domainerrors.ErrMalformedMessage, describeValidation(err))
	}
	return nil
}

func describeValidation(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}

// ReplyFor renders a consumption result for the game server
func ReplyFor(err error) string {
	switch {
	case err == nil:
		return ReplyLinked
	case errors.Is(err, domainerrors.ErrInvalidCode), errors.Is(err, domainerrors.ErrInvalidInput):
		return ReplyInvalid
	case errors.Is(err, domainerrors.ErrExpiredCode):
		return ReplyExpired
	case errors.Is(err, domainerrors.ErrAlreadyConsumed):
		return ReplyConsumed
	default:
		return ReplyUnavailable
	}
}
