package webhooks

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goliatone/go-message-intake/core"
)

// Payload is the wire shape of an ingestion event. Address fields use the
// simplified international-number format: a leading + followed by digits.
type Payload struct {
	MessageID string    `json:"message_id" validate:"required,notblank"`
	From      string    `json:"from" validate:"required,intl_number"`
	To        string    `json:"to" validate:"required,intl_number"`
	Timestamp time.Time `json:"ts" validate:"required"`
	Text      *string   `json:"text,omitempty" validate:"omitempty,max=4096"`
}

var validate = newPayloadValidator()

func newPayloadValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("intl_number", func(fl validator.FieldLevel) bool {
		return core.ValidateAddress(fl.Field().String()) == nil
	})
	// required alone accepts whitespace-only identifiers, which the store
	// would refuse later; catch them in the Validating state instead.
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// DecodePayload parses and validates the raw body. Any failure means the
// request must be rejected before the store is touched.
func DecodePayload(rawBody []byte) (Payload, error) {
	var payload Payload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return Payload{}, core.NewValidationError(
			fmt.Sprintf("webhooks: malformed payload: %v", err),
			nil,
		)
	}
	if err := validate.Struct(payload); err != nil {
		metadata := map[string]any{}
		if fieldErrors, ok := err.(validator.ValidationErrors); ok {
			fields := make([]string, 0, len(fieldErrors))
			for _, fieldErr := range fieldErrors {
				fields = append(fields, fieldErr.Field())
			}
			metadata["fields"] = fields
		}
		return Payload{}, core.NewValidationError(
			fmt.Sprintf("webhooks: invalid payload: %v", err),
			metadata,
		)
	}
	return payload, nil
}

// Message converts the validated payload to the domain entity. ReceivedAt
// is left unset; the store assigns it once at first successful write.
func (p Payload) Message() core.Message {
	return core.Message{
		MessageID:   p.MessageID,
		FromAddress: p.From,
		ToAddress:   p.To,
		Timestamp:   p.Timestamp,
		Text:        p.Text,
	}
}
