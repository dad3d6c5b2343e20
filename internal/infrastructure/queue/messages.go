// Package queue consumes catalogue work from SQS: price feed batches submitted
// asynchronously, outlet deactivations and product recompute requests.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Message types.
const (
	TypePriceFeed         = "price_feed"
	TypeOutletDeactivated = "outlet_deactivated"
	TypeRecomputeProduct  = "recompute_product"
)

// ErrPoison marks a message that can never succeed. The consumer deletes it instead of
// letting it reappear after the visibility timeout.
var ErrPoison = errors.New("poison message")

// Envelope is the queue message body.
type Envelope struct {
	Type    string          `json:"type" validate:"required,oneof=price_feed outlet_deactivated recompute_product"`
	Payload json.RawMessage `json:"payload" validate:"required"`
}

type OutletDeactivated struct {
	OutletID string `json:"outletId" validate:"required,uuid"`
}

type RecomputeProduct struct {
	ProductID string `json:"productId" validate:"required,mongodb"`
}

// snsEnvelope is the wrapper added when the queue is subscribed to an SNS topic.
type snsEnvelope struct {
	Type    string `json:"Type"`
	Message string `json:"Message"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ParseEnvelope decodes body, unwrapping an SNS notification when present.
func ParseEnvelope(body string) (Envelope, error) {
	raw := []byte(body)

	var sns snsEnvelope
	if err := json.Unmarshal(raw, &sns); err == nil && sns.Type == "Notification" && sns.Message != "" {
		raw = []byte(sns.Message)
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: decode envelope: %v", ErrPoison, err)
	}
	if err := validate.Struct(env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrPoison, err)
	}
	return env, nil
}

func decodePayload(env Envelope, dst any) error {
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return fmt.Errorf("%w: decode %s payload: %v", ErrPoison, env.Type, err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrPoison, env.Type, err)
	}
	return nil
}
