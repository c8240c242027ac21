package subscription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

// SignatureHeader is the header Paddle signs webhook deliveries with.
const SignatureHeader = "Paddle-Signature"

// PaddleConfig holds configuration for Paddle webhook ingestion.
type PaddleConfig struct {
	WebhookSecret string   `env:"PADDLE_WEBHOOK_SECRET,required"`
	ProPriceIDs   []string `env:"PADDLE_PRO_PRICE_IDS" envSeparator:","` // Prices that grant the pro tier
}

// PaddleProvider implements BillingProvider for Paddle Billing.
type PaddleProvider struct {
	verifier *paddle.WebhookVerifier
}

// NewPaddleProvider creates a Paddle webhook parser.
func NewPaddleProvider(config PaddleConfig) (*PaddleProvider, error) {
	if config.WebhookSecret == "" {
		return nil, ErrMissingWebhookSecret
	}
	return &PaddleProvider{verifier: paddle.NewWebhookVerifier(config.WebhookSecret)}, nil
}

// ParseWebhook verifies the Paddle-Signature and normalises the payload.
func (p *PaddleProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	// The SDK verifier works on requests, so rebuild one around the raw payload.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request for verification: %w", err)
	}
	req.Header.Set(SignatureHeader, signature)

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, errors.Join(ErrWebhookVerificationFailed, err)
	}
	if !valid {
		return nil, ErrWebhookVerificationFailed
	}

	return ParsePaddleEvent(payload)
}

type paddleEvent struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       paddleEventData `json:"data"`
}

type paddleEventData struct {
	ID             string         `json:"id"`
	SubscriptionID string         `json:"subscription_id"`
	Status         string         `json:"status"`
	CustomData     map[string]any `json:"custom_data"`
	Items          []struct {
		PriceID string `json:"price_id"`
		Price   *struct {
			ID string `json:"id"`
		} `json:"price"`
	} `json:"items"`
	CurrentBillingPeriod *struct {
		EndsAt time.Time `json:"ends_at"`
	} `json:"current_billing_period"`
	ScheduledChange *struct {
		Action string `json:"action"`
	} `json:"scheduled_change"`
}

// ParsePaddleEvent normalises an already verified Paddle notification payload.
func ParsePaddleEvent(payload []byte) (*WebhookEvent, error) {
	var pe paddleEvent
	if err := json.Unmarshal(payload, &pe); err != nil {
		return nil, errors.Join(ErrInvalidWebhookPayload, err)
	}
	if pe.EventType == "" {
		return nil, fmt.Errorf("%w: missing event_type", ErrInvalidWebhookPayload)
	}

	event := &WebhookEvent{
		Type:          mapPaddleEventType(pe.EventType),
		ProviderEvent: pe.EventType,
		Status:        pe.Data.Status,
		OccurredAt:    pe.OccurredAt,
	}

	if userID, ok := pe.Data.CustomData["user_id"].(string); ok {
		event.UserID = userID
	}

	if len(pe.Data.Items) > 0 {
		item := pe.Data.Items[0]
		event.PriceID = item.PriceID
		if item.Price != nil && item.Price.ID != "" {
			event.PriceID = item.Price.ID
		}
	}

	if strings.HasPrefix(pe.EventType, "transaction.") {
		event.SubscriptionID = pe.Data.SubscriptionID
	} else {
		event.SubscriptionID = pe.Data.ID
	}

	if pe.Data.CurrentBillingPeriod != nil && !pe.Data.CurrentBillingPeriod.EndsAt.IsZero() {
		end := pe.Data.CurrentBillingPeriod.EndsAt.UTC()
		event.CurrentPeriodEnd = &end
	}
	if pe.Data.ScheduledChange != nil && pe.Data.ScheduledChange.Action == "cancel" {
		event.CancelAtPeriodEnd = true
	}

	return event, nil
}

// mapPaddleEventType maps Paddle event types to internal EventType.
func mapPaddleEventType(paddleEvent string) EventType {
	switch paddleEvent {
	case "subscription.created", "subscription.activated":
		return EventSubscriptionCreated
	case "subscription.updated", "subscription.trialing", "subscription.past_due", "subscription.paused":
		return EventSubscriptionUpdated
	case "subscription.canceled":
		return EventSubscriptionCanceled
	case "subscription.resumed":
		return EventSubscriptionResumed
	case "transaction.payment_failed":
		return EventPaymentFailed
	default:
		return EventType(paddleEvent)
	}
}
