package subscription

import "errors"

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrLookupFailed         = errors.New("subscription lookup failed")
	ErrSaveFailed           = errors.New("failed to save subscription")

	ErrMissingWebhookSecret      = errors.New("billing provider webhook secret is required")
	ErrWebhookVerificationFailed = errors.New("webhook signature verification failed")
	ErrInvalidWebhookPayload     = errors.New("invalid webhook payload")
	ErrMissingUserID             = errors.New("webhook event has no user ID")
)
