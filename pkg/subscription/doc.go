// Package subscription models the billing state that selects a user's quota tier.
//
// The billing provider owns subscription state and reports it through signed
// webhooks. Service verifies those deliveries (PaddleProvider wraps the Paddle
// SDK verifier), normalises them into WebhookEvent values and upserts one
// Subscription row per user through a Store (PostgresStore in production,
// MemoryStore in tests).
//
// Consumers read the row and ask two questions:
//
//	sub.IsEntitledTier() // active or trialing
//	sub.EffectiveTier()  // pro only when entitled, otherwise free
//
// past_due and canceled subscriptions keep the user on free-tier limits rather
// than removing access entirely.
package subscription
