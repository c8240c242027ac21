// Package gate composes burst limiting and monthly quota enforcement in front
// of a metered action.
//
// The check order is fixed: the burst window first, then the entitlement
// decision. A burst rejection never reaches the resolver. The gate itself never
// records usage. Callers invoke Commit after the action succeeded, or use
// Middleware, which commits when the wrapped handler answers with 2xx:
//
//	g := gate.New(limiter, resolver, counter, gate.WithLogger(log))
//	r.With(g.Middleware(usage.ActionAIPlans, aiBurst, identity.FromRequest)).
//		Post("/plans/generate", generatePlan)
//
// Failure policy follows the layers underneath: an unavailable burst store is
// skipped, usage reads fail open to zero, and subscription lookup failures fall
// back to the free tier.
package gate
