// Package entitlement decides whether a user may perform a quota-bearing action.
//
// A Resolver combines three inputs: the user's subscription (only active or
// trialing subscriptions get their paid tier, everything else is free), the
// per-tier monthly quota table loaded from a Source, and the current month's
// usage read through a UsageReader such as usage.Counter.
//
//	plans := entitlement.NewYAMLSource("plans.yaml") // or NewInMemSource(DefaultPlans())
//	r, err := entitlement.NewResolver(ctx, plans, subscriptions, counter)
//	d := r.Resolve(ctx, userID, usage.ActionAIPlans)
//	if !d.Allowed {
//		// d.Reason, d.Remaining and d.ResetsAt describe the denial
//	}
//
// The resolver fails closed on entitlement: a failed subscription lookup, an
// unknown tier or an action missing from the plan all narrow access (free tier,
// limit 0). Usage reads fail open, as defined by the UsageReader.
package entitlement
