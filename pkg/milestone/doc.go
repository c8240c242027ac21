// Package milestone derives the progress-unlocked entitlement.
//
// A user unlocks progress tracking once they have Threshold qualifying
// workouts, counting both completed and in-progress records. The state is
// recomputed from a live count each time, so it can re-lock if records are
// deleted.
//
//	count, err := milestone.PostgresCounter(pool, "workouts")
//	eval := milestone.NewEvaluator(count, milestone.WithThreshold(10))
//	state, err := eval.IsUnlocked(ctx, userID)
package milestone
