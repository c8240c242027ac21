// Package usage meters monthly consumption of quota-bearing actions.
//
// Counters are bucketed by a UTC calendar-month key ("2006-01"). A new month
// needs no setup: its key simply has no counter until the first increment, and
// absent counters read as zero.
//
// The Store interface has four implementations sharing one contract (atomic
// insert-or-increment per user, month and action):
//
//   - MemoryStore for tests and single-process development
//   - PostgresStore using an ON CONFLICT upsert on usage_counters
//   - RedisStore using INCR with an expiry past the month end
//   - MongoStore using FindOneAndUpdate with $inc and upsert
//
// Counter wraps a Store with the metering policy:
//
//	counter := usage.NewCounter(usage.NewPostgresStore(pool), usage.WithLogger(log))
//
//	used := counter.Count(ctx, userID, usage.ActionAIPlans) // 0 on store failure
//	// ... perform the action ...
//	counter.Increment(ctx, userID, usage.ActionAIPlans)     // logged, never fails the caller
package usage
