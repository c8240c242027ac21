// Package ratelimiter provides fixed-window burst limiting with memory and Redis
// storage and HTTP middleware.
//
// A window is keyed by an action class and an identity (see Key). The first
// request for a key, or the first request after the window length has elapsed,
// opens a new window with a count of 1. Every other request increments the count
// and is allowed while the count stays within MaxRequests.
//
// # Basic Usage
//
//	store := ratelimiter.NewMemoryStore()
//	defer store.Close()
//
//	limiter := ratelimiter.New(store)
//
//	aiPlans := ratelimiter.Config{Window: time.Minute, MaxRequests: 5}
//	result, err := limiter.CheckAndConsume(ctx, ratelimiter.Key("ai_plans", userID.String()), aiPlans)
//	if err != nil {
//		// only possible with a remote store or an invalid config
//	}
//	if !result.Allowed {
//		// retry after result.ResetIn
//	}
//
// The window configuration is supplied per call, so one limiter serves both wide
// API throttling and narrow throttling of expensive operations.
//
// # Storage
//
// MemoryStore keeps windows in process memory and never fails. Each process
// enforces its own windows, so behind N instances the effective ceiling is N
// times MaxRequests. RedisStore runs the same rule as a Lua script in Redis and
// gives one shared window per key across all instances.
//
// # HTTP Middleware
//
//	mw := ratelimiter.Middleware(limiter, apiConfig, func(r *http.Request) string {
//		return ratelimiter.Key("api", userIDFrom(r))
//	})
//
// The middleware sets X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset and answers denied requests with 429, a Retry-After header
// and a JSON body carrying retry_after_ms.
package ratelimiter
