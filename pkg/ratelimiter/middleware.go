package ratelimiter

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// KeyFunc extracts a rate limit key from the request.
// Returning an empty key skips rate limiting for that request.
type KeyFunc func(r *http.Request) string

// Composite combines multiple key functions into one.
// Long keys (>64 chars) are hashed using FNV-1a for storage efficiency.
func Composite(keyFuncs ...KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(keyFuncs))
		for _, fn := range keyFuncs {
			parts = append(parts, fn(r))
		}
		return Key(parts...)
	}
}

// ErrorHandler is called when the store fails. The request continues afterwards:
// burst limiting deters abuse and is not worth an outage.
type ErrorHandler func(r *http.Request, err error)

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	onError ErrorHandler
}

// WithErrorHandler registers a callback for store failures, typically for logging.
func WithErrorHandler(fn ErrorHandler) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.onError = fn
	}
}

// TooManyRequestsBody is the JSON body written for burst rejections.
type TooManyRequestsBody struct {
	Error        string `json:"error"`
	Message      string `json:"message"`
	RetryAfterMs int64  `json:"retry_after_ms"`
}

// WriteHeaders sets the standard rate limit headers for result.
func WriteHeaders(w http.ResponseWriter, result *Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

// WriteTooManyRequests writes a 429 response with a Retry-After header and a JSON body.
func WriteTooManyRequests(w http.ResponseWriter, result *Result) {
	// Round up so clients never retry before the window resets.
	retryAfter := int((result.ResetIn + time.Second - 1) / time.Second)
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(TooManyRequestsBody{
		Error:        "too_many_requests",
		Message:      "Too many requests, please retry later",
		RetryAfterMs: result.ResetIn.Milliseconds(),
	})
}

// Middleware creates an HTTP middleware applying config to every request, keyed by keyFunc.
func Middleware(l *Limiter, config Config, keyFunc KeyFunc, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if err := config.Validate(); err != nil {
		panic(err)
	}
	cfg := &middlewareConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			result, err := l.CheckAndConsume(r.Context(), key, config)
			if err != nil {
				if cfg.onError != nil {
					cfg.onError(r, err)
				}
				next.ServeHTTP(w, r)
				return
			}

			WriteHeaders(w, result)
			if !result.Allowed {
				WriteTooManyRequests(w, result)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
