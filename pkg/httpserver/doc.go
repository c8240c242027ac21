// Package httpserver runs the metering API's http.Server and serves its
// liveness and readiness endpoints.
//
// Run blocks until the context is canceled and then drains in-flight requests
// within ShutdownTimeout. Signal handling belongs to the caller, typically via
// signal.NotifyContext in main:
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//	srv := httpserver.New(cfg, httpserver.WithLogger(log))
//	err := srv.Run(ctx, router)
//
// ReadinessHandler reports per-dependency results, e.g. {"postgres":"ok","redis":"failed"}.
package httpserver
