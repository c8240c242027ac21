// Package logger builds the service's *slog.Logger and provides shared attribute helpers.
//
// New accepts functional options for level, format, output and static
// attributes. WithEnvironment selects the usual preset (text/debug in
// development, JSON/info elsewhere). Context extractors add request-scoped
// values such as the request ID to every record logged with a context:
//
//	log := logger.New(
//		logger.WithEnvironment(cfg.AppEnv, cfg.AppName),
//		logger.WithContextExtractors(requestid.LogExtractor()),
//	)
//	log.InfoContext(ctx, "monthly quota exceeded", logger.UserID(id), logger.Action("ai_plans"))
//
// Attribute helpers keep key names consistent across packages; helpers given a
// nil or empty value return an empty slog.Attr, which slog drops.
package logger
