// Package config loads env-tagged structs with caarlos0/env, after reading an
// optional .env file with godotenv.
//
// Each infrastructure package owns its Config type (pg.Config, redis.Config,
// httpserver.Config, ...) and the service composes them at startup:
//
//	var pgCfg pg.Config
//	config.MustLoad(&pgCfg)
//
// Loaded values are cached per type, so repeated loads are cheap and return
// the same snapshot. Types implementing Validator are checked once on first load.
package config
