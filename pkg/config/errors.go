package config

import "errors"

var (
	ErrParsingConfig  = errors.New("failed to parse environment variables into config")
	ErrInvalidConfig  = errors.New("configuration is invalid")
	ErrLoadingEnvFile = errors.New("failed to load env file")
	ErrNilPointer     = errors.New("nil pointer passed to config loader")
)
