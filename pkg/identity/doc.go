// Package identity authenticates callers of the metering API.
//
// Authentication itself is owned by the external auth provider. This package
// only verifies the provider's HS256 access tokens and exposes the subject as
// a uuid.UUID through the request context, which is what the gate and the
// handlers key usage on.
package identity
