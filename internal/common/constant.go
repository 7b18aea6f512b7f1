// Package common contains shared constants and sentinel errors used across
// BuildLog components.
package common

const (
	// AuthorizationHeader carries the bearer token on mutating requests.
	AuthorizationHeader = "Authorization"

	// BearerPrefix precedes the token inside AuthorizationHeader.
	BearerPrefix = "Bearer "
)
