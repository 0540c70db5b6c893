// Package common contains shared constants and sentinel errors used across
// bucketvault components.
package common

// AuthorizationHeaderName carries the bearer identity token on inbound requests.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the token in the Authorization header.
const BearerPrefix = "Bearer "

// UnlimitedBuckets marks a user whose bucket count is not capped.
const UnlimitedBuckets = -1
