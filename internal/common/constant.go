// Package common contains shared constants and sentinel errors used across
// idkeeper components.
package common

// AuthorizationHeaderName is the HTTP header carrying the session token.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the session token inside the Authorization header.
const BearerPrefix = "Bearer "

// APIPrefix is the versioned path prefix of the public HTTP API.
const APIPrefix = "/api/v1"
