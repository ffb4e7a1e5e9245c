// Package common contains shared constants, the error taxonomy and small
// helpers used by both the gophnotes server and client.
package common

import "time"

// AuthorizationHeaderName carries the bearer token on HTTP requests.
const AuthorizationHeaderName = "Authorization"

// TokenQueryParam carries the bearer token for websocket upgrades, where
// browsers and most clients cannot set headers.
const TokenQueryParam = "token"

// CorrelationIDHeaderName is echoed back in error payloads and access logs.
const CorrelationIDHeaderName = "X-Correlation-Id"

// PendingLifetime bounds email codes, pending devices and verification waits.
const PendingLifetime = 5 * time.Minute
