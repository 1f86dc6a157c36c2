package utils

import (
	"time"
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Dispatch constants
const (
	// MaxBatchSize is the provider-imposed recipient limit per gateway call
	MaxBatchSize = 200

	// DefaultGatewayTimeout bounds a single gateway send or upload
	DefaultGatewayTimeout = 30 * time.Second

	// MaxStatusJobRetries is how many times a delivery status job is attempted
	MaxStatusJobRetries = 3
)

// Short link constants
const (
	ShortCodeAlphabet      = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	DefaultShortCodeLength = 6
	MaxShortCodeAttempts   = 5
)
