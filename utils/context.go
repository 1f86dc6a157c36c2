package utils

// ContextKey is the type of request-scoped values stored by handlers
type ContextKey string

const (
	RequestIDKey ContextKey = "X-Request-ID"
	UserAgentKey ContextKey = "user_agent"
	IPAddressKey ContextKey = "ip_address"
	EndpointKey  ContextKey = "endpoint"
	TimeoutKey   ContextKey = "timeout"
)
