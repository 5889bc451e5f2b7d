// Package constant holds the stable, client-facing error codes named in
// spec.md §7 and §8's scenario tests.
package constant

const (
	// Authn/Authz
	ErrTokenMissing = "TOKEN_MISSING"
	ErrTokenInvalid = "TOKEN_INVALID"
	ErrTokenExpired = "TOKEN_EXPIRED"
	ErrRefreshReuse = "REFRESH_TOKEN_REUSED"

	// Input validation
	ErrValidation = "VALIDATION_ERROR"

	// Resource not found
	ErrConversationNotFound = "CONVERSATION_NOT_FOUND"
	ErrProjectNotFound      = "PROJECT_NOT_FOUND"
	ErrAgentNotFound        = "AGENT_NOT_FOUND"

	// Business rule
	ErrInsufficientBalance   = "insufficient_balance"
	ErrAlreadyFrozen         = "already_frozen"
	ErrContentViolationPre   = "content_violation_pre"
	ErrContentViolationPost  = "content_violation_post"
	ErrRequestAlreadyRunning = "request_already_in_progress"

	// Upstream
	ErrUpstreamConnect = "UPSTREAM_CONNECT_ERROR"
	ErrUpstreamTimeout = "UPSTREAM_TIMEOUT"
	ErrIdentityFailed  = "IDENTITY_PROVIDER_ERROR"

	// Transient
	ErrLockWaitExhausted = "LOCK_WAIT_EXHAUSTED"
	ErrQueueFull         = "QUEUE_FULL"

	// Internal
	ErrInternal = "INTERNAL_ERROR"
)
