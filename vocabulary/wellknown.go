package vocabulary

// Well-known concept codes used by the protocol engine itself. All of them
// exist in the canonical snapshot; the constants save callers a string
// literal and a typo.

// Status concepts reported in RESPONSE and STATUS messages.
const (
	// StatusSuccess indicates the requested operation completed.
	StatusSuccess = "META.STATUS.SUCCESS"

	// StatusFailure indicates the requested operation did not complete.
	StatusFailure = "META.STATUS.FAILURE"

	// StatusPending indicates the operation was accepted but not finished.
	StatusPending = "META.STATUS.PENDING"
)

// Error concepts carried by ERROR messages. Transport servers map internal
// failures onto these codes so peers can branch without parsing prose.
const (
	// ErrorValidation marks a structural or semantic validation failure.
	ErrorValidation = "META.ERROR.VALIDATION"

	// ErrorDecoding marks an unreadable or truncated payload.
	ErrorDecoding = "META.ERROR.DECODING"

	// ErrorSignature marks a failed integrity check.
	ErrorSignature = "META.ERROR.SIGNATURE"

	// ErrorReplay marks a stale timestamp or duplicate nonce.
	ErrorReplay = "META.ERROR.REPLAY"

	// ErrorNotFound marks a request for which no handler is registered.
	ErrorNotFound = "META.ERROR.NOT_FOUND"

	// ErrorInternal marks a handler failure on the receiving side.
	ErrorInternal = "META.ERROR.INTERNAL"

	// ErrorTimeout marks an operation that exceeded its deadline.
	ErrorTimeout = "META.ERROR.TIMEOUT"

	// ErrorUnavailable marks a peer that is up but refusing work.
	ErrorUnavailable = "META.ERROR.UNAVAILABLE"

	// ErrorPermission marks rejected credentials or insufficient rights.
	ErrorPermission = "META.ERROR.PERMISSION"

	// ErrorRateLimit marks throttling by the receiving side.
	ErrorRateLimit = "META.ERROR.RATE_LIMIT"

	// ErrorGeneral is the fallback when no more specific concept applies.
	ErrorGeneral = "META.ERROR.GENERAL"
)

// Info concepts answered by the built-in server endpoints.
const (
	// InfoHealth identifies a liveness probe.
	InfoHealth = "META.INFO.HEALTH"

	// InfoVocabulary identifies a vocabulary snapshot inquiry.
	InfoVocabulary = "META.INFO.VOCABULARY"

	// InfoVersion identifies a build/version inquiry.
	InfoVersion = "META.INFO.VERSION"
)
