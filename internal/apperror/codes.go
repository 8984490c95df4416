package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	// General validation
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidFormat   Code = "INVALID_FORMAT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	// Configuration
	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	// External service errors
	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceTimeout       Code = "SERVICE_TIMEOUT"
	CodeServiceUnavailable   Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	// System errors
	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Streaming session error codes, one per kind named in the error handling
// design: Transport, ProtocolParse, ProtocolSemantics, AuthFailed,
// SubscriptionFailed, HeartbeatMissed, DecoderInvariant.
const (
	CodeTransportFailed     Code = "TRANSPORT_FAILED"
	CodeTransportClosed     Code = "TRANSPORT_CLOSED"
	CodeReconnecting        Code = "RECONNECTING"
	CodeProtocolParse       Code = "PROTOCOL_PARSE"
	CodeProtocolSemantics   Code = "PROTOCOL_SEMANTICS"
	CodeAuthFailed          Code = "AUTH_FAILED"
	CodeSubscriptionFailed  Code = "SUBSCRIPTION_FAILED"
	CodeHeartbeatMissed     Code = "HEARTBEAT_MISSED"
	CodeDecoderInvariant    Code = "DECODER_INVARIANT"
	CodeSegmentationInvalid Code = "SEGMENTATION_INVALID"
)

// Cache errors
const (
	CodeCacheMiss    Code = "CACHE_MISS"
	CodeCacheExpired Code = "CACHE_EXPIRED"
)

// Circuit breaker errors
const (
	CodeCircuitOpen     Code = "CIRCUIT_OPEN"
	CodeCircuitHalfOpen Code = "CIRCUIT_HALF_OPEN"
)

// Recorder boundary errors
const (
	CodeRecorderWriteFailed Code = "RECORDER_WRITE_FAILED"
)
