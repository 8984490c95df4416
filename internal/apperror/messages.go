package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	// General validation
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidFormat:   "Invalid data format",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	// Configuration
	CodeConfigurationError: "Configuration error",

	// External service errors
	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeServiceUnavailable:   "Service temporarily unavailable",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	// System errors
	CodeInternalError: "Internal server error",
	CodeUnknownError:  "An unknown error occurred",

	// Streaming session errors
	CodeTransportFailed:     "Stream transport connection failed",
	CodeTransportClosed:     "Stream transport closed",
	CodeReconnecting:        "Stream session reconnecting",
	CodeProtocolParse:       "Frame could not be parsed as a protocol message",
	CodeProtocolSemantics:   "Frame parsed but violated protocol semantics",
	CodeAuthFailed:          "Authentication handshake failed",
	CodeSubscriptionFailed:  "Subscription request was rejected",
	CodeHeartbeatMissed:     "No frames received within the heartbeat window",
	CodeDecoderInvariant:    "Decoder invariant violated",
	CodeSegmentationInvalid: "Segmented change message sequence was invalid",

	// Cache errors
	CodeCacheMiss:    "Cache miss",
	CodeCacheExpired: "Cache entry expired",

	// Circuit breaker errors
	CodeCircuitOpen:     "Circuit breaker is open",
	CodeCircuitHalfOpen: "Circuit breaker is half-open",

	// Recorder boundary errors
	CodeRecorderWriteFailed: "Recorder failed to persist a frame or snapshot",
}
