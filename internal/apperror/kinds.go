package apperror

import "net/http"

// Transport builds an error for a failed or dropped connection attempt.
func Transport(context string, cause error) *AppError {
	return New(CodeTransportFailed, WithContext(context), WithCause(cause),
		WithStatusCode(http.StatusServiceUnavailable))
}

// AuthFailed builds an error for a rejected or malformed auth handshake.
func AuthFailed(context string, cause error) *AppError {
	return New(CodeAuthFailed, WithContext(context), WithCause(cause),
		WithStatusCode(http.StatusUnauthorized))
}

// SubscriptionFailed builds an error for a rejected subscription request.
func SubscriptionFailed(context string, cause error) *AppError {
	return New(CodeSubscriptionFailed, WithContext(context), WithCause(cause),
		WithStatusCode(http.StatusBadRequest))
}

// HeartbeatMissed builds an error for a dead-man timer expiry.
func HeartbeatMissed(context string) *AppError {
	return New(CodeHeartbeatMissed, WithContext(context),
		WithStatusCode(http.StatusServiceUnavailable))
}

// ProtocolParse builds an error for a frame that failed to parse as JSON
// or as any known message shape. Per the decoder's drop-and-log rule,
// callers log this and continue rather than tearing down the session.
func ProtocolParse(context string, cause error) *AppError {
	return New(CodeProtocolParse, WithContext(context), WithCause(cause),
		WithStatusCode(http.StatusBadRequest))
}

// ProtocolSemantics builds an error for a frame that parsed but violated
// a protocol-level expectation (unknown op, missing required field for
// its op, status op reporting failure).
func ProtocolSemantics(context string, cause error) *AppError {
	return New(CodeProtocolSemantics, WithContext(context), WithCause(cause),
		WithStatusCode(http.StatusUnprocessableEntity))
}

// DecoderInvariant builds an error for a violated cache-merge invariant
// (delta referencing a market/runner never imaged, segmentation sequence
// broken). These are reported, never silently absorbed.
func DecoderInvariant(context string) *AppError {
	return New(CodeDecoderInvariant, WithContext(context),
		WithStatusCode(http.StatusInternalServerError))
}

// SegmentationInvalid builds an error for a segmented sequence that was
// interrupted, reordered, or never terminated.
func SegmentationInvalid(context string) *AppError {
	return New(CodeSegmentationInvalid, WithContext(context),
		WithStatusCode(http.StatusUnprocessableEntity))
}
