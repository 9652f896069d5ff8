package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain layer.
var (
	// Transport-level errors. These are fatal to the session and require a
	// reconnect; they are never fed back to the model.
	ErrTransportUnavailable = errors.New("tool transport unavailable")
	ErrNotConnected         = errors.New("tool transport not connected")
	ErrTransportBroken      = errors.New("tool transport broken")

	// ErrInvalidToolSchema is raised at discovery time when a tool advertises
	// a parameter schema that does not compile. Fatal to startup.
	ErrInvalidToolSchema = errors.New("invalid tool schema")

	// ErrUnknownTool means the model requested a tool the catalog never
	// advertised. A protocol inconsistency: it aborts the current request
	// rather than becoming a tool result.
	ErrUnknownTool = errors.New("unknown tool requested")

	// ErrToolLoopExceeded is the safety bound on the orchestration loop.
	// The request fails but the session stays connected and reusable.
	ErrToolLoopExceeded = errors.New("tool loop iteration limit exceeded")

	ErrSessionNotFound  = errors.New("session not found")
	ErrProviderNotFound = errors.New("llm provider not found")

	// Backend-call failures mapped from HTTP status codes.
	ErrRateLimit   = errors.New("rate limit exceeded")
	ErrAuthInvalid = errors.New("authentication failed")
	ErrBackend     = errors.New("model backend failure")
)

// DomainError wraps a sentinel error with operation context.
type DomainError struct {
	Op     string // operation name (e.g., "Transport.CallTool")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ErrorCode is a machine-parseable error category for monitoring and the
// HTTP error envelope.
type ErrorCode string

const (
	CodeUnknown              ErrorCode = "UNKNOWN"
	CodeTransportUnavailable ErrorCode = "TRANSPORT_UNAVAILABLE"
	CodeNotConnected         ErrorCode = "NOT_CONNECTED"
	CodeTransportBroken      ErrorCode = "TRANSPORT_BROKEN"
	CodeInvalidToolSchema    ErrorCode = "INVALID_TOOL_SCHEMA"
	CodeUnknownTool          ErrorCode = "UNKNOWN_TOOL"
	CodeToolLoopExceeded     ErrorCode = "TOOL_LOOP_EXCEEDED"
	CodeSessionNotFound      ErrorCode = "SESSION_NOT_FOUND"
	CodeProviderNotFound     ErrorCode = "PROVIDER_NOT_FOUND"
	CodeRateLimit            ErrorCode = "RATE_LIMIT"
	CodeAuthInvalid          ErrorCode = "AUTH_INVALID"
	CodeBackend              ErrorCode = "BACKEND_FAILURE"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrTransportUnavailable: CodeTransportUnavailable,
	ErrNotConnected:         CodeNotConnected,
	ErrTransportBroken:      CodeTransportBroken,
	ErrInvalidToolSchema:    CodeInvalidToolSchema,
	ErrUnknownTool:          CodeUnknownTool,
	ErrToolLoopExceeded:     CodeToolLoopExceeded,
	ErrSessionNotFound:      CodeSessionNotFound,
	ErrProviderNotFound:     CodeProviderNotFound,
	ErrRateLimit:            CodeRateLimit,
	ErrAuthInvalid:          CodeAuthInvalid,
	ErrBackend:              CodeBackend,
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError and walks the chain with errors.Is.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code, ok := errorCodeMap[de.Err]; ok {
			return code
		}
	}

	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}

	return CodeUnknown
}
