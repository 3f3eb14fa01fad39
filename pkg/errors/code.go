package errors

import "net/http"

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 13000-13999: Execution module errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Database errors (10100-10199)
	DatabaseError ErrorCode = 10100

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200
	CacheMiss  ErrorCode = 10201

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	InvalidFormat      ErrorCode = 10301
	InvalidValue       ErrorCode = 10302
	RequiredFieldEmpty ErrorCode = 10303

	// ========== Execution Module Errors (13000-13999) ==========

	// Request (13000-13099)
	ExecutionNotFound    ErrorCode = 13000
	CodeTooLarge         ErrorCode = 13002
	LanguageNotSupported ErrorCode = 13003
	EmptySourceCode      ErrorCode = 13004

	// Sandbox (13100-13199)
	ExecutorBusy        ErrorCode = 13100
	ExecutorSystemError ErrorCode = 13101
	StagingFailed       ErrorCode = 13102
	ToolchainMissing    ErrorCode = 13103

	// Result store (13200-13299)
	ExecutionStoreError ErrorCode = 13200
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	// Storage
	DatabaseError: "Database operation failed",
	CacheError:    "Cache operation failed",
	CacheMiss:     "Cache miss",

	// Validation
	ValidationFailed:   "Validation failed",
	InvalidFormat:      "Invalid format",
	InvalidValue:       "Invalid value",
	RequiredFieldEmpty: "Required field is empty",

	// Execution - Request
	ExecutionNotFound:    "Execution not found",
	CodeTooLarge:         "Source code is too large",
	LanguageNotSupported: "Language not supported",
	EmptySourceCode:      "Empty code!",

	// Execution - Sandbox
	ExecutorBusy:        "Executor is busy, please try again later",
	ExecutorSystemError: "Executor system error",
	StagingFailed:       "Failed to stage source code",
	ToolchainMissing:    "Toolchain is not available",

	// Execution - Store
	ExecutionStoreError: "Execution result store failed",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return http.StatusOK
	case c == NotFound, c == ExecutionNotFound:
		return http.StatusNotFound
	case c == TooManyRequests, c == ExecutorBusy:
		return http.StatusTooManyRequests
	case c == ServiceUnavailable:
		return http.StatusServiceUnavailable
	case c == Timeout:
		return http.StatusGatewayTimeout
	case c >= 10300 && c < 10400: // Validation errors
		return http.StatusBadRequest
	case c == InvalidParams, c == LanguageNotSupported, c == EmptySourceCode, c == CodeTooLarge:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
