// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Tour generation errors
const (
	ErrCodePreferencesInvalid        ErrorCode = "PREFERENCES_INVALID"
	ErrCodeInsufficientCandidates    ErrorCode = "INSUFFICIENT_CANDIDATES"
	ErrCodeGenerationLimitExceeded   ErrorCode = "GENERATION_LIMIT_EXCEEDED"
	ErrCodeGenerationCancelled       ErrorCode = "GENERATION_CANCELLED"
	ErrCodeDescriptionFailed         ErrorCode = "DESCRIPTION_FAILED"
	ErrCodeInvalidRegion             ErrorCode = "INVALID_REGION"
	ErrCodeDateParseFailed           ErrorCode = "DATE_PARSE_FAILED"
	ErrCodeProgressOutOfRange        ErrorCode = "PROGRESS_OUT_OF_RANGE"
	ErrCodeProgressNotFound          ErrorCode = "PROGRESS_NOT_FOUND"
	ErrCodeProgressTransitionInvalid ErrorCode = "PROGRESS_TRANSITION_INVALID"

	ErrCodeCorpusQueryFailed ErrorCode = "CORPUS_QUERY_FAILED"
	ErrCodeCorpusUnavailable ErrorCode = "CORPUS_UNAVAILABLE"
	ErrCodeCacheFailed       ErrorCode = "CACHE_OPERATION_FAILED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"

	ErrCodeSearchQueryFailed ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeSearchTimeout     ErrorCode = "SEARCH_TIMEOUT"
	ErrCodeIndexNotFound     ErrorCode = "INDEX_NOT_FOUND"

	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata returns the error with the given key set in its metadata.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// HasCode reports whether err (or anything it wraps) is a StandardError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code == code
	}
	return false
}

// CodeOf returns the code of the wrapped StandardError, or INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewPreferencesInvalidError creates a non-retryable client input error.
func NewPreferencesInvalidError(details string) *StandardError {
	return newError(ErrCodePreferencesInvalid, "Tour preferences are invalid", details, false)
}

// NewInsufficientCandidatesError reports that selection ran out of artworks before minStops.
func NewInsufficientCandidatesError(found, required int) *StandardError {
	return newError(ErrCodeInsufficientCandidates,
		"Could not find enough artworks matching the given preferences",
		fmt.Sprintf("found: %d, required: %d", found, required), false).
		WithMetadata("found", found).
		WithMetadata("required", required)
}

func NewGenerationLimitExceededError(visitorID string, limit int) *StandardError {
	return newError(ErrCodeGenerationLimitExceeded, "Daily tour generation limit reached",
		fmt.Sprintf("visitorId: %s, limit: %d", visitorID, limit), false)
}

// NewGenerationCancelledError reports a cancelled generation. requestID may be empty when the
// caller does not know it, e.g. inside the assembly loop.
func NewGenerationCancelledError(requestID string) *StandardError {
	details := ""
	if requestID != "" {
		details = fmt.Sprintf("requestId: %s", requestID)
	}
	return newError(ErrCodeGenerationCancelled, "Tour generation cancelled", details, false)
}

func NewDescriptionFailedError(err error) *StandardError {
	return newError(ErrCodeDescriptionFailed, "Tour description generation failed", err.Error(), true)
}

// NewInvalidRegionError is returned by taxonomy lookups for unknown region names.
func NewInvalidRegionError(region string) *StandardError {
	return newError(ErrCodeInvalidRegion, "Invalid region", fmt.Sprintf("region: %s", region), false)
}

func NewDateParseFailedError(message string) *StandardError {
	return newError(ErrCodeDateParseFailed, message, "", false)
}

func NewProgressOutOfRangeError(progress float64) *StandardError {
	return newError(ErrCodeProgressOutOfRange, "Progress must be between 0 and 1",
		fmt.Sprintf("progress: %v", progress), false)
}

func NewProgressNotFoundError(requestID string) *StandardError {
	return newError(ErrCodeProgressNotFound, "No generation in progress for request",
		fmt.Sprintf("requestId: %s", requestID), false)
}

func NewProgressTransitionInvalidError(requestID, from, to string) *StandardError {
	return newError(ErrCodeProgressTransitionInvalid, "Invalid progress transition",
		fmt.Sprintf("requestId: %s, from: %s, to: %s", requestID, from, to), false)
}

// NewCorpusQueryFailedError creates a retryable corpus error.
func NewCorpusQueryFailedError(backend string, err error) *StandardError {
	return newError(ErrCodeCorpusQueryFailed, "Artwork corpus query failed",
		fmt.Sprintf("backend: %s, error: %s", backend, err.Error()), true)
}

// NewCorpusUnavailableError is returned while the corpus circuit breaker is open.
func NewCorpusUnavailableError(backend string, err error) *StandardError {
	return newError(ErrCodeCorpusUnavailable, "Artwork corpus unavailable",
		fmt.Sprintf("backend: %s, error: %s", backend, err.Error()), true)
}

func NewCacheFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeCacheFailed, "Cache operation failed",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), true)
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true)
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()), true)
}

// NewQueryTimeoutError creates a retryable query timeout error.
func NewQueryTimeoutError(queryType string) *StandardError {
	return newError(ErrCodeQueryTimeout, "Database query timeout",
		fmt.Sprintf("queryType: %s", queryType), true)
}

func NewSearchQueryFailedError(queryType string, err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Elasticsearch query error",
		fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()), true)
}

func NewSearchTimeoutError(queryType string) *StandardError {
	return newError(ErrCodeSearchTimeout, "Elasticsearch query timeout",
		fmt.Sprintf("queryType: %s", queryType), true)
}

func NewIndexNotFoundError(indexName string) *StandardError {
	return newError(ErrCodeIndexNotFound, "Elasticsearch index not found",
		fmt.Sprintf("indexName: %s", indexName), false)
}

func NewValidationFailedError(details string) *StandardError {
	return newError(ErrCodeValidationFailed, "Input validation failed", details, false)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError("EXTERNAL_SERVICE_ERROR", fmt.Sprintf("External service '%s' error", service), err.Error(), true)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError("TIMEOUT_ERROR", fmt.Sprintf("Service '%s' timeout", service), err.Error(), true)
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return newError("RESOURCE_NOT_FOUND", fmt.Sprintf("Resource not found in %s", service), details, false)
}

// ==========================
// 4. BPMN Mapping
// ==========================

var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodePreferencesInvalid:       "PREFERENCES_INVALID",
	ErrCodeInsufficientCandidates:   "INSUFFICIENT_CANDIDATES",
	ErrCodeGenerationLimitExceeded:  "GENERATION_LIMIT_EXCEEDED",
	ErrCodeGenerationCancelled:      "GENERATION_CANCELLED",
	ErrCodeDescriptionFailed:        "DESCRIPTION_FAILED",
	ErrCodeInvalidRegion:            "INVALID_REGION",
	ErrCodeProgressNotFound:         "PROGRESS_NOT_FOUND",
	ErrCodeCorpusQueryFailed:        "CORPUS_QUERY_FAILED",
	ErrCodeCorpusUnavailable:        "CORPUS_UNAVAILABLE",
	ErrCodeCacheFailed:              "CACHE_OPERATION_FAILED",
	ErrCodeDatabaseConnectionFailed: "DATABASE_CONNECTION_FAILED",
	ErrCodeQueryExecutionFailed:     "QUERY_EXECUTION_FAILED",
	ErrCodeQueryTimeout:             "QUERY_TIMEOUT",
	ErrCodeSearchQueryFailed:        "SEARCH_QUERY_FAILED",
	ErrCodeSearchTimeout:            "SEARCH_TIMEOUT",
	ErrCodeIndexNotFound:            "INDEX_NOT_FOUND",
	ErrCodeValidationFailed:         "VALIDATION_FAILED",
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeCorpusQueryFailed,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeCacheFailed:
		return 3

	case ErrCodeQueryTimeout,
		ErrCodeSearchTimeout,
		ErrCodeCorpusUnavailable:
		return 2

	case ErrCodeDescriptionFailed:
		return 1

	default:
		return 0
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "PROGRESS"):
		return "PROGRESS"
	case strings.Contains(codeStr, "CORPUS") || strings.Contains(codeStr, "CANDIDATES"):
		return "CORPUS"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "SEARCH") || strings.Contains(codeStr, "INDEX"):
		return "SEARCH"
	case strings.Contains(codeStr, "GENERATION") || strings.Contains(codeStr, "DESCRIPTION"):
		return "GENERATION"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "PARSE"):
		return "VALIDATION"
	default:
		return "UNKNOWN"
	}
}
