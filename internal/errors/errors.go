/**
 * Row-level error types for the parameter extraction pipeline
 *
 * Every failure of a single dataset row is converted into one of these
 * before it reaches the orchestrator; rows never abort a batch.
 */

package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Image acquisition failed: transport error, non-200 status, or
	// oversize body
	ErrorAcquisition ErrorCode = "ACQUISITION_ERROR"

	// Fetched bytes could not be decoded as an image
	ErrorDecode ErrorCode = "DECODE_ERROR"

	// Pipeline completed but no pattern matched the recognized text
	ErrorNoMatch ErrorCode = "NO_MATCH"

	// Row exceeded its processing deadline
	ErrorProcessingTimeout ErrorCode = "PROCESSING_TIMEOUT"
)

// RowError represents a structured per-row failure
type RowError struct {
	Code      ErrorCode
	Message   string
	RowID     string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *RowError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RowError) Unwrap() error {
	return e.Cause
}

// Factory functions for the taxonomy

func NewAcquisitionError(rowID, url string, cause error) *RowError {
	return &RowError{
		Code:      ErrorAcquisition,
		Message:   "Failed to acquire image",
		RowID:     rowID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"image_url": url,
		},
		Cause: cause,
	}
}

func NewDecodeError(rowID string, cause error) *RowError {
	return &RowError{
		Code:      ErrorDecode,
		Message:   "Fetched bytes are not a decodable image",
		RowID:     rowID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewNoMatchError(rowID, paramType string) *RowError {
	return &RowError{
		Code:      ErrorNoMatch,
		Message:   fmt.Sprintf("No pattern matched for type: %s", paramType),
		RowID:     rowID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"param_type": paramType,
		},
	}
}

func NewProcessingTimeoutError(rowID string, duration time.Duration, cause error) *RowError {
	return &RowError{
		Code:      ErrorProcessingTimeout,
		Message:   fmt.Sprintf("Row processing timed out after %v", duration),
		RowID:     rowID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

// CodeOf extracts the taxonomy code from an error chain, or "" when the
// chain carries no RowError
func CodeOf(err error) ErrorCode {
	var re *RowError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// ToMap converts the error to a map for database storage
func (e *RowError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
