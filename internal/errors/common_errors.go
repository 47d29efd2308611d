package errors

import (
	"errors"
	"fmt"

	"platereport/pkg/contracts/domain"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeMetadata      ErrorType = "METADATA"
	ErrTypeDetection     ErrorType = "DETECTION"
	ErrTypeInterpolation ErrorType = "INTERPOLATION"
	ErrTypeParsing       ErrorType = "PARSING"
	ErrTypeStorage       ErrorType = "STORAGE"
	ErrTypeValidation    ErrorType = "VALIDATION"
	ErrTypeNotFound      ErrorType = "NOT_FOUND"
	ErrTypeConfig        ErrorType = "CONFIG"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// TypeOf returns the type of the outermost AppError in err's chain
func TypeOf(err error) (ErrorType, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type, true
	}
	return "", false
}

// Sentinel errors shared across packages
var (
	ErrMetadataNotFound = domain.ErrMetadataNotFound
	ErrNoValidData      = errors.New("there should be at least one valid data point when interpolating")
	ErrDuplicateWell    = errors.New("duplicate well index")
	ErrNoWells          = errors.New("no well files found")
	ErrUnknownFormat    = errors.New("unrecognized well file format")
	ErrNotWellFile      = errors.New("workbook is not a well file")
	ErrClosed           = errors.New("plate recording is closed")
)

// NewMetadataError creates a metadata error for a well file
func NewMetadataError(path string, cause error) *AppError {
	return NewAppError(ErrTypeMetadata, "invalid well file metadata", cause).WithContext("path", path)
}

// NewParsingError creates a parsing-related error
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewInterpolationError creates an interpolation domain error
func NewInterpolationError(wellName string, cause error) *AppError {
	return NewAppError(ErrTypeInterpolation, "cannot interpolate well "+wellName, cause)
}

// NewAppValidationError creates a validation error for AppError type
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}
