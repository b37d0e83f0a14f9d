package common

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors. Kind is one of the
// sentinels below and is matched by errors.Is alongside Cause.
type AppError struct {
	Code    string
	Message string
	Kind    error
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

// Common application errors
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInternal       = errors.New("internal error")
	ErrDatabase       = errors.New("database error")
	ErrValidation     = errors.New("validation failed")
	ErrModel          = errors.New("model error")
	ErrClassification = errors.New("classification error")
	ErrExtraction     = errors.New("extraction error")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewClassificationError reports a page that could not be read or rendered during classification.
func NewClassificationError(message string, cause error) *AppError {
	return &AppError{Code: "CLASSIFICATION_ERROR", Message: message, Kind: ErrClassification, Cause: cause}
}

// NewExtractionError wraps a model failure raised while extracting fields.
func NewExtractionError(message string, cause error) *AppError {
	return &AppError{Code: "EXTRACTION_ERROR", Message: message, Kind: ErrExtraction, Cause: cause}
}

func NewNotFoundError(resource, id string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: fmt.Sprintf("%s %s not found", resource, id), Kind: ErrNotFound}
}

// NewValidationError folds field-level failures into one error.
func NewValidationError(errs []ValidationError) *AppError {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return &AppError{Code: "VALIDATION_ERROR", Message: strings.Join(msgs, "; "), Kind: ErrValidation}
}

func NewDatabaseError(op string, cause error) *AppError {
	return &AppError{Code: "DATABASE_ERROR", Message: op, Kind: ErrDatabase, Cause: cause}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// ToStatus maps the error taxonomy onto gRPC status codes.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok && !isApp(err) {
		return err
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrModel):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func isApp(err error) bool {
	var ae *AppError
	return errors.As(err, &ae)
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func InvalidArgumentErrorf(format string, args ...any) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}
