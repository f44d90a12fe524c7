package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	IntakeErrorBadInput       = "INTAKE_BAD_INPUT"
	IntakeErrorUnauthorized   = "INTAKE_UNAUTHORIZED"
	IntakeErrorInvalidPayload = "INTAKE_INVALID_PAYLOAD"
	IntakeErrorNotConfigured  = "INTAKE_NOT_CONFIGURED"
	IntakeErrorStorageFailure = "INTAKE_STORAGE_FAILURE"
	IntakeErrorInternal       = "INTAKE_INTERNAL_ERROR"
)

// NewAuthError builds the envelope for missing or mismatching signatures.
// Authentication failures never carry storage side effects.
func NewAuthError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(IntakeErrorUnauthorized)
}

// NewNotConfiguredError marks a configuration fault, e.g. an unset webhook
// secret. Distinct from auth failures: the caller did nothing wrong.
func NewNotConfiguredError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusServiceUnavailable).
		WithTextCode(IntakeErrorNotConfigured)
}

func NewValidationError(message string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, goerrors.CategoryValidation).
		WithCode(http.StatusUnprocessableEntity).
		WithTextCode(IntakeErrorInvalidPayload)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func WrapStorageError(source error, message string) *goerrors.Error {
	return goerrors.Wrap(source, goerrors.CategoryInternal, message).
		WithCode(http.StatusInternalServerError).
		WithTextCode(IntakeErrorStorageFailure)
}

func intakeErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureIntakeErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "signature"):
		return ensureIntakeErrorEnvelope(
			goerrors.New(err.Error(), goerrors.CategoryAuth).WithTextCode(IntakeErrorUnauthorized),
		)
	case strings.Contains(msg, "secret"):
		return ensureIntakeErrorEnvelope(
			goerrors.New(err.Error(), goerrors.CategoryInternal).WithTextCode(IntakeErrorNotConfigured),
		)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "exceeds"):
		return ensureIntakeErrorEnvelope(
			goerrors.New(err.Error(), goerrors.CategoryValidation).WithTextCode(IntakeErrorInvalidPayload),
		)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureIntakeErrorEnvelope(mapped)
}

func ensureIntakeErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = intakeHTTPStatus(err.Category, err.TextCode)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultIntakeTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultIntakeTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput:
		return IntakeErrorBadInput
	case goerrors.CategoryValidation:
		return IntakeErrorInvalidPayload
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return IntakeErrorUnauthorized
	default:
		return IntakeErrorInternal
	}
}

func intakeHTTPStatus(category goerrors.Category, textCode string) int {
	if textCode == IntakeErrorNotConfigured {
		return http.StatusServiceUnavailable
	}
	switch category {
	case goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryValidation:
		return http.StatusUnprocessableEntity
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
