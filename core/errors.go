package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ServiceErrorBadInput             = "SERVICE_BAD_INPUT"
	ServiceErrorOperationUnsupported = "SERVICE_OPERATION_UNSUPPORTED"
	ServiceErrorCredentialsInvalid   = "SERVICE_CREDENTIALS_INVALID"
	ServiceErrorUnauthorized         = "SERVICE_UNAUTHORIZED"
	ServiceErrorForbidden            = "SERVICE_FORBIDDEN"
	ServiceErrorNotFound             = "SERVICE_NOT_FOUND"
	ServiceErrorRateLimited          = "SERVICE_RATE_LIMITED"
	ServiceErrorExternalFailure      = "SERVICE_EXTERNAL_FAILURE"
	ServiceErrorInternal             = "SERVICE_INTERNAL_ERROR"
)

var (
	ErrOperationNotSupported = errors.New("core: operation not supported")

	errMissingCredentials = errors.New("core: credentials are required")
)

// ItemError reports the input position of the item that aborted a batch.
type ItemError struct {
	ItemIndex int
	Key       OperationKey
	Err       error
}

func (e *ItemError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("core: item %d (%s) failed: %s", e.ItemIndex, e.Key, ErrorMessage(e.Err))
}

func (e *ItemError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ErrorMessage extracts the text recorded in {error: message} results.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var itemErr *ItemError
	if errors.As(err, &itemErr) && itemErr.Err != nil {
		return ErrorMessage(itemErr.Err)
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && strings.TrimSpace(rich.Message) != "" {
		return rich.Message
	}
	return err.Error()
}

func unsupportedOperationError(key OperationKey) error {
	err := goerrors.Wrap(
		ErrOperationNotSupported,
		goerrors.CategoryOperation,
		fmt.Sprintf("core: operation %q is not supported for resource %q", key.Operation, key.Resource),
	).
		WithCode(http.StatusBadRequest).
		WithTextCode(ServiceErrorOperationUnsupported)
	err.WithMetadata(map[string]any{"resource": string(key.Resource), "operation": string(key.Operation)})
	return err
}

func badInputError(message string) error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(ServiceErrorBadInput)
}

func credentialsError(err error) error {
	return goerrors.New(err.Error(), goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(ServiceErrorCredentialsInvalid)
}

func dependencyError(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ServiceErrorInternal)
}

func serviceErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureServiceErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not supported"):
		return newServiceError(err.Error(), goerrors.CategoryOperation, ServiceErrorOperationUnsupported)
	case strings.Contains(msg, "credentials"):
		return newServiceError(err.Error(), goerrors.CategoryBadInput, ServiceErrorCredentialsInvalid)
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "throttl"):
		return newServiceError(err.Error(), goerrors.CategoryRateLimit, ServiceErrorRateLimited)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newServiceError(err.Error(), goerrors.CategoryBadInput, ServiceErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureServiceErrorEnvelope(mapped)
}

func newServiceError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureServiceErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureServiceErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = serviceHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = DefaultServiceTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

// DefaultServiceTextCode is shared with the transport package so envelopes
// carry the same text codes regardless of where they originate.
func DefaultServiceTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ServiceErrorBadInput
	case goerrors.CategoryNotFound:
		return ServiceErrorNotFound
	case goerrors.CategoryAuth:
		return ServiceErrorUnauthorized
	case goerrors.CategoryAuthz:
		return ServiceErrorForbidden
	case goerrors.CategoryRateLimit:
		return ServiceErrorRateLimited
	case goerrors.CategoryOperation:
		return ServiceErrorOperationUnsupported
	case goerrors.CategoryExternal:
		return ServiceErrorExternalFailure
	default:
		return ServiceErrorInternal
	}
}

func serviceHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation, goerrors.CategoryOperation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
