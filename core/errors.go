package core

import (
	"context"
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-idp-services/directory"
	"github.com/goliatone/go-idp-services/pairwise"
	"github.com/goliatone/go-idp-services/stat"
)

const (
	ServiceErrorBadInput         = "IDP_BAD_INPUT"
	ServiceErrorNotFound         = "IDP_NOT_FOUND"
	ServiceErrorConflict         = "IDP_CONFLICT"
	ServiceErrorConfiguration    = "IDP_CONFIGURATION"
	ServiceErrorStoreUnavailable = "IDP_STORE_UNAVAILABLE"
	ServiceErrorInternal         = "IDP_INTERNAL"
)

// MapError converts err into a go-errors envelope with a stable text code.
func MapError(err error) *goerrors.Error {
	return serviceErrorMapper(err)
}

func serviceErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureServiceErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, pairwise.ErrInvalidInput):
		return wrapServiceError(err, goerrors.CategoryBadInput, ServiceErrorBadInput)
	case errors.Is(err, pairwise.ErrNotFound), errors.Is(err, directory.ErrNotFound):
		return wrapServiceError(err, goerrors.CategoryNotFound, ServiceErrorNotFound)
	case errors.Is(err, directory.ErrAlreadyExists):
		return wrapServiceError(err, goerrors.CategoryConflict, ServiceErrorConflict)
	case errors.Is(err, pairwise.ErrModeMismatch),
		errors.Is(err, stat.ErrNotInitialized),
		errors.Is(err, stat.ErrNodeIDUnavailable):
		return wrapServiceError(err, goerrors.CategoryOperation, ServiceErrorConfiguration)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return wrapServiceError(err, goerrors.CategoryExternal, ServiceErrorStoreUnavailable)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "database is closed"),
		strings.Contains(msg, "i/o timeout"):
		return wrapServiceError(err, goerrors.CategoryExternal, ServiceErrorStoreUnavailable)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return wrapServiceError(err, goerrors.CategoryBadInput, ServiceErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureServiceErrorEnvelope(mapped)
}

func wrapServiceError(err error, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureServiceErrorEnvelope(
		goerrors.Wrap(err, category, err.Error()).
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
		err.TextCode = defaultServiceTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultServiceTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ServiceErrorBadInput
	case goerrors.CategoryNotFound:
		return ServiceErrorNotFound
	case goerrors.CategoryConflict:
		return ServiceErrorConflict
	case goerrors.CategoryOperation:
		return ServiceErrorConfiguration
	case goerrors.CategoryExternal:
		return ServiceErrorStoreUnavailable
	default:
		return ServiceErrorInternal
	}
}

func serviceHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
