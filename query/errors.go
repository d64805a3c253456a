package query

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-idp-services/core"
)

func missingReader(name string) error {
	return goerrors.New("query: "+name+" is required", goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.ServiceErrorInternal).
		WithMetadata(map[string]any{"dependency": name})
}

func fieldError(field string, message string) error {
	return goerrors.NewValidation("query: validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ServiceErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}

// malformedMonth rejects a report month outside the YYYYMM form.
func malformedMonth(month string) error {
	return goerrors.New("query: month must use the YYYYMM form", goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ServiceErrorBadInput).
		WithMetadata(map[string]any{"month": month})
}

func invalidSector(err error) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, goerrors.CategoryValidation, "query: invalid sector identifier uri").
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ServiceErrorBadInput).
		WithMetadata(map[string]any{"field": "sector_identifier_uri"})
}

// readFailure maps a reader error so a missing identifier reads as
// IDP_NOT_FOUND and an unreachable store as IDP_STORE_UNAVAILABLE.
func readFailure(err error) error {
	if err == nil {
		return nil
	}
	return core.MapError(err)
}
