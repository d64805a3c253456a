package command

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-idp-services/core"
)

// missingService reports a handler built without the service it drives.
func missingService(name string) error {
	return goerrors.New("command: "+name+" is required", goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.ServiceErrorInternal).
		WithMetadata(map[string]any{"dependency": name})
}

func fieldError(field string, message string) error {
	return goerrors.NewValidation("command: validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ServiceErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}

// invalidSector keeps the pairwise cause reachable through errors.Is.
func invalidSector(err error) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, goerrors.CategoryValidation, "command: invalid sector identifier uri").
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ServiceErrorBadInput).
		WithMetadata(map[string]any{"field": "sector_identifier_uri"})
}

// serviceFailure gives a stat or pairwise failure the shared envelope, so a
// duplicate identifier surfaces as IDP_CONFLICT whichever service is wired.
func serviceFailure(err error) error {
	if err == nil {
		return nil
	}
	return core.MapError(err)
}
