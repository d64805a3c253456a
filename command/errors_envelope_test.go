package command

import (
	"context"
	"errors"
	"fmt"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-idp-services/core"
	"github.com/goliatone/go-idp-services/directory"
	"github.com/goliatone/go-idp-services/pairwise"
)

func TestRecordActiveUserMessage_ValidateReturnsRichError(t *testing.T) {
	err := (RecordActiveUserMessage{}).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.ServiceErrorBadInput {
		t.Fatalf("expected %q text code, got %q", core.ServiceErrorBadInput, rich.TextCode)
	}
}

func TestFlushStatsCommand_NilServiceReturnsRichError(t *testing.T) {
	var cmd *FlushStatsCommand
	err := cmd.Execute(context.Background(), FlushStatsMessage{})
	if err == nil {
		t.Fatalf("expected command dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
}

func TestCreatePairwiseCommand_DuplicateIdentifierIsConflict(t *testing.T) {
	svc := stubPairwiseMutator{
		createFn: func(context.Context, string, pairwise.Identifier) (pairwise.Identifier, error) {
			return pairwise.Identifier{}, fmt.Errorf("persist: %w", directory.ErrAlreadyExists)
		},
	}
	err := NewCreatePairwiseCommand(svc).Execute(context.Background(), CreatePairwiseMessage{
		UserID:              "u-1",
		SectorIdentifierURI: "https://rp.example.com/sector",
		ClientID:            "client-1",
	})
	if !errors.Is(err, directory.ErrAlreadyExists) {
		t.Fatalf("expected already exists cause, got %v", err)
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.TextCode != core.ServiceErrorConflict {
		t.Fatalf("expected %q text code, got %q", core.ServiceErrorConflict, rich.TextCode)
	}
}

func TestPairwiseMessages_MalformedSectorKeepsCause(t *testing.T) {
	err := (ResolveOrCreatePairwiseMessage{UserID: "u-1", SectorIdentifierURI: "not a uri"}).Validate()
	if !errors.Is(err, pairwise.ErrInvalidInput) {
		t.Fatalf("expected pairwise invalid input cause, got %v", err)
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.Metadata["field"] != "sector_identifier_uri" {
		t.Fatalf("expected sector field in envelope metadata, got %+v", rich)
	}
}
