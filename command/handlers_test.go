package command

import (
	"context"
	"errors"
	"testing"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-idp-services/pairwise"
	"github.com/goliatone/go-idp-services/stat"
)

type stubStatRecorder struct {
	activeUsers []string
	tokens      [][2]string
	flushes     int
	flushErr    error
}

func (s *stubStatRecorder) RecordActiveUser(_ context.Context, userID string) {
	s.activeUsers = append(s.activeUsers, userID)
}

func (s *stubStatRecorder) RecordTokenIssued(_ context.Context, grantType string, tokenKind string) {
	s.tokens = append(s.tokens, [2]string{grantType, tokenKind})
}

func (s *stubStatRecorder) Flush(context.Context) error {
	s.flushes++
	return s.flushErr
}

type stubPairwiseMutator struct {
	createFn          func(ctx context.Context, userID string, identifier pairwise.Identifier) (pairwise.Identifier, error)
	resolveOrCreateFn func(ctx context.Context, userID string, sectorIdentifierURI string, clientID string) (pairwise.Identifier, error)
}

func (s stubPairwiseMutator) CreatePairwise(
	ctx context.Context,
	userID string,
	identifier pairwise.Identifier,
) (pairwise.Identifier, error) {
	if s.createFn == nil {
		return pairwise.Identifier{}, nil
	}
	return s.createFn(ctx, userID, identifier)
}

func (s stubPairwiseMutator) ResolveOrCreatePairwise(
	ctx context.Context,
	userID string,
	sectorIdentifierURI string,
	clientID string,
) (pairwise.Identifier, error) {
	if s.resolveOrCreateFn == nil {
		return pairwise.Identifier{}, nil
	}
	return s.resolveOrCreateFn(ctx, userID, sectorIdentifierURI, clientID)
}

func TestStatCommands_DelegateToRecorder(t *testing.T) {
	recorder := &stubStatRecorder{}
	ctx := context.Background()

	if err := NewRecordActiveUserCommand(recorder).Execute(ctx, RecordActiveUserMessage{UserID: "u-1"}); err != nil {
		t.Fatalf("record active user: %v", err)
	}
	if err := NewRecordTokenIssuedCommand(recorder).Execute(ctx, RecordTokenIssuedMessage{
		GrantType: "authorization_code",
		TokenKind: stat.TokenKindAccess,
	}); err != nil {
		t.Fatalf("record token: %v", err)
	}
	if err := NewFlushStatsCommand(recorder).Execute(ctx, FlushStatsMessage{}); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if len(recorder.activeUsers) != 1 || recorder.activeUsers[0] != "u-1" {
		t.Fatalf("unexpected active users %v", recorder.activeUsers)
	}
	if len(recorder.tokens) != 1 || recorder.tokens[0] != [2]string{"authorization_code", stat.TokenKindAccess} {
		t.Fatalf("unexpected tokens %v", recorder.tokens)
	}
	if recorder.flushes != 1 {
		t.Fatalf("expected one flush, got %d", recorder.flushes)
	}
}

func TestStatCommands_RejectInvalidMessages(t *testing.T) {
	recorder := &stubStatRecorder{}
	ctx := context.Background()

	if err := NewRecordActiveUserCommand(recorder).Execute(ctx, RecordActiveUserMessage{UserID: " "}); err == nil {
		t.Fatalf("expected blank user id to be rejected")
	}
	if err := NewRecordTokenIssuedCommand(recorder).Execute(ctx, RecordTokenIssuedMessage{
		GrantType: "client_credentials",
		TokenKind: "bogus",
	}); err == nil {
		t.Fatalf("expected unknown token kind to be rejected")
	}
	if len(recorder.activeUsers) != 0 || len(recorder.tokens) != 0 {
		t.Fatalf("expected no recorder calls for invalid messages")
	}
}

func TestFlushStatsCommand_PropagatesError(t *testing.T) {
	expected := errors.New("store down")
	recorder := &stubStatRecorder{flushErr: expected}
	err := NewFlushStatsCommand(recorder).Execute(context.Background(), FlushStatsMessage{})
	if !errors.Is(err, expected) {
		t.Fatalf("expected flush error, got %v", err)
	}
}

func TestCreatePairwiseCommand_BuildsIdentifierAndStoresResult(t *testing.T) {
	svc := stubPairwiseMutator{
		createFn: func(_ context.Context, userID string, identifier pairwise.Identifier) (pairwise.Identifier, error) {
			if userID != "u-1" {
				t.Fatalf("expected user u-1, got %q", userID)
			}
			if identifier.SectorIdentifier != "rp.example.com" || identifier.ClientID != "client-1" {
				t.Fatalf("unexpected identifier %#v", identifier)
			}
			if identifier.ID != "fixed-id" {
				t.Fatalf("expected caller supplied id, got %q", identifier.ID)
			}
			return identifier, nil
		},
	}

	collector := gocmd.NewResult[pairwise.Identifier]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	err := NewCreatePairwiseCommand(svc).Execute(ctx, CreatePairwiseMessage{
		UserID:              "u-1",
		SectorIdentifierURI: "https://rp.example.com/sector.json",
		ClientID:            "client-1",
		ID:                  "fixed-id",
	})
	if err != nil {
		t.Fatalf("execute create: %v", err)
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if result.ID != "fixed-id" {
		t.Fatalf("unexpected stored result %#v", result)
	}
}

func TestResolveOrCreatePairwiseCommand_StoresResult(t *testing.T) {
	svc := stubPairwiseMutator{
		resolveOrCreateFn: func(_ context.Context, userID string, uri string, clientID string) (pairwise.Identifier, error) {
			return pairwise.Identifier{ID: "resolved", UserID: userID, ClientID: clientID}, nil
		},
	}
	collector := gocmd.NewResult[pairwise.Identifier]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	err := NewResolveOrCreatePairwiseCommand(svc).Execute(ctx, ResolveOrCreatePairwiseMessage{
		UserID:              "u-1",
		SectorIdentifierURI: "https://rp.example.com",
		ClientID:            "client-1",
	})
	if err != nil {
		t.Fatalf("execute resolve or create: %v", err)
	}
	result, ok := collector.Load()
	if !ok || result.ID != "resolved" {
		t.Fatalf("expected stored result, got %#v ok=%v", result, ok)
	}
}

func TestPairwiseMessages_RejectMalformedSector(t *testing.T) {
	err := (ResolveOrCreatePairwiseMessage{UserID: "u-1", SectorIdentifierURI: "not a uri"}).Validate()
	if err == nil {
		t.Fatalf("expected malformed sector identifier to be rejected")
	}
	err = (CreatePairwiseMessage{SectorIdentifierURI: "https://rp.example.com"}).Validate()
	if err == nil {
		t.Fatalf("expected blank user id to be rejected")
	}
}
