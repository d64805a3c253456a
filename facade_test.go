package services

import (
	"context"
	"testing"

	idpcommand "github.com/goliatone/go-idp-services/command"
	"github.com/goliatone/go-idp-services/directory"
	"github.com/goliatone/go-idp-services/pairwise"
	idpquery "github.com/goliatone/go-idp-services/query"
	"github.com/goliatone/go-idp-services/stat"
)

func TestNewFacade_WiresCommandsAndQueries(t *testing.T) {
	facade, err := NewFacade(&stubFacadeService{})
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	commands := facade.Commands()
	if commands.RecordActiveUser == nil || commands.FlushStats == nil || commands.CreatePairwise == nil {
		t.Fatalf("expected command handlers to be wired")
	}
	queries := facade.Queries()
	if queries.ResolvePairwise == nil || queries.StatReport == nil {
		t.Fatalf("expected query handlers to be wired")
	}
}

func TestFacade_CommandAndQueryDelegation(t *testing.T) {
	svc := &stubFacadeService{}
	reports := &stubReportReader{}

	facade, err := NewFacade(svc, WithReportReader(reports))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	ctx := context.Background()
	if err := facade.Commands().RecordActiveUser.Execute(ctx, idpcommand.RecordActiveUserMessage{UserID: "u-1"}); err != nil {
		t.Fatalf("execute record active user: %v", err)
	}
	if svc.lastActiveUser != "u-1" {
		t.Fatalf("unexpected active user delegation %q", svc.lastActiveUser)
	}

	identifier, err := facade.Queries().ResolvePairwise.Query(ctx, idpquery.ResolvePairwiseMessage{
		UserID:              "u-1",
		SectorIdentifierURI: "https://rp.example.com",
		ClientID:            "client-1",
	})
	if err != nil {
		t.Fatalf("query resolve pairwise: %v", err)
	}
	if identifier.ID != "sub-u-1" {
		t.Fatalf("unexpected pairwise query result: %#v", identifier)
	}

	if _, err := facade.Queries().StatReport.Query(ctx, idpquery.StatReportMessage{Month: "202601"}); err != nil {
		t.Fatalf("query stat report: %v", err)
	}
	if reports.calls != 1 || svc.reportCalls != 0 {
		t.Fatalf("expected report query to use the configured reader")
	}
}

func TestNewFacade_RequiresService(t *testing.T) {
	facade, err := NewFacade(nil)
	if err == nil {
		t.Fatalf("expected nil service error")
	}
	if facade != nil {
		t.Fatalf("expected nil facade on error")
	}
}

func TestFacade_EndToEndWithMemoryStore(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Stat.NodeID = "node-a"
	cfg.Stat.BaseDN = "ou=statistic,o=jans"

	svc, err := NewService(cfg, WithDirectoryStore(directory.NewMemoryStore()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if !svc.Init(ctx) {
		t.Fatalf("expected init to succeed")
	}
	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	if err := facade.Commands().RecordTokenIssued.Execute(ctx, idpcommand.RecordTokenIssuedMessage{
		GrantType: "client_credentials",
		TokenKind: stat.TokenKindAccess,
	}); err != nil {
		t.Fatalf("record token: %v", err)
	}
	if err := facade.Commands().FlushStats.Execute(ctx, idpcommand.FlushStatsMessage{}); err != nil {
		t.Fatalf("flush: %v", err)
	}

	record, ok := svc.Stats().Current()
	if !ok {
		t.Fatalf("expected a current stat record")
	}
	report, err := facade.Queries().StatReport.Query(ctx, idpquery.StatReportMessage{Month: record.Month})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if got := report.TokenCountPerGrantType["client_credentials"][stat.TokenKindAccess]; got != 1 {
		t.Fatalf("expected 1 client_credentials access token, got %d", got)
	}

	if _, err := NewStatFlushWorker(nil, nil); err == nil {
		t.Fatalf("expected worker construction to require a service")
	}
}

type stubFacadeService struct {
	lastActiveUser string
	reportCalls    int
}

func (s *stubFacadeService) RecordActiveUser(_ context.Context, userID string) {
	s.lastActiveUser = userID
}

func (s *stubFacadeService) RecordTokenIssued(context.Context, string, string) {}

func (s *stubFacadeService) Flush(context.Context) error {
	return nil
}

func (s *stubFacadeService) CreatePairwise(
	_ context.Context,
	_ string,
	identifier pairwise.Identifier,
) (pairwise.Identifier, error) {
	return identifier, nil
}

func (s *stubFacadeService) ResolveOrCreatePairwise(
	_ context.Context,
	userID string,
	_ string,
	_ string,
) (pairwise.Identifier, error) {
	return pairwise.Identifier{ID: "sub-" + userID, UserID: userID}, nil
}

func (s *stubFacadeService) ResolvePairwise(
	_ context.Context,
	userID string,
	_ string,
	_ string,
) (pairwise.Identifier, error) {
	return pairwise.Identifier{ID: "sub-" + userID, UserID: userID}, nil
}

func (s *stubFacadeService) Report(context.Context, string) (stat.MonthlyReport, error) {
	s.reportCalls++
	return stat.MonthlyReport{}, nil
}

type stubReportReader struct {
	calls int
}

func (r *stubReportReader) Report(_ context.Context, month string) (stat.MonthlyReport, error) {
	r.calls++
	return stat.MonthlyReport{Month: month}, nil
}

var _ CommandQueryService = (*stubFacadeService)(nil)
