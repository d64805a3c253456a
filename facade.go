package services

import (
	"fmt"

	idpcommand "github.com/goliatone/go-idp-services/command"
	idpquery "github.com/goliatone/go-idp-services/query"
)

type CommandQueryService interface {
	idpcommand.StatRecorder
	idpcommand.PairwiseMutator
	idpquery.PairwiseReader
	idpquery.StatReportReader
}

type Commands struct {
	RecordActiveUser        *idpcommand.RecordActiveUserCommand
	RecordTokenIssued       *idpcommand.RecordTokenIssuedCommand
	FlushStats              *idpcommand.FlushStatsCommand
	CreatePairwise          *idpcommand.CreatePairwiseCommand
	ResolveOrCreatePairwise *idpcommand.ResolveOrCreatePairwiseCommand
}

type Queries struct {
	ResolvePairwise *idpquery.ResolvePairwiseQuery
	StatReport      *idpquery.StatReportQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	reportReader idpquery.StatReportReader
}

// WithReportReader serves stat reports from reader instead of the service,
// for example a stat.Reporter over a reporting replica.
func WithReportReader(reader idpquery.StatReportReader) FacadeOption {
	return func(options *facadeOptions) {
		options.reportReader = reader
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("services: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	reader := cfg.reportReader
	if reader == nil {
		reader = service
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		RecordActiveUser:        idpcommand.NewRecordActiveUserCommand(service),
		RecordTokenIssued:       idpcommand.NewRecordTokenIssuedCommand(service),
		FlushStats:              idpcommand.NewFlushStatsCommand(service),
		CreatePairwise:          idpcommand.NewCreatePairwiseCommand(service),
		ResolveOrCreatePairwise: idpcommand.NewResolveOrCreatePairwiseCommand(service),
	}
	facade.queries = Queries{
		ResolvePairwise: idpquery.NewResolvePairwiseQuery(service),
		StatReport:      idpquery.NewStatReportQuery(reader),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

var _ CommandQueryService = (*Service)(nil)
