package services

import (
	"fmt"

	"github.com/goliatone/go-idp-services/adapters/gojob"
	"github.com/goliatone/go-idp-services/adapters/gologger"
	"github.com/goliatone/go-idp-services/core"
	"github.com/goliatone/go-idp-services/pairwise"
	"github.com/goliatone/go-idp-services/stat"
)

type Config = core.Config
type StatConfig = core.StatConfig
type PairwiseConfig = core.PairwiseConfig
type DirectoryConfig = core.DirectoryConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type MonthlyReport = stat.MonthlyReport
type PairwiseIdentifier = pairwise.Identifier

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorFactory      = core.WithErrorFactory
	WithErrorMapper       = core.WithErrorMapper
	WithPersistenceClient = core.WithPersistenceClient
	WithRepositoryFactory = core.WithRepositoryFactory
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithDirectoryStore    = core.WithDirectoryStore
	WithPairwiseGenerator = core.WithPairwiseGenerator
	WithClock             = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}

// NewStatFlushWorker builds a queue worker that flushes svc's statistics,
// logging through the service's logger provider.
func NewStatFlushWorker(
	svc *Service,
	dequeuer core.JobDequeuer,
	opts ...gojob.StatFlushWorkerOption,
) (*gojob.StatFlushWorker, error) {
	if svc == nil {
		return nil, fmt.Errorf("services: service is required")
	}
	deps := svc.Dependencies()
	logger := gologger.Component(deps.LoggerProvider, deps.Logger, "stat.worker")
	all := append([]gojob.StatFlushWorkerOption{gojob.WithWorkerLogger(logger)}, opts...)
	return gojob.NewStatFlushWorker(dequeuer, svc, all...)
}
