package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-idp-services/directory"
	"github.com/goliatone/go-idp-services/pairwise"
	"github.com/goliatone/go-idp-services/stat"
	glog "github.com/goliatone/go-logger/glog"
)

// Service owns the process wide stat aggregator and pairwise identifier
// service and maps their failures to go-errors envelopes.
type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	store             directory.Store
	stats             *stat.Service
	reporter          *stat.Reporter
	users             *pairwise.UserService
	pairwise          *pairwise.Service
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorFactory      ErrorFactory
	ErrorMapper       ErrorMapper
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	DirectoryStore    directory.Store
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("idp-services", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("idp-services"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.generator == nil {
		builder.generator = pairwise.HMACGenerator{}
	}
	if builder.clock == nil {
		builder.clock = time.Now
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	store, err := resolveDirectoryStore(builder)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	if store == nil {
		logger.Warn("no directory store configured, using in-memory store")
		store = directory.NewMemoryStore()
	}

	stats, err := stat.NewService(store, finalConfig.statConfig(),
		stat.WithLogger(namedLogger(provider, logger, "idp-services.stat")),
		stat.WithClock(builder.clock),
	)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	users := pairwise.NewUserService(store, finalConfig.Directory.PeopleBaseDN)
	pairwiseService, err := pairwise.NewService(store, users, finalConfig.pairwiseConfig(),
		pairwise.WithLogger(namedLogger(provider, logger, "idp-services.pairwise")),
		pairwise.WithGenerator(builder.generator),
	)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		store:             store,
		stats:             stats,
		reporter:          stat.NewReporter(store, finalConfig.Stat.BaseDN),
		users:             users,
		pairwise:          pairwiseService,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func resolveDirectoryStore(builder serviceBuilder) (directory.Store, error) {
	if builder.directoryStore != nil {
		return builder.directoryStore, nil
	}
	switch factory := builder.repositoryFactory.(type) {
	case nil:
		return nil, nil
	case DirectoryStoreFactory:
		store, err := factory.BuildDirectoryStore(builder.persistenceClient)
		if err != nil {
			return nil, fmt.Errorf("core: build directory store: %w", err)
		}
		return store, nil
	case DirectoryStoreProvider:
		return factory.DirectoryStore(), nil
	default:
		return nil, nil
	}
}

func namedLogger(provider LoggerProvider, fallback Logger, name string) Logger {
	if provider != nil {
		if named := provider.GetLogger(name); named != nil {
			return named
		}
	}
	return fallback
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	return mapBuildError(s.errorMapper, err)
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorFactory:      s.errorFactory,
		ErrorMapper:       s.errorMapper,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		DirectoryStore:    s.store,
	}
}

func (s *Service) Stats() *stat.Service {
	return s.stats
}

// NodeID is the stat node id resolved by Init, blank before that.
func (s *Service) NodeID() string {
	if s == nil || s.stats == nil {
		return ""
	}
	return s.stats.NodeID()
}

func (s *Service) Pairwise() *pairwise.Service {
	return s.pairwise
}

func (s *Service) Users() *pairwise.UserService {
	return s.users
}

func (s *Service) DirectoryStore() directory.Store {
	return s.store
}

// Init prepares the stat aggregator. It reports false when the node id or
// base dn is missing or the store rejects the initial writes.
func (s *Service) Init(ctx context.Context) bool {
	startedAt := time.Now().UTC()
	ok := s.stats.Init(ctx)
	var err error
	if !ok {
		err = stat.ErrNotInitialized
	}
	s.observeOperation(ctx, startedAt, "stat_init", err, map[string]any{
		"service_name": s.config.ServiceName,
		"base_dn":      s.config.Stat.BaseDN,
	})
	return ok
}

// NewFlusher returns a flusher for the stat aggregator at the configured
// interval.
func (s *Service) NewFlusher() *stat.Flusher {
	interval, err := s.config.Stat.Interval()
	if err != nil {
		interval = stat.DefaultFlushInterval
	}
	return stat.NewFlusher(s, interval, namedLogger(s.loggerProvider, s.logger, "idp-services.stat.flusher"))
}

func (s *Service) RecordActiveUser(ctx context.Context, userID string) {
	if strings.TrimSpace(userID) == "" {
		return
	}
	s.stats.RecordActiveUser(ctx, userID)
	s.recordCounter(ctx, MetricStatActiveUser, 1, nil)
}

func (s *Service) RecordTokenIssued(ctx context.Context, grantType string, tokenKind string) {
	if strings.TrimSpace(grantType) == "" || strings.TrimSpace(tokenKind) == "" {
		return
	}
	s.stats.RecordTokenIssued(ctx, grantType, tokenKind)
	s.recordCounter(ctx, MetricStatTokenIssued, 1, map[string]string{
		"grant_type": strings.TrimSpace(grantType),
		"token_kind": strings.TrimSpace(tokenKind),
	})
}

func (s *Service) Flush(ctx context.Context) (err error) {
	startedAt := time.Now().UTC()
	defer func() {
		s.observeOperation(ctx, startedAt, "stat_flush", err, map[string]any{
			"node_id": s.stats.NodeID(),
		})
	}()
	return s.mapError(s.stats.Flush(ctx))
}

func (s *Service) Report(ctx context.Context, month string) (report stat.MonthlyReport, err error) {
	startedAt := time.Now().UTC()
	defer func() {
		s.observeOperation(ctx, startedAt, "stat_report", err, map[string]any{"month": month})
	}()
	report, err = s.reporter.Report(ctx, month)
	if err != nil {
		return stat.MonthlyReport{}, s.mapError(err)
	}
	return report, nil
}

func (s *Service) ResolvePairwise(
	ctx context.Context,
	userID string,
	sectorIdentifierURI string,
	clientID string,
) (identifier pairwise.Identifier, err error) {
	startedAt := time.Now().UTC()
	defer func() {
		s.observeOperation(ctx, startedAt, "pairwise_resolve", err, s.pairwiseFields(userID, clientID))
	}()
	identifier, err = s.pairwise.Resolve(ctx, userID, sectorIdentifierURI, clientID)
	if err != nil {
		return pairwise.Identifier{}, s.mapError(err)
	}
	return identifier, nil
}

func (s *Service) CreatePairwise(
	ctx context.Context,
	userID string,
	identifier pairwise.Identifier,
) (created pairwise.Identifier, err error) {
	startedAt := time.Now().UTC()
	defer func() {
		fields := s.pairwiseFields(userID, identifier.ClientID)
		fields["pairwise_id"] = created.ID
		s.observeOperation(ctx, startedAt, "pairwise_create", err, fields)
	}()
	created, err = s.pairwise.Create(ctx, userID, identifier)
	if err != nil {
		return pairwise.Identifier{}, s.mapError(err)
	}
	return created, nil
}

func (s *Service) ResolveOrCreatePairwise(
	ctx context.Context,
	userID string,
	sectorIdentifierURI string,
	clientID string,
) (identifier pairwise.Identifier, err error) {
	startedAt := time.Now().UTC()
	defer func() {
		s.observeOperation(ctx, startedAt, "pairwise_resolve_or_create", err, s.pairwiseFields(userID, clientID))
	}()
	identifier, err = s.pairwise.ResolveOrCreate(ctx, userID, sectorIdentifierURI, clientID)
	if err != nil {
		return pairwise.Identifier{}, s.mapError(err)
	}
	return identifier, nil
}

func (s *Service) pairwiseFields(userID string, clientID string) map[string]any {
	return map[string]any{
		"user_id":   strings.TrimSpace(userID),
		"client_id": strings.TrimSpace(clientID),
		"id_type":   s.pairwise.IDType().String(),
	}
}
