package stat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-idp-services/directory"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	TokenKindAccess  = "access_token"
	TokenKindID      = "id_token"
	TokenKindRefresh = "refresh_token"
	// TokenKindUMA covers RPTs issued through the UMA extension.
	TokenKindUMA = "uma_token"
)

var ErrNotInitialized = errors.New("stat: service is not initialized")

type Config struct {
	NodeID          string
	BaseDN          string
	ConfigurationDN string
}

type NodeIDSource interface {
	Resolve(ctx context.Context) (string, error)
}

type Option func(*Service)

func WithLogger(logger glog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithNodeIDSource(source NodeIDSource) Option {
	return func(s *Service) {
		s.nodeIDs = source
	}
}

// Service aggregates per node monthly usage statistics: an approximate count
// of active users and exact token counters. Mutations only touch memory;
// Flush writes the current record to the store.
type Service struct {
	store   directory.Store
	baseDN  string
	nodeIDs NodeIDSource
	logger  glog.Logger
	now     func() time.Time

	switchMu sync.Mutex
	mu       sync.RWMutex
	nodeID   string
	current  *periodState
}

type periodState struct {
	dn        string
	nodeID    string
	month     string
	estimator *Estimator
	counters  *TokenCounters

	// flushMu serializes capture and store write so an older snapshot
	// never lands after a newer one.
	flushMu sync.Mutex

	mu              sync.Mutex
	lastUpdatedAt   time.Time
	flushedHLL      []byte
	flushedRevision uint64
	flushedCounts   map[string]map[string]int64
}

func NewService(store directory.Store, cfg Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("stat: directory store is required")
	}
	s := &Service{
		store:  store,
		baseDN: strings.TrimSpace(cfg.BaseDN),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = glog.Ensure(s.logger)
	if s.now == nil {
		s.now = time.Now
	}
	if s.nodeIDs == nil {
		s.nodeIDs = NewNodeIDResolver(store, cfg.ConfigurationDN, cfg.NodeID, s.logger)
	}
	return s, nil
}

// Init resolves the node id, prepares the monthly branch and loads or creates
// the current record. Failures are logged and reported as false.
func (s *Service) Init(ctx context.Context) bool {
	s.logger.Info("initializing stat service")

	nodeID, err := s.nodeIDs.Resolve(ctx)
	if err != nil || strings.TrimSpace(nodeID) == "" {
		s.logger.Error("failed to initialize stat service, statNodeId is not set", "error", err)
		return false
	}
	if s.baseDN == "" {
		s.logger.Error("failed to initialize stat service, stat base dn is not set")
		return false
	}

	s.mu.Lock()
	s.nodeID = strings.TrimSpace(nodeID)
	s.mu.Unlock()

	if err := s.EnsureCurrentPeriod(ctx); err != nil {
		s.logger.Error("failed to initialize stat service", "error", err)
		return false
	}
	s.logger.Info("initialized stat service", "node_id", nodeID, "base_dn", s.baseDN)
	return true
}

func (s *Service) NodeID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodeID
}

func (s *Service) BaseDN() string {
	return s.baseDN
}

// EnsureCurrentPeriod switches the in-memory record to the current month,
// loading it from the store or creating it. Records of previous months are
// left as last flushed.
func (s *Service) EnsureCurrentPeriod(ctx context.Context) error {
	_, err := s.ensurePeriod(ctx)
	return err
}

func (s *Service) ensurePeriod(ctx context.Context) (*periodState, error) {
	period := PeriodKey(s.now())
	if state := s.state(); state != nil && state.month == period {
		return state, nil
	}

	s.switchMu.Lock()
	defer s.switchMu.Unlock()
	if state := s.state(); state != nil && state.month == period {
		return state, nil
	}

	nodeID := s.NodeID()
	if nodeID == "" || s.baseDN == "" {
		return nil, ErrNotInitialized
	}
	monthlyDN, err := s.prepareMonthlyBranch(ctx, period)
	if err != nil {
		return nil, err
	}
	state, err := s.loadOrCreate(ctx, nodeID, period, monthlyDN)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	previous := s.current
	s.current = state
	s.mu.Unlock()

	if previous != nil {
		s.logger.Info("stat period rolled over", "from", previous.month, "to", period)
	}
	return state, nil
}

func (s *Service) state() *periodState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Service) prepareMonthlyBranch(ctx context.Context, period string) (string, error) {
	monthlyDN := MonthlyBranchDN(period, s.baseDN)
	if !s.store.HasBranchesSupport(s.baseDN) {
		return monthlyDN, nil
	}
	if err := directory.EnsureBranch(ctx, s.store, monthlyDN, period); err != nil {
		return "", fmt.Errorf("stat: prepare monthly branch %s: %w", monthlyDN, err)
	}
	s.logger.Trace("monthly branch ready", "dn", monthlyDN)
	return monthlyDN, nil
}

func (s *Service) loadOrCreate(ctx context.Context, nodeID string, period string, monthlyDN string) (*periodState, error) {
	dn := EntryDN(nodeID, monthlyDN)

	state, err := s.load(ctx, dn, period)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, directory.ErrNotFound) {
		return nil, err
	}

	estimator := NewEstimator()
	serialized, err := estimator.Serialize()
	if err != nil {
		return nil, err
	}
	record := Record{
		DN:                     dn,
		NodeID:                 nodeID,
		Month:                  period,
		UserHLLData:            serialized,
		TokenCountPerGrantType: map[string]map[string]int64{},
	}
	entry, err := record.ToEntry()
	if err != nil {
		return nil, err
	}
	if err := s.store.Persist(ctx, entry); err != nil {
		if errors.Is(err, directory.ErrAlreadyExists) {
			return s.load(ctx, dn, period)
		}
		return nil, fmt.Errorf("stat: create record %s: %w", dn, err)
	}
	return &periodState{
		dn:            dn,
		nodeID:        nodeID,
		month:         period,
		estimator:     estimator,
		counters:      NewTokenCounters(nil),
		flushedHLL:    serialized,
		flushedCounts: map[string]map[string]int64{},
	}, nil
}

func (s *Service) load(ctx context.Context, dn string, period string) (*periodState, error) {
	entry, err := s.store.Find(ctx, dn)
	if err != nil {
		return nil, err
	}
	record, err := RecordFromEntry(entry)
	if err != nil {
		return nil, err
	}
	if record.Month != "" && record.Month != period {
		return nil, fmt.Errorf("stat: record %s belongs to period %s, expected %s", dn, record.Month, period)
	}
	estimator, err := DeserializeEstimator(record.UserHLLData)
	if err != nil {
		return nil, err
	}
	nodeID := record.NodeID
	if nodeID == "" {
		nodeID = s.NodeID()
	}
	return &periodState{
		dn:            dn,
		nodeID:        nodeID,
		month:         period,
		estimator:     estimator,
		counters:      NewTokenCounters(record.TokenCountPerGrantType),
		lastUpdatedAt: record.LastUpdatedAt,
		flushedHLL:    append([]byte(nil), record.UserHLLData...),
		flushedCounts: cloneCounts(record.TokenCountPerGrantType),
	}, nil
}

// RecordActiveUser feeds the user into the distinct user estimate. Blank ids
// are ignored.
func (s *Service) RecordActiveUser(ctx context.Context, id string) {
	if strings.TrimSpace(id) == "" {
		return
	}
	state, ok := s.activeState(ctx, "record active user")
	if !ok {
		return
	}
	state.estimator.AddRaw(HashIdentifier(id))
}

// RecordTokenIssued counts one issued token. Blank arguments are ignored.
func (s *Service) RecordTokenIssued(ctx context.Context, grantType string, tokenKind string) {
	grantType = strings.TrimSpace(grantType)
	tokenKind = strings.TrimSpace(tokenKind)
	if grantType == "" || tokenKind == "" {
		return
	}
	state, ok := s.activeState(ctx, "record token")
	if !ok {
		return
	}
	state.counters.Increment(grantType, tokenKind)
}

func (s *Service) RecordAccessToken(ctx context.Context, grantType string) {
	s.RecordTokenIssued(ctx, grantType, TokenKindAccess)
}

func (s *Service) RecordIDToken(ctx context.Context, grantType string) {
	s.RecordTokenIssued(ctx, grantType, TokenKindID)
}

func (s *Service) RecordRefreshToken(ctx context.Context, grantType string) {
	s.RecordTokenIssued(ctx, grantType, TokenKindRefresh)
}

func (s *Service) RecordUMAToken(ctx context.Context, grantType string) {
	s.RecordTokenIssued(ctx, grantType, TokenKindUMA)
}

func (s *Service) activeState(ctx context.Context, operation string) (*periodState, bool) {
	state, err := s.ensurePeriod(ctx)
	if err == nil {
		return state, true
	}
	if errors.Is(err, ErrNotInitialized) {
		s.logger.Debug("stat service not initialized, dropping event", "operation", operation)
		return nil, false
	}
	s.logger.Error("failed to prepare stat period", "operation", operation, "error", err)
	return nil, false
}

// Flush writes the current record with an upsert. Flushing twice without
// intervening events writes identical content, including lastUpdatedAt.
func (s *Service) Flush(ctx context.Context) error {
	state, err := s.ensurePeriod(ctx)
	if err != nil {
		return err
	}
	state.flushMu.Lock()
	defer state.flushMu.Unlock()

	record, err := state.capture(s.now())
	if err != nil {
		return err
	}
	entry, err := record.ToEntry()
	if err != nil {
		return err
	}
	if err := s.store.Merge(ctx, entry); err != nil {
		return fmt.Errorf("stat: flush record %s: %w", record.DN, err)
	}
	return nil
}

// Current returns a snapshot of the in-memory record without touching the store.
func (s *Service) Current() (Record, bool) {
	state := s.state()
	if state == nil {
		return Record{}, false
	}
	serialized, err := state.estimator.Serialize()
	if err != nil {
		return Record{}, false
	}
	state.mu.Lock()
	lastUpdatedAt := state.lastUpdatedAt
	state.mu.Unlock()
	return Record{
		DN:                     state.dn,
		NodeID:                 state.nodeID,
		Month:                  state.month,
		UserHLLData:            serialized,
		TokenCountPerGrantType: state.counters.Snapshot(),
		LastUpdatedAt:          lastUpdatedAt,
	}, true
}

// ActiveUserEstimate returns the in-memory distinct user estimate for the
// current period.
func (s *Service) ActiveUserEstimate() uint64 {
	state := s.state()
	if state == nil {
		return 0
	}
	return state.estimator.Estimate()
}

func (p *periodState) capture(now time.Time) (Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	counts := p.counters.Snapshot()
	serialized, revision, err := p.estimator.snapshot()
	if err != nil {
		return Record{}, err
	}
	if revision == p.flushedRevision && p.flushedHLL != nil {
		serialized = p.flushedHLL
	}
	changed := revision != p.flushedRevision || !equalCounts(counts, p.flushedCounts)
	if changed || p.lastUpdatedAt.IsZero() {
		p.lastUpdatedAt = now.UTC().Truncate(time.Millisecond)
	}
	p.flushedHLL = serialized
	p.flushedRevision = revision
	p.flushedCounts = cloneCounts(counts)

	return Record{
		DN:                     p.dn,
		NodeID:                 p.nodeID,
		Month:                  p.month,
		UserHLLData:            serialized,
		TokenCountPerGrantType: counts,
		LastUpdatedAt:          p.lastUpdatedAt,
	}, nil
}
