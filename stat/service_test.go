package stat

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-idp-services/directory"
)

const testBaseDN = "ou=statistic,o=jans"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(now time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

func newTestService(t *testing.T, store directory.Store, nodeID string, clock *fakeClock) *Service {
	t.Helper()
	svc, err := NewService(store, Config{NodeID: nodeID, BaseDN: testBaseDN}, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if !svc.Init(context.Background()) {
		t.Fatalf("expected init to succeed")
	}
	return svc
}

func loadRecord(t *testing.T, store directory.Store, dn string) Record {
	t.Helper()
	entry, err := store.Find(context.Background(), dn)
	if err != nil {
		t.Fatalf("find %s: %v", dn, err)
	}
	record, err := RecordFromEntry(entry)
	if err != nil {
		t.Fatalf("decode %s: %v", dn, err)
	}
	return record
}

func estimateOf(t *testing.T, record Record) uint64 {
	t.Helper()
	estimator, err := DeserializeEstimator(record.UserHLLData)
	if err != nil {
		t.Fatalf("deserialize estimator: %v", err)
	}
	return estimator.Estimate()
}

func TestServiceInitCreatesBranchAndRecord(t *testing.T) {
	ctx := context.Background()
	store := directory.NewMemoryStore()
	clock := newFakeClock(time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC))
	svc := newTestService(t, store, "node-a", clock)

	if svc.NodeID() != "node-a" || svc.BaseDN() != testBaseDN {
		t.Fatalf("unexpected accessors: %q %q", svc.NodeID(), svc.BaseDN())
	}
	ok, err := store.Contains(ctx, "ou=202403,"+testBaseDN, directory.ObjectClassBranch)
	if err != nil || !ok {
		t.Fatalf("expected monthly branch, ok=%v err=%v", ok, err)
	}
	record := loadRecord(t, store, "jansId=node-a,ou=202403,"+testBaseDN)
	if record.Month != "202403" || record.NodeID != "node-a" {
		t.Fatalf("unexpected record: %#v", record)
	}
	if estimateOf(t, record) != 0 || len(record.TokenCountPerGrantType) != 0 {
		t.Fatalf("expected empty record, got %#v", record)
	}
}

func TestServiceFlushAggregatesEvents(t *testing.T) {
	ctx := context.Background()
	store := directory.NewMemoryStore()
	clock := newFakeClock(time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC))
	svc := newTestService(t, store, "node-a", clock)

	svc.RecordActiveUser(ctx, "u1")
	svc.RecordActiveUser(ctx, "u2")
	svc.RecordActiveUser(ctx, "u1")
	svc.RecordActiveUser(ctx, "   ")
	svc.RecordAccessToken(ctx, "authorization_code")
	svc.RecordAccessToken(ctx, "authorization_code")
	svc.RecordIDToken(ctx, "authorization_code")
	svc.RecordRefreshToken(ctx, "refresh_token")
	svc.RecordUMAToken(ctx, "urn:ietf:params:oauth:grant-type:uma-ticket")
	svc.RecordTokenIssued(ctx, "", TokenKindAccess)

	if err := svc.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	record := loadRecord(t, store, "jansId=node-a,ou=202403,"+testBaseDN)
	if got := estimateOf(t, record); got != 2 {
		t.Fatalf("expected 2 active users, got %d", got)
	}
	want := map[string]map[string]int64{
		"authorization_code": {TokenKindAccess: 2, TokenKindID: 1},
		"refresh_token":      {TokenKindRefresh: 1},
		"urn:ietf:params:oauth:grant-type:uma-ticket": {TokenKindUMA: 1},
	}
	if !reflect.DeepEqual(record.TokenCountPerGrantType, want) {
		t.Fatalf("unexpected counters: %#v", record.TokenCountPerGrantType)
	}
	if !record.LastUpdatedAt.Equal(clock.Now()) {
		t.Fatalf("expected lastUpdatedAt %v, got %v", clock.Now(), record.LastUpdatedAt)
	}
}

func TestServiceFlushIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := directory.NewMemoryStore()
	clock := newFakeClock(time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC))
	svc := newTestService(t, store, "node-a", clock)
	dn := "jansId=node-a,ou=202403," + testBaseDN

	svc.RecordActiveUser(ctx, "u1")
	svc.RecordAccessToken(ctx, "client_credentials")
	if err := svc.Flush(ctx); err != nil {
		t.Fatalf("first flush: %v", err)
	}
	first, _ := store.Find(ctx, dn)

	clock.Set(clock.Now().Add(time.Minute))
	if err := svc.Flush(ctx); err != nil {
		t.Fatalf("second flush: %v", err)
	}
	second, _ := store.Find(ctx, dn)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical entries\nfirst:  %#v\nsecond: %#v", first, second)
	}

	svc.RecordAccessToken(ctx, "client_credentials")
	if err := svc.Flush(ctx); err != nil {
		t.Fatalf("third flush: %v", err)
	}
	third := loadRecord(t, store, dn)
	if !third.LastUpdatedAt.Equal(clock.Now()) {
		t.Fatalf("expected lastUpdatedAt to advance, got %v", third.LastUpdatedAt)
	}
}

func TestServicePeriodRolloverLeavesPreviousRecord(t *testing.T) {
	ctx := context.Background()
	store := directory.NewMemoryStore()
	clock := newFakeClock(time.Date(2024, time.January, 31, 23, 59, 0, 0, time.UTC))
	svc := newTestService(t, store, "node-a", clock)

	svc.RecordActiveUser(ctx, "u1")
	svc.RecordAccessToken(ctx, "authorization_code")
	if err := svc.Flush(ctx); err != nil {
		t.Fatalf("flush january: %v", err)
	}
	januaryDN := "jansId=node-a,ou=202401," + testBaseDN
	january, _ := store.Find(ctx, januaryDN)

	clock.Set(time.Date(2024, time.February, 1, 0, 1, 0, 0, time.UTC))
	svc.RecordActiveUser(ctx, "u2")
	svc.RecordActiveUser(ctx, "u3")
	svc.RecordAccessToken(ctx, "authorization_code")
	if err := svc.Flush(ctx); err != nil {
		t.Fatalf("flush february: %v", err)
	}

	after, _ := store.Find(ctx, januaryDN)
	if !reflect.DeepEqual(january, after) {
		t.Fatalf("expected january record untouched")
	}
	february := loadRecord(t, store, "jansId=node-a,ou=202402,"+testBaseDN)
	if got := estimateOf(t, february); got != 2 {
		t.Fatalf("expected 2 february users, got %d", got)
	}
	if got := february.TokenCountPerGrantType["authorization_code"][TokenKindAccess]; got != 1 {
		t.Fatalf("expected february counter 1, got %d", got)
	}
	current, ok := svc.Current()
	if !ok || current.Month != "202402" {
		t.Fatalf("expected current period 202402, got %#v", current)
	}
}

func TestServiceRestartContinuesFromStoredRecord(t *testing.T) {
	ctx := context.Background()
	store := directory.NewMemoryStore()
	clock := newFakeClock(time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC))

	first := newTestService(t, store, "node-a", clock)
	first.RecordActiveUser(ctx, "u1")
	first.RecordAccessToken(ctx, "password")
	if err := first.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	second := newTestService(t, store, "node-a", clock)
	second.RecordActiveUser(ctx, "u1")
	second.RecordActiveUser(ctx, "u2")
	second.RecordAccessToken(ctx, "password")
	if err := second.Flush(ctx); err != nil {
		t.Fatalf("flush after restart: %v", err)
	}
	record := loadRecord(t, store, "jansId=node-a,ou=202403,"+testBaseDN)
	if got := estimateOf(t, record); got != 2 {
		t.Fatalf("expected 2 users after restart, got %d", got)
	}
	if got := record.TokenCountPerGrantType["password"][TokenKindAccess]; got != 2 {
		t.Fatalf("expected counter 2 after restart, got %d", got)
	}
}

func TestServiceConcurrentIncrementsAreNotLost(t *testing.T) {
	ctx := context.Background()
	store := directory.NewMemoryStore()
	clock := newFakeClock(time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC))
	svc := newTestService(t, store, "node-a", clock)

	const workers = 8
	const perWorker = 125
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				svc.RecordAccessToken(ctx, "authorization_code")
				if j%25 == 0 {
					_ = svc.Flush(ctx)
				}
			}
		}()
	}
	wg.Wait()
	if err := svc.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	record := loadRecord(t, store, "jansId=node-a,ou=202403,"+testBaseDN)
	if got := record.TokenCountPerGrantType["authorization_code"][TokenKindAccess]; got != workers*perWorker {
		t.Fatalf("expected %d, got %d", workers*perWorker, got)
	}
}

func TestServiceConcurrentNodesShareBranch(t *testing.T) {
	ctx := context.Background()
	store := directory.NewMemoryStore()
	clock := newFakeClock(time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC))

	var wg sync.WaitGroup
	results := make([]bool, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			svc, err := NewService(store, Config{NodeID: "node-" + string(rune('a'+i)), BaseDN: testBaseDN}, WithClock(clock.Now))
			if err != nil {
				return
			}
			results[i] = svc.Init(ctx)
		}(i)
	}
	wg.Wait()
	for i, ok := range results {
		if !ok {
			t.Fatalf("expected node %d to initialize", i)
		}
	}
	entries, err := store.FindAll(ctx, "ou=202403,"+testBaseDN, ObjectClassStatEntry, nil)
	if err != nil {
		t.Fatalf("find all: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 node records, got %d", len(entries))
	}
}

func TestServiceWithoutBranchSupportSkipsBranch(t *testing.T) {
	ctx := context.Background()
	store := directory.NewMemoryStore(directory.WithoutBranches())
	clock := newFakeClock(time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC))
	newTestService(t, store, "node-a", clock)

	ok, err := store.Contains(ctx, "ou=202403,"+testBaseDN, "")
	if err != nil {
		t.Fatalf("contains: %v", err)
	}
	if ok {
		t.Fatalf("expected no branch entry on a store without branch support")
	}
	if store.Len() != 1 {
		t.Fatalf("expected only the stat record, got %d entries", store.Len())
	}
}

func TestServiceUninitializedDropsEvents(t *testing.T) {
	ctx := context.Background()
	store := directory.NewMemoryStore()
	svc, err := NewService(store, Config{BaseDN: testBaseDN})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	svc.RecordActiveUser(ctx, "u1")
	svc.RecordAccessToken(ctx, "authorization_code")
	if err := svc.Flush(ctx); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected no writes, got %d entries", store.Len())
	}
	if _, ok := svc.Current(); ok {
		t.Fatalf("expected no current record")
	}
}

func TestServiceInitFailsOnBlankConfiguration(t *testing.T) {
	ctx := context.Background()
	store := directory.NewMemoryStore()

	blankBase, err := NewService(store, Config{NodeID: "node-a"})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if blankBase.Init(ctx) {
		t.Fatalf("expected init to fail without base dn")
	}

	blankNode, err := NewService(store, Config{BaseDN: testBaseDN})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if blankNode.Init(ctx) {
		t.Fatalf("expected init to fail without node id or configuration entry")
	}
}

type failingPersistStore struct {
	*directory.MemoryStore
	err error
}

func (s *failingPersistStore) Persist(context.Context, directory.Entry) error {
	return s.err
}

func TestServiceInitFailsOnStoreError(t *testing.T) {
	store := &failingPersistStore{MemoryStore: directory.NewMemoryStore(), err: errors.New("store unavailable")}
	clock := newFakeClock(time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC))
	svc, err := NewService(store, Config{NodeID: "node-a", BaseDN: testBaseDN}, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if svc.Init(context.Background()) {
		t.Fatalf("expected init to fail when the store rejects writes")
	}
}

type gatedMergeStore struct {
	directory.Store

	mu      sync.Mutex
	armed   bool
	entered chan struct{}
	release chan struct{}
}

func (s *gatedMergeStore) arm() {
	s.mu.Lock()
	s.armed = true
	s.entered = make(chan struct{})
	s.release = make(chan struct{})
	s.mu.Unlock()
}

func (s *gatedMergeStore) Merge(ctx context.Context, entry directory.Entry) error {
	s.mu.Lock()
	gated := s.armed && entry.ObjectClass == ObjectClassStatEntry
	if gated {
		s.armed = false
	}
	entered, release := s.entered, s.release
	s.mu.Unlock()
	if gated {
		close(entered)
		<-release
	}
	return s.Store.Merge(ctx, entry)
}

func TestServiceOverlappingFlushesNeverRegressCounts(t *testing.T) {
	ctx := context.Background()
	store := &gatedMergeStore{Store: directory.NewMemoryStore()}
	clock := newFakeClock(time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC))
	svc := newTestService(t, store, "node-a", clock)
	dn := "jansId=node-a,ou=202403," + testBaseDN

	svc.RecordAccessToken(ctx, "authorization_code")
	store.arm()
	older := make(chan error, 1)
	go func() { older <- svc.Flush(ctx) }()
	<-store.entered

	svc.RecordAccessToken(ctx, "authorization_code")
	newer := make(chan error, 1)
	go func() { newer <- svc.Flush(ctx) }()

	select {
	case err := <-newer:
		t.Fatalf("expected second flush to wait for the first, got %v", err)
	case <-time.After(20 * time.Millisecond):
	}
	close(store.release)

	if err := <-older; err != nil {
		t.Fatalf("first flush: %v", err)
	}
	if err := <-newer; err != nil {
		t.Fatalf("second flush: %v", err)
	}
	record := loadRecord(t, store, dn)
	if got := record.TokenCountPerGrantType["authorization_code"][TokenKindAccess]; got != 2 {
		t.Fatalf("expected stored access token count 2, got %d", got)
	}
}
