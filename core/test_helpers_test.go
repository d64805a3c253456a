package core

import (
	"context"
	"time"

	"github.com/goliatone/go-idp-services/directory"
)

const (
	testStatBaseDN   = "ou=statistic,o=jans"
	testPeopleBaseDN = "ou=people,o=jans"
)

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

type staticStoreProvider struct {
	store directory.Store
}

func (p staticStoreProvider) DirectoryStore() directory.Store {
	return p.store
}

func fixedClock(now time.Time) func() time.Time {
	return func() time.Time {
		return now
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Stat.NodeID = "node-a"
	cfg.Stat.BaseDN = testStatBaseDN
	cfg.Directory.PeopleBaseDN = testPeopleBaseDN
	return cfg
}

func seedUser(store directory.Store, userID string) error {
	entry := directory.NewEntry("inum="+userID+","+testPeopleBaseDN, "jansPerson")
	entry.Set("inum", userID)
	return store.Persist(context.Background(), entry)
}
