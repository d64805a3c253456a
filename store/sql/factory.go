package sqlstore

import (
	"fmt"

	"github.com/goliatone/go-idp-services/directory"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db *bun.DB

	directoryStore *DirectoryStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildDirectoryStore(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildDirectoryStore(db); err != nil {
		return nil, err
	}
	return factory, nil
}

// BuildDirectoryStore accepts a *bun.DB or anything exposing DB() *bun.DB,
// such as a go-persistence-bun client.
func (f *RepositoryFactory) BuildDirectoryStore(persistenceClient any) (directory.Store, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.directoryStore != nil {
		return f.directoryStore, nil
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	store, err := NewDirectoryStore(f.db)
	if err != nil {
		return nil, err
	}
	f.directoryStore = store
	return store, nil
}

func (f *RepositoryFactory) DirectoryStore() directory.Store {
	if f == nil || f.directoryStore == nil {
		return nil
	}
	return f.directoryStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
