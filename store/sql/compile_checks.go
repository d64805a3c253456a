package sqlstore

import (
	"github.com/goliatone/go-idp-services/core"
	"github.com/goliatone/go-idp-services/directory"
)

var (
	_ directory.Store             = (*DirectoryStore)(nil)
	_ core.DirectoryStoreFactory  = (*RepositoryFactory)(nil)
	_ core.DirectoryStoreProvider = (*RepositoryFactory)(nil)
)
