package migrations

import (
	"context"
	"database/sql"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	services "github.com/goliatone/go-idp-services"
	_ "github.com/mattn/go-sqlite3"
)

func TestFilesystems_ReturnsPostgresAndSQLite(t *testing.T) {
	filesystems, err := Filesystems()
	if err != nil {
		t.Fatalf("filesystems: %v", err)
	}
	if len(filesystems) != 2 {
		t.Fatalf("expected 2 filesystems, got %d", len(filesystems))
	}

	var postgresFound bool
	var sqliteFound bool
	for _, entry := range filesystems {
		matches, globErr := fs.Glob(entry.FS, "*.up.sql")
		if globErr != nil {
			t.Fatalf("glob %s: %v", entry.Dialect, globErr)
		}
		if len(matches) == 0 {
			t.Fatalf("expected %s migration files, got none", entry.Dialect)
		}
		switch entry.Dialect {
		case DialectPostgres:
			postgresFound = true
		case DialectSQLite:
			sqliteFound = true
		}
	}

	if !postgresFound {
		t.Fatalf("expected postgres filesystem")
	}
	if !sqliteFound {
		t.Fatalf("expected sqlite filesystem")
	}
}

func TestRegister_UsesValidationTargets(t *testing.T) {
	var calls []string
	_, err := Register(context.Background(), func(_ context.Context, dialect string, _ string, _ fs.FS) error {
		calls = append(calls, dialect)
		return nil
	}, WithValidationTargets(DialectSQLite))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if len(calls) != 1 {
		t.Fatalf("expected 1 registration call, got %d", len(calls))
	}
	if calls[0] != DialectSQLite {
		t.Fatalf("expected sqlite registration, got %q", calls[0])
	}
}

func TestRegister_DefaultsToBothDialects(t *testing.T) {
	var calls []string
	reg, err := Register(context.Background(), func(_ context.Context, dialect string, label string, _ fs.FS) error {
		if label != "go-idp-services" {
			t.Fatalf("expected default source label, got %q", label)
		}
		calls = append(calls, dialect)
		return nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(calls) != 2 || calls[0] != DialectPostgres || calls[1] != DialectSQLite {
		t.Fatalf("expected postgres then sqlite registrations, got %v", calls)
	}
	if len(reg.Filesystems) != 2 {
		t.Fatalf("expected 2 filesystems, got %d", len(reg.Filesystems))
	}
}

func TestDialectForDriver(t *testing.T) {
	cases := map[string]string{
		"sqlite3":    DialectSQLite,
		"SQLite":     DialectSQLite,
		"postgres":   DialectPostgres,
		"postgresql": DialectPostgres,
		"pg":         DialectPostgres,
	}
	for driver, want := range cases {
		got, err := DialectForDriver(driver)
		if err != nil {
			t.Fatalf("dialect for %q: %v", driver, err)
		}
		if got != want {
			t.Fatalf("expected %q for %q, got %q", want, driver, got)
		}
	}
	if _, err := DialectForDriver("mysql"); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestFilesystems_RejectsMissingDownMigration(t *testing.T) {
	source := fstest.MapFS{
		"data/sql/migrations/00001_a.up.sql":          {Data: []byte("SELECT 1;")},
		"data/sql/migrations/sqlite/00001_a.up.sql":   {Data: []byte("SELECT 1;")},
		"data/sql/migrations/sqlite/00001_a.down.sql": {Data: []byte("SELECT 1;")},
	}
	if _, err := Filesystems(source); err == nil || !strings.Contains(err.Error(), "no down migration") {
		t.Fatalf("expected missing down migration error, got %v", err)
	}
}

func TestFilesystems_RejectsDivergentDialects(t *testing.T) {
	source := fstest.MapFS{
		"data/sql/migrations/00001_a.up.sql":          {Data: []byte("SELECT 1;")},
		"data/sql/migrations/00001_a.down.sql":        {Data: []byte("SELECT 1;")},
		"data/sql/migrations/00002_b.up.sql":          {Data: []byte("SELECT 1;")},
		"data/sql/migrations/00002_b.down.sql":        {Data: []byte("SELECT 1;")},
		"data/sql/migrations/sqlite/00001_a.up.sql":   {Data: []byte("SELECT 1;")},
		"data/sql/migrations/sqlite/00001_a.down.sql": {Data: []byte("SELECT 1;")},
	}
	if _, err := Filesystems(source); err == nil || !strings.Contains(err.Error(), "diverge") {
		t.Fatalf("expected divergent versions error, got %v", err)
	}
}

func TestFilesystems_ReportsVersions(t *testing.T) {
	filesystems, err := Filesystems()
	if err != nil {
		t.Fatalf("filesystems: %v", err)
	}
	for _, spec := range filesystems {
		if len(spec.Versions) == 0 || spec.Versions[0] != "00001_idp_directory_entries" {
			t.Fatalf("unexpected %s versions %v", spec.Dialect, spec.Versions)
		}
	}
}

func TestRegister_RequiresRegisterFunc(t *testing.T) {
	if _, err := Register(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil register function")
	}
}

func TestDirectoryEntriesMigrationPair_ExistsForBothDialects(t *testing.T) {
	root := services.GetCoreMigrationsFS()
	paths := []string{
		"data/sql/migrations/00001_idp_directory_entries.up.sql",
		"data/sql/migrations/00001_idp_directory_entries.down.sql",
		"data/sql/migrations/sqlite/00001_idp_directory_entries.up.sql",
		"data/sql/migrations/sqlite/00001_idp_directory_entries.down.sql",
	}
	for _, migrationPath := range paths {
		content, err := fs.ReadFile(root, migrationPath)
		if err != nil {
			t.Fatalf("read migration %s: %v", migrationPath, err)
		}
		if strings.TrimSpace(string(content)) == "" {
			t.Fatalf("expected migration %s to have SQL content", migrationPath)
		}
	}
}

func TestSQLiteDirectoryEntriesMigration_ApplyAndRollback(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:migrations-directory-entries?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()

	root := services.GetCoreMigrationsFS()
	sqliteMigrations, err := fs.Sub(root, "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}

	if err := execSQLMigration(
		context.Background(),
		db,
		sqliteMigrations,
		"00001_idp_directory_entries.up.sql",
	); err != nil {
		t.Fatalf("apply directory entries migration up: %v", err)
	}

	insertStatement := `
		INSERT INTO directory_entries (id, dn, display_dn, parent_dn, object_class, attributes)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := db.ExecContext(
		context.Background(),
		insertStatement,
		"entry-1",
		"ou=statistic,o=jans",
		"ou=statistic,o=jans",
		"o=jans",
		"organizationalUnit",
		"{}",
	); err != nil {
		t.Fatalf("insert entry: %v", err)
	}
	if _, err := db.ExecContext(
		context.Background(),
		insertStatement,
		"entry-2",
		"ou=statistic,o=jans",
		"ou=statistic,o=jans",
		"o=jans",
		"organizationalUnit",
		"{}",
	); err == nil {
		t.Fatalf("expected unique dn violation after up migration")
	}

	if err := execSQLMigration(
		context.Background(),
		db,
		sqliteMigrations,
		"00001_idp_directory_entries.down.sql",
	); err != nil {
		t.Fatalf("apply directory entries migration down: %v", err)
	}

	var count int
	if err := db.QueryRowContext(
		context.Background(),
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`,
		"directory_entries",
	).Scan(&count); err != nil {
		t.Fatalf("query sqlite_master after down migration: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected directory_entries to be dropped after down migration")
	}
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, filename string) error {
	content, err := fs.ReadFile(fsys, filepath.Clean(filename))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(content))
	return err
}
