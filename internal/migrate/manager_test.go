package migrate

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestSplitStatements(t *testing.T) {
	in := `create table a (id text);
insert into a values ('x;y');
`
	stmts := splitStatements(in)
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(stmts), stmts)
	}
	if want := "insert into a values ('x;y');"; !regexp.MustCompile(regexp.QuoteMeta(want)).MatchString(stmts[1]) {
		t.Fatalf("semicolon inside string literal split the statement: %q", stmts[1])
	}
}

func TestListScriptsSortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_second.up.sql", "001_first.up.sql", "001_first.down.sql", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("select 1;"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	scripts, err := listScripts(dir, ".up.sql")
	if err != nil {
		t.Fatal(err)
	}
	if len(scripts) != 2 {
		t.Fatalf("expected 2 scripts, got %d", len(scripts))
	}
	if scripts[0].name != "001_first.up.sql" || scripts[1].name != "002_second.up.sql" {
		t.Fatalf("unexpected order: %v", scripts)
	}
}

func TestListScriptsMissingDir(t *testing.T) {
	scripts, err := listScripts(filepath.Join(t.TempDir(), "nope"), ".sql")
	if err != nil {
		t.Fatalf("missing dir should not error: %v", err)
	}
	if len(scripts) != 0 {
		t.Fatalf("expected no scripts, got %d", len(scripts))
	}
}

func TestUpSkipsAppliedMigrations(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "001_init.up.sql"), []byte("create table t (id text);"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "002_more.up.sql"), []byte("create table u (id text);"), 0o644); err != nil {
		t.Fatal(err)
	}

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectExec(`create table if not exists schema_migrations`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`create table if not exists schema_seeds`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`select name from schema_migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("001_init.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec(`create table u`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectExec(`insert into schema_migrations`).
		WithArgs("002_more.up.sql", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	m := NewManager(db, dir, "")
	if err := m.Up(context.Background()); err != nil {
		t.Fatalf("up: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
