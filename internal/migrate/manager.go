// Package migrate applies SQL migration and seed scripts stored on disk and
// tracks what already ran in bookkeeping tables.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	defaultMigrationsTable = "schema_migrations"
	defaultSeedsTable      = "schema_seeds"
)

// ledger is the bookkeeping for one class of scripts: a table of applied
// script names. Migrations and seeds each get their own.
type ledger struct {
	db    *sql.DB
	table string
}

func (l ledger) ensure(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		create table if not exists %s (
			name text primary key,
			applied_at timestamptz not null default now()
		);`, l.table)
	_, err := l.db.ExecContext(ctx, ddl)
	return err
}

func (l ledger) applied(ctx context.Context) (map[string]bool, error) {
	rows, err := l.db.QueryContext(ctx, fmt.Sprintf(`select name from %s`, l.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	done := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		done[name] = true
	}
	return done, rows.Err()
}

func (l ledger) history(ctx context.Context) ([]string, error) {
	rows, err := l.db.QueryContext(ctx,
		fmt.Sprintf(`select name from %s order by applied_at asc`, l.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		res = append(res, name)
	}
	return res, rows.Err()
}

func (l ledger) record(ctx context.Context, name string) error {
	_, err := l.db.ExecContext(ctx,
		fmt.Sprintf(`insert into %s(name, applied_at) values ($1, $2)`, l.table),
		name, time.Now().UTC())
	return err
}

func (l ledger) remove(ctx context.Context, name string) error {
	_, err := l.db.ExecContext(ctx,
		fmt.Sprintf(`delete from %s where name = $1`, l.table), name)
	return err
}

// Manager executes migration scripts (NNN_name.up.sql / .down.sql) and seed
// files against a single database handle. Each script runs in its own
// transaction.
type Manager struct {
	db            *sql.DB
	migrationsDir string
	seedsDir      string
	migrations    ledger
	seeds         ledger
}

// Option configures Manager.
type Option func(*Manager)

// WithMigrationsTable overrides the default migrations bookkeeping table.
func WithMigrationsTable(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.migrations.table = name
		}
	}
}

// WithSeedsTable overrides the default seeds bookkeeping table.
func WithSeedsTable(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.seeds.table = name
		}
	}
}

// NewManager constructs a Manager reading scripts from the given directories.
func NewManager(db *sql.DB, migrationsDir, seedsDir string, opts ...Option) *Manager {
	m := &Manager{
		db:            db,
		migrationsDir: migrationsDir,
		seedsDir:      seedsDir,
		migrations:    ledger{db: db, table: defaultMigrationsTable},
		seeds:         ledger{db: db, table: defaultSeedsTable},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) ensureLedgers(ctx context.Context) error {
	if err := m.migrations.ensure(ctx); err != nil {
		return err
	}
	return m.seeds.ensure(ctx)
}

// apply runs every pending script under dir with the given suffix, recording
// each one in the ledger as it lands.
func (m *Manager) apply(ctx context.Context, l ledger, dir, suffix, kind string) error {
	done, err := l.applied(ctx)
	if err != nil {
		return err
	}
	scripts, err := listScripts(dir, suffix)
	if err != nil {
		return err
	}
	for _, sc := range scripts {
		if done[sc.name] {
			continue
		}
		if err := m.runScript(ctx, sc.path); err != nil {
			return fmt.Errorf("apply %s %s: %w", kind, sc.name, err)
		}
		if err := l.record(ctx, sc.name); err != nil {
			return err
		}
	}
	return nil
}

// Up applies every pending .up.sql script in lexical order.
func (m *Manager) Up(ctx context.Context) error {
	if err := m.ensureLedgers(ctx); err != nil {
		return err
	}
	return m.apply(ctx, m.migrations, m.migrationsDir, ".up.sql", "migration")
}

// Seed applies seed scripts. Already-applied seeds are skipped, so the
// command is safe to re-run.
func (m *Manager) Seed(ctx context.Context) error {
	if err := m.ensureLedgers(ctx); err != nil {
		return err
	}
	return m.apply(ctx, m.seeds, m.seedsDir, ".sql", "seed")
}

// Down rolls back the most recently applied migration using its .down.sql
// counterpart.
func (m *Manager) Down(ctx context.Context) error {
	if err := m.ensureLedgers(ctx); err != nil {
		return err
	}
	history, err := m.migrations.history(ctx)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return errors.New("no migrations applied")
	}
	last := history[len(history)-1]
	down := filepath.Join(m.migrationsDir, strings.TrimSuffix(last, ".up.sql")+".down.sql")
	if _, err := os.Stat(down); err != nil {
		return fmt.Errorf("missing down migration for %s", last)
	}
	if err := m.runScript(ctx, down); err != nil {
		return fmt.Errorf("rollback migration %s: %w", last, err)
	}
	return m.migrations.remove(ctx, last)
}

// Status returns applied migrations in application order.
func (m *Manager) Status(ctx context.Context) ([]string, error) {
	if err := m.ensureLedgers(ctx); err != nil {
		return nil, err
	}
	return m.migrations.history(ctx)
}

func (m *Manager) runScript(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range splitStatements(string(raw)) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type script struct {
	name string
	path string
}

func listScripts(dir, suffix string) ([]script, error) {
	if dir == "" {
		return nil, nil
	}
	var scripts []script
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), suffix) {
			return nil
		}
		scripts = append(scripts, script{name: d.Name(), path: path})
		return nil
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	sort.Slice(scripts, func(i, j int) bool {
		return scripts[i].name < scripts[j].name
	})
	return scripts, nil
}

// splitStatements splits a script on semicolons outside of single-quoted
// strings. Good enough for plain DDL/DML files; no dollar-quoting support.
func splitStatements(sql string) []string {
	var stmts []string
	var current strings.Builder
	inString := false
	for _, r := range sql {
		current.WriteRune(r)
		switch r {
		case '\'':
			inString = !inString
		case ';':
			if !inString {
				stmts = append(stmts, current.String())
				current.Reset()
			}
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		stmts = append(stmts, current.String())
	}
	return stmts
}
