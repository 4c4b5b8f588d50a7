// Command migrate applies schema migrations and seed data to the database
// named by -dsn or INKSHELF_PG_DSN.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"inkshelf.org/internal/migrate"
)

func main() {
	log.SetFlags(0)
	_ = godotenv.Load()
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var (
		dsn            = flag.String("dsn", os.Getenv("INKSHELF_PG_DSN"), "PostgreSQL DSN")
		migrationsPath = flag.String("migrations", "ops/migrations/sql", "directory of .up.sql/.down.sql files")
		seedsPath      = flag.String("seeds", "ops/migrations/seeds", "directory of seed .sql files")
		timeout        = flag.Duration("timeout", 30*time.Second, "per-invocation timeout")
	)
	flag.Parse()

	cmd := flag.Arg(0)
	if cmd == "" {
		return errors.New("usage: migrate [flags] up|down|seed|status")
	}
	if *dsn == "" {
		return errors.New("missing DSN: provide -dsn or set INKSHELF_PG_DSN")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	mgr := migrate.NewManager(db, *migrationsPath, *seedsPath)

	switch cmd {
	case "up":
		err = mgr.Up(ctx)
	case "down":
		err = mgr.Down(ctx)
	case "seed":
		err = mgr.Seed(ctx)
	case "status":
		var applied []string
		applied, err = mgr.Status(ctx)
		if err == nil && len(applied) == 0 {
			fmt.Println("no migrations applied")
		}
		for _, name := range applied {
			fmt.Println(name)
		}
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", cmd, err)
	}
	return nil
}
