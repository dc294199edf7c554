// Command migrate manages the fiscora schema: the batch_jobs snapshot table
// and the validation_rules / hierarchy_config rule store. The database DSN
// comes from the same FISCORA_DB_* environment the server reads.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"fiscora/internal/config"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	source := fs.String("source", "file://db/migrations", "migration source URL")
	fs.Usage = usage(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		usage(fs)()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	m, err := migrate.New(*source, cfg.DB.DSN())
	if err != nil {
		return fmt.Errorf("opening migration source %s: %w", *source, err)
	}
	defer m.Close()

	switch cmd := fs.Arg(0); cmd {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("up: %w", err)
		}
		log.Println("schema is up to date")

	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("down: %w", err)
		}
		log.Println("schema reverted")

	case "steps":
		if fs.NArg() < 2 {
			return errors.New("steps requires a count, negative to roll back")
		}
		n, err := strconv.Atoi(fs.Arg(1))
		if err != nil {
			return fmt.Errorf("steps count %q: %w", fs.Arg(1), err)
		}
		if err := m.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("steps %d: %w", n, err)
		}
		log.Printf("applied %d steps", n)

	case "force":
		if fs.NArg() < 2 {
			return errors.New("force requires a version to pin the dirty schema to")
		}
		v, err := strconv.Atoi(fs.Arg(1))
		if err != nil {
			return fmt.Errorf("force version %q: %w", fs.Arg(1), err)
		}
		if err := m.Force(v); err != nil {
			return fmt.Errorf("force %d: %w", v, err)
		}
		log.Printf("schema version forced to %d", v)

	case "version":
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("no migrations applied yet")
			return nil
		}
		if err != nil {
			return fmt.Errorf("version: %w", err)
		}
		fmt.Printf("version: %d, dirty: %v\n", v, dirty)

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func usage(fs *flag.FlagSet) func() {
	return func() {
		fmt.Fprintln(fs.Output(), "Usage: migrate [-source URL] <up|down|steps N|force V|version>")
		fmt.Fprintln(fs.Output(), "Applies the fiscora schema (batch_jobs, validation_rules, hierarchy_config).")
		fs.PrintDefaults()
	}
}
