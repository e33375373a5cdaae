// Package migrate applies the billing schema with goose. The SQL files ship
// embedded in every binary; a different directory can be pointed at for
// local work on new migrations.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"
)

const (
	DefaultDir  = "pkg/migrate/migrations"
	embeddedDir = "migrations"
)

// Embedded carries the billing schema so binaries can migrate without the
// source tree on disk.
//
//go:embed migrations/*.sql
var Embedded embed.FS

var errNoDB = errors.New("migrate: database handle is required")

// source resolves dir to the migration files goose should read.
func source(dir string) (fs.FS, error) {
	switch dir {
	case "":
		return nil, errors.New("migrate: dir is required")
	case DefaultDir:
		return fs.Sub(Embedded, embeddedDir)
	default:
		return os.DirFS(dir), nil
	}
}

func newProvider(db *sql.DB, dir string) (*goose.Provider, error) {
	if db == nil {
		return nil, errNoDB
	}
	files, err := source(dir)
	if err != nil {
		return nil, err
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, files)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return provider, nil
}

// Run executes up, down or status against db and writes one line per
// migration touched to out.
func Run(ctx context.Context, db *sql.DB, dir, command string, out io.Writer) error {
	var run func(context.Context, *goose.Provider, io.Writer) error
	switch command {
	case "up":
		run = up
	case "down":
		run = down
	case "status":
		run = status
	default:
		return fmt.Errorf("migrate: unsupported command %q", command)
	}

	provider, err := newProvider(db, dir)
	if err != nil {
		return err
	}
	if err := run(ctx, provider, out); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

func up(ctx context.Context, p *goose.Provider, out io.Writer) error {
	results, err := p.Up(ctx)
	reportResults(out, "applied", results)
	return err
}

func down(ctx context.Context, p *goose.Provider, out io.Writer) error {
	result, err := p.Down(ctx)
	if result != nil {
		reportResults(out, "reverted", []*goose.MigrationResult{result})
	}
	return err
}

func status(ctx context.Context, p *goose.Provider, out io.Writer) error {
	statuses, err := p.Status(ctx)
	if err != nil {
		return err
	}
	for _, st := range statuses {
		applied := "pending"
		if st.State == goose.StateApplied {
			applied = st.AppliedAt.UTC().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(out, "%-20s %s\n", applied, st.Source.Path)
	}
	return nil
}

// MigrateToVersion moves the schema up or down until targetVersion is the
// newest applied migration.
func MigrateToVersion(ctx context.Context, db *sql.DB, dir, targetVersion string, out io.Writer) error {
	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}
	provider, err := newProvider(db, dir)
	if err != nil {
		return err
	}
	current, err := provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	var results []*goose.MigrationResult
	switch {
	case current == target:
		return nil
	case current < target:
		results, err = provider.UpTo(ctx, target)
		reportResults(out, "applied", results)
	default:
		results, err = provider.DownTo(ctx, target)
		reportResults(out, "reverted", results)
	}
	if err != nil {
		return fmt.Errorf("migrate %d -> %d: %w", current, target, err)
	}
	return nil
}

func reportResults(out io.Writer, verb string, results []*goose.MigrationResult) {
	for _, res := range results {
		fmt.Fprintf(out, "%s %s (%s)\n", verb, res.Source.Path, res.Duration.Round(1e6))
	}
}
