package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"github.com/artisancrate/billing-engine/pkg/config"
	"github.com/artisancrate/billing-engine/pkg/db"
	"github.com/artisancrate/billing-engine/pkg/logger"
	"github.com/artisancrate/billing-engine/pkg/migrate"
)

type options struct {
	dir     string
	name    string
	version string
}

// command is one -cmd value. Commands with a nil db only touch files.
type command struct {
	needsDB bool
	run     func(ctx context.Context, sqlDB *sql.DB, opts options) error
}

func gooseCommand(name string) command {
	return command{needsDB: true, run: func(ctx context.Context, sqlDB *sql.DB, opts options) error {
		return migrate.Run(ctx, sqlDB, opts.dir, name, os.Stdout)
	}}
}

var commands = map[string]command{
	"up":     gooseCommand("up"),
	"down":   gooseCommand("down"),
	"status": gooseCommand("status"),
	"version": {needsDB: true, run: func(ctx context.Context, sqlDB *sql.DB, opts options) error {
		if opts.version == "" {
			return errors.New("-version is required")
		}
		return migrate.MigrateToVersion(ctx, sqlDB, opts.dir, opts.version, os.Stdout)
	}},
	"create": {run: func(_ context.Context, _ *sql.DB, opts options) error {
		if opts.name == "" {
			return errors.New("-name is required")
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name)
		if err == nil {
			fmt.Println("created migration:", path)
		}
		return err
	}},
	"validate": {run: func(_ context.Context, _ *sql.DB, opts options) error {
		if err := migrate.ValidateDir(opts.dir); err != nil {
			return err
		}
		fmt.Println("migrations valid:", opts.dir)
		return nil
	}},
}

func commandNames() string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	var opts options
	cmdName := flag.String("cmd", "up", "migration command: "+commandNames())
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "migrations directory; the default is embedded in the binary")
	flag.StringVar(&opts.name, "name", "", "migration name for -cmd=create")
	flag.StringVar(&opts.version, "version", "", "target YYYYMMDDHHMMSS version for -cmd=version")
	flag.Parse()

	cmd, ok := commands[*cmdName]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown -cmd %q, expected one of %s\n", *cmdName, commandNames())
		os.Exit(2)
	}

	cfg, err := config.Load()
	exitOn(context.Background(), logg, "load config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmdName,
		"dir": opts.dir,
	})

	var sqlDB *sql.DB
	if cmd.needsDB {
		dbClient, err := db.New(ctx, cfg.DB, logg)
		exitOn(ctx, logg, "connect database", err)
		defer dbClient.Close()

		sqlDB, err = dbClient.DB().DB()
		exitOn(ctx, logg, "unwrap sql.DB", err)
	}

	exitOn(ctx, logg, "migrate "+*cmdName, cmd.run(ctx, sqlDB, opts))
	logg.Info(ctx, "migrate finished")
}

func exitOn(ctx context.Context, logg *logger.Logger, step string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, step+" failed", err)
	os.Exit(1)
}
