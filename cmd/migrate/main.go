// Command migrate applies the embedded scheduler schema to DATABASE_URL.
//
//	migrate              apply every pending migration
//	migrate down <n>     roll back n migrations
//	migrate force <v>    mark version v clean after a failed run
//	migrate version      print the applied version
package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	appconfig "github.com/wolfman30/ayurwell-scheduler/internal/config"
	"github.com/wolfman30/ayurwell-scheduler/migrations"
	"github.com/wolfman30/ayurwell-scheduler/pkg/logging"
)

type action string

const (
	actionUp      action = "up"
	actionDown    action = "down"
	actionForce   action = "force"
	actionVersion action = "version"
)

type command struct {
	action action
	arg    int
}

func parseCommand(args []string) (command, error) {
	if len(args) == 0 {
		return command{action: actionUp}, nil
	}
	switch a := action(args[0]); a {
	case actionUp, actionVersion:
		if len(args) > 1 {
			return command{}, fmt.Errorf("%s takes no arguments", a)
		}
		return command{action: a}, nil
	case actionDown, actionForce:
		if len(args) != 2 {
			return command{}, fmt.Errorf("%s needs exactly one numeric argument", a)
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return command{}, fmt.Errorf("%s: %q is not a number", a, args[1])
		}
		if a == actionDown && n <= 0 {
			return command{}, fmt.Errorf("down: step count must be positive, got %d", n)
		}
		if a == actionForce && n < 0 {
			return command{}, fmt.Errorf("force: version must not be negative, got %d", n)
		}
		return command{action: a, arg: n}, nil
	default:
		return command{}, fmt.Errorf("unknown command %q (want up, down, force or version)", args[0])
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	cfg := appconfig.Load()
	logger := logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	cmd, err := parseCommand(os.Args[1:])
	if err != nil {
		logger.Error("invalid arguments", "error", err)
		os.Exit(2)
	}
	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required to migrate the scheduler schema")
		os.Exit(1)
	}
	if err := run(cfg.DatabaseURL, cmd, logger); err != nil {
		logger.Error("schema migration failed", "action", cmd.action, "error", err)
		os.Exit(1)
	}
}

func run(databaseURL string, cmd command, logger *logging.Logger) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("reach database: %w", err)
	}

	target, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("postgres target: %w", err)
	}
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", target)
	if err != nil {
		return fmt.Errorf("build migrator: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	switch cmd.action {
	case actionDown:
		if err := m.Steps(-cmd.arg); err != nil {
			return fmt.Errorf("roll back %d step(s): %w", cmd.arg, err)
		}
	case actionForce:
		if err := m.Force(cmd.arg); err != nil {
			return fmt.Errorf("force version %d: %w", cmd.arg, err)
		}
	case actionUp:
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		logger.Info("scheduler schema is empty", "action", cmd.action)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	logger.Info("scheduler schema ready", "action", cmd.action, "version", version, "dirty", dirty)
	return nil
}
