package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/wolfman30/ayurwell-scheduler/internal/app/bootstrap"
	appconfig "github.com/wolfman30/ayurwell-scheduler/internal/config"
	"github.com/wolfman30/ayurwell-scheduler/internal/directory"
	"github.com/wolfman30/ayurwell-scheduler/pkg/logging"
)

// openDirectory returns the directory service plus a cleanup func.
type openDirectory func(ctx context.Context) (*directory.Service, func(), error)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd(postgresDirectory).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(open openDirectory) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "schedctl",
		Short:         "Operator tooling for the Ayurwell scheduler",
		SilenceUsage:  true,
	}
	rootCmd.AddCommand(doctorsCmd(open))
	rootCmd.AddCommand(seedCmd(open))
	return rootCmd
}

func postgresDirectory(ctx context.Context) (*directory.Service, func(), error) {
	cfg := appconfig.Load()
	logger := logging.NewWithOptions(logging.Options{Level: "warn", Format: "text", Output: os.Stderr})
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required")
	}
	pool, err := bootstrap.BuildPostgresPool(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	svc := directory.NewService(directory.NewPostgresRepository(pool), logger)
	return svc, pool.Close, nil
}
