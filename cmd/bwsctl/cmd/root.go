// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package cmd holds the bwsctl commands.
package cmd

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/danielhkuo/bestworst/db"
	"github.com/danielhkuo/bestworst/experiment"
	"github.com/danielhkuo/bestworst/scaling"
	"github.com/danielhkuo/bestworst/store"
)

var (
	envFile      string
	databaseURL  string
	databaseType string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "bwsctl",
	Short: "Administer best-worst scaling experiments",
	Long: `Administer best-worst scaling experiments.

Commands:
    ingest      register audio stimuli from a GCS bucket or a directory
    generate    build and store a trial sequence for a stimulus group
    rank        fit and store a participant's final ranking
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load")
	rootCmd.PersistentFlags().StringVarP(&databaseURL, "database-url", "d", "", "database URL (default $DATABASE_URL)")
	rootCmd.PersistentFlags().StringVarP(&databaseType, "database-type", "t", "", "sqlite or postgres (default $DATABASE_TYPE or sqlite)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(rankCmd)
}

// initConfig loads the dotenv file and fills unset flags from the environment
func initConfig() error {
	if err := godotenv.Load(envFile); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "Warning: %s not found, using environment variables\n", envFile)
		}
	}

	if verbose {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseType == "" {
		databaseType = os.Getenv("DATABASE_TYPE")
	}
	if databaseType == "" {
		databaseType = db.TypeSQLite
	}
	return nil
}

// openStore connects to the configured database and makes sure the schema exists
func openStore() (*store.Store, *sql.DB, error) {
	if databaseURL == "" {
		return nil, nil, errors.New("database URL required (use --database-url or DATABASE_URL env)")
	}
	conn, err := db.Open(databaseType, databaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.CreateSchema(conn); err != nil {
		conn.Close()
		return nil, nil, err
	}
	return store.New(conn), conn, nil
}

func newService(s *store.Store, ridge float64) *experiment.Service {
	return experiment.NewService(s, experiment.Config{
		Alpha:      scaling.DefaultAlpha,
		Ridge:      ridge,
		FitTimeout: fitTimeout,
	})
}
