package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/bizAuth/store/pgstore"
)

type migrateOptions struct {
	databaseURL string
	down        bool
	timeout     time.Duration
}

func newMigrateCommand() *cobra.Command {
	opts := &migrateOptions{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres credential store schema",
		PreRun: func(cmd *cobra.Command, _ []string) {
			_ = godotenv.Load()
			if !cmd.Flags().Changed("database-url") {
				opts.databaseURL = os.Getenv("DATABASE_URL")
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.databaseURL, "database-url", "", "postgres connection string (default $DATABASE_URL)")
	cmd.Flags().BoolVar(&opts.down, "down", false, "roll back the most recent migration")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", time.Minute, "overall migration timeout")
	return cmd
}

func runMigrate(ctx context.Context, opts *migrateOptions) error {
	if opts.databaseURL == "" {
		return errors.New("a database url is required (--database-url or DATABASE_URL)")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	pool, err := pgstore.Connect(ctx, opts.databaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pgstore.Migrate(ctx, pool, opts.down); err != nil {
		return err
	}
	if opts.down {
		fmt.Println("rolled back one migration")
	} else {
		fmt.Println("schema up to date")
	}
	return nil
}
