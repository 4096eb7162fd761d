package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/25x8/velorent/internal/velorent/config"
	"github.com/25x8/velorent/internal/velorent/logger"
	"github.com/25x8/velorent/internal/velorent/repository"
	"github.com/25x8/velorent/internal/velorent/secure"
	"github.com/25x8/velorent/internal/velorent/service"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	Version     = "dev"
	databaseURI string
	timeout     time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "velorentctl",
		Short:   "Operator tasks for the velorent backend",
		Version: Version,
	}
	rootCmd.PersistentFlags().StringVarP(&databaseURI, "database-uri", "d", "", "Database URI, overrides DATABASE_URI")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")

	rootCmd.AddCommand(keygenCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(reencryptCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Print a new ENCRYPTION_KEY",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := secure.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			repo, err := openRepository(ctx, cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.CreateTables(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}

func reencryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reencrypt",
		Short: "Encrypt plaintext personal and document fields in place",
		Long: `Encrypt every personal and document field that is still stored as plaintext.

Values that are already encrypted are skipped, so the command can be rerun safely.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.EncryptionKey == "" {
				return fmt.Errorf("ENCRYPTION_KEY is required")
			}

			log := logger.New(cfg.Environment, cfg.LogLevel)
			defer func() { _ = log.Sync() }()

			cipher, err := secure.NewCipher(cfg.EncryptionKey, log)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			repo, err := openRepository(ctx, cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			stats, err := service.EncryptStored(ctx, repo, cipher)
			if err != nil {
				return err
			}
			log.Info("stored fields encrypted",
				zap.Int("users", stats.Users),
				zap.Int("documents", stats.Documents))
			fmt.Fprintf(cmd.OutOrStdout(), "encrypted %d users, %d documents\n", stats.Users, stats.Documents)
			return nil
		},
	}
}

// loadConfig reads .env and the environment. Server flags do not apply here.
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()
	cfg, err := config.Parse(flag.NewFlagSet("velorentctl", flag.ContinueOnError), nil, os.Getenv)
	if err != nil {
		return nil, err
	}
	if databaseURI != "" {
		cfg.DatabaseURI = databaseURI
	}
	return cfg, nil
}

func openRepository(ctx context.Context, cfg *config.Config) (*repository.PostgresRepository, error) {
	if cfg.DatabaseURI == "" {
		return nil, fmt.Errorf("DATABASE_URI is required")
	}
	return repository.Open(ctx, cfg.DatabaseURI)
}
