package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/ayush/helsa/backend/internal/admin"
	"github.com/ayush/helsa/backend/internal/config"
	"github.com/ayush/helsa/backend/internal/logging"
	"github.com/ayush/helsa/backend/internal/models"
	"github.com/ayush/helsa/backend/internal/store"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "helsa",
		Short:        "Symptom intake and diagnosis API",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(usersCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServer(cfg)
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(cmd.Context(), func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
				if err := store.Migrate(ctx, pool); err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Println("Migrations applied successfully.")
				return nil
			})
		},
	})

	// migrate status
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(cmd.Context(), func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
				return store.MigrationStatus(ctx, pool)
			})
		},
	})

	return cmd
}

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts",
	}

	setFlags := &cobra.Command{
		Use:   "set-flags",
		Short: "Set account flags of an existing user",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, _ := cmd.Flags().GetString("username")
			req := models.UserFlagsRequest{Username: username}
			for name, dst := range map[string]**bool{
				"is-verified":      &req.Flags.IsVerified,
				"is-active":        &req.Flags.IsActive,
				"is-admin":         &req.Flags.IsAdmin,
				"has-premium-tier": &req.Flags.HasPremiumTier,
			} {
				if !cmd.Flags().Changed(name) {
					continue
				}
				v, _ := cmd.Flags().GetBool(name)
				*dst = &v
			}

			return withPool(cmd.Context(), func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
				log := logging.New(cfg.Env, cfg.LogLevel)
				svc := admin.NewService(store.NewPostgresStore(pool), nil, log)
				msg, _, err := svc.SetFlags(ctx, req)
				if err != nil {
					return err
				}
				fmt.Println(msg)
				return nil
			})
		},
	}
	setFlags.Flags().String("username", "", "Email of the user to update")
	setFlags.Flags().Bool("is-verified", false, "Set the verified flag")
	setFlags.Flags().Bool("is-active", false, "Set the active flag")
	setFlags.Flags().Bool("is-admin", false, "Set the admin flag")
	setFlags.Flags().Bool("has-premium-tier", false, "Set the premium tier flag")
	_ = setFlags.MarkFlagRequired("username")
	cmd.AddCommand(setFlags)

	return cmd
}

// withPool loads config, opens a pool for the duration of fn and closes it.
func withPool(ctx context.Context, fn func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	pool, err := store.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, cfg, pool)
}
