// Command medscan is the operator CLI: it resolves names and checks doses
// against the same pipeline the server runs, and manages the catalog database.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/medscan-resolver/internal/app"
	"github.com/medscan-resolver/internal/config"
	"github.com/medscan-resolver/internal/database"
	"github.com/medscan-resolver/internal/domain"
	"github.com/medscan-resolver/internal/knowledge"
	"github.com/medscan-resolver/internal/logging"
	"github.com/medscan-resolver/internal/repository"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "medscan",
		Short:         "Resolve noisy medication names and check doses",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(resolveCmd())
	rootCmd.AddCommand(doseCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	return rootCmd
}

func resolveCmd() *cobra.Command {
	var dosage string
	var offline bool

	cmd := &cobra.Command{
		Use:   "resolve NAME...",
		Short: "Run medicine names through the full pipeline and print the records as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lite := config.LoadLiteConfig()
			if offline {
				lite.OpenFDAEnabled = false
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application, err := buildApp(ctx, lite.ToConfig())
			if err != nil {
				return err
			}
			defer application.Close()

			candidates := make([]domain.ExtractedMedication, len(args))
			for i, name := range args {
				candidates[i] = domain.ExtractedMedication{ClaimedName: name, DosageText: dosage}
			}

			records := application.Pipeline.Process(ctx, candidates)
			return printJSON(cmd, records)
		},
	}

	cmd.Flags().StringVar(&dosage, "dosage", "", "dosage text checked for every name, e.g. 650mg")
	cmd.Flags().BoolVar(&offline, "offline", false, "skip openFDA label verification")
	return cmd
}

func doseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dose DRUG DOSAGE",
		Short: "Check one dosage against the safety-limit table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lite := config.LoadLiteConfig()
			lite.OpenFDAEnabled = false

			application, err := buildApp(cmd.Context(), lite.ToConfig())
			if err != nil {
				return err
			}
			defer application.Close()

			return printJSON(cmd, application.Pipeline.Validator().ValidateDosage(args[0], args[1]))
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the Postgres catalog schema",
	}

	run := func(up bool) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			configManager, err := config.NewManager()
			if err != nil {
				return err
			}
			logger, err := logging.NewLogger(configManager.GetConfig().Logging)
			if err != nil {
				return err
			}

			runner, err := database.NewMigrationRunner(configManager.GetDatabaseURL(), logger)
			if err != nil {
				return err
			}
			defer runner.Close()

			if up {
				return runner.Up(cmd.Context())
			}
			return runner.Down(cmd.Context())
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE:  run(true),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the latest migration",
		RunE:  run(false),
	})
	return cmd
}

func seedCmd() *cobra.Command {
	var target, sqlitePath, drugsPath, limitsPath string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Copy a catalog (built-in or from files) into SQLite or Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var source domain.CatalogSource = knowledge.NewEmbeddedSource()
			if drugsPath != "" {
				source = knowledge.NewFileSource(drugsPath, limitsPath)
			}

			// validate before writing anything
			if _, err := knowledge.Load(ctx, source); err != nil {
				return err
			}
			drugs, err := source.LoadDrugs(ctx)
			if err != nil {
				return err
			}
			limits, err := source.LoadSafetyLimits(ctx)
			if err != nil {
				return err
			}

			switch target {
			case domain.CatalogSourceSQLite:
				if sqlitePath == "" {
					lite := config.LoadLiteConfig()
					if err := lite.EnsureDataDir(); err != nil {
						return err
					}
					sqlitePath = lite.CatalogDBPath()
				}
				store, err := knowledge.OpenSQLiteSource(sqlitePath)
				if err != nil {
					return err
				}
				defer store.Close()
				if err := store.Seed(ctx, drugs, limits); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d drugs and %d safety limits into %s\n", len(drugs), len(limits), sqlitePath)
				return nil

			case domain.CatalogSourcePostgres:
				configManager, err := config.NewManager()
				if err != nil {
					return err
				}
				cfg := configManager.GetConfig()
				logger, err := logging.NewLogger(cfg.Logging)
				if err != nil {
					return err
				}
				db, err := database.NewConnection(ctx, database.ConfigFromDomain(cfg.Database), logger)
				if err != nil {
					return err
				}
				defer db.Close()
				if err := repository.NewCatalogRepository(db.Pool, logger).Seed(ctx, drugs, limits); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d drugs and %d safety limits into postgres\n", len(drugs), len(limits))
				return nil

			default:
				return fmt.Errorf("unsupported seed target %q (want sqlite or postgres)", target)
			}
		},
	}

	cmd.Flags().StringVar(&target, "target", domain.CatalogSourceSQLite, "sqlite or postgres")
	cmd.Flags().StringVar(&sqlitePath, "sqlite-path", "", "SQLite file (default: $MEDSCAN_DATA_DIR/catalog.db)")
	cmd.Flags().StringVar(&drugsPath, "drugs", "", "drugs file to import instead of the built-in catalog")
	cmd.Flags().StringVar(&limitsPath, "safety-limits", "", "safety-limit file to import")
	return cmd
}

func buildApp(ctx context.Context, cfg *domain.Config) (*app.App, error) {
	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, logger)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
