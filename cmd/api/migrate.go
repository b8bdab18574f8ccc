package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/ovaphlow/parkpro/service-core-go/internal/config"
	"github.com/ovaphlow/parkpro/service-core-go/pkg/database"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create tables and indexes",
		Long:  `Create every table and index the service uses. Safe to run repeatedly.`,
		RunE:  runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}
	ctx := cmd.Context()

	cmd.Println("Connecting to database...")
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer db.Close()

	cmd.Println("Creating schema...")
	if err := database.EnsureSchema(ctx, newRepos(db).migrators()...); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "ensure schema").Wrap(err)
	}
	cmd.Println("Schema is up to date")
	return nil
}
