package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nerrad567/fp-mqtt-broker/internal/infrastructure/config"
	"github.com/nerrad567/fp-mqtt-broker/internal/infrastructure/database"
	"github.com/nerrad567/fp-mqtt-broker/migrations"
)

// errJournalDisabled is returned by migrate when the journal section is off.
var errJournalDisabled = errors.New("journal is disabled in configuration")

func newMigrateCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the message journal schema",
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		fmt.Sprintf("path to config.yaml (env %s, default %s)", configEnv, defaultConfigPath))

	action := func(name, short string) *cobra.Command {
		return &cobra.Command{
			Use:   name,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runMigrate(cmd.Context(), resolveConfigPath(configPath), name, cmd.OutOrStdout())
			},
		}
	}
	cmd.AddCommand(
		action("up", "Apply all pending migrations"),
		action("down", "Roll back the most recent migration"),
		action("status", "List applied and pending migrations"),
	)
	return cmd
}

// runMigrate opens the journal database named in configPath and applies
// action ("up", "down" or "status") with the embedded migrations.
func runMigrate(ctx context.Context, configPath, action string, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if !cfg.Journal.Enabled {
		return errJournalDisabled
	}

	db, err := database.Open(ctx, database.ConfigFromJournal(cfg.Journal))
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // Read-mostly CLI; nothing to recover on close

	src := migrations.Source()
	switch action {
	case "up":
		if err := db.Migrate(ctx, src); err != nil {
			return err
		}
	case "down":
		if err := db.MigrateDown(ctx, src); err != nil {
			return err
		}
	case "status":
	default:
		return fmt.Errorf("unknown migrate action %q", action)
	}

	applied, pending, err := db.MigrationStatus(ctx, src)
	if err != nil {
		return err
	}
	for _, r := range applied {
		fmt.Fprintf(out, "applied  %s  %s\n", r.Version, r.AppliedAt.Format("2006-01-02 15:04:05"))
	}
	for _, m := range pending {
		fmt.Fprintf(out, "pending  %s  %s\n", m.Version, m.Name)
	}
	return nil
}
