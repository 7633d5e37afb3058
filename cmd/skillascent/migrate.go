package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skill-ascent/skill-ascent/internal/infrastructure/persistence/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations and show the schema status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()

		if a.lite != nil {
			// Open already migrated the file.
			version, err := a.lite.SchemaVersion(ctx)
			if err != nil {
				return fmt.Errorf("read schema version: %w", err)
			}
			fmt.Fprintf(a.out, "SQLite %s: schema version %d\n", a.dbPath, version)
			return nil
		}

		m := postgres.NewMigrator(a.pg)
		applied, err := m.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		status, err := m.Status(ctx)
		if err != nil {
			return fmt.Errorf("migration status: %w", err)
		}

		fmt.Fprintf(a.out, "%-8s  %-32s  %s\n", "Version", "Name", "Applied")
		fmt.Fprintln(a.out, strings.Repeat("─", 70))
		for _, mig := range status {
			at := "pending"
			if mig.IsApplied {
				at = mig.AppliedAt.Local().Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(a.out, "%-8d  %-32s  %s\n", mig.Version, mig.Name, at)
		}
		fmt.Fprintf(a.out, "\n%d migrations applied now\n", applied)
		return nil
	},
}
