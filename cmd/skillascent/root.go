package main

import (
	"errors"
	"os"
	"os/user"

	"github.com/spf13/cobra"

	"github.com/skill-ascent/skill-ascent/config"
	"github.com/skill-ascent/skill-ascent/internal/infrastructure/persistence/sqlite"
)

var rootCmd = &cobra.Command{
	Use:           "skillascent",
	Short:         "Track skill practice and earn badges",
	Long:          "Skill Ascent keeps a practice log per skill and awards badges as totals, streaks and goals are reached.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides SQLITE_PATH and SKILLASCENT_DB)")
	rootCmd.PersistentFlags().String("user", "", "User id (overrides SKILLASCENT_USER, defaults to the OS user)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug output to stderr")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(skillsCmd)
	rootCmd.AddCommand(practiceCmd)
	rootCmd.AddCommand(badgesCmd)
	rootCmd.AddCommand(progressCmd)
}

// resolveDBPath returns the SQLite path using --db flag (highest priority),
// then SQLITE_PATH, then the default per-user data path.
func resolveDBPath(cmd *cobra.Command, cfg *config.Config) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, nil
	}
	if cfg.SQLite.Path != "" {
		return cfg.SQLite.Path, nil
	}
	return sqlite.DefaultDBPath()
}

// resolveUser returns the user id using --user flag, then SKILLASCENT_USER,
// then the OS account name.
func resolveUser(cmd *cobra.Command) (string, error) {
	if u, _ := cmd.Flags().GetString("user"); u != "" {
		return u, nil
	}
	if u := os.Getenv("SKILLASCENT_USER"); u != "" {
		return u, nil
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username, nil
	}
	return "", errors.New("no user: pass --user or set SKILLASCENT_USER")
}
