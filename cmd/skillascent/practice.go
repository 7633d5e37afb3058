package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/skill-ascent/skill-ascent/internal/application/command"
	"github.com/skill-ascent/skill-ascent/internal/domain/skill"
	"github.com/skill-ascent/skill-ascent/pkg/timeutil"
)

var practiceCmd = &cobra.Command{
	Use:   "practice",
	Short: "Log practice sessions",
}

var practiceLogCmd = &cobra.Command{
	Use:   "log <skill-id> <minutes>",
	Short: "Log a practice session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		minutes, err := parseMinutes(args[1])
		if err != nil {
			return err
		}

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		date, err := dateFlag(cmd, a.cfg.App.Location)
		if err != nil {
			return err
		}
		notes, _ := cmd.Flags().GetString("notes")

		return a.mutate(cmd.Context(),
			func(h *command.SkillHandler) (*command.MutationResult, error) {
				return h.LogPractice(cmd.Context(), command.LogPracticeCommand{
					UserID:   a.userID,
					SkillID:  args[0],
					Date:     date,
					Duration: minutes,
					Notes:    notes,
				})
			},
			func(r *command.MutationResult) {
				fmt.Fprintf(a.out, "Logged %s of %q (%s), %s total\n",
					skill.FormatDuration(minutes), r.Skill.Name, r.EntryID,
					skill.FormatDuration(r.Skill.TotalMinutes()))
			})
	},
}

var practiceUpdateCmd = &cobra.Command{
	Use:   "update <skill-id> <entry-id> <minutes>",
	Short: "Edit a practice session (earned badges are kept)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		minutes, err := parseMinutes(args[2])
		if err != nil {
			return err
		}

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		date, err := dateFlag(cmd, a.cfg.App.Location)
		if err != nil {
			return err
		}
		notes, _ := cmd.Flags().GetString("notes")

		return a.mutate(cmd.Context(),
			func(h *command.SkillHandler) (*command.MutationResult, error) {
				return h.UpdatePractice(cmd.Context(), command.UpdatePracticeCommand{
					UserID:   a.userID,
					SkillID:  args[0],
					EntryID:  args[1],
					Date:     date,
					Duration: minutes,
					Notes:    notes,
				})
			},
			func(r *command.MutationResult) {
				fmt.Fprintf(a.out, "Updated session %s of %q\n", r.EntryID, r.Skill.Name)
			})
	},
}

var practiceDeleteCmd = &cobra.Command{
	Use:   "delete <skill-id> <entry-id>",
	Short: "Delete a practice session (earned badges are kept)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		return a.mutate(cmd.Context(),
			func(h *command.SkillHandler) (*command.MutationResult, error) {
				return h.DeletePractice(cmd.Context(), command.DeletePracticeCommand{
					UserID:  a.userID,
					SkillID: args[0],
					EntryID: args[1],
				})
			},
			func(r *command.MutationResult) {
				fmt.Fprintf(a.out, "Deleted session %s of %q\n", r.EntryID, r.Skill.Name)
			})
	},
}

var practiceListCmd = &cobra.Command{
	Use:   "list <skill-id>",
	Short: "Show the practice log of a skill, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := a.skills.Get(cmd.Context(), a.userID, args[0])
		if err != nil {
			return fmt.Errorf("load skill: %w", err)
		}

		if len(s.PracticeLog) == 0 {
			fmt.Fprintf(a.out, "No sessions logged for %q.\n", s.Name)
			return nil
		}

		fmt.Fprintf(a.out, "%-36s  %-16s  %8s  %s\n", "ID", "Date", "Duration", "Notes")
		fmt.Fprintln(a.out, strings.Repeat("─", 100))
		for _, e := range s.PracticeLog {
			fmt.Fprintf(a.out, "%-36s  %-16s  %8s  %s\n",
				e.ID,
				e.Date.In(a.cfg.App.Location).Format(timeutil.FormatDateTime),
				skill.FormatDuration(e.Duration),
				truncate(e.Notes, 40))
		}
		fmt.Fprintf(a.out, "\n%d sessions, %s total\n", s.LogLength(), skill.FormatDuration(s.TotalMinutes()))
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{practiceLogCmd, practiceUpdateCmd} {
		c.Flags().String("date", "", `Session date: "YYYY-MM-DD", "YYYY-MM-DD HH:MM" or RFC3339 (default now)`)
		c.Flags().String("notes", "", "Notes")
	}

	practiceCmd.AddCommand(practiceLogCmd)
	practiceCmd.AddCommand(practiceUpdateCmd)
	practiceCmd.AddCommand(practiceDeleteCmd)
	practiceCmd.AddCommand(practiceListCmd)
}

func parseMinutes(value string) (int, error) {
	minutes, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("minutes must be a whole number, got %q", value)
	}
	return minutes, nil
}

// dateFlag returns the --date value, or the zero time when it is not set.
func dateFlag(cmd *cobra.Command, loc *time.Location) (time.Time, error) {
	raw, _ := cmd.Flags().GetString("date")
	if raw == "" {
		return time.Time{}, nil
	}
	return timeutil.ParseDateTime(raw, loc)
}
