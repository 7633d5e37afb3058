package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/skill-ascent/skill-ascent/internal/application/query"
)

var progressCmd = &cobra.Command{
	Use:   "progress [skill-id]",
	Short: "Show practice totals, levels and goal progress",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		q := query.GetSkillProgressQuery{
			UserID:   a.userID,
			Location: a.cfg.App.Location,
			Now:      time.Now(),
		}
		if len(args) == 1 {
			q.SkillID = args[0]
		}

		res, err := query.NewGetSkillProgressHandler(a.skills).Handle(cmd.Context(), q)
		if err != nil {
			return fmt.Errorf("load progress: %w", err)
		}

		for _, s := range res.Skills {
			fmt.Fprintf(a.out, "%s (%s)\n", s.Name, s.Level)
			fmt.Fprintf(a.out, "  practiced  %s in %d sessions", s.FormattedDuration, s.EntryCount)
			if s.LastPracticedAgo != "" {
				fmt.Fprintf(a.out, ", last %s", s.LastPracticedAgo)
			}
			fmt.Fprintln(a.out)
			if s.HasTarget {
				fmt.Fprintf(a.out, "  goal       %s %.0f%%\n", bar(s.ProgressPercent, 20), s.ProgressPercent)
			}
			if s.MinutesToNext > 0 {
				fmt.Fprintf(a.out, "  next level %s in %d min\n", s.NextLevel, s.MinutesToNext)
			}
			fmt.Fprintln(a.out)
		}

		fmt.Fprintf(a.out, "%d skills, %s practiced in %d sessions over %d days\n",
			res.TotalSkills, res.FormattedTotal, res.TotalEntries, res.UniquePracticeDay)
		return nil
	},
}

func bar(percent float64, width int) string {
	filled := int(percent / 100 * float64(width))
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}
