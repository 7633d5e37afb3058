package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skill-ascent/skill-ascent/internal/application/query"
	"github.com/skill-ascent/skill-ascent/internal/domain/badge"
)

var badgesCmd = &cobra.Command{
	Use:   "badges",
	Short: "Show and reconcile badges",
}

var badgesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List earned badges and the ones still to earn",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := query.NewGetAchievementsHandler(a.badges, a.skills).Handle(cmd.Context(), query.GetAchievementsQuery{
			UserID:   a.userID,
			Location: a.cfg.App.Location,
		})
		if err != nil {
			return fmt.Errorf("list badges: %w", err)
		}

		if res.TotalCount == 0 {
			fmt.Fprintln(a.out, "No badges yet. Run: skillascent badges reconcile")
			return nil
		}

		fmt.Fprintf(a.out, "Earned %d of %d badges\n\n", res.AchievedCount, res.TotalCount)
		for _, v := range res.Achieved {
			fmt.Fprintf(a.out, "  %s %-28s  %s  %s\n", v.Glyph, v.Name, v.AchievedOn, describe(v))
		}

		if all, _ := cmd.Flags().GetBool("all"); all && len(res.ToEarn) > 0 {
			fmt.Fprintf(a.out, "\nStill to earn (%d)\n\n", res.RemainingCount)
			for _, v := range res.ToEarn {
				fmt.Fprintf(a.out, "  %s %-28s  %s\n", v.Glyph, v.Name, describe(v))
			}
		}
		return nil
	},
}

var badgesReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Seed missing badges and award everything already earned",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctrl, unlocked, err := a.bootstrap(cmd.Context())
		if err != nil {
			return fmt.Errorf("reconcile badges: %w", err)
		}

		achieved, remaining := badge.Counts(ctrl.Snapshot())
		fmt.Fprintf(a.out, "%d badges earned, %d to go\n", achieved, remaining)
		if pending := ctrl.PendingUnlocks(); len(pending) > 0 {
			a.warn("%d unlocks not saved yet: %s", len(pending), strings.Join(pending, ", "))
		}
		a.printUnlocked(unlocked)
		return nil
	},
}

func init() {
	badgesListCmd.Flags().Bool("all", false, "Also show badges still to earn")

	badgesCmd.AddCommand(badgesListCmd)
	badgesCmd.AddCommand(badgesReconcileCmd)
}

func describe(v query.AchievementView) string {
	if v.SkillName != "" {
		return v.Description + " [" + v.SkillName + "]"
	}
	return v.Description
}
