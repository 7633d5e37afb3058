package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/skill-ascent/skill-ascent/internal/application/command"
	"github.com/skill-ascent/skill-ascent/internal/application/query"
	"github.com/skill-ascent/skill-ascent/internal/domain/skill"
)

var skillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "Manage skills",
}

var skillsAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a skill",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		add := command.AddSkillCommand{UserID: a.userID, Name: args[0]}
		add.LearningGoals, _ = cmd.Flags().GetString("goals")
		add.Category, _ = cmd.Flags().GetString("category")
		if cmd.Flags().Changed("target") {
			target, _ := cmd.Flags().GetFloat64("target")
			add.TargetPracticeTime = &target
		}

		return a.mutate(cmd.Context(),
			func(h *command.SkillHandler) (*command.MutationResult, error) {
				return h.AddSkill(cmd.Context(), add)
			},
			func(r *command.MutationResult) {
				fmt.Fprintf(a.out, "Added skill %q (%s)\n", r.Skill.Name, r.SkillID)
			})
	},
}

var skillsUpdateCmd = &cobra.Command{
	Use:   "update <skill-id>",
	Short: "Change name, goal, learning goals or category of a skill",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		upd := command.UpdateSkillCommand{UserID: a.userID, SkillID: args[0]}
		if cmd.Flags().Changed("name") {
			v, _ := cmd.Flags().GetString("name")
			upd.Name = &v
		}
		if cmd.Flags().Changed("target") {
			v, _ := cmd.Flags().GetFloat64("target")
			upd.TargetPracticeTime = &v
		}
		if cmd.Flags().Changed("goals") {
			v, _ := cmd.Flags().GetString("goals")
			upd.LearningGoals = &v
		}
		if cmd.Flags().Changed("category") {
			v, _ := cmd.Flags().GetString("category")
			upd.Category = &v
		}
		upd.ClearTarget, _ = cmd.Flags().GetBool("clear-target")

		return a.mutate(cmd.Context(),
			func(h *command.SkillHandler) (*command.MutationResult, error) {
				return h.UpdateSkill(cmd.Context(), upd)
			},
			func(r *command.MutationResult) {
				fmt.Fprintf(a.out, "Updated skill %q\n", r.Skill.Name)
			})
	},
}

var skillsDeleteCmd = &cobra.Command{
	Use:   "delete <skill-id>",
	Short: "Delete a skill and its practice log (earned badges are kept)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		return a.mutate(cmd.Context(),
			func(h *command.SkillHandler) (*command.MutationResult, error) {
				return h.DeleteSkill(cmd.Context(), command.DeleteSkillCommand{UserID: a.userID, SkillID: args[0]})
			},
			func(r *command.MutationResult) {
				fmt.Fprintf(a.out, "Deleted skill %s\n", r.SkillID)
			})
	},
}

var skillsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List skills, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := query.NewGetSkillProgressHandler(a.skills).Handle(cmd.Context(), query.GetSkillProgressQuery{
			UserID:   a.userID,
			Location: a.cfg.App.Location,
			Now:      time.Now(),
		})
		if err != nil {
			return fmt.Errorf("list skills: %w", err)
		}

		if len(res.Skills) == 0 {
			fmt.Fprintln(a.out, "No skills yet. Add one with: skillascent skills add <name>")
			return nil
		}

		fmt.Fprintf(a.out, "%-36s  %-30s  %-24s  %9s  %-12s  %s\n",
			"ID", "Name", "Category", "Practiced", "Level", "Goal")
		fmt.Fprintln(a.out, strings.Repeat("─", 130))

		for _, s := range res.Skills {
			goal := "-"
			if s.HasTarget {
				goal = fmt.Sprintf("%.0f%%", s.ProgressPercent)
			}
			fmt.Fprintf(a.out, "%-36s  %-30s  %-24s  %9s  %-12s  %s\n",
				s.SkillID, truncate(s.Name, 30), truncate(s.Category, 24),
				s.FormattedDuration, s.Level, goal)
		}

		fmt.Fprintf(a.out, "\n%d skills\n", res.TotalSkills)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{skillsAddCmd, skillsUpdateCmd} {
		c.Flags().Float64("target", 0, "Target practice time in hours")
		c.Flags().String("goals", "", "Learning goals")
		c.Flags().String("category", "", "Category: "+strings.Join(skill.Categories, ", "))
	}
	skillsUpdateCmd.Flags().String("name", "", "New name")
	skillsUpdateCmd.Flags().Bool("clear-target", false, "Remove the practice goal")

	skillsCmd.AddCommand(skillsAddCmd)
	skillsCmd.AddCommand(skillsUpdateCmd)
	skillsCmd.AddCommand(skillsDeleteCmd)
	skillsCmd.AddCommand(skillsListCmd)
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}
