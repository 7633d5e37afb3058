package command

import (
	"context"
	"strings"

	"github.com/skill-ascent/skill-ascent/internal/domain/shared"
	"github.com/skill-ascent/skill-ascent/internal/domain/skill"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADD SKILL
// ══════════════════════════════════════════════════════════════════════════════

// AddSkillCommand contains the data to create a skill.
type AddSkillCommand struct {
	UserID string

	// Name is trimmed before it is stored.
	Name string `validate:"required,not_blank,min=2,max=50"`

	// TargetPracticeTime is the goal in hours; nil means no goal.
	TargetPracticeTime *float64 `validate:"omitempty,gte=0"`

	LearningGoals string `validate:"max=500"`
	Category      string `validate:"skill_category"`
}

// AddSkill creates a skill with an empty practice log.
func (h *SkillHandler) AddSkill(ctx context.Context, cmd AddSkillCommand) (*MutationResult, error) {
	const op = "AddSkill"
	if err := requireUser(op, cmd.UserID); err != nil {
		return nil, err
	}
	cmd.Name = strings.TrimSpace(cmd.Name)
	if err := validateCommand(op, cmd); err != nil {
		return nil, err
	}

	s, err := skill.NewSkill(skill.NewSkillParams{
		ID:                 h.newID(),
		Name:               cmd.Name,
		CreatedAt:          h.now(),
		TargetPracticeTime: cmd.TargetPracticeTime,
		LearningGoals:      strings.TrimSpace(cmd.LearningGoals),
		Category:           cmd.Category,
	})
	if err != nil {
		return nil, err
	}

	if err := h.repo.Create(ctx, cmd.UserID, s); err != nil {
		return nil, writeFailure(op, err)
	}

	return h.finish(ctx, &MutationResult{
		UserID:  cmd.UserID,
		SkillID: s.ID,
		Skill:   s,
		Events: []shared.Event{
			shared.NewSkillMutatedEvent(shared.EventSkillAdded, cmd.UserID, s.ID, "", 0),
		},
	}), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE SKILL
// ══════════════════════════════════════════════════════════════════════════════

// UpdateSkillCommand changes skill attributes. Nil fields are left untouched.
type UpdateSkillCommand struct {
	UserID  string
	SkillID string `validate:"required"`

	Name               *string  `validate:"omitempty,not_blank,min=2,max=50"`
	TargetPracticeTime *float64 `validate:"omitempty,gte=0"`
	LearningGoals      *string  `validate:"omitempty,max=500"`
	Category           *string  `validate:"omitempty,skill_category"`

	// ClearTarget removes the practice goal; it wins over TargetPracticeTime.
	ClearTarget bool
}

// UpdateSkill changes name, goal, learning goals or category of a skill.
// The practice log is never touched.
func (h *SkillHandler) UpdateSkill(ctx context.Context, cmd UpdateSkillCommand) (*MutationResult, error) {
	const op = "UpdateSkill"
	if err := requireUser(op, cmd.UserID); err != nil {
		return nil, err
	}
	if cmd.Name != nil {
		trimmed := strings.TrimSpace(*cmd.Name)
		cmd.Name = &trimmed
	}
	if err := validateCommand(op, cmd); err != nil {
		return nil, err
	}

	s, err := h.load(ctx, op, cmd.UserID, cmd.SkillID)
	if err != nil {
		return nil, err
	}

	if cmd.Name != nil {
		s.Name = *cmd.Name
	}
	if cmd.TargetPracticeTime != nil {
		target := *cmd.TargetPracticeTime
		s.TargetPracticeTime = &target
	}
	if cmd.ClearTarget {
		s.TargetPracticeTime = nil
	}
	if cmd.LearningGoals != nil {
		s.LearningGoals = strings.TrimSpace(*cmd.LearningGoals)
	}
	if cmd.Category != nil {
		s.Category = *cmd.Category
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	if err := h.repo.Update(ctx, cmd.UserID, s); err != nil {
		return nil, writeFailure(op, err)
	}

	return h.finish(ctx, &MutationResult{
		UserID:  cmd.UserID,
		SkillID: s.ID,
		Skill:   s,
		Events: []shared.Event{
			shared.NewSkillMutatedEvent(shared.EventSkillUpdated, cmd.UserID, s.ID, "", 0),
		},
	}), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DELETE SKILL
// ══════════════════════════════════════════════════════════════════════════════

// DeleteSkillCommand removes a skill with its practice log.
type DeleteSkillCommand struct {
	UserID  string
	SkillID string `validate:"required"`
}

// DeleteSkill removes a skill. Badges already achieved stay achieved.
func (h *SkillHandler) DeleteSkill(ctx context.Context, cmd DeleteSkillCommand) (*MutationResult, error) {
	const op = "DeleteSkill"
	if err := requireUser(op, cmd.UserID); err != nil {
		return nil, err
	}
	if err := validateCommand(op, cmd); err != nil {
		return nil, err
	}

	s, err := h.load(ctx, op, cmd.UserID, cmd.SkillID)
	if err != nil {
		return nil, err
	}

	if err := h.repo.Delete(ctx, cmd.UserID, cmd.SkillID); err != nil {
		return nil, writeFailure(op, err)
	}

	return h.finish(ctx, &MutationResult{
		UserID:  cmd.UserID,
		SkillID: cmd.SkillID,
		Events: []shared.Event{
			shared.NewSkillMutatedEvent(shared.EventSkillDeleted, cmd.UserID, cmd.SkillID, "", s.TotalMinutes()),
		},
	}), nil
}
