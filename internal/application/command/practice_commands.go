package command

import (
	"context"
	"strings"
	"time"

	"github.com/skill-ascent/skill-ascent/internal/domain/shared"
	"github.com/skill-ascent/skill-ascent/internal/domain/skill"
	"github.com/skill-ascent/skill-ascent/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LOG PRACTICE
// ══════════════════════════════════════════════════════════════════════════════

// LogPracticeCommand adds a practice session to a skill.
type LogPracticeCommand struct {
	UserID  string
	SkillID string `validate:"required"`

	// Date of the session; zero means now.
	Date time.Time

	// Duration in minutes.
	Duration int    `validate:"gte=1"`
	Notes    string `validate:"max=500"`
}

// LogPractice appends a practice entry and keeps the log sorted newest first.
func (h *SkillHandler) LogPractice(ctx context.Context, cmd LogPracticeCommand) (*MutationResult, error) {
	const op = "LogPractice"
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

	entry := skill.PracticeEntry{
		ID:       h.newID(),
		Date:     h.practiceDate(cmd.Date),
		Duration: cmd.Duration,
		Notes:    strings.TrimSpace(cmd.Notes),
	}
	if err := s.AddEntry(entry); err != nil {
		return nil, err
	}

	if err := h.repo.AddPracticeEntry(ctx, cmd.UserID, cmd.SkillID, entry); err != nil {
		return nil, writeFailure(op, err)
	}

	return h.finish(ctx, &MutationResult{
		UserID:  cmd.UserID,
		SkillID: s.ID,
		EntryID: entry.ID,
		Skill:   s,
		Events: []shared.Event{
			shared.NewSkillMutatedEvent(shared.EventPracticeLogged, cmd.UserID, s.ID, entry.ID, entry.Duration),
		},
	}), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE PRACTICE
// ══════════════════════════════════════════════════════════════════════════════

// UpdatePracticeCommand replaces a practice entry.
type UpdatePracticeCommand struct {
	UserID  string
	SkillID string `validate:"required"`
	EntryID string `validate:"required"`

	// Date of the session; zero keeps the stored date.
	Date     time.Time
	Duration int    `validate:"gte=1"`
	Notes    string `validate:"max=500"`
}

// UpdatePractice edits a practice entry. Badges already achieved stay achieved
// even if the edit lowers the totals.
func (h *SkillHandler) UpdatePractice(ctx context.Context, cmd UpdatePracticeCommand) (*MutationResult, error) {
	const op = "UpdatePractice"
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

	existing, ok := s.FindEntry(cmd.EntryID)
	if !ok {
		return nil, shared.ErrPracticeEntryNotFound
	}

	entry := skill.PracticeEntry{
		ID:       existing.ID,
		Date:     existing.Date,
		Duration: cmd.Duration,
		Notes:    strings.TrimSpace(cmd.Notes),
	}
	if !cmd.Date.IsZero() {
		entry.Date = timeutil.Canonical(cmd.Date)
	}
	if err := s.ReplaceEntry(entry); err != nil {
		return nil, err
	}

	if err := h.repo.UpdatePracticeEntry(ctx, cmd.UserID, cmd.SkillID, entry); err != nil {
		return nil, writeFailure(op, err)
	}

	return h.finish(ctx, &MutationResult{
		UserID:  cmd.UserID,
		SkillID: s.ID,
		EntryID: entry.ID,
		Skill:   s,
		Events: []shared.Event{
			shared.NewSkillMutatedEvent(shared.EventPracticeEdited, cmd.UserID, s.ID, entry.ID, entry.Duration),
		},
	}), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DELETE PRACTICE
// ══════════════════════════════════════════════════════════════════════════════

// DeletePracticeCommand removes a practice entry.
type DeletePracticeCommand struct {
	UserID  string
	SkillID string `validate:"required"`
	EntryID string `validate:"required"`
}

// DeletePractice removes a practice entry from a skill's log.
func (h *SkillHandler) DeletePractice(ctx context.Context, cmd DeletePracticeCommand) (*MutationResult, error) {
	const op = "DeletePractice"
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

	entry, ok := s.FindEntry(cmd.EntryID)
	if !ok {
		return nil, shared.ErrPracticeEntryNotFound
	}
	if err := s.RemoveEntry(cmd.EntryID); err != nil {
		return nil, err
	}

	if err := h.repo.DeletePracticeEntry(ctx, cmd.UserID, cmd.SkillID, cmd.EntryID); err != nil {
		return nil, writeFailure(op, err)
	}

	return h.finish(ctx, &MutationResult{
		UserID:  cmd.UserID,
		SkillID: s.ID,
		EntryID: cmd.EntryID,
		Skill:   s,
		Events: []shared.Event{
			shared.NewSkillMutatedEvent(shared.EventPracticeDeleted, cmd.UserID, s.ID, cmd.EntryID, entry.Duration),
		},
	}), nil
}

func (h *SkillHandler) practiceDate(d time.Time) time.Time {
	if d.IsZero() {
		return h.now()
	}
	return timeutil.Canonical(d)
}
