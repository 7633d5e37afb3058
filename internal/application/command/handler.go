package command

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/skill-ascent/skill-ascent/internal/domain/shared"
	"github.com/skill-ascent/skill-ascent/internal/domain/skill"
	"github.com/skill-ascent/skill-ascent/pkg/logger"
	"github.com/skill-ascent/skill-ascent/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SKILL HANDLER
// Every successful mutation is persisted first, then announced through the
// skill.Notifier so the badge reconciliation of that user runs.
// ══════════════════════════════════════════════════════════════════════════════

// MutationResult contains the outcome of a skill or practice mutation.
type MutationResult struct {
	// UserID is the owner of the skill.
	UserID string

	// SkillID is the affected skill.
	SkillID string

	// EntryID is the affected practice entry (practice commands only).
	EntryID string

	// Skill is the skill after the mutation (nil after DeleteSkill).
	Skill *skill.Skill

	// Events contains domain events generated.
	Events []shared.Event

	// NotifyErr is set when the change was saved but the notification failed.
	NotifyErr error
}

// SkillHandlerConfig contains configuration for the handler.
type SkillHandlerConfig struct {
	// Now is the clock for CreatedAt and default practice dates.
	Now func() time.Time

	// NewID generates skill and practice entry ids.
	NewID func() string
}

// DefaultSkillHandlerConfig returns default configuration.
func DefaultSkillHandlerConfig() SkillHandlerConfig {
	return SkillHandlerConfig{
		Now:   func() time.Time { return timeutil.Canonical(time.Now()) },
		NewID: uuid.NewString,
	}
}

// SkillHandler handles skill and practice log commands.
type SkillHandler struct {
	repo      skill.Repository
	notifier  skill.Notifier
	publisher shared.EventPublisher
	log       *logger.Logger
	now       func() time.Time
	newID     func() string
}

// NewSkillHandler creates a new SkillHandler.
func NewSkillHandler(
	repo skill.Repository,
	notifier skill.Notifier,
	publisher shared.EventPublisher,
	log *logger.Logger,
	config SkillHandlerConfig,
) *SkillHandler {
	defaults := DefaultSkillHandlerConfig()
	if config.Now == nil {
		config.Now = defaults.Now
	}
	if config.NewID == nil {
		config.NewID = defaults.NewID
	}
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}

	return &SkillHandler{
		repo:      repo,
		notifier:  notifier,
		publisher: publisher,
		log:       log.With(logger.Component("skill_commands")),
		now:       config.Now,
		newID:     config.NewID,
	}
}

// finish publishes events and notifies the reconciliation of the change.
func (h *SkillHandler) finish(ctx context.Context, result *MutationResult) *MutationResult {
	for _, event := range result.Events {
		if err := h.publisher.Publish(event); err != nil {
			h.log.Warn("failed to publish event",
				logger.String("event_type", string(event.EventType())),
				logger.Err(err))
		}
	}

	if h.notifier == nil {
		return result
	}
	if err := h.notifier.SkillsChanged(ctx, result.UserID); err != nil {
		result.NotifyErr = err
		h.log.Warn("skills change notification failed",
			logger.UserID(result.UserID),
			logger.SkillID(result.SkillID),
			logger.Err(err))
	}
	return result
}

func (h *SkillHandler) load(ctx context.Context, op, userID, skillID string) (*skill.Skill, error) {
	s, err := h.repo.Get(ctx, userID, skillID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, err
		}
		return nil, shared.WrapError("skill", op, shared.ErrReadFailure, "failed to load skill", err)
	}
	return s, nil
}

func writeFailure(op string, err error) error {
	if shared.IsNotFound(err) || shared.IsAlreadyExists(err) || shared.IsValidation(err) {
		return err
	}
	return shared.WrapError("skill", op, shared.ErrWriteFailure, "failed to save skill", err)
}
