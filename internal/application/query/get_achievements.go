// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"time"

	"github.com/skill-ascent/skill-ascent/internal/domain/badge"
	"github.com/skill-ascent/skill-ascent/internal/domain/shared"
	"github.com/skill-ascent/skill-ascent/internal/domain/skill"
	"github.com/skill-ascent/skill-ascent/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ACHIEVEMENTS QUERY
// Витрина достижений: полученные бейджи и бейджи, которые ещё предстоит
// заработать. Бейджи упорядочены по ID, как в каталоге.
// ══════════════════════════════════════════════════════════════════════════════

// GetAchievementsQuery содержит параметры запроса достижений.
type GetAchievementsQuery struct {
	// UserID - владелец бейджей.
	UserID string

	// Location - календарь отображения дат (nil = time.Local).
	Location *time.Location
}

// AchievementView - бейдж в виде для отображения.
type AchievementView struct {
	ID           string
	Name         string
	Description  string
	Icon         badge.IconName
	Glyph        string
	CriteriaType badge.CriteriaType

	// SkillName - название навыка для бейджей, привязанных к навыку.
	// Пусто, если навык не найден или бейдж не привязан.
	SkillName string

	AchievedAt *time.Time

	// AchievedOn - дата получения в календаре отображения.
	AchievedOn string
}

// GetAchievementsResult содержит результат запроса.
type GetAchievementsResult struct {
	Achieved []AchievementView
	ToEarn   []AchievementView

	AchievedCount  int
	RemainingCount int
	TotalCount     int
}

// BadgeReader - источник бейджей для витрины.
type BadgeReader interface {
	List(ctx context.Context, userID string) ([]badge.Badge, error)
}

// GetAchievementsHandler обрабатывает GetAchievementsQuery.
type GetAchievementsHandler struct {
	badges BadgeReader
	skills skill.Source
}

// NewGetAchievementsHandler создаёт обработчик. skills может быть nil,
// тогда названия навыков не подставляются.
func NewGetAchievementsHandler(badges BadgeReader, skills skill.Source) *GetAchievementsHandler {
	return &GetAchievementsHandler{badges: badges, skills: skills}
}

// Handle выполняет запрос.
func (h *GetAchievementsHandler) Handle(ctx context.Context, q GetAchievementsQuery) (*GetAchievementsResult, error) {
	if q.UserID == "" {
		return nil, shared.NewDomainError("badge", "GetAchievements", shared.ErrNotAuthenticated, "user id is required")
	}

	stored, err := h.badges.List(ctx, q.UserID)
	if err != nil {
		return nil, shared.WrapError("badge", "GetAchievements", shared.ErrReadFailure, "failed to read badges", err)
	}

	var skills []skill.Skill
	if h.skills != nil {
		skills, err = h.skills.List(ctx, q.UserID)
		if err != nil {
			return nil, shared.WrapError("skill", "GetAchievements", shared.ErrReadFailure, "failed to read skills", err)
		}
	}

	return BuildAchievements(stored, skills, q.Location), nil
}

// BuildAchievements раскладывает бейджи на полученные и оставшиеся.
func BuildAchievements(badges []badge.Badge, skills []skill.Skill, loc *time.Location) *GetAchievementsResult {
	if loc == nil {
		loc = time.Local
	}

	sorted := badge.Canonicalize(badges)
	badge.SortByID(sorted)

	result := &GetAchievementsResult{
		Achieved: make([]AchievementView, 0),
		ToEarn:   make([]AchievementView, 0),
	}

	for _, b := range sorted {
		view := AchievementView{
			ID:           b.ID,
			Name:         b.Name,
			Description:  b.Description,
			Icon:         b.IconName,
			Glyph:        b.IconName.Glyph(),
			CriteriaType: b.CriteriaType,
			AchievedAt:   b.AchievedAt,
		}
		if b.SkillID != "" {
			if s, ok := skill.FindByID(skills, b.SkillID); ok {
				view.SkillName = s.Name
			}
		}

		if b.IsAchieved() {
			view.AchievedOn = b.AchievedAt.In(loc).Format(timeutil.FormatHumanDate)
			result.Achieved = append(result.Achieved, view)
		} else {
			result.ToEarn = append(result.ToEarn, view)
		}
	}

	result.AchievedCount = len(result.Achieved)
	result.RemainingCount = len(result.ToEarn)
	result.TotalCount = len(sorted)
	return result
}
