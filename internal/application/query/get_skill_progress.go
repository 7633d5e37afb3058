package query

import (
	"context"
	"time"

	"github.com/skill-ascent/skill-ascent/internal/domain/shared"
	"github.com/skill-ascent/skill-ascent/internal/domain/skill"
	"github.com/skill-ascent/skill-ascent/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET SKILL PROGRESS QUERY
// Аналитика практики: время по каждому навыку, прогресс к цели, уровень
// и общие итоги по всем навыкам.
// ══════════════════════════════════════════════════════════════════════════════

// GetSkillProgressQuery содержит параметры запроса прогресса.
type GetSkillProgressQuery struct {
	UserID string

	// SkillID - если задан, отчёт строится только по этому навыку.
	SkillID string

	// Location - календарь для подсчёта дней практики (nil = time.Local).
	Location *time.Location

	// Now - момент, относительно которого считается "последняя практика".
	Now time.Time
}

// SkillProgressView - прогресс одного навыка.
type SkillProgressView struct {
	SkillID  string
	Name     string
	Category string

	TotalMinutes      int
	FormattedDuration string
	EntryCount        int

	// ProgressPercent - 0..100; 0 без цели.
	ProgressPercent float64
	HasTarget       bool

	Level            skill.Level
	NextLevel        skill.Level
	MinutesToNext    int
	LastPracticedAgo string
}

// GetSkillProgressResult содержит результат запроса.
type GetSkillProgressResult struct {
	Skills []SkillProgressView

	TotalSkills       int
	TotalMinutes      int
	FormattedTotal    string
	TotalEntries      int
	UniquePracticeDay int
}

// GetSkillProgressHandler обрабатывает GetSkillProgressQuery.
type GetSkillProgressHandler struct {
	skills skill.Source
}

// NewGetSkillProgressHandler создаёт обработчик.
func NewGetSkillProgressHandler(skills skill.Source) *GetSkillProgressHandler {
	return &GetSkillProgressHandler{skills: skills}
}

// Handle выполняет запрос.
func (h *GetSkillProgressHandler) Handle(ctx context.Context, q GetSkillProgressQuery) (*GetSkillProgressResult, error) {
	if q.UserID == "" {
		return nil, shared.NewDomainError("skill", "GetSkillProgress", shared.ErrNotAuthenticated, "user id is required")
	}

	skills, err := h.skills.List(ctx, q.UserID)
	if err != nil {
		return nil, shared.WrapError("skill", "GetSkillProgress", shared.ErrReadFailure, "failed to read skills", err)
	}

	if q.SkillID != "" {
		s, ok := skill.FindByID(skills, q.SkillID)
		if !ok {
			return nil, shared.ErrSkillNotFound
		}
		skills = []skill.Skill{s}
	}

	if q.Now.IsZero() {
		q.Now = time.Now()
	}
	return BuildSkillProgress(skills, q.Location, q.Now), nil
}

// BuildSkillProgress считает прогресс по навыкам в порядке "новые первыми".
func BuildSkillProgress(skills []skill.Skill, loc *time.Location, now time.Time) *GetSkillProgressResult {
	if loc == nil {
		loc = time.Local
	}

	sorted := skill.CloneAll(skills)
	skill.SortByCreatedDesc(sorted)

	result := &GetSkillProgressResult{Skills: make([]SkillProgressView, 0, len(sorted))}
	days := make(map[string]struct{})

	for _, s := range sorted {
		total := s.TotalMinutes()
		next, toNext := skill.NextLevel(total)

		view := SkillProgressView{
			SkillID:           s.ID,
			Name:              s.Name,
			Category:          s.Category,
			TotalMinutes:      total,
			FormattedDuration: skill.FormatDuration(total),
			EntryCount:        s.LogLength(),
			ProgressPercent:   s.Progress(),
			HasTarget:         s.TargetPracticeTime != nil && *s.TargetPracticeTime > 0,
			Level:             s.Level(),
			NextLevel:         next,
			MinutesToNext:     toNext,
		}
		if last := s.LastPracticedAt(); !last.IsZero() {
			view.LastPracticedAgo = timeutil.FormatRelative(last, now)
		}

		for _, e := range s.PracticeLog {
			days[timeutil.DateKey(e.Date, loc)] = struct{}{}
		}

		result.Skills = append(result.Skills, view)
		result.TotalMinutes += total
		result.TotalEntries += view.EntryCount
	}

	result.TotalSkills = len(sorted)
	result.FormattedTotal = skill.FormatDuration(result.TotalMinutes)
	result.UniquePracticeDay = len(days)
	return result
}
