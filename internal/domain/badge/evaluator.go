package badge

import (
	"time"

	"github.com/skill-ascent/skill-ascent/internal/domain/skill"
	"github.com/skill-ascent/skill-ascent/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATOR
// ══════════════════════════════════════════════════════════════════════════════

// Evaluator вычисляет, какие бейджи получены при данном наборе навыков.
// Evaluator не имеет изменяемого состояния и безопасен для параллельного вызова.
type Evaluator struct {
	// location - календарь отображения для подсчёта различных дней практики.
	location *time.Location

	// now - часы; вызываются ровно один раз за Evaluate.
	now func() time.Time
}

// EvaluatorOption настраивает Evaluator.
type EvaluatorOption func(*Evaluator)

// WithLocation задаёт календарь отображения (по умолчанию time.Local).
func WithLocation(loc *time.Location) EvaluatorOption {
	return func(e *Evaluator) {
		if loc != nil {
			e.location = loc
		}
	}
}

// WithClock задаёт источник текущего времени.
func WithClock(now func() time.Time) EvaluatorOption {
	return func(e *Evaluator) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEvaluator создаёт Evaluator.
func NewEvaluator(opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		location: time.Local,
		now:      func() time.Time { return timeutil.Canonical(time.Now()) },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Location возвращает календарь отображения.
func (e *Evaluator) Location() *time.Location {
	return e.location
}

// aggregates - значения, вычисляемые один раз за вызов.
type aggregates struct {
	totalMinutes   int
	uniqueDayCount int
}

func (e *Evaluator) aggregate(skills []skill.Skill) aggregates {
	days := make(map[string]struct{})
	total := 0
	for _, s := range skills {
		for _, entry := range s.PracticeLog {
			total += entry.Duration
			days[timeutil.DateKey(entry.Date, e.location)] = struct{}{}
		}
	}
	return aggregates{totalMinutes: total, uniqueDayCount: len(days)}
}

// Evaluate возвращает новый набор бейджей: по одному на каждый входной бейдж,
// в том же порядке. Уже полученные бейджи копируются без изменений.
// Бейджи, условие которых выполнено, получают один общий момент времени.
// Входные данные не изменяются.
func (e *Evaluator) Evaluate(skills []skill.Skill, badges []Badge) []Badge {
	out := make([]Badge, len(badges))
	agg := e.aggregate(skills)

	var (
		now     time.Time
		haveNow bool
	)

	for i, b := range badges {
		if b.IsAchieved() {
			out[i] = b.Clone()
			continue
		}

		if !e.satisfied(b, skills, agg) {
			out[i] = b.Clone()
			continue
		}

		if !haveNow {
			now = e.now()
			haveNow = true
		}
		out[i] = b.WithAchievedAt(now)
	}

	return out
}

// satisfied проверяет правило бейджа. Неизвестные типы правил не выполняются.
func (e *Evaluator) satisfied(b Badge, skills []skill.Skill, agg aggregates) bool {
	switch b.CriteriaType {
	case CriteriaSkillCount:
		return len(skills) >= b.CriteriaValue

	case CriteriaTotalPracticeTime:
		return agg.totalMinutes >= b.CriteriaValue

	case CriteriaSkillSpecificPracticeTime:
		s, ok := skill.FindByID(skills, b.SkillID)
		if !ok {
			return false
		}
		return s.TotalMinutes() >= b.CriteriaValue

	case CriteriaLogFrequency:
		if b.SkillID != "" {
			s, ok := skill.FindByID(skills, b.SkillID)
			if !ok {
				return false
			}
			return s.LogLength() >= b.CriteriaValue
		}
		return agg.uniqueDayCount >= b.CriteriaValue

	default:
		return false
	}
}

// Evaluate оценивает бейджи с календарём time.Local и системными часами.
func Evaluate(skills []skill.Skill, badges []Badge) []Badge {
	return NewEvaluator().Evaluate(skills, badges)
}
