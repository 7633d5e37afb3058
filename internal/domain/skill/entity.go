package skill

import (
	"sort"
	"strings"
	"time"

	"github.com/skill-ascent/skill-ascent/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATEGORIES
// ══════════════════════════════════════════════════════════════════════════════

// Categories - фиксированный список категорий навыков.
var Categories = []string{
	"Language & Literature",
	"Science & Mathematics",
	"Programming & Technology",
	"Art & Creativity",
	"Business & Career Development",
	"Exercises",
	"Life Skills",
}

// IsKnownCategory проверяет, входит ли категория в фиксированный список.
// Пустая категория допустима (категория не задана).
func IsKnownCategory(c string) bool {
	if c == "" {
		return true
	}
	for _, known := range Categories {
		if known == c {
			return true
		}
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// PRACTICE ENTRY
// ══════════════════════════════════════════════════════════════════════════════

// PracticeEntry - одна сессия практики.
type PracticeEntry struct {
	// ID - идентификатор записи (uuid).
	ID string

	// Date - момент практики.
	Date time.Time

	// Duration - длительность в минутах, строго положительная.
	Duration int

	// Notes - заметки; пустая строка означает отсутствие заметок.
	Notes string
}

// Validate проверяет инварианты записи.
func (e PracticeEntry) Validate() error {
	if e.Duration <= 0 {
		return shared.ErrInvalidDuration
	}
	if e.Date.IsZero() {
		return shared.NewDomainError("skill", "Validate", shared.ErrEmptyValue, "practice date is required")
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SKILL ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Skill - навык пользователя с журналом практики.
type Skill struct {
	// ID - идентификатор навыка, уникален в рамках пользователя.
	ID string

	// Name - название навыка.
	Name string

	// CreatedAt - время создания.
	CreatedAt time.Time

	// PracticeLog - журнал практики, новые записи первыми.
	PracticeLog []PracticeEntry

	// TargetPracticeTime - цель в часах; nil если цель не задана.
	TargetPracticeTime *float64

	// LearningGoals - цели обучения в свободной форме.
	LearningGoals string

	// Category - категория из списка Categories.
	Category string
}

// NewSkillParams - параметры для создания навыка.
type NewSkillParams struct {
	ID                 string
	Name               string
	CreatedAt          time.Time
	TargetPracticeTime *float64
	LearningGoals      string
	Category           string
}

// NewSkill создаёт навык с пустым журналом практики.
func NewSkill(p NewSkillParams) (*Skill, error) {
	s := &Skill{
		ID:                 p.ID,
		Name:               strings.TrimSpace(p.Name),
		CreatedAt:          p.CreatedAt,
		PracticeLog:        []PracticeEntry{},
		TargetPracticeTime: p.TargetPracticeTime,
		LearningGoals:      p.LearningGoals,
		Category:           p.Category,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate проверяет инварианты навыка.
func (s *Skill) Validate() error {
	if s.ID == "" {
		return shared.NewDomainError("skill", "Validate", shared.ErrInvalidID, "skill id is required")
	}
	if strings.TrimSpace(s.Name) == "" {
		return shared.ErrInvalidSkillName
	}
	if s.TargetPracticeTime != nil && *s.TargetPracticeTime < 0 {
		return shared.ErrInvalidTarget
	}
	if !IsKnownCategory(s.Category) {
		return shared.NewDomainError("skill", "Validate", shared.ErrInvalidInput, "unknown category "+s.Category)
	}
	return nil
}

// TotalMinutes возвращает суммарную длительность практики навыка.
func (s Skill) TotalMinutes() int {
	total := 0
	for _, e := range s.PracticeLog {
		total += e.Duration
	}
	return total
}

// LogLength возвращает количество записей в журнале.
func (s Skill) LogLength() int {
	return len(s.PracticeLog)
}

// LastPracticedAt возвращает время последней практики (zero, если журнал пуст).
func (s Skill) LastPracticedAt() time.Time {
	var last time.Time
	for _, e := range s.PracticeLog {
		if e.Date.After(last) {
			last = e.Date
		}
	}
	return last
}

// FindEntry ищет запись журнала по ID.
func (s Skill) FindEntry(entryID string) (PracticeEntry, bool) {
	for _, e := range s.PracticeLog {
		if e.ID == entryID {
			return e, true
		}
	}
	return PracticeEntry{}, false
}

// AddEntry добавляет запись и восстанавливает порядок журнала.
func (s *Skill) AddEntry(e PracticeEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if _, exists := s.FindEntry(e.ID); exists {
		return shared.NewDomainError("skill", "AddEntry", shared.ErrAlreadyExists, "practice entry already exists")
	}
	s.PracticeLog = append(s.PracticeLog, e)
	SortPracticeLog(s.PracticeLog)
	return nil
}

// ReplaceEntry заменяет запись с тем же ID и восстанавливает порядок журнала.
func (s *Skill) ReplaceEntry(e PracticeEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	for i := range s.PracticeLog {
		if s.PracticeLog[i].ID == e.ID {
			s.PracticeLog[i] = e
			SortPracticeLog(s.PracticeLog)
			return nil
		}
	}
	return shared.ErrPracticeEntryNotFound
}

// RemoveEntry удаляет запись из журнала.
func (s *Skill) RemoveEntry(entryID string) error {
	for i := range s.PracticeLog {
		if s.PracticeLog[i].ID == entryID {
			s.PracticeLog = append(s.PracticeLog[:i], s.PracticeLog[i+1:]...)
			return nil
		}
	}
	return shared.ErrPracticeEntryNotFound
}

// Clone возвращает глубокую копию навыка.
func (s Skill) Clone() Skill {
	c := s
	c.PracticeLog = append([]PracticeEntry(nil), s.PracticeLog...)
	if s.TargetPracticeTime != nil {
		t := *s.TargetPracticeTime
		c.TargetPracticeTime = &t
	}
	return c
}

// SortPracticeLog сортирует журнал от новых записей к старым.
// Записи с одинаковой датой упорядочиваются по ID, чтобы порядок был стабилен.
func SortPracticeLog(log []PracticeEntry) {
	sort.SliceStable(log, func(i, j int) bool {
		if !log[i].Date.Equal(log[j].Date) {
			return log[i].Date.After(log[j].Date)
		}
		return log[i].ID < log[j].ID
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// COLLECTION HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// TotalMinutes возвращает суммарную длительность практики по всем навыкам.
func TotalMinutes(skills []Skill) int {
	total := 0
	for _, s := range skills {
		total += s.TotalMinutes()
	}
	return total
}

// FindByID ищет навык по ID. Отсутствие навыка - не ошибка.
func FindByID(skills []Skill, id string) (Skill, bool) {
	for _, s := range skills {
		if s.ID == id {
			return s, true
		}
	}
	return Skill{}, false
}

// CloneAll возвращает глубокую копию коллекции.
func CloneAll(skills []Skill) []Skill {
	if skills == nil {
		return nil
	}
	out := make([]Skill, len(skills))
	for i, s := range skills {
		out[i] = s.Clone()
	}
	return out
}

// SortByCreatedDesc упорядочивает навыки от новых к старым, как их показывает список.
func SortByCreatedDesc(skills []Skill) {
	sort.SliceStable(skills, func(i, j int) bool {
		if !skills[i].CreatedAt.Equal(skills[j].CreatedAt) {
			return skills[i].CreatedAt.After(skills[j].CreatedAt)
		}
		return skills[i].ID < skills[j].ID
	})
}
