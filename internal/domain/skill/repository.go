package skill

import (
	"context"
)

// Source - источник навыков пользователя для сверки достижений.
// Контроллер сверки зависит только от этого интерфейса.
type Source interface {
	// List возвращает все навыки пользователя вместе с журналами практики.
	List(ctx context.Context, userID string) ([]Skill, error)
}

// Repository - полное хранилище навыков.
type Repository interface {
	Source

	// Get возвращает навык по ID или shared.ErrSkillNotFound.
	Get(ctx context.Context, userID, skillID string) (*Skill, error)

	// Create сохраняет новый навык.
	Create(ctx context.Context, userID string, s *Skill) error

	// Update сохраняет изменённые атрибуты навыка (журнал не меняется).
	Update(ctx context.Context, userID string, s *Skill) error

	// Delete удаляет навык вместе с журналом.
	Delete(ctx context.Context, userID, skillID string) error

	// AddPracticeEntry добавляет запись в журнал навыка.
	AddPracticeEntry(ctx context.Context, userID, skillID string, e PracticeEntry) error

	// UpdatePracticeEntry заменяет запись журнала.
	UpdatePracticeEntry(ctx context.Context, userID, skillID string, e PracticeEntry) error

	// DeletePracticeEntry удаляет запись журнала.
	DeletePracticeEntry(ctx context.Context, userID, skillID, entryID string) error
}

// Notifier сообщает о том, что навыки пользователя изменились.
// Реализации: лента изменений в Redis и внутрипроцессная шина событий.
type Notifier interface {
	SkillsChanged(ctx context.Context, userID string) error
}

// NotifierFunc позволяет использовать функцию как Notifier.
type NotifierFunc func(ctx context.Context, userID string) error

// SkillsChanged реализует Notifier.
func (f NotifierFunc) SkillsChanged(ctx context.Context, userID string) error {
	return f(ctx, userID)
}

// MultiNotifier рассылает уведомление нескольким получателям и возвращает первую ошибку.
type MultiNotifier []Notifier

// SkillsChanged реализует Notifier.
func (m MultiNotifier) SkillsChanged(ctx context.Context, userID string) error {
	var first error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.SkillsChanged(ctx, userID); err != nil && first == nil {
			first = err
		}
	}
	return first
}
