package badge

import (
	"context"
)

// Store - хранилище бейджей пользователя.
type Store interface {
	// List возвращает все бейджи пользователя, упорядоченные по ID.
	// Пустой результат означает, что пользователь ещё не засеян.
	List(ctx context.Context, userID string) ([]Badge, error)

	// Seed создаёт переданные бейджи одной атомарной операцией.
	// Уже существующие бейджи не изменяются (идемпотентно).
	Seed(ctx context.Context, userID string, badges []Badge) error

	// UpdateAchievedAt атомарно проставляет AchievedAt для всех обновлений.
	// Хранилище пишет значение только туда, где AchievedAt ещё пуст, и
	// возвращает обновления, которые действительно записаны. Строки, уже
	// заполненные другим процессом, в результат не попадают.
	UpdateAchievedAt(ctx context.Context, userID string, updates []AchievedAtUpdate) ([]AchievedAtUpdate, error)
}
