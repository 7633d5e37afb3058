package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/skill-ascent/skill-ascent/internal/domain/badge"
	"github.com/skill-ascent/skill-ascent/internal/domain/shared"
	"github.com/skill-ascent/skill-ascent/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// BADGE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// BadgeRepository реализует badge.Store для PostgreSQL.
type BadgeRepository struct {
	conn *Connection
}

// NewBadgeRepository создаёт репозиторий бейджей.
func NewBadgeRepository(conn *Connection) *BadgeRepository {
	return &BadgeRepository{conn: conn}
}

var _ badge.Store = (*BadgeRepository)(nil)

// List возвращает бейджи пользователя, упорядоченные по ID.
func (r *BadgeRepository) List(ctx context.Context, userID string) ([]badge.Badge, error) {
	ctx, cancel := r.conn.withQueryTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, name, description, icon_name, criteria_type, criteria_value, skill_id, achieved_at
		FROM badges
		WHERE user_id = $1
		ORDER BY id
	`

	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, wrapStoreError("badge", "List", shared.ErrReadFailure, err)
	}
	defer rows.Close()

	badges := make([]badge.Badge, 0)
	for rows.Next() {
		var (
			b          badge.Badge
			icon       string
			criteria   string
			achievedAt *time.Time
		)
		if err := rows.Scan(&b.ID, &b.Name, &b.Description, &icon, &criteria, &b.CriteriaValue, &b.SkillID, &achievedAt); err != nil {
			return nil, wrapStoreError("badge", "List", shared.ErrReadFailure, err)
		}
		b.IconName = badge.IconName(icon)
		b.CriteriaType = badge.CriteriaType(criteria)
		b.AchievedAt = timeutil.CanonicalPtr(achievedAt)
		badges = append(badges, b)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError("badge", "List", shared.ErrReadFailure, err)
	}

	return badges, nil
}

// Seed создаёт бейджи одной транзакцией. Существующие строки не трогаются.
func (r *BadgeRepository) Seed(ctx context.Context, userID string, badges []badge.Badge) error {
	if len(badges) == 0 {
		return nil
	}

	ctx, cancel := r.conn.withQueryTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO badges (
			user_id, id, name, description, icon_name, criteria_type, criteria_value, skill_id, achieved_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, id) DO NOTHING
	`

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, b := range badges {
			batch.Queue(query,
				userID,
				b.ID,
				b.Name,
				b.Description,
				string(b.IconName),
				string(b.CriteriaType),
				b.CriteriaValue,
				b.SkillID,
				timeutil.CanonicalPtr(b.AchievedAt),
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	return wrapStoreError("badge", "Seed", shared.ErrWriteFailure, err)
}

// UpdateAchievedAt проставляет AchievedAt пакетом в одной транзакции.
// Уже заполненные значения не перезаписываются; RETURNING сообщает, какие
// строки изменил именно этот вызов.
func (r *BadgeRepository) UpdateAchievedAt(ctx context.Context, userID string, updates []badge.AchievedAtUpdate) ([]badge.AchievedAtUpdate, error) {
	if len(updates) == 0 {
		return nil, nil
	}

	ctx, cancel := r.conn.withQueryTimeout(ctx)
	defer cancel()

	query := `
		UPDATE badges
		SET achieved_at = $3
		WHERE user_id = $1 AND id = $2 AND achieved_at IS NULL
		RETURNING achieved_at
	`

	var applied []badge.AchievedAtUpdate
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		applied = applied[:0]

		batch := &pgx.Batch{}
		for _, u := range updates {
			batch.Queue(query, userID, u.BadgeID, timeutil.Canonical(u.AchievedAt))
		}

		results := tx.SendBatch(ctx, batch)
		for _, u := range updates {
			var at time.Time
			err := results.QueryRow().Scan(&at)
			switch {
			case IsNoRows(err):
				continue
			case err != nil:
				_ = results.Close()
				return err
			}
			applied = append(applied, badge.AchievedAtUpdate{BadgeID: u.BadgeID, AchievedAt: timeutil.Canonical(at)})
		}
		return results.Close()
	})
	if err != nil {
		return nil, wrapStoreError("badge", "UpdateAchievedAt", shared.ErrWriteFailure, err)
	}
	return applied, nil
}
