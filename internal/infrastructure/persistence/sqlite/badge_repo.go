package sqlite

import (
	"context"
	"database/sql"

	"github.com/skill-ascent/skill-ascent/internal/domain/badge"
	"github.com/skill-ascent/skill-ascent/internal/domain/shared"
	"github.com/skill-ascent/skill-ascent/pkg/timeutil"
)

// BadgeRepository реализует badge.Store поверх SQLite.
type BadgeRepository struct {
	db *sql.DB
}

var _ badge.Store = (*BadgeRepository)(nil)

// List возвращает бейджи пользователя, упорядоченные по ID.
func (r *BadgeRepository) List(ctx context.Context, userID string) ([]badge.Badge, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, icon_name, criteria_type, criteria_value, skill_id, achieved_at
		FROM badges
		WHERE user_id = ?
		ORDER BY id
	`, userID)
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
			achievedAt sql.NullString
		)
		if err := rows.Scan(&b.ID, &b.Name, &b.Description, &icon, &criteria, &b.CriteriaValue, &b.SkillID, &achievedAt); err != nil {
			return nil, wrapStoreError("badge", "List", shared.ErrReadFailure, err)
		}
		b.IconName = badge.IconName(icon)
		b.CriteriaType = badge.CriteriaType(criteria)

		if achievedAt.Valid {
			at, err := parseTime(achievedAt.String)
			if err != nil {
				return nil, shared.WrapError("badge", "List", shared.ErrReadFailure, "corrupt achieved_at", err)
			}
			b.AchievedAt = &at
		}
		badges = append(badges, b)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError("badge", "List", shared.ErrReadFailure, err)
	}

	return badges, nil
}

// Seed вставляет бейджи одной транзакцией; существующие строки не меняются.
func (r *BadgeRepository) Seed(ctx context.Context, userID string, badges []badge.Badge) error {
	if len(badges) == 0 {
		return nil
	}

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO badges (
				user_id, id, name, description, icon_name, criteria_type, criteria_value, skill_id, achieved_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (user_id, id) DO NOTHING
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, b := range badges {
			var achievedAt sql.NullString
			if b.AchievedAt != nil {
				achievedAt = sql.NullString{String: formatTime(timeutil.Canonical(*b.AchievedAt)), Valid: true}
			}
			if _, err := stmt.ExecContext(ctx,
				userID,
				b.ID,
				b.Name,
				b.Description,
				string(b.IconName),
				string(b.CriteriaType),
				b.CriteriaValue,
				b.SkillID,
				achievedAt,
			); err != nil {
				return err
			}
		}
		return nil
	})
	return wrapStoreError("badge", "Seed", shared.ErrWriteFailure, err)
}

// UpdateAchievedAt проставляет AchievedAt пакетом в одной транзакции.
// Уже заполненные значения не перезаписываются; строка считается записанной,
// только если UPDATE её изменил.
func (r *BadgeRepository) UpdateAchievedAt(ctx context.Context, userID string, updates []badge.AchievedAtUpdate) ([]badge.AchievedAtUpdate, error) {
	if len(updates) == 0 {
		return nil, nil
	}

	var applied []badge.AchievedAtUpdate
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		applied = applied[:0]

		stmt, err := tx.PrepareContext(ctx, `
			UPDATE badges SET achieved_at = ?
			WHERE user_id = ? AND id = ? AND achieved_at IS NULL
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, u := range updates {
			at := timeutil.Canonical(u.AchievedAt)
			res, err := stmt.ExecContext(ctx, formatTime(at), userID, u.BadgeID)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 1 {
				applied = append(applied, badge.AchievedAtUpdate{BadgeID: u.BadgeID, AchievedAt: at})
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapStoreError("badge", "UpdateAchievedAt", shared.ErrWriteFailure, err)
	}
	return applied, nil
}
