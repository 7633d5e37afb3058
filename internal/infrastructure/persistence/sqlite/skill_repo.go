package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/skill-ascent/skill-ascent/internal/domain/shared"
	"github.com/skill-ascent/skill-ascent/internal/domain/skill"
	"github.com/skill-ascent/skill-ascent/pkg/timeutil"
)

// SkillRepository реализует skill.Repository поверх SQLite.
type SkillRepository struct {
	db *sql.DB
}

var _ skill.Repository = (*SkillRepository)(nil)

// queryer - общее подмножество *sql.DB и *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// List возвращает навыки пользователя (новые первыми) вместе с журналами.
func (r *SkillRepository) List(ctx context.Context, userID string) ([]skill.Skill, error) {
	var skills []skill.Skill
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		skills, err = querySkills(ctx, tx, `WHERE user_id = ?`, userID)
		if err != nil {
			return err
		}
		return loadEntries(ctx, tx, skills, `WHERE user_id = ?`, userID)
	})
	if err != nil {
		return nil, wrapStoreError("skill", "List", shared.ErrReadFailure, err)
	}

	skill.SortByCreatedDesc(skills)
	return skills, nil
}

// Get возвращает навык по ID.
func (r *SkillRepository) Get(ctx context.Context, userID, skillID string) (*skill.Skill, error) {
	var found *skill.Skill
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		skills, err := querySkills(ctx, tx, `WHERE user_id = ? AND id = ?`, userID, skillID)
		if err != nil {
			return err
		}
		if len(skills) == 0 {
			return shared.ErrSkillNotFound
		}
		if err := loadEntries(ctx, tx, skills, `WHERE user_id = ? AND skill_id = ?`, userID, skillID); err != nil {
			return err
		}
		found = &skills[0]
		return nil
	})
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, err
		}
		return nil, wrapStoreError("skill", "Get", shared.ErrReadFailure, err)
	}

	return found, nil
}

// Create сохраняет навык и его журнал.
func (r *SkillRepository) Create(ctx context.Context, userID string, s *skill.Skill) error {
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var target sql.NullFloat64
		if s.TargetPracticeTime != nil {
			target = sql.NullFloat64{Float64: *s.TargetPracticeTime, Valid: true}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO skills (user_id, id, name, created_at, target_practice_time, learning_goals, category)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, userID, s.ID, s.Name, formatTime(timeutil.Canonical(s.CreatedAt)), target, s.LearningGoals, s.Category)
		if err != nil {
			return err
		}

		for _, e := range s.PracticeLog {
			if err := insertEntry(ctx, tx, userID, s.ID, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return shared.ErrSkillAlreadyExists
		}
		return wrapStoreError("skill", "Create", shared.ErrWriteFailure, err)
	}
	return nil
}

// Update сохраняет атрибуты навыка.
func (r *SkillRepository) Update(ctx context.Context, userID string, s *skill.Skill) error {
	var target sql.NullFloat64
	if s.TargetPracticeTime != nil {
		target = sql.NullFloat64{Float64: *s.TargetPracticeTime, Valid: true}
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE skills SET name = ?, target_practice_time = ?, learning_goals = ?, category = ?
		WHERE user_id = ? AND id = ?
	`, s.Name, target, s.LearningGoals, s.Category, userID, s.ID)
	if err != nil {
		return wrapStoreError("skill", "Update", shared.ErrWriteFailure, err)
	}
	return requireAffected(res, shared.ErrSkillNotFound, "Update")
}

// Delete удаляет навык; журнал удаляется каскадом.
func (r *SkillRepository) Delete(ctx context.Context, userID, skillID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM skills WHERE user_id = ? AND id = ?`, userID, skillID)
	if err != nil {
		return wrapStoreError("skill", "Delete", shared.ErrWriteFailure, err)
	}
	return requireAffected(res, shared.ErrSkillNotFound, "Delete")
}

// AddPracticeEntry добавляет запись в журнал навыка.
func (r *SkillRepository) AddPracticeEntry(ctx context.Context, userID, skillID string, e skill.PracticeEntry) error {
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM skills WHERE user_id = ? AND id = ?`, userID, skillID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return shared.ErrSkillNotFound
		}
		if err != nil {
			return err
		}
		return insertEntry(ctx, tx, userID, skillID, e)
	})
	if err != nil {
		switch {
		case shared.IsNotFound(err):
			return err
		case isUniqueViolation(err):
			return shared.NewDomainError("skill", "AddPracticeEntry", shared.ErrAlreadyExists, "practice entry already exists")
		}
		return wrapStoreError("skill", "AddPracticeEntry", shared.ErrWriteFailure, err)
	}
	return nil
}

// UpdatePracticeEntry заменяет запись журнала.
func (r *SkillRepository) UpdatePracticeEntry(ctx context.Context, userID, skillID string, e skill.PracticeEntry) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE practice_entries SET practiced_at = ?, duration_minutes = ?, notes = ?
		WHERE user_id = ? AND skill_id = ? AND id = ?
	`, formatTime(timeutil.Canonical(e.Date)), e.Duration, e.Notes, userID, skillID, e.ID)
	if err != nil {
		return wrapStoreError("skill", "UpdatePracticeEntry", shared.ErrWriteFailure, err)
	}
	return requireAffected(res, shared.ErrPracticeEntryNotFound, "UpdatePracticeEntry")
}

// DeletePracticeEntry удаляет запись журнала.
func (r *SkillRepository) DeletePracticeEntry(ctx context.Context, userID, skillID, entryID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM practice_entries WHERE user_id = ? AND skill_id = ? AND id = ?`,
		userID, skillID, entryID,
	)
	if err != nil {
		return wrapStoreError("skill", "DeletePracticeEntry", shared.ErrWriteFailure, err)
	}
	return requireAffected(res, shared.ErrPracticeEntryNotFound, "DeletePracticeEntry")
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func requireAffected(res sql.Result, notFound error, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrapStoreError("skill", op, shared.ErrWriteFailure, err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func insertEntry(ctx context.Context, q queryer, userID, skillID string, e skill.PracticeEntry) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO practice_entries (user_id, skill_id, id, practiced_at, duration_minutes, notes)
		VALUES (?, ?, ?, ?, ?, ?)
	`, userID, skillID, e.ID, formatTime(timeutil.Canonical(e.Date)), e.Duration, e.Notes)
	return err
}

func querySkills(ctx context.Context, q queryer, where string, args ...any) ([]skill.Skill, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, name, created_at, target_practice_time, learning_goals, category FROM skills `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	skills := make([]skill.Skill, 0)
	for rows.Next() {
		var (
			s         skill.Skill
			createdAt string
			target    sql.NullFloat64
		)
		if err := rows.Scan(&s.ID, &s.Name, &createdAt, &target, &s.LearningGoals, &s.Category); err != nil {
			return nil, err
		}
		if s.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if target.Valid {
			v := target.Float64
			s.TargetPracticeTime = &v
		}
		s.PracticeLog = []skill.PracticeEntry{}
		skills = append(skills, s)
	}

	return skills, rows.Err()
}

// loadEntries читает записи журнала и раскладывает их по навыкам.
func loadEntries(ctx context.Context, q queryer, skills []skill.Skill, where string, args ...any) error {
	rows, err := q.QueryContext(ctx,
		`SELECT skill_id, id, practiced_at, duration_minutes, notes FROM practice_entries `+where, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	pos := make(map[string]int, len(skills))
	for i, s := range skills {
		pos[s.ID] = i
	}

	for rows.Next() {
		var (
			skillID    string
			e          skill.PracticeEntry
			practiceAt string
		)
		if err := rows.Scan(&skillID, &e.ID, &practiceAt, &e.Duration, &e.Notes); err != nil {
			return err
		}
		if e.Date, err = parseTime(practiceAt); err != nil {
			return err
		}
		if i, ok := pos[skillID]; ok {
			skills[i].PracticeLog = append(skills[i].PracticeLog, e)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range skills {
		skill.SortPracticeLog(skills[i].PracticeLog)
	}
	return nil
}
