package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/skill-ascent/skill-ascent/internal/domain/shared"
	"github.com/skill-ascent/skill-ascent/internal/domain/skill"
	"github.com/skill-ascent/skill-ascent/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SKILL REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// SkillRepository реализует skill.Repository для PostgreSQL.
type SkillRepository struct {
	conn *Connection
}

// NewSkillRepository создаёт репозиторий навыков.
func NewSkillRepository(conn *Connection) *SkillRepository {
	return &SkillRepository{conn: conn}
}

var _ skill.Repository = (*SkillRepository)(nil)

const selectSkillColumns = `id, name, created_at, target_practice_time, learning_goals, category`

const selectEntryColumns = `skill_id, id, practiced_at, duration_minutes, notes`

// ─────────────────────────────────────────────────────────────────────────────
// Read Operations
// ─────────────────────────────────────────────────────────────────────────────

// List возвращает навыки пользователя вместе с журналами.
// Читается в одной read-only транзакции, чтобы навыки и журналы были согласованы.
func (r *SkillRepository) List(ctx context.Context, userID string) ([]skill.Skill, error) {
	ctx, cancel := r.conn.withQueryTimeout(ctx)
	defer cancel()

	var skills []skill.Skill
	err := r.conn.WithTx(ctx, ReadOnlyTxOptions(), func(tx pgx.Tx) error {
		var err error
		skills, err = r.querySkills(ctx, tx,
			`SELECT `+selectSkillColumns+` FROM skills WHERE user_id = $1 ORDER BY created_at DESC, id`, userID)
		if err != nil {
			return err
		}

		entries, err := r.queryEntries(ctx, tx,
			`SELECT `+selectEntryColumns+` FROM practice_entries WHERE user_id = $1`, userID)
		if err != nil {
			return err
		}

		attachEntries(skills, entries)
		return nil
	})
	if err != nil {
		return nil, wrapStoreError("skill", "List", shared.ErrReadFailure, err)
	}

	return skills, nil
}

// Get возвращает навык по ID.
func (r *SkillRepository) Get(ctx context.Context, userID, skillID string) (*skill.Skill, error) {
	ctx, cancel := r.conn.withQueryTimeout(ctx)
	defer cancel()

	var found *skill.Skill
	err := r.conn.WithTx(ctx, ReadOnlyTxOptions(), func(tx pgx.Tx) error {
		skills, err := r.querySkills(ctx, tx,
			`SELECT `+selectSkillColumns+` FROM skills WHERE user_id = $1 AND id = $2`, userID, skillID)
		if err != nil {
			return err
		}
		if len(skills) == 0 {
			return shared.ErrSkillNotFound
		}

		entries, err := r.queryEntries(ctx, tx,
			`SELECT `+selectEntryColumns+` FROM practice_entries WHERE user_id = $1 AND skill_id = $2`, userID, skillID)
		if err != nil {
			return err
		}

		attachEntries(skills, entries)
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

// ─────────────────────────────────────────────────────────────────────────────
// Skill Mutations
// ─────────────────────────────────────────────────────────────────────────────

// Create сохраняет навык и его журнал (если он не пуст).
func (r *SkillRepository) Create(ctx context.Context, userID string, s *skill.Skill) error {
	ctx, cancel := r.conn.withQueryTimeout(ctx)
	defer cancel()

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO skills (user_id, id, name, created_at, target_practice_time, learning_goals, category)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`,
			userID,
			s.ID,
			s.Name,
			timeutil.Canonical(s.CreatedAt),
			s.TargetPracticeTime,
			s.LearningGoals,
			s.Category,
		)
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
		if IsUniqueViolation(err) {
			return shared.ErrSkillAlreadyExists
		}
		return wrapStoreError("skill", "Create", shared.ErrWriteFailure, err)
	}

	return nil
}

// Update сохраняет атрибуты навыка. Журнал не меняется.
func (r *SkillRepository) Update(ctx context.Context, userID string, s *skill.Skill) error {
	ctx, cancel := r.conn.withQueryTimeout(ctx)
	defer cancel()

	result, err := r.conn.Exec(ctx, `
		UPDATE skills SET
			name = $3,
			target_practice_time = $4,
			learning_goals = $5,
			category = $6
		WHERE user_id = $1 AND id = $2
	`,
		userID,
		s.ID,
		s.Name,
		s.TargetPracticeTime,
		s.LearningGoals,
		s.Category,
	)
	if err != nil {
		return wrapStoreError("skill", "Update", shared.ErrWriteFailure, err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrSkillNotFound
	}
	return nil
}

// Delete удаляет навык; журнал удаляется каскадом.
func (r *SkillRepository) Delete(ctx context.Context, userID, skillID string) error {
	ctx, cancel := r.conn.withQueryTimeout(ctx)
	defer cancel()

	result, err := r.conn.Exec(ctx, `DELETE FROM skills WHERE user_id = $1 AND id = $2`, userID, skillID)
	if err != nil {
		return wrapStoreError("skill", "Delete", shared.ErrWriteFailure, err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrSkillNotFound
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Practice Log Mutations
// ─────────────────────────────────────────────────────────────────────────────

// AddPracticeEntry добавляет запись в журнал навыка.
func (r *SkillRepository) AddPracticeEntry(ctx context.Context, userID, skillID string, e skill.PracticeEntry) error {
	ctx, cancel := r.conn.withQueryTimeout(ctx)
	defer cancel()

	err := insertEntry(ctx, r.conn, userID, skillID, e)
	if err != nil {
		switch {
		case IsForeignKeyViolation(err):
			return shared.ErrSkillNotFound
		case IsUniqueViolation(err):
			return shared.NewDomainError("skill", "AddPracticeEntry", shared.ErrAlreadyExists, "practice entry already exists")
		}
		return wrapStoreError("skill", "AddPracticeEntry", shared.ErrWriteFailure, err)
	}
	return nil
}

// UpdatePracticeEntry заменяет запись журнала.
func (r *SkillRepository) UpdatePracticeEntry(ctx context.Context, userID, skillID string, e skill.PracticeEntry) error {
	ctx, cancel := r.conn.withQueryTimeout(ctx)
	defer cancel()

	result, err := r.conn.Exec(ctx, `
		UPDATE practice_entries SET
			practiced_at = $4,
			duration_minutes = $5,
			notes = $6
		WHERE user_id = $1 AND skill_id = $2 AND id = $3
	`,
		userID,
		skillID,
		e.ID,
		timeutil.Canonical(e.Date),
		e.Duration,
		e.Notes,
	)
	if err != nil {
		return wrapStoreError("skill", "UpdatePracticeEntry", shared.ErrWriteFailure, err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrPracticeEntryNotFound
	}
	return nil
}

// DeletePracticeEntry удаляет запись журнала.
func (r *SkillRepository) DeletePracticeEntry(ctx context.Context, userID, skillID, entryID string) error {
	ctx, cancel := r.conn.withQueryTimeout(ctx)
	defer cancel()

	result, err := r.conn.Exec(ctx,
		`DELETE FROM practice_entries WHERE user_id = $1 AND skill_id = $2 AND id = $3`,
		userID, skillID, entryID,
	)
	if err != nil {
		return wrapStoreError("skill", "DeletePracticeEntry", shared.ErrWriteFailure, err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrPracticeEntryNotFound
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helper Methods
// ─────────────────────────────────────────────────────────────────────────────

type skillEntry struct {
	skillID string
	entry   skill.PracticeEntry
}

func insertEntry(ctx context.Context, q Querier, userID, skillID string, e skill.PracticeEntry) error {
	_, err := q.Exec(ctx, `
		INSERT INTO practice_entries (user_id, skill_id, id, practiced_at, duration_minutes, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		userID,
		skillID,
		e.ID,
		timeutil.Canonical(e.Date),
		e.Duration,
		e.Notes,
	)
	return err
}

func (r *SkillRepository) querySkills(ctx context.Context, q Querier, query string, args ...interface{}) ([]skill.Skill, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	skills := make([]skill.Skill, 0)
	for rows.Next() {
		var (
			s         skill.Skill
			createdAt time.Time
			target    *float64
		)
		if err := rows.Scan(&s.ID, &s.Name, &createdAt, &target, &s.LearningGoals, &s.Category); err != nil {
			return nil, err
		}
		s.CreatedAt = timeutil.Canonical(createdAt)
		s.TargetPracticeTime = target
		s.PracticeLog = []skill.PracticeEntry{}
		skills = append(skills, s)
	}

	return skills, rows.Err()
}

func (r *SkillRepository) queryEntries(ctx context.Context, q Querier, query string, args ...interface{}) ([]skillEntry, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]skillEntry, 0)
	for rows.Next() {
		var (
			se         skillEntry
			practiceAt time.Time
		)
		if err := rows.Scan(&se.skillID, &se.entry.ID, &practiceAt, &se.entry.Duration, &se.entry.Notes); err != nil {
			return nil, err
		}
		se.entry.Date = timeutil.Canonical(practiceAt)
		entries = append(entries, se)
	}

	return entries, rows.Err()
}

// attachEntries раскладывает записи по навыкам и сортирует журналы.
func attachEntries(skills []skill.Skill, entries []skillEntry) {
	pos := make(map[string]int, len(skills))
	for i, s := range skills {
		pos[s.ID] = i
	}

	for _, se := range entries {
		i, ok := pos[se.skillID]
		if !ok {
			continue
		}
		skills[i].PracticeLog = append(skills[i].PracticeLog, se.entry)
	}

	for i := range skills {
		skill.SortPracticeLog(skills[i].PracticeLog)
	}
}

