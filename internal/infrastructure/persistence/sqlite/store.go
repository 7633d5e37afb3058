// Package sqlite implements the embedded single-user store for the CLI.
// It satisfies the same badge.Store and skill.Repository interfaces as the
// PostgreSQL adapter; timestamps are kept as RFC3339Nano text.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	// Pure Go SQLite driver (no CGO).
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/skill-ascent/skill-ascent/internal/domain/shared"
)

// Options - параметры открытия базы.
type Options struct {
	// BusyTimeout - сколько ждать снятия блокировки другим процессом.
	BusyTimeout time.Duration
}

// Store владеет соединением с файлом базы.
type Store struct {
	db *sql.DB
}

// Open открывает базу по пути path, применяет pragmas и миграции.
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	if path != ":memory:" {
		if err := ensureDir(path); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Один писатель: pragmas действуют на соединение, а CLI однопользовательский.
	db.SetMaxOpenConns(1)

	if err := applyPragmas(ctx, db, opts); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	s := &Store{db: db}
	if _, err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// DB возвращает *sql.DB для прямых запросов.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close закрывает соединение.
func (s *Store) Close() error {
	return s.db.Close()
}

// Badges возвращает badge.Store поверх этой базы.
func (s *Store) Badges() *BadgeRepository {
	return &BadgeRepository{db: s.db}
}

// Skills возвращает skill.Repository поверх этой базы.
func (s *Store) Skills() *SkillRepository {
	return &SkillRepository{db: s.db}
}

func applyPragmas(ctx context.Context, db *sql.DB, opts Options) error {
	busy := opts.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()),
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// DefaultDBPath определяет путь к базе в порядке приоритета:
// 1. SKILLASCENT_DB
// 2. $XDG_DATA_HOME/skillascent/skillascent.db
// 3. ~/.local/share/skillascent/skillascent.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("SKILLASCENT_DB"); p != "" {
		return p, nil
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	return filepath.Join(dataHome, "skillascent", "skillascent.db"), nil
}

func ensureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATIONS
// Версия схемы хранится в PRAGMA user_version.
// ══════════════════════════════════════════════════════════════════════════════

var migrations = []string{
	// 1: навыки и журнал практики
	`
	CREATE TABLE IF NOT EXISTS skills (
		user_id TEXT NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL,
		target_practice_time REAL,
		learning_goals TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (user_id, id),
		CHECK (target_practice_time IS NULL OR target_practice_time >= 0)
	);

	CREATE TABLE IF NOT EXISTS practice_entries (
		user_id TEXT NOT NULL,
		skill_id TEXT NOT NULL,
		id TEXT NOT NULL,
		practiced_at TEXT NOT NULL,
		duration_minutes INTEGER NOT NULL CHECK (duration_minutes > 0),
		notes TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (user_id, skill_id, id),
		FOREIGN KEY (user_id, skill_id) REFERENCES skills(user_id, id) ON DELETE CASCADE
	);
	`,
	// 2: бейджи
	`
	CREATE TABLE IF NOT EXISTS badges (
		user_id TEXT NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		icon_name TEXT NOT NULL,
		criteria_type TEXT NOT NULL,
		criteria_value INTEGER NOT NULL,
		skill_id TEXT NOT NULL DEFAULT '',
		achieved_at TEXT,
		PRIMARY KEY (user_id, id)
	);
	`,
}

// Migrate применяет недостающие миграции и возвращает их число.
func (s *Store) Migrate(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}

	applied := 0
	for v := version; v < len(migrations); v++ {
		err := withTx(ctx, s.db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, migrations[v]); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", v+1))
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("migration %d: %w", v+1, err)
		}
		applied++
	}

	return applied, nil
}

// SchemaVersion возвращает текущую версию схемы.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version)
	return version, err
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// withTx выполняет fn в транзакции: commit при nil, иначе rollback.
func withTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("tx error: %w, rollback error: %v", err, rbErr)
		}
		return err
	}

	return tx.Commit()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return t.UTC(), nil
}

func resultCode(err error) (int, bool) {
	var sqErr *sqlite.Error
	if errors.As(err, &sqErr) {
		return sqErr.Code(), true
	}
	return 0, false
}

// isBusy - база занята другим процессом или недоступна.
func isBusy(err error) bool {
	code, ok := resultCode(err)
	if !ok {
		return false
	}
	switch code & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_IOERR:
		return true
	}
	return false
}

// isUniqueViolation - нарушение первичного ключа или уникальности.
func isUniqueViolation(err error) bool {
	code, ok := resultCode(err)
	if !ok || code&0xff != sqlite3.SQLITE_CONSTRAINT {
		return false
	}
	return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY ||
		code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// wrapStoreError приводит ошибку драйвера к одному из видов ошибок хранилища.
func wrapStoreError(domain, op string, kind error, err error) error {
	if err == nil {
		return nil
	}
	if isBusy(err) || errors.Is(err, sql.ErrConnDone) {
		return shared.WrapError(domain, op, shared.ErrStoreUnavailable, "sqlite is unavailable", err)
	}
	return shared.WrapError(domain, op, kind, "sqlite query failed", err)
}
