package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/Seezoo1225/naming-story/internal/domain"
	"github.com/Seezoo1225/naming-story/internal/repositories"
)

const feedbackSchema = `
CREATE TABLE IF NOT EXISTS feedback (
	id         TEXT PRIMARY KEY,
	message    TEXT NOT NULL,
	ua         TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
`

// FeedbackRepository stores feedback in a local SQLite file for deployments without Firestore.
type FeedbackRepository struct {
	db *sqlx.DB
}

var _ repositories.FeedbackRepository = (*FeedbackRepository)(nil)

type feedbackRow struct {
	ID        string `db:"id"`
	Message   string `db:"message"`
	UserAgent string `db:"ua"`
	CreatedAt string `db:"created_at"`
}

// Open creates (or reuses) the database at path and ensures the schema exists.
func Open(path string) (*FeedbackRepository, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("feedback sqlite: path is required")
	}
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(feedbackSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &FeedbackRepository{db: db}, nil
}

// Close releases the database handle.
func (r *FeedbackRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Ping verifies the database is reachable.
func (r *FeedbackRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Insert writes a new feedback row; a duplicate ID yields a conflict error.
func (r *FeedbackRepository) Insert(ctx context.Context, feedback domain.Feedback) error {
	row := feedbackRow{
		ID:        strings.TrimSpace(feedback.ID),
		Message:   feedback.Message,
		UserAgent: feedback.UserAgent,
		CreatedAt: feedback.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if row.ID == "" {
		return errors.New("feedback sqlite: id is required")
	}
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO feedback (id, message, ua, created_at) VALUES (:id, :message, :ua, :created_at)`, row)
	if err != nil {
		return wrapError("feedback.insert", err)
	}
	return nil
}

// FindByID loads a feedback row.
func (r *FeedbackRepository) FindByID(ctx context.Context, id string) (domain.Feedback, error) {
	var row feedbackRow
	err := r.db.GetContext(ctx, &row, `SELECT id, message, ua, created_at FROM feedback WHERE id = ?`, strings.TrimSpace(id))
	if err != nil {
		return domain.Feedback{}, wrapError("feedback.find", err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, row.CreatedAt)
	if err != nil {
		return domain.Feedback{}, fmt.Errorf("feedback sqlite: parse created_at: %w", err)
	}
	return domain.Feedback{
		ID:        row.ID,
		Message:   row.Message,
		UserAgent: row.UserAgent,
		CreatedAt: createdAt,
	}, nil
}

// Error classifies SQLite failures for services.
type Error struct {
	Op          string
	Err         error
	notFound    bool
	conflict    bool
	unavailable bool
}

var _ repositories.RepositoryError = (*Error)(nil)

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// IsNotFound reports whether no row matched.
func (e *Error) IsNotFound() bool { return e.notFound }

// IsConflict reports a primary key or unique constraint violation.
func (e *Error) IsConflict() bool { return e.conflict }

// IsUnavailable reports a busy or locked database.
func (e *Error) IsUnavailable() bool { return e.unavailable }

func wrapError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	wrapped := &Error{Op: op, Err: err}
	if errors.Is(err, sql.ErrNoRows) {
		wrapped.notFound = true
		return wrapped
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT, sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			wrapped.conflict = true
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			wrapped.unavailable = true
		}
	}
	return wrapped
}
