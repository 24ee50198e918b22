package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/me/rangerd/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// CreateSession writes a retired session. Sessions are insert-only.
func (s *SQLiteStore) CreateSession(ctx context.Context, sess *model.Session) error {
	s.logger.Debug("sql", "op", "insert", "table", "sessions", "id", sess.ID)

	attributionJSON, err := json.Marshal(sess.Attribution)
	if err != nil {
		return fmt.Errorf("marshal attribution: %w", err)
	}
	targetsJSON, err := json.Marshal(sess.Targets)
	if err != nil {
		return fmt.Errorf("marshal targets: %w", err)
	}
	outcomesJSON, err := json.Marshal(sess.Outcomes)
	if err != nil {
		return fmt.Errorf("marshal outcomes: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, operation_id, caller, caller_uid, attribution, targets, outcomes, status, created_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.OperationID, sess.Caller, int64(sess.CallerUID),
		string(attributionJSON), string(targetsJSON), string(outcomesJSON),
		string(sess.Status),
		sess.CreatedAt.Format(time.RFC3339Nano), sess.CompletedAt.Format(time.RFC3339Nano),
	)
	return err
}

// GetSession returns the session with the given id, or nil if absent.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	s.logger.Debug("sql", "op", "select", "table", "sessions", "id", id)
	return s.scanSession(s.db.QueryRowContext(ctx,
		`SELECT id, operation_id, caller, caller_uid, attribution, targets, outcomes, status, created_at, completed_at
		 FROM sessions WHERE id = ?`, id))
}

// ListSessions returns sessions newest first, with pagination and an optional
// overall-status filter.
func (s *SQLiteStore) ListSessions(ctx context.Context, opts model.ListOptions) ([]*model.Session, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "sessions", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	var whereClauses []string
	var countArgs []any

	if opts.Status != "" {
		whereClauses = append(whereClauses, "status = ?")
		countArgs = append(countArgs, opts.Status)
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM sessions` + whereSQL
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := `SELECT id, operation_id, caller, caller_uid, attribution, targets, outcomes, status, created_at, completed_at
		FROM sessions` + whereSQL + ` ORDER BY completed_at DESC LIMIT ? OFFSET ?`
	listArgs := append(countArgs, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		sess, err := s.scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, total, rows.Err()
}

// PruneSessions deletes all but the newest keep sessions.
func (s *SQLiteStore) PruneSessions(ctx context.Context, keep int) (int64, error) {
	s.logger.Debug("sql", "op", "prune", "table", "sessions", "keep", keep)

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id NOT IN (
			SELECT id FROM sessions ORDER BY completed_at DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanSession(row scanner) (*model.Session, error) {
	var sess model.Session
	var callerUID int64
	var attributionJSON, targetsJSON, outcomesJSON string
	var status, createdAt, completedAt string

	err := row.Scan(&sess.ID, &sess.OperationID, &sess.Caller, &callerUID,
		&attributionJSON, &targetsJSON, &outcomesJSON,
		&status, &createdAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	sess.CallerUID = model.Principal(callerUID)
	sess.Status = model.OverallStatus(status)
	if err := json.Unmarshal([]byte(attributionJSON), &sess.Attribution); err != nil {
		return nil, fmt.Errorf("unmarshal attribution: %w", err)
	}
	if err := json.Unmarshal([]byte(targetsJSON), &sess.Targets); err != nil {
		return nil, fmt.Errorf("unmarshal targets: %w", err)
	}
	if err := json.Unmarshal([]byte(outcomesJSON), &sess.Outcomes); err != nil {
		return nil, fmt.Errorf("unmarshal outcomes: %w", err)
	}
	sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	sess.CompletedAt, _ = time.Parse(time.RFC3339Nano, completedAt)

	return &sess, nil
}
