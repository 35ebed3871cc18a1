package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists sessions in the user_sessions and benefit_interactions tables.
type SQLiteStore struct {
	db *sqlx.DB
}

type sessionRow struct {
	SessionID string `db:"session_id"`
	UserID    string `db:"user_id"`
	CreatedAt int64  `db:"created_at"`
	Payload   string `db:"payload"`
}

type interactionRow struct {
	SessionID string `db:"session_id"`
	UserID    string `db:"user_id"`
	BenefitID string `db:"benefit_id"`
	Action    string `db:"action"`
	CreatedAt int64  `db:"created_at"`
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connect session database: %w", err)
	}
	// go-sqlite3 serializes writes anyway; one connection keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init session schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS user_sessions (
			session_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			benefit_count INTEGER NOT NULL DEFAULT 0,
			payload TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS benefit_interactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			benefit_id TEXT NOT NULL,
			action TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_user_sessions_user ON user_sessions(user_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_benefit_interactions_session ON benefit_interactions(session_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, r Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", r.SessionID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_sessions (session_id, user_id, created_at, benefit_count, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			user_id = excluded.user_id,
			created_at = excluded.created_at,
			benefit_count = excluded.benefit_count,
			payload = excluded.payload`,
		r.SessionID, r.UserID, r.Timestamp.UnixMilli(), r.BenefitCount, string(data),
	)
	if err != nil {
		return fmt.Errorf("save session %s: %w", r.SessionID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, sessionID string) (Record, error) {
	var row sessionRow
	err := s.db.GetContext(ctx, &row,
		`SELECT session_id, user_id, created_at, payload FROM user_sessions WHERE session_id = ?`, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	return decodeRecord([]byte(row.Payload))
}

func (s *SQLiteStore) Recent(ctx context.Context, userID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}

	var rows []sessionRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT session_id, user_id, created_at, payload FROM user_sessions
		WHERE user_id = ?
		ORDER BY created_at DESC, session_id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions for %s: %w", userID, err)
	}

	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		r, err := decodeRecord([]byte(row.Payload))
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *SQLiteStore) SaveInteraction(ctx context.Context, i Interaction) error {
	row := interactionRow{
		SessionID: i.SessionID,
		UserID:    i.UserID,
		BenefitID: i.BenefitID,
		Action:    i.Action,
		CreatedAt: i.Timestamp.UnixMilli(),
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO benefit_interactions (session_id, user_id, benefit_id, action, created_at)
		VALUES (:session_id, :user_id, :benefit_id, :action, :created_at)`, row)
	if err != nil {
		return fmt.Errorf("save interaction for %s: %w", i.SessionID, err)
	}
	return nil
}

func (s *SQLiteStore) Interactions(ctx context.Context, sessionID string) ([]Interaction, error) {
	var rows []interactionRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT session_id, user_id, benefit_id, action, created_at FROM benefit_interactions
		WHERE session_id = ?
		ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list interactions for %s: %w", sessionID, err)
	}

	out := make([]Interaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, Interaction{
			SessionID: row.SessionID,
			UserID:    row.UserID,
			BenefitID: row.BenefitID,
			Action:    row.Action,
			Timestamp: time.UnixMilli(row.CreatedAt).UTC(),
		})
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func firstLine(stmt string) string {
	for i, c := range stmt {
		if c == '\n' {
			return stmt[:i]
		}
	}
	return stmt
}
