// Package memory provides the sqlite-backed per-user conversation window
// consumed by the hybrid pipeline.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/pulseline-ai/agent-backend/internal/model"
)

const (
	// DefaultMaxTurns is the per-session message cap; older turns are
	// trimmed inside the same transaction that appends.
	DefaultMaxTurns = 50
	// DefaultContextTurns is how many recent turns ContextFor returns.
	DefaultContextTurns = 10
	// sessionTimeout is how long an idle session stays current before a new
	// one is opened for the user.
	sessionTimeout = 24 * time.Hour
	// retention is how long inactive sessions survive before the reaper
	// deletes them.
	retention = 7 * 24 * time.Hour
)

// Stats summarizes the memory store for the admin surface.
type Stats struct {
	ActiveSessions int `json:"activeSessions"`
	TotalMessages  int `json:"totalMessages"`
	UniqueUsers    int `json:"uniqueUsers"`
}

// Store persists conversation sessions and messages in an embedded sqlite
// database. Every write happens inside a transaction; per-user ordering
// follows the engine's transaction ordering.
type Store struct {
	db       *sql.DB
	maxTurns int
	nowFunc  func() time.Time
	stopCh   chan struct{}
}

// Open creates (or opens) the memory database at path and runs migrations.
// maxTurns <= 0 selects DefaultMaxTurns.
func Open(path string, maxTurns int) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("memory.Open: %w", err)
	}
	// sqlite allows one writer; serialize through a single connection.
	db.SetMaxOpenConns(1)

	s := &Store{
		db:       db,
		maxTurns: maxTurns,
		nowFunc:  time.Now,
		stopCh:   make(chan struct{}),
	}
	if s.maxTurns <= 0 {
		s.maxTurns = DefaultMaxTurns
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("memory.Open: migrate: %w", err)
	}
	return s, nil
}

// Close stops the reaper (if started) and closes the database.
func (s *Store) Close() error {
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			last_activity TEXT NOT NULL,
			message_count INTEGER DEFAULT 0,
			active INTEGER DEFAULT 1
		);

		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			user_id INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			ts TEXT NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions (session_id)
		);

		CREATE INDEX IF NOT EXISTS idx_messages_session ON messages (session_id, ts);
		CREATE INDEX IF NOT EXISTS idx_messages_user ON messages (user_id, ts);
	`)
	return err
}

// activeSession returns the user's current session id inside tx, creating a
// new session when none exists or the last one timed out.
func (s *Store) activeSession(ctx context.Context, tx *sql.Tx, userKey int64) (string, error) {
	now := s.nowFunc().UTC()

	var sessionID string
	var lastActivity string
	err := tx.QueryRowContext(ctx, `
		SELECT session_id, last_activity FROM sessions
		WHERE user_id = ? AND active = 1
		ORDER BY last_activity DESC
		LIMIT 1`, userKey).Scan(&sessionID, &lastActivity)

	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return "", err
	default:
		last, perr := time.Parse(time.RFC3339Nano, lastActivity)
		if perr == nil && now.Sub(last) < sessionTimeout {
			return sessionID, nil
		}
		// Timed out: retire it and fall through to create a fresh one.
		if _, err := tx.ExecContext(ctx,
			`UPDATE sessions SET active = 0 WHERE session_id = ?`, sessionID); err != nil {
			return "", err
		}
	}

	sessionID = uuid.New().String()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (session_id, user_id, created_at, last_activity, message_count, active)
		VALUES (?, ?, ?, ?, 0, 1)`,
		sessionID, userKey, now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return "", err
	}
	return sessionID, nil
}

// Append stores one turn and trims the session to the configured window,
// all inside a single transaction.
func (s *Store) Append(ctx context.Context, userKey int64, role model.Role, content string) error {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("memory.Append: begin: %w", err)
	}
	defer tx.Rollback()

	sessionID, err := s.activeSession(ctx, tx, userKey)
	if err != nil {
		return fmt.Errorf("memory.Append: session: %w", err)
	}

	now := s.nowFunc().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (session_id, user_id, role, content, ts)
		VALUES (?, ?, ?, ?, ?)`,
		sessionID, userKey, string(role), content, now); err != nil {
		return fmt.Errorf("memory.Append: insert: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE sessions
		SET message_count = message_count + 1, last_activity = ?
		WHERE session_id = ?`, now, sessionID); err != nil {
		return fmt.Errorf("memory.Append: touch session: %w", err)
	}

	// Trim to the latest maxTurns messages.
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM messages
		WHERE session_id = ?
		AND id NOT IN (
			SELECT id FROM messages
			WHERE session_id = ?
			ORDER BY id DESC
			LIMIT ?
		)`, sessionID, sessionID, s.maxTurns); err != nil {
		return fmt.Errorf("memory.Append: trim: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("memory.Append: commit: %w", err)
	}
	return nil
}

// History returns the user's most recent turns in chronological order.
func (s *Store) History(ctx context.Context, userKey int64, limit int) ([]model.SessionTurn, error) {
	if limit <= 0 {
		limit = DefaultContextTurns
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, ts FROM messages
		WHERE session_id = (
			SELECT session_id FROM sessions
			WHERE user_id = ? AND active = 1
			ORDER BY last_activity DESC
			LIMIT 1
		)
		ORDER BY id DESC
		LIMIT ?`, userKey, limit)
	if err != nil {
		return nil, fmt.Errorf("memory.History: %w", err)
	}
	defer rows.Close()

	var turns []model.SessionTurn
	for rows.Next() {
		var role, content, ts string
		if err := rows.Scan(&role, &content, &ts); err != nil {
			return nil, fmt.Errorf("memory.History: scan: %w", err)
		}
		parsed, _ := time.Parse(time.RFC3339Nano, ts)
		turns = append(turns, model.SessionTurn{Role: model.Role(role), Content: content, TS: parsed})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("memory.History: rows: %w", err)
	}

	// Reverse into chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// ContextFor renders the user's recent turns as a prompt-ready block. An
// empty string means no history.
func (s *Store) ContextFor(ctx context.Context, userKey int64, maxTurns int) (string, error) {
	turns, err := s.History(ctx, userKey, maxTurns)
	if err != nil {
		return "", err
	}
	if len(turns) == 0 {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("RECENT CONVERSATION:")
	for _, t := range turns {
		label := "USER"
		if t.Role == model.RoleAssistant {
			label = "ASSISTANT"
		}
		sb.WriteString("\n")
		sb.WriteString(label)
		sb.WriteString(": ")
		sb.WriteString(t.Content)
	}
	return sb.String(), nil
}

// Clear removes all history for a user.
func (s *Store) Clear(ctx context.Context, userKey int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("memory.Clear: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET active = 0 WHERE user_id = ?`, userKey); err != nil {
		return fmt.Errorf("memory.Clear: sessions: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM messages WHERE user_id = ?`, userKey); err != nil {
		return fmt.Errorf("memory.Clear: messages: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("memory.Clear: commit: %w", err)
	}
	return nil
}

// ReapOlderThan deletes sessions (and their messages) idle longer than age.
func (s *Store) ReapOlderThan(ctx context.Context, age time.Duration) error {
	cutoff := s.nowFunc().UTC().Add(-age).Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("memory.Reap: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM messages WHERE session_id IN (
			SELECT session_id FROM sessions WHERE last_activity < ?
		)`, cutoff); err != nil {
		return fmt.Errorf("memory.Reap: messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM sessions WHERE last_activity < ?`, cutoff); err != nil {
		return fmt.Errorf("memory.Reap: sessions: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("memory.Reap: commit: %w", err)
	}
	return nil
}

// StartReaper launches the periodic cleanup of sessions older than the
// retention window. Stopped by Close.
func (s *Store) StartReaper(interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C:
				if err := s.ReapOlderThan(context.Background(), retention); err != nil {
					slog.Warn("session reaper failed", "error", err)
				}
			}
		}
	}()
}

// Stats returns aggregate counts over active sessions.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(DISTINCT m.session_id),
			COUNT(*),
			COUNT(DISTINCT m.user_id)
		FROM messages m
		JOIN sessions s ON m.session_id = s.session_id
		WHERE s.active = 1`).Scan(&st.ActiveSessions, &st.TotalMessages, &st.UniqueUsers)
	if err != nil {
		return Stats{}, fmt.Errorf("memory.Stats: %w", err)
	}
	return st, nil
}
