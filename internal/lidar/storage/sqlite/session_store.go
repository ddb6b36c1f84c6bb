package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session groups the scans taken by one sensor configuration against one map.
type Session struct {
	SessionID        string          `json:"session_id"`
	FrameID          string          `json:"frame_id"`
	SensorConfigJSON json.RawMessage `json:"sensor_config"`
	MapJSON          json.RawMessage `json:"map"`
	CreatedAt        time.Time       `json:"created_at"`
	Notes            string          `json:"notes,omitempty"`
}

// SessionStore provides persistence for scan sessions.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Create inserts a session. If session.SessionID is empty, a new UUID is
// generated; a zero CreatedAt is set to now.
func (s *SessionStore) Create(session *Session) error {
	if session.SessionID == "" {
		session.SessionID = uuid.New().String()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	if len(session.SensorConfigJSON) == 0 {
		session.SensorConfigJSON = json.RawMessage("{}")
	}
	if len(session.MapJSON) == 0 {
		session.MapJSON = json.RawMessage("{}")
	}

	query := `
		INSERT INTO scan_sessions (
			session_id, frame_id, sensor_config_json, map_json, created_at, notes
		) VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		session.SessionID,
		session.FrameID,
		string(session.SensorConfigJSON),
		string(session.MapJSON),
		session.CreatedAt.UnixNano(),
		nullString(session.Notes),
	)
	if err != nil {
		return fmt.Errorf("insert scan session: %w", err)
	}
	return nil
}

// Get returns the session with the given ID, or sql.ErrNoRows.
func (s *SessionStore) Get(sessionID string) (*Session, error) {
	row := s.db.QueryRow(`
		SELECT session_id, frame_id, sensor_config_json, map_json, created_at, notes
		FROM scan_sessions
		WHERE session_id = ?
	`, sessionID)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get scan session: %w", err)
	}
	return session, nil
}

// List returns all sessions, newest first.
func (s *SessionStore) List() ([]*Session, error) {
	rows, err := s.db.Query(`
		SELECT session_id, frame_id, sensor_config_json, map_json, created_at, notes
		FROM scan_sessions
		ORDER BY created_at DESC, session_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list scan sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// Delete removes a session and, by cascade, its scans.
func (s *SessionStore) Delete(sessionID string) error {
	result, err := s.db.Exec("DELETE FROM scan_sessions WHERE session_id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("delete scan session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete scan session rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var (
		session             Session
		sensorJSON, mapJSON string
		createdAt           int64
		notes               sql.NullString
	)
	if err := row.Scan(&session.SessionID, &session.FrameID, &sensorJSON, &mapJSON, &createdAt, &notes); err != nil {
		return nil, err
	}
	session.SensorConfigJSON = json.RawMessage(sensorJSON)
	session.MapJSON = json.RawMessage(mapJSON)
	session.CreatedAt = time.Unix(0, createdAt)
	if notes.Valid {
		session.Notes = notes.String
	}
	return &session, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
