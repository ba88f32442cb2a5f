package store

import (
	"database/sql"
	"errors"
	"time"
)

// Session is one journaled client connection.
type Session struct {
	ID             string     `json:"id"`
	RemoteAddr     string     `json:"remote_addr"`
	UserAgent      string     `json:"user_agent"`
	ConnectedAt    time.Time  `json:"connected_at"`
	DisconnectedAt *time.Time `json:"disconnected_at,omitempty"`
	FramesReceived int64      `json:"frames_received"`
	FramesDropped  int64      `json:"frames_dropped"`
	MessagesSent   int64      `json:"messages_sent"`
}

// SessionCounters are the totals recorded when a session ends.
type SessionCounters struct {
	FramesReceived int64
	FramesDropped  int64
	MessagesSent   int64
}

// SessionRepository provides access to the sessions table.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Open records a new session. ConnectedAt is set to now when zero.
func (r *SessionRepository) Open(sess *Session) error {
	if sess.ConnectedAt.IsZero() {
		sess.ConnectedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(
		`INSERT INTO sessions (id, remote_addr, user_agent, connected_at) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.RemoteAddr, sess.UserAgent, sess.ConnectedAt,
	)
	return err
}

// Close marks a session disconnected and stores its counters.
func (r *SessionRepository) Close(id string, c SessionCounters) error {
	res, err := r.db.Exec(
		`UPDATE sessions
		 SET disconnected_at = ?, frames_received = ?, frames_dropped = ?, messages_sent = ?
		 WHERE id = ?`,
		time.Now().UTC(), c.FramesReceived, c.FramesDropped, c.MessagesSent, id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get retrieves a session by ID.
func (r *SessionRepository) Get(id string) (*Session, error) {
	row := r.db.QueryRow(
		`SELECT id, remote_addr, user_agent, connected_at, disconnected_at,
		        frames_received, frames_dropped, messages_sent
		 FROM sessions WHERE id = ?`,
		id,
	)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sess, err
}

// List returns the most recent sessions, newest first.
func (r *SessionRepository) List(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(
		`SELECT id, remote_addr, user_agent, connected_at, disconnected_at,
		        frames_received, frames_dropped, messages_sent
		 FROM sessions ORDER BY connected_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]Session, 0)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

// CloseDangling marks sessions left open by a previous process as ended.
func (r *SessionRepository) CloseDangling() (int64, error) {
	res, err := r.db.Exec(
		`UPDATE sessions SET disconnected_at = ? WHERE disconnected_at IS NULL`,
		time.Now().UTC(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(s scanner) (*Session, error) {
	var sess Session
	var disconnected sql.NullTime
	if err := s.Scan(&sess.ID, &sess.RemoteAddr, &sess.UserAgent, &sess.ConnectedAt, &disconnected,
		&sess.FramesReceived, &sess.FramesDropped, &sess.MessagesSent); err != nil {
		return nil, err
	}
	if disconnected.Valid {
		t := disconnected.Time
		sess.DisconnectedAt = &t
	}
	return &sess, nil
}
