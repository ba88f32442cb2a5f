package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// One row per websocket client session
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			remote_addr TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			connected_at DATETIME NOT NULL,
			disconnected_at DATETIME,
			frames_received INTEGER NOT NULL DEFAULT 0,
			frames_dropped INTEGER NOT NULL DEFAULT 0,
			messages_sent INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE INDEX IF NOT EXISTS idx_sessions_connected_at ON sessions(connected_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
