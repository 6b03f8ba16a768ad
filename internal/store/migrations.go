package store

import "database/sql"

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS performance_alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		alert_id TEXT NOT NULL UNIQUE,
		metric TEXT NOT NULL,
		value REAL NOT NULL,
		threshold REAL NOT NULL DEFAULT 0,
		rating TEXT NOT NULL DEFAULT '',
		severity TEXT NOT NULL,
		session_id TEXT NOT NULL,
		url TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		client_ip TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL DEFAULT '',
		timestamp INTEGER NOT NULL,
		detected_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_alerts_severity_ts ON performance_alerts(severity, timestamp);
	CREATE INDEX IF NOT EXISTS idx_alerts_ts ON performance_alerts(timestamp);`,

	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`,

	// History queries window on server detection time, not the
	// client-reported timestamp.
	`CREATE INDEX IF NOT EXISTS idx_alerts_detected ON performance_alerts(detected_at);`,
}

func runMigrations(db *sql.DB) error {
	// Create migration tracking table
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return err
	}

	var currentVersion int
	row := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return err
	}

	for i := currentVersion; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return err
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", i+1); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}
