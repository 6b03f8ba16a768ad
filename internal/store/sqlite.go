package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/griffin1995/my-private-tutor-online-sub019/internal/model"
	_ "modernc.org/sqlite"
)

// Store provides database operations for the alert history.
type Store struct {
	db     *sql.DB
	dbPath string
}

// New opens (or creates) the SQLite database and runs migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite single-writer
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return &Store{db: db, dbPath: dbPath}, nil
}

// DBPath returns the database file path.
func (s *Store) DBPath() string { return s.dbPath }

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertAlert records a dispatched alert. Duplicate alert IDs are
// ignored so at-least-once dispatch does not duplicate history rows.
func (s *Store) InsertAlert(ev model.AlertEvent) error {
	_, err := s.db.Exec(`
		INSERT INTO performance_alerts
			(alert_id, metric, value, threshold, rating, severity, session_id,
			 url, user_agent, client_ip, country, timestamp, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(alert_id) DO NOTHING`,
		ev.ID, ev.Metric, ev.Value, ev.Threshold, string(ev.Rating), string(ev.Severity),
		ev.SessionID, ev.URL, ev.UserAgent, ev.ClientIP, ev.Country, ev.Timestamp, ev.DetectedAt)
	return err
}

// detectedCutoff converts an epoch-ms bound to the detected_at text
// format. RFC3339 UTC timestamps are fixed width, so string comparison
// orders them correctly.
func detectedCutoff(sinceMs int64) string {
	return time.UnixMilli(sinceMs).UTC().Format(time.RFC3339)
}

// ListAlerts returns alerts newest first. severity filters when
// non-empty, sinceMs bounds the server detection time (the client
// timestamp column is informational; browser clocks skew), and limit
// caps the result size.
func (s *Store) ListAlerts(severity string, sinceMs int64, limit int) ([]model.AlertEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT alert_id, metric, value, threshold, rating, severity, session_id,
		       url, user_agent, client_ip, country, timestamp, detected_at
		FROM performance_alerts
		WHERE detected_at >= ?`
	args := []interface{}{detectedCutoff(sinceMs)}
	if severity != "" {
		query += " AND severity = ?"
		args = append(args, severity)
	}
	query += " ORDER BY detected_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []model.AlertEvent{}
	for rows.Next() {
		var ev model.AlertEvent
		var rating, sev string
		if err := rows.Scan(&ev.ID, &ev.Metric, &ev.Value, &ev.Threshold, &rating, &sev,
			&ev.SessionID, &ev.URL, &ev.UserAgent, &ev.ClientIP, &ev.Country,
			&ev.Timestamp, &ev.DetectedAt); err != nil {
			return nil, err
		}
		ev.Rating = model.Rating(rating)
		ev.Severity = model.Severity(sev)
		result = append(result, ev)
	}
	return result, rows.Err()
}

// CountAlerts returns per-severity alert counts detected since sinceMs.
func (s *Store) CountAlerts(sinceMs int64) (map[string]int, error) {
	rows, err := s.db.Query(`
		SELECT severity, COUNT(*) FROM performance_alerts
		WHERE detected_at >= ? GROUP BY severity`, detectedCutoff(sinceMs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var sev string
		var n int
		if err := rows.Scan(&sev, &n); err != nil {
			return nil, err
		}
		result[sev] = n
	}
	return result, rows.Err()
}

// PurgeOlderThan removes alerts detected more than the given number of
// hours ago.
func (s *Store) PurgeOlderThan(hours int) (int64, error) {
	cutoff := detectedCutoff(time.Now().UnixMilli() - int64(hours)*3600*1000)
	res, err := s.db.Exec("DELETE FROM performance_alerts WHERE detected_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- Settings ---

// GetSetting returns a setting value.
func (s *Store) GetSetting(key string) (string, error) {
	var val string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&val)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return val, err
}

// SetSetting upserts a setting.
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}
