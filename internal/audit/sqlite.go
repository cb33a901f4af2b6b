package audit

import (
	"database/sql"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	dbPath string
}

func NewSQLiteStore(logger *slog.Logger, path string) (*SQLiteStore, error) {
	originalPath := path
	if idx := strings.Index(path, "?"); idx != -1 {
		originalPath = path[:idx]
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// One connection avoids "database is locked" errors with concurrent
	// writers; the audit write volume does not need more.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	// The _journal_mode query param doesn't work with modernc.org/sqlite,
	// so WAL is set via PRAGMA after opening.
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode=WAL").Scan(&journalMode); err != nil {
		logger.Warn("failed to set WAL journal mode", "error", err)
	} else {
		logger.Info("SQLite journal mode set", "mode", journalMode, "path", originalPath)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		logger.Warn("failed to set busy timeout", "error", err)
	}

	return &SQLiteStore{db: db, logger: logger.With("component", "audit"), dbPath: originalPath}, nil
}

func (s *SQLiteStore) Init() error {
	query := `
	CREATE TABLE IF NOT EXISTS conversation_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		user_message TEXT NOT NULL,
		assistant_message TEXT NOT NULL,
		provider TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS appointments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		phone TEXT NOT NULL,
		therapist TEXT,
		date TEXT NOT NULL,
		time TEXT NOT NULL,
		modality TEXT,
		specialties TEXT,
		reason TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS feedback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		rating INTEGER NOT NULL,
		feedback TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_conversation_log_session_id ON conversation_log(session_id);
	CREATE INDEX IF NOT EXISTS idx_appointments_session_id ON appointments(session_id);
	`
	_, err := s.db.Exec(query)
	return err
}

const sqliteTimeLayout = "2006-01-02 15:04:05.999"

func (s *SQLiteStore) LogTurn(turn Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	query := `
	INSERT INTO conversation_log (session_id, user_message, assistant_message, provider, created_at)
	VALUES (?, ?, ?, ?, ?)`

	_, err := s.db.Exec(query,
		turn.SessionID, turn.UserMessage, turn.AssistantMessage, turn.Provider,
		turn.CreatedAt.UTC().Format(sqliteTimeLayout),
	)
	recordWrite("conversation_log", err)
	return err
}

func (s *SQLiteStore) LogAppointment(rec AppointmentRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	query := `
	INSERT INTO appointments (
		session_id, name, email, phone, therapist,
		date, time, modality, specialties, reason, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.Exec(query,
		rec.SessionID, rec.Name, rec.Email, rec.Phone, rec.Therapist,
		rec.Date, rec.Time, rec.Modality, rec.Specialties, rec.Reason,
		rec.CreatedAt.UTC().Format(sqliteTimeLayout),
	)
	recordWrite("appointments", err)
	return err
}

func (s *SQLiteStore) LogFeedback(rec FeedbackRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	query := `
	INSERT INTO feedback (session_id, rating, feedback, created_at)
	VALUES (?, ?, ?, ?)`

	_, err := s.db.Exec(query,
		rec.SessionID, rec.Rating, rec.Feedback,
		rec.CreatedAt.UTC().Format(sqliteTimeLayout),
	)
	recordWrite("feedback", err)
	return err
}

func (s *SQLiteStore) RecentTurns(sessionID string, limit int) ([]Turn, error) {
	query := `
	SELECT id, session_id, user_message, assistant_message, provider, created_at
	FROM conversation_log
	WHERE session_id = ?
	ORDER BY created_at DESC, id DESC
	LIMIT ?`

	rows, err := s.db.Query(query, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var createdAt string
		if err := rows.Scan(&t.ID, &t.SessionID, &t.UserMessage, &t.AssistantMessage, &t.Provider, &createdAt); err != nil {
			return nil, err
		}
		t.CreatedAt = parseSQLiteTime(createdAt)
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func parseSQLiteTime(s string) time.Time {
	for _, layout := range []string{sqliteTimeLayout, "2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
