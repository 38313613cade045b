package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SessionMeta is one session record in the library.
type SessionMeta struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Summary        string    `json:"summary"`
	Duration       string    `json:"duration"`
	RecordedAt     time.Time `json:"recorded_at"`
	Cleaned        bool      `json:"cleaned"`
	Source         string    `json:"source"`
	AudioPath      string    `json:"audio_path"`
	TranscriptPath string    `json:"transcript_path"`
}

// Store is the SQLite-backed session library.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id              TEXT PRIMARY KEY,
	title           TEXT NOT NULL DEFAULT '',
	summary         TEXT NOT NULL DEFAULT '',
	duration        TEXT NOT NULL DEFAULT '',
	recorded_at     TEXT NOT NULL,
	cleaned         INTEGER NOT NULL DEFAULT 0,
	source          TEXT NOT NULL DEFAULT '',
	audio_path      TEXT NOT NULL DEFAULT '',
	transcript_path TEXT NOT NULL DEFAULT ''
);
`

// Open opens (creating if needed) the library database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts or replaces one session record.
func (s *Store) Save(meta *SessionMeta) error {
	if meta.ID == "" {
		return fmt.Errorf("session id cannot be empty")
	}

	_, err := s.db.Exec(`
		INSERT INTO sessions
			(id, title, summary, duration, recorded_at, cleaned, source, audio_path, transcript_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			summary = excluded.summary,
			duration = excluded.duration,
			recorded_at = excluded.recorded_at,
			cleaned = excluded.cleaned,
			source = excluded.source,
			audio_path = excluded.audio_path,
			transcript_path = excluded.transcript_path
	`, meta.ID, meta.Title, meta.Summary, meta.Duration,
		meta.RecordedAt.Format(time.RFC3339), boolToInt(meta.Cleaned),
		meta.Source, meta.AudioPath, meta.TranscriptPath)
	if err != nil {
		return fmt.Errorf("save session %s: %w", meta.ID, err)
	}
	return nil
}

// List returns all sessions, most recent first.
func (s *Store) List() ([]SessionMeta, error) {
	rows, err := s.db.Query(`
		SELECT id, title, summary, duration, recorded_at, cleaned, source, audio_path, transcript_path
		FROM sessions
		ORDER BY recorded_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []SessionMeta
	for rows.Next() {
		meta, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *meta)
	}
	return sessions, rows.Err()
}

// Get returns one session by id, or nil when it does not exist.
func (s *Store) Get(id string) (*SessionMeta, error) {
	row := s.db.QueryRow(`
		SELECT id, title, summary, duration, recorded_at, cleaned, source, audio_path, transcript_path
		FROM sessions
		WHERE id = ?
	`, id)

	meta, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return meta, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*SessionMeta, error) {
	var meta SessionMeta
	var recordedAt string
	var cleaned int

	if err := row.Scan(&meta.ID, &meta.Title, &meta.Summary, &meta.Duration,
		&recordedAt, &cleaned, &meta.Source, &meta.AudioPath, &meta.TranscriptPath); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	t, err := time.Parse(time.RFC3339, recordedAt)
	if err != nil {
		return nil, fmt.Errorf("parse recorded_at %q: %w", recordedAt, err)
	}
	meta.RecordedAt = t
	meta.Cleaned = cleaned != 0

	return &meta, nil
}

// ScanDir registers raw session recordings found in dir that have no
// library record yet. Files named session_YYYYMMDD_HHMMSS.wav get a
// minimal record with the timestamp parsed from the filename. It
// returns the number of sessions added.
func (s *Store) ScanDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read recordings directory %s: %w", dir, err)
	}

	known := make(map[string]bool)
	sessions, err := s.List()
	if err != nil {
		return 0, err
	}
	for _, meta := range sessions {
		known[meta.AudioPath] = true
	}

	added := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "session_") || !strings.HasSuffix(name, ".wav") {
			continue
		}

		audioPath := filepath.Join(dir, name)
		if known[audioPath] {
			continue
		}

		stem := strings.TrimSuffix(name, ".wav")
		recordedAt, err := time.ParseInLocation("20060102_150405",
			strings.TrimPrefix(stem, "session_"), time.Local)
		if err != nil {
			s.logger.Warn("skipping recording with unparseable name",
				slog.String("file", name))
			continue
		}

		meta := &SessionMeta{
			ID:         uuid.New().String(),
			Title:      stem,
			RecordedAt: recordedAt,
			Source:     name,
			AudioPath:  audioPath,
		}

		transcriptPath := filepath.Join(dir, stem+".txt")
		if _, err := os.Stat(transcriptPath); err == nil {
			meta.TranscriptPath = transcriptPath
		}

		if err := s.Save(meta); err != nil {
			return added, err
		}
		added++
	}

	if added > 0 {
		s.logger.Info("registered unindexed recordings", slog.Int("count", added))
	}

	return added, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
