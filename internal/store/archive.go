// Package store provides a SQLite-backed archive of finished sessions.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/theirongolddev/burnclock/internal/model"

	_ "modernc.org/sqlite" // register sqlite driver
)

// ErrNotFound is returned when a session id is not in the archive.
var ErrNotFound = errors.New("store: session not found")

// Archive stores closed sessions and transcript read offsets.
type Archive struct {
	db *sql.DB
}

// DefaultPath returns the archive location inside dataDir.
func DefaultPath(dataDir string) string {
	return filepath.Join(dataDir, "sessions.db")
}

// Open opens or creates the archive database at the given path.
func Open(dbPath string) (*Archive, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating archive dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening archive db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Archive{db: db}, nil
}

// Close closes the archive database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// SaveSession stores or replaces a session record.
func (a *Archive) SaveSession(r model.SessionRecord) error {
	_, err := a.db.Exec(`INSERT OR REPLACE INTO sessions
		(session_id, model, project, label, status, end_reason,
		 start_time, end_time, duration_ms, elapsed_ms,
		 input_tokens, output_tokens, cache_creation, cache_read_tokens,
		 estimated_cost, tool_calls, messages, objectives, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Model, r.Project, r.Label, string(r.Status), string(r.EndReason),
		formatTime(r.StartTime), formatTime(r.EndTime), r.Duration.Milliseconds(), r.Elapsed.Milliseconds(),
		r.InputTokens, r.OutputTokens, r.CacheCreationTokens, r.CacheReadTokens,
		r.EstimatedCost.String(), r.ToolCalls, r.Messages, r.Objectives,
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("saving session %s: %w", r.ID, err)
	}
	return nil
}

const selectSessions = `SELECT
	session_id, model, project, label, status, end_reason,
	start_time, end_time, duration_ms, elapsed_ms,
	input_tokens, output_tokens, cache_creation, cache_read_tokens,
	estimated_cost, tool_calls, messages, objectives
	FROM sessions`

// LoadSessions reads every archived session, oldest first.
func (a *Archive) LoadSessions() ([]model.SessionRecord, error) {
	rows, err := a.db.Query(selectSessions + " ORDER BY start_time, session_id")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []model.SessionRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetSession reads one archived session.
func (a *Archive) GetSession(id string) (model.SessionRecord, error) {
	r, err := scanRecord(a.db.QueryRow(selectSessions+" WHERE session_id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (model.SessionRecord, error) {
	var (
		r                  model.SessionRecord
		project, label     sql.NullString
		endReason, endTime sql.NullString
		status, startTime  string
		durationMS         int64
		elapsedMS          int64
	)
	err := sc.Scan(
		&r.ID, &r.Model, &project, &label, &status, &endReason,
		&startTime, &endTime, &durationMS, &elapsedMS,
		&r.InputTokens, &r.OutputTokens, &r.CacheCreationTokens, &r.CacheReadTokens,
		&r.EstimatedCost, &r.ToolCalls, &r.Messages, &r.Objectives,
	)
	if err != nil {
		return r, err
	}

	r.Project = project.String
	r.Label = label.String
	r.Status = model.Status(status)
	r.EndReason = model.EndReason(endReason.String)
	r.StartTime = parseTime(startTime)
	r.EndTime = parseTime(endTime.String)
	r.Duration = time.Duration(durationMS) * time.Millisecond
	r.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	return r, nil
}

// DeleteSession removes a session. Deleting an unknown id returns ErrNotFound.
func (a *Archive) DeleteSession(id string) error {
	res, err := a.db.Exec("DELETE FROM sessions WHERE session_id = ?", id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// SessionCount returns the number of archived sessions.
func (a *Archive) SessionCount() (int, error) {
	var count int
	err := a.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&count)
	return count, err
}

// FileOffset is how far a transcript has been consumed.
type FileOffset struct {
	Offset  int64
	MtimeNs int64
}

// GetOffset returns the stored offset for path, or the zero value.
func (a *Archive) GetOffset(path string) (FileOffset, error) {
	var fo FileOffset
	err := a.db.QueryRow("SELECT offset_bytes, mtime_ns FROM file_tracker WHERE file_path = ?", path).
		Scan(&fo.Offset, &fo.MtimeNs)
	if errors.Is(err, sql.ErrNoRows) {
		return FileOffset{}, nil
	}
	return fo, err
}

// SaveOffset records how far path has been consumed.
func (a *Archive) SaveOffset(path string, fo FileOffset) error {
	_, err := a.db.Exec(`INSERT OR REPLACE INTO file_tracker (file_path, offset_bytes, mtime_ns, updated_at)
		VALUES (?, ?, ?, ?)`, path, fo.Offset, fo.MtimeNs, formatTime(time.Now()))
	return err
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
