package checkpoint

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"claude-knowledge/internal/logging"
	"claude-knowledge/internal/store"
)

// RecordSessionMetric upserts a session's metrics row.
func (s *Store) RecordSessionMetric(m SessionMetric) error {
	if m.SessionID == "" {
		return fmt.Errorf("%w: session id is empty", store.ErrInvalidInput)
	}
	now := s.clock.Now()
	return s.st.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT OR REPLACE INTO session_metrics
			(session_id, issue_number, files_read, compacted, duration_minutes, review_findings, learnings_injected, learnings_captured, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.SessionID, nullableInt(m.HasIssue, m.IssueNumber), m.FilesRead, boolToInt(m.Compacted),
			nullableFloat(m.HasDuration, m.DurationMinutes), m.ReviewFindings, m.LearningsInjected, m.LearningsCaptured, now)
		return err
	})
}

// ListSessionMetrics returns every recorded session, most recent first.
func (s *Store) ListSessionMetrics() ([]SessionMetric, error) {
	rows, err := s.st.DB().Query(`SELECT session_id, issue_number, files_read, compacted, duration_minutes,
		review_findings, learnings_injected, learnings_captured, created_at
		FROM session_metrics ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list session metrics: %w", err)
	}
	defer rows.Close()

	var out []SessionMetric
	for rows.Next() {
		var m SessionMetric
		var issue sql.NullInt64
		var duration sql.NullFloat64
		var compacted int
		if err := rows.Scan(&m.SessionID, &issue, &m.FilesRead, &compacted, &duration,
			&m.ReviewFindings, &m.LearningsInjected, &m.LearningsCaptured, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.HasIssue = issue.Valid
		m.IssueNumber = int(issue.Int64)
		m.Compacted = compacted != 0
		m.HasDuration = duration.Valid
		m.DurationMinutes = duration.Float64
		out = append(out, m)
	}
	return out, rows.Err()
}

// SessionMetricsSummary totals session counts used by `metrics summary`.
type SessionMetricsSummary struct {
	SessionCount       int
	TotalFilesRead     int
	TotalLearnings     int
	CompactedSessions  int
	AvgDurationMinutes float64
}

// SummarizeSessionMetrics aggregates every recorded session.
func (s *Store) SummarizeSessionMetrics() (SessionMetricsSummary, error) {
	metrics, err := s.ListSessionMetrics()
	if err != nil {
		return SessionMetricsSummary{}, err
	}
	var sum SessionMetricsSummary
	var totalDuration float64
	var withDuration int
	for _, m := range metrics {
		sum.SessionCount++
		sum.TotalFilesRead += m.FilesRead
		sum.TotalLearnings += m.LearningsCaptured
		if m.Compacted {
			sum.CompactedSessions++
		}
		if m.HasDuration {
			totalDuration += m.DurationMinutes
			withDuration++
		}
	}
	if withDuration > 0 {
		sum.AvgDurationMinutes = totalDuration / float64(withDuration)
	}
	return sum, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableFloat(has bool, v float64) sql.NullFloat64 {
	if !has {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

// SessionMetadata is the lock-free rendezvous record written by
// session-start and consumed by session-end: {sessionId, startTime,
// learningsInjected, issueNumber?}.
type SessionMetadata struct {
	SessionID         string    `json:"sessionId"`
	StartTime         time.Time `json:"startTime"`
	LearningsInjected int       `json:"learningsInjected"`
	IssueNumber       int       `json:"issueNumber,omitempty"`
	HasIssue          bool      `json:"-"`
}

const sessionFilePrefix = "session-"

// WriteSessionMetadataFile writes meta to dir/session-<unixMillis>-<sessionId>.json.
func WriteSessionMetadataFile(dir string, meta SessionMetadata) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create session metadata dir: %w", err)
	}
	name := fmt.Sprintf("%s%d-%s.json", sessionFilePrefix, meta.StartTime.UnixMilli(), meta.SessionID)
	path := filepath.Join(dir, name)

	data, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshal session metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write session metadata file: %w", err)
	}
	logging.CheckpointDebug("wrote session metadata: %s", path)
	return path, nil
}

// FindLatestSessionMetadataFile discovers the session-metadata file that
// correlates with a session-end call. Per the resolved open question: when
// sessionID is non-empty, only a file whose decoded sessionId matches it is
// considered (never falls back to most-recent-mtime on a mismatch); when
// sessionID is empty, the most recently modified non-stale file is used.
// Files older than stalenessHours are treated as orphans: skipped here,
// and callers should invoke CleanupStaleSessionFiles to remove them.
func FindLatestSessionMetadataFile(dir, sessionID string, stalenessHours int) (*SessionMetadata, string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("read session metadata dir: %w", err)
	}

	cutoff := time.Now().Add(-time.Duration(stalenessHours) * time.Hour)

	type candidate struct {
		path    string
		modTime time.Time
		meta    SessionMetadata
	}
	var candidates []candidate

	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), sessionFilePrefix) || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var meta SessionMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		if sessionID != "" && meta.SessionID != sessionID {
			continue
		}
		candidates = append(candidates, candidate{path: path, modTime: info.ModTime(), meta: meta})
	}

	if len(candidates) == 0 {
		return nil, "", nil
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].modTime.After(candidates[j].modTime) })
	best := candidates[0]
	return &best.meta, best.path, nil
}

// DeleteSessionMetadataFile removes a session-metadata file after a
// successful session-end.
func DeleteSessionMetadataFile(path string) error {
	if path == "" {
		return nil
	}
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete session metadata file %s: %w", path, err)
	}
	return nil
}

// CleanupStaleSessionFiles deletes every session-metadata file older than
// stalenessHours, returning the count removed.
func CleanupStaleSessionFiles(dir string, stalenessHours int) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read session metadata dir: %w", err)
	}

	cutoff := time.Now().Add(-time.Duration(stalenessHours) * time.Hour)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), sessionFilePrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(dir, e.Name())
			if err := os.Remove(path); err == nil {
				removed++
			}
		}
	}
	if removed > 0 {
		logging.CheckpointDebug("removed %d stale session metadata file(s)", removed)
	}
	return removed, nil
}

// DefaultSessionMetadataDir returns the per-user directory session-start
// and session-end exchange metadata through: ~/.claude-knowledge.
func DefaultSessionMetadataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".claude-knowledge"
	}
	return filepath.Join(home, ".claude-knowledge")
}
