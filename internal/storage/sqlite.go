package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding prompts, responses, insights, and
// daily metric rollups.
//
// All mutating operations pass through a single writer lane (writeMu) so
// concurrent write requests apply one at a time in arrival order. Reads run
// in parallel and, thanks to WAL, never observe a half-applied write.
type Store struct {
	db      *sql.DB
	writeMu sync.Mutex
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used by
// tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "improver.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Prompts ---

// SavePrompt inserts a new prompt with null analysis fields and returns its
// generated id. Blank content is rejected with ErrValidation before any
// write.
func (s *Store) SavePrompt(p PromptRecord) (string, error) {
	if strings.TrimSpace(p.Content) == "" {
		return "", fmt.Errorf("content is required: %w", ErrValidation)
	}

	id := p.ID
	if id == "" {
		id = uuid.New().String()
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	metadata := p.MetadataJSON
	if metadata == "" {
		metadata = "{}"
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO prompts (id, content, context, conversation_id, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, p.Content, p.Context, p.ConversationID, metadata,
		createdAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("inserting prompt: %w", err)
	}
	return id, nil
}

// UpdateAnalysis sets the analysis fields of an existing prompt in a single
// statement, so readers see either the pre- or post-analysis version.
func (s *Store) UpdateAnalysis(id string, qualityScore float64, complexity, technique string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.Exec(`
		UPDATE prompts SET quality_score = ?, complexity = ?, technique = ? WHERE id = ?`,
		qualityScore, complexity, technique, id,
	)
	if err != nil {
		return fmt.Errorf("updating analysis: %w", err)
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

// GetPrompt retrieves a single prompt by id.
func (s *Store) GetPrompt(id string) (PromptRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, content, context, conversation_id, metadata_json, created_at, quality_score, complexity, technique
		FROM prompts WHERE id = ?`, id,
	)
	p, err := scanPrompt(row)
	if err == sql.ErrNoRows {
		return PromptRecord{}, ErrNotFound
	}
	return p, err
}

// ListRecent returns prompts ordered by creation time descending.
func (s *Store) ListRecent(limit, offset int) ([]PromptRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, content, context, conversation_id, metadata_json, created_at, quality_score, complexity, technique
		FROM prompts ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []PromptRecord
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrompt(row rowScanner) (PromptRecord, error) {
	var p PromptRecord
	var createdAt string
	var score sql.NullFloat64
	var complexity, technique sql.NullString
	err := row.Scan(&p.ID, &p.Content, &p.Context, &p.ConversationID, &p.MetadataJSON,
		&createdAt, &score, &complexity, &technique)
	if err != nil {
		return PromptRecord{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return PromptRecord{}, fmt.Errorf("parsing created_at: %w", err)
	}
	p.CreatedAt = t
	if score.Valid {
		p.QualityScore = &score.Float64
	}
	if complexity.Valid {
		p.Complexity = &complexity.String
	}
	if technique.Valid {
		p.Technique = &technique.String
	}
	return p, nil
}

// DeleteOlderThan removes prompts (and their responses) created before
// cutoff. Used by retention cleanup; returns the number of prompts removed.
func (s *Store) DeleteOlderThan(cutoff time.Time) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cut := cutoff.UTC().Format(time.RFC3339)

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning retention transaction: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM responses WHERE prompt_id IN (SELECT id FROM prompts WHERE created_at < ?)`, cut); err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("deleting old responses: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM prompts WHERE created_at < ?`, cut)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("deleting old prompts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing retention delete: %w", err)
	}
	return n, nil
}

// --- Responses ---

// SaveResponse inserts a reply linked to an existing prompt. A missing
// prompt is rejected with ErrForeignKey and no row is inserted.
func (s *Store) SaveResponse(r ResponseRecord) (string, error) {
	id := r.ID
	if id == "" {
		id = uuid.New().String()
	}
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var exists int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM prompts WHERE id = ?", r.PromptID).Scan(&exists); err != nil {
		return "", fmt.Errorf("checking prompt %s: %w", r.PromptID, err)
	}
	if exists == 0 {
		return "", fmt.Errorf("prompt %s: %w", r.PromptID, ErrForeignKey)
	}

	var rating any
	if r.UserRating != nil {
		rating = *r.UserRating
	}
	_, err := s.db.Exec(`
		INSERT INTO responses (id, prompt_id, content, user_rating, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		id, r.PromptID, r.Content, rating, createdAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("inserting response: %w", err)
	}
	return id, nil
}

// GetResponsesByPrompt returns all responses for a prompt, oldest first.
func (s *Store) GetResponsesByPrompt(promptID string) ([]ResponseRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, prompt_id, content, user_rating, created_at
		FROM responses WHERE prompt_id = ? ORDER BY created_at ASC`, promptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ResponseRecord
	for rows.Next() {
		var r ResponseRecord
		var createdAt string
		var rating sql.NullInt64
		if err := rows.Scan(&r.ID, &r.PromptID, &r.Content, &rating, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		r.CreatedAt = t
		if rating.Valid {
			v := int(rating.Int64)
			r.UserRating = &v
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// --- Insights ---

// SaveInsight persists a single insight. Each save is independently atomic;
// the miner relies on this when a pass is cancelled midway.
func (s *Store) SaveInsight(in Insight) error {
	evidence := in.EvidenceJSON
	if evidence == "" {
		evidence = "{}"
	}
	promptIDs := in.PromptIDsJSON
	if promptIDs == "" {
		promptIDs = "[]"
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO insights (id, created_at, type, severity, title, description, evidence_json, prompt_ids_json, acknowledged)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.CreatedAt.UTC().Format(time.RFC3339), in.Type, in.Severity,
		in.Title, in.Description, evidence, promptIDs, boolToInt(in.Acknowledged),
	)
	if err != nil {
		return fmt.Errorf("inserting insight: %w", err)
	}
	return nil
}

// ListUnacknowledgedInsights returns unacknowledged insights, newest first.
func (s *Store) ListUnacknowledgedInsights() ([]Insight, error) {
	rows, err := s.db.Query(`
		SELECT id, created_at, type, severity, title, description, evidence_json, prompt_ids_json, acknowledged
		FROM insights WHERE acknowledged = 0 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Insight
	for rows.Next() {
		var in Insight
		var createdAt string
		var ack int
		if err := rows.Scan(&in.ID, &createdAt, &in.Type, &in.Severity, &in.Title,
			&in.Description, &in.EvidenceJSON, &in.PromptIDsJSON, &ack); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		in.CreatedAt = t
		in.Acknowledged = ack != 0
		results = append(results, in)
	}
	return results, rows.Err()
}

// AcknowledgeInsight marks an insight as seen by the dashboard.
func (s *Store) AcknowledgeInsight(id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.Exec(`UPDATE insights SET acknowledged = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("acknowledging insight: %w", err)
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

// --- Metrics ---

// UpsertMetric inserts or replaces a daily rollup value keyed by
// (date, metric name). The uniqueness constraint lives in the schema.
func (s *Store) UpsertMetric(date, name string, value float64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO metrics (date, metric_name, value) VALUES (?, ?, ?)
		ON CONFLICT(date, metric_name) DO UPDATE SET value = excluded.value`,
		date, name, value,
	)
	return err
}

// GetMetric reads a single rollup value.
func (s *Store) GetMetric(date, name string) (float64, error) {
	var v float64
	err := s.db.QueryRow(`SELECT value FROM metrics WHERE date = ? AND metric_name = ?`, date, name).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return v, err
}

// QualityMetricsByDay aggregates scored prompts within the trailing window,
// grouped by UTC calendar day, most recent day first.
func (s *Store) QualityMetricsByDay(windowDays int) ([]DayMetric, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -windowDays).Format(time.RFC3339)
	rows, err := s.db.Query(`
		SELECT substr(created_at, 1, 10) AS day, AVG(quality_score), COUNT(*)
		FROM prompts
		WHERE quality_score IS NOT NULL AND created_at >= ?
		GROUP BY day ORDER BY day DESC`, cutoff,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []DayMetric
	for rows.Next() {
		var m DayMetric
		if err := rows.Scan(&m.Date, &m.AverageQuality, &m.Count); err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

// --- Stats ---

// GetStats computes the dashboard aggregate: totals, today's count, the
// complexity distribution, and a last-10 activity summary.
func (s *Store) GetStats() (Stats, error) {
	stats := Stats{ComplexityDistribution: make(map[string]int)}

	var avg sql.NullFloat64
	if err := s.db.QueryRow(`SELECT COUNT(*), AVG(quality_score) FROM prompts`).Scan(&stats.TotalCount, &avg); err != nil {
		return Stats{}, fmt.Errorf("counting prompts: %w", err)
	}
	if avg.Valid {
		stats.AverageQuality = avg.Float64
	}

	today := time.Now().UTC().Format("2006-01-02")
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM prompts WHERE substr(created_at, 1, 10) = ?`, today).Scan(&stats.TodayCount); err != nil {
		return Stats{}, fmt.Errorf("counting today's prompts: %w", err)
	}

	rows, err := s.db.Query(`SELECT complexity, COUNT(*) FROM prompts WHERE complexity IS NOT NULL GROUP BY complexity`)
	if err != nil {
		return Stats{}, fmt.Errorf("complexity distribution: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tier string
		var n int
		if err := rows.Scan(&tier, &n); err != nil {
			return Stats{}, err
		}
		stats.ComplexityDistribution[tier] = n
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}

	recent, err := s.ListRecent(10, 0)
	if err != nil {
		return Stats{}, fmt.Errorf("recent activity: %w", err)
	}
	for _, p := range recent {
		stats.RecentActivity = append(stats.RecentActivity, ActivityItem{
			ID:           p.ID,
			CreatedAt:    p.CreatedAt.Format(time.RFC3339),
			QualityScore: p.QualityScore,
		})
	}

	return stats, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
