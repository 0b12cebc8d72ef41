package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	// SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/groupdigest/summary-platform/internal/engine"
	"github.com/groupdigest/summary-platform/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS message (
	id TEXT PRIMARY KEY,
	thread_id TEXT NOT NULL,
	thread_name TEXT NOT NULL,
	sender TEXT NOT NULL,
	content TEXT NOT NULL,
	ts INTEGER NOT NULL,
	type TEXT NOT NULL,
	is_deleted INTEGER NOT NULL DEFAULT 0,
	created_ts INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_message_thread ON message (thread_id, ts);

CREATE TABLE IF NOT EXISTS thread (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	message_count INTEGER NOT NULL DEFAULT 0,
	last_message_ts INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS summary (
	id TEXT PRIMARY KEY,
	thread_id TEXT NOT NULL,
	thread_name TEXT NOT NULL,
	overview TEXT NOT NULL,
	key_topics TEXT NOT NULL,
	action_items TEXT NOT NULL,
	announcements TEXT NOT NULL,
	participant_highlights TEXT NOT NULL,
	message_count INTEGER NOT NULL,
	start_ts INTEGER NOT NULL,
	end_ts INTEGER NOT NULL,
	generated_ts INTEGER NOT NULL,
	raw_response TEXT
);
CREATE INDEX IF NOT EXISTS idx_summary_thread ON summary (thread_id, generated_ts);

CREATE TABLE IF NOT EXISTS downloaded_model (
	name TEXT PRIMARY KEY,
	local_file_path TEXT NOT NULL,
	downloaded_ts INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS preference (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const (
	prefProvider   = "active_provider"
	prefCredential = "cloud_credential"
	prefThreshold  = "importance_threshold"
)

// DB is the sqlite-backed implementation of every store interface.
type DB struct {
	db *sql.DB

	defaultProvider  engine.Provider
	defaultThreshold float64
}

// Open opens (and migrates) the database at dsn.
//
// Pragmas follow the modernc driver convention: WAL journal mode to avoid
// lock contention, a busy timeout, and a single connection, which is
// optimal for a single-user embedded database.
func Open(dsn string, defaultProvider engine.Provider, defaultThreshold float64) (*DB, error) {
	if dsn == "" {
		return nil, errors.New("sqlite dsn required")
	}

	db, err := sql.Open("sqlite", dsn+"?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &DB{
		db:               db,
		defaultProvider:  defaultProvider,
		defaultThreshold: defaultThreshold,
	}, nil
}

// Close closes the underlying database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping verifies the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// CreateMessage stores one captured message and bumps its thread record.
func (d *DB) CreateMessage(ctx context.Context, msg *model.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.Must(uuid.NewV7()).String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO message (id, thread_id, thread_name, sender, content, ts, type, is_deleted, created_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ThreadID, msg.ThreadName, msg.Sender, msg.Content,
		msg.Timestamp.UnixMilli(), string(msg.Type), boolToInt(msg.IsDeleted), msg.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO thread (id, name, message_count, last_message_ts)
		VALUES (?, ?, 1, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			message_count = thread.message_count + 1,
			last_message_ts = MAX(thread.last_message_ts, excluded.last_message_ts)`,
		msg.ThreadID, msg.ThreadName, msg.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert thread: %w", err)
	}

	return tx.Commit()
}

// ListMessages returns all messages in a thread, oldest first.
func (d *DB) ListMessages(ctx context.Context, threadID string) ([]model.Message, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, thread_id, thread_name, sender, content, ts, type, is_deleted, created_ts
		FROM message WHERE thread_id = ? ORDER BY ts ASC`, threadID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// ListRecentMessages returns the newest limit messages, oldest first.
func (d *DB) ListRecentMessages(ctx context.Context, threadID string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, thread_id, thread_name, sender, content, ts, type, is_deleted, created_ts
		FROM (
			SELECT * FROM message WHERE thread_id = ? ORDER BY ts DESC LIMIT ?
		) ORDER BY ts ASC`, threadID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]model.Message, error) {
	var messages []model.Message
	for rows.Next() {
		var m model.Message
		var ts, createdTs int64
		var msgType string
		var deleted int
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.ThreadName, &m.Sender, &m.Content,
			&ts, &msgType, &deleted, &createdTs); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Timestamp = time.UnixMilli(ts)
		m.CreatedAt = time.UnixMilli(createdTs)
		m.Type = model.MessageType(msgType)
		m.IsDeleted = deleted != 0
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// GetThread returns one thread, or ErrNotFound.
func (d *DB) GetThread(ctx context.Context, threadID string) (*model.Thread, error) {
	var t model.Thread
	var lastTs int64
	err := d.db.QueryRowContext(ctx, `
		SELECT id, name, message_count, last_message_ts FROM thread WHERE id = ?`, threadID).
		Scan(&t.ID, &t.Name, &t.MessageCount, &lastTs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query thread: %w", err)
	}
	t.LastMessageAt = time.UnixMilli(lastTs)
	return &t, nil
}

// ListThreads returns all threads, most recently active first.
func (d *DB) ListThreads(ctx context.Context) ([]model.Thread, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, name, message_count, last_message_ts FROM thread ORDER BY last_message_ts DESC`)
	if err != nil {
		return nil, fmt.Errorf("query threads: %w", err)
	}
	defer rows.Close()

	var threads []model.Thread
	for rows.Next() {
		var t model.Thread
		var lastTs int64
		if err := rows.Scan(&t.ID, &t.Name, &t.MessageCount, &lastTs); err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		t.LastMessageAt = time.UnixMilli(lastTs)
		threads = append(threads, t)
	}
	return threads, rows.Err()
}

// TouchThread upserts a thread record without touching message counters.
func (d *DB) TouchThread(ctx context.Context, thread *model.Thread) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO thread (id, name, message_count, last_message_ts)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name`,
		thread.ID, thread.Name, thread.MessageCount, thread.LastMessageAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert thread: %w", err)
	}
	return nil
}

// CreateSummary persists a summary and returns its generated id.
func (d *DB) CreateSummary(ctx context.Context, s *model.Summary) (string, error) {
	if s.ID == "" {
		s.ID = uuid.Must(uuid.NewV7()).String()
	}

	topics, err := json.Marshal(s.KeyTopics)
	if err != nil {
		return "", fmt.Errorf("marshal topics: %w", err)
	}
	actions, err := json.Marshal(s.ActionItems)
	if err != nil {
		return "", fmt.Errorf("marshal actions: %w", err)
	}
	announcements, err := json.Marshal(s.Announcements)
	if err != nil {
		return "", fmt.Errorf("marshal announcements: %w", err)
	}
	highlights, err := json.Marshal(s.ParticipantHighlights)
	if err != nil {
		return "", fmt.Errorf("marshal highlights: %w", err)
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO summary (id, thread_id, thread_name, overview, key_topics, action_items,
			announcements, participant_highlights, message_count, start_ts, end_ts, generated_ts, raw_response)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.ThreadID, s.ThreadName, s.Overview, string(topics), string(actions),
		string(announcements), string(highlights), s.MessageCount,
		s.StartTimestamp.UnixMilli(), s.EndTimestamp.UnixMilli(), s.GeneratedAt.UnixMilli(),
		s.RawModelResponse,
	)
	if err != nil {
		return "", fmt.Errorf("insert summary: %w", err)
	}
	return s.ID, nil
}

// LatestSummary returns the newest summary for a thread, or ErrNotFound.
func (d *DB) LatestSummary(ctx context.Context, threadID string) (*model.Summary, error) {
	var s model.Summary
	var topics, actions, announcements, highlights string
	var startTs, endTs, generatedTs int64
	var raw sql.NullString

	err := d.db.QueryRowContext(ctx, `
		SELECT id, thread_id, thread_name, overview, key_topics, action_items,
			announcements, participant_highlights, message_count, start_ts, end_ts, generated_ts, raw_response
		FROM summary WHERE thread_id = ? ORDER BY generated_ts DESC LIMIT 1`, threadID).
		Scan(&s.ID, &s.ThreadID, &s.ThreadName, &s.Overview, &topics, &actions,
			&announcements, &highlights, &s.MessageCount, &startTs, &endTs, &generatedTs, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}

	if err := json.Unmarshal([]byte(topics), &s.KeyTopics); err != nil {
		return nil, fmt.Errorf("unmarshal topics: %w", err)
	}
	if err := json.Unmarshal([]byte(actions), &s.ActionItems); err != nil {
		return nil, fmt.Errorf("unmarshal actions: %w", err)
	}
	if err := json.Unmarshal([]byte(announcements), &s.Announcements); err != nil {
		return nil, fmt.Errorf("unmarshal announcements: %w", err)
	}
	if err := json.Unmarshal([]byte(highlights), &s.ParticipantHighlights); err != nil {
		return nil, fmt.Errorf("unmarshal highlights: %w", err)
	}
	s.StartTimestamp = time.UnixMilli(startTs)
	s.EndTimestamp = time.UnixMilli(endTs)
	s.GeneratedAt = time.UnixMilli(generatedTs)
	if raw.Valid {
		s.RawModelResponse = raw.String
	}
	return &s, nil
}

// DownloadedModel returns the most recent downloaded-model record, or nil
// when no model has been downloaded yet.
func (d *DB) DownloadedModel(ctx context.Context) (*DownloadedModel, error) {
	var m DownloadedModel
	err := d.db.QueryRowContext(ctx, `
		SELECT name, local_file_path FROM downloaded_model ORDER BY downloaded_ts DESC LIMIT 1`).
		Scan(&m.Name, &m.LocalFilePath)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query downloaded model: %w", err)
	}
	return &m, nil
}

// RegisterDownloadedModel records a model the download collaborator
// finished fetching.
func (d *DB) RegisterDownloadedModel(ctx context.Context, m *DownloadedModel) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO downloaded_model (name, local_file_path, downloaded_ts)
		VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			local_file_path = excluded.local_file_path,
			downloaded_ts = excluded.downloaded_ts`,
		m.Name, m.LocalFilePath, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("register downloaded model: %w", err)
	}
	return nil
}

// ActiveProvider reads the provider preference, defaulting when unset.
func (d *DB) ActiveProvider(ctx context.Context) (engine.Provider, error) {
	val, err := d.preference(ctx, prefProvider)
	if err != nil {
		return "", err
	}
	if val == "" {
		return d.defaultProvider, nil
	}
	return engine.ParseProvider(val), nil
}

// SetActiveProvider stores the provider preference.
func (d *DB) SetActiveProvider(ctx context.Context, provider engine.Provider) error {
	return d.setPreference(ctx, prefProvider, string(provider))
}

// CloudCredential reads the cloud API credential.
func (d *DB) CloudCredential(ctx context.Context) (string, error) {
	return d.preference(ctx, prefCredential)
}

// SetCloudCredential stores the cloud API credential.
func (d *DB) SetCloudCredential(ctx context.Context, credential string) error {
	return d.setPreference(ctx, prefCredential, credential)
}

// ImportanceThreshold reads the triage threshold, defaulting when unset.
func (d *DB) ImportanceThreshold(ctx context.Context) (float64, error) {
	val, err := d.preference(ctx, prefThreshold)
	if err != nil {
		return 0, err
	}
	if val == "" {
		return d.defaultThreshold, nil
	}
	threshold, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return d.defaultThreshold, nil
	}
	return threshold, nil
}

// SetImportanceThreshold stores the triage threshold.
func (d *DB) SetImportanceThreshold(ctx context.Context, threshold float64) error {
	return d.setPreference(ctx, prefThreshold, strconv.FormatFloat(threshold, 'f', -1, 64))
}

func (d *DB) preference(ctx context.Context, key string) (string, error) {
	var val string
	err := d.db.QueryRowContext(ctx, `SELECT value FROM preference WHERE key = ?`, key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query preference %s: %w", key, err)
	}
	return val, nil
}

func (d *DB) setPreference(ctx context.Context, key, value string) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO preference (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set preference %s: %w", key, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
