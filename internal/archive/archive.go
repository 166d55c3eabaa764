// Package archive persists accepted events in a SQLite database so the HTTP,
// ICS, and MCP surfaces can query them after the batch that produced them is
// gone. It is a plain CRUD layer: all parsing and learning happens upstream.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/picnicd/picnic/internal/event"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id TEXT PRIMARY KEY,
	message_id TEXT NOT NULL,
	subject TEXT,
	mailing_list TEXT,
	title TEXT NOT NULL,
	description TEXT,
	organizer TEXT,
	date_start TEXT,
	time_start TEXT,
	time_end TEXT,
	timezone TEXT NOT NULL,
	location TEXT,
	category TEXT,
	free INTEGER NOT NULL DEFAULT 1,
	food TEXT NOT NULL DEFAULT '[]',
	urls TEXT NOT NULL DEFAULT '[]',
	contacts TEXT NOT NULL DEFAULT '[]',
	confidence TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_events_message ON events(message_id);
CREATE INDEX IF NOT EXISTS idx_events_date ON events(date_start);
CREATE INDEX IF NOT EXISTS idx_events_list ON events(mailing_list);
CREATE INDEX IF NOT EXISTS idx_events_category ON events(category);
CREATE INDEX IF NOT EXISTS idx_events_free ON events(free);
`

// Archive is the SQLite-backed event store.
type Archive struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the archive at path. Pass ":memory:" for tests.
func Open(path string) (*Archive, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating archive dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging archive: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Archive{db: db, path: path}, nil
}

// Close closes the underlying database.
func (a *Archive) Close() error { return a.db.Close() }

// Save upserts an event keyed by its source message id and returns the
// archive row id. Re-parsing the same message updates the existing row.
func (a *Archive) Save(ctx context.Context, ev *event.Event) (string, error) {
	food, err := json.Marshal(ev.Food)
	if err != nil {
		return "", fmt.Errorf("encoding food: %w", err)
	}
	urls, err := json.Marshal(ev.URLs)
	if err != nil {
		return "", fmt.Errorf("encoding urls: %w", err)
	}
	contacts, err := json.Marshal(ev.Contacts)
	if err != nil {
		return "", fmt.Errorf("encoding contacts: %w", err)
	}
	var confidence []byte
	if ev.Confidence != nil {
		if confidence, err = json.Marshal(ev.Confidence); err != nil {
			return "", fmt.Errorf("encoding confidence: %w", err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)

	var id string
	err = a.db.QueryRowContext(ctx,
		"SELECT id FROM events WHERE message_id = ?", ev.SourceMessageID).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		id = uuid.NewString()
		_, err = a.db.ExecContext(ctx, `
			INSERT INTO events (
				id, message_id, subject, mailing_list, title, description,
				organizer, date_start, time_start, time_end, timezone,
				location, category, free, food, urls, contacts, confidence,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, ev.SourceMessageID, ev.SourceSubject, ev.MailingList,
			ev.Title, ev.Description, ev.Organizer, ev.DateStart,
			ev.TimeStart, ev.TimeEnd, ev.Timezone, ev.Location, ev.Category,
			boolToInt(ev.Free), string(food), string(urls), string(contacts),
			nullable(confidence), now, now)
		if err != nil {
			return "", fmt.Errorf("inserting event: %w", err)
		}
		return id, nil
	case err != nil:
		return "", fmt.Errorf("looking up event: %w", err)
	}

	_, err = a.db.ExecContext(ctx, `
		UPDATE events SET
			subject = ?, mailing_list = ?, title = ?, description = ?,
			organizer = ?, date_start = ?, time_start = ?, time_end = ?,
			timezone = ?, location = ?, category = ?, free = ?, food = ?,
			urls = ?, contacts = ?, confidence = ?, updated_at = ?
		WHERE id = ?`,
		ev.SourceSubject, ev.MailingList, ev.Title, ev.Description,
		ev.Organizer, ev.DateStart, ev.TimeStart, ev.TimeEnd, ev.Timezone,
		ev.Location, ev.Category, boolToInt(ev.Free), string(food),
		string(urls), string(contacts), nullable(confidence), now, id)
	if err != nil {
		return "", fmt.Errorf("updating event: %w", err)
	}
	return id, nil
}

// MergeSighting folds a duplicate announcement into the stored event: URLs
// are unioned, the mailing-list tag is kept if the stored row lacks one, and
// each confidence axis keeps the higher of the two scores.
func (a *Archive) MergeSighting(ctx context.Context, id string, ev *event.Event) error {
	var urlsJSON, mailingList string
	var confJSON sql.NullString
	err := a.db.QueryRowContext(ctx,
		"SELECT urls, COALESCE(mailing_list, ''), confidence FROM events WHERE id = ?", id).
		Scan(&urlsJSON, &mailingList, &confJSON)
	if err == sql.ErrNoRows {
		return nil // first sighting was never archived; nothing to merge into
	}
	if err != nil {
		return fmt.Errorf("loading event %s: %w", id, err)
	}

	var urls []string
	_ = json.Unmarshal([]byte(urlsJSON), &urls)
	seen := map[string]bool{}
	for _, u := range urls {
		seen[u] = true
	}
	for _, u := range ev.URLs {
		if !seen[u] {
			urls = append(urls, u)
			seen[u] = true
		}
	}
	merged, err := json.Marshal(urls)
	if err != nil {
		return fmt.Errorf("encoding urls: %w", err)
	}

	if mailingList == "" {
		mailingList = ev.MailingList
	}

	var stored *event.Confidence
	if confJSON.Valid && confJSON.String != "" {
		var c event.Confidence
		if json.Unmarshal([]byte(confJSON.String), &c) == nil {
			stored = &c
		}
	}
	var confidence []byte
	if conf := mergeConfidence(stored, ev.Confidence); conf != nil {
		if confidence, err = json.Marshal(conf); err != nil {
			return fmt.Errorf("encoding confidence: %w", err)
		}
	}

	_, err = a.db.ExecContext(ctx,
		"UPDATE events SET urls = ?, mailing_list = ?, confidence = ?, updated_at = ? WHERE id = ?",
		string(merged), mailingList, nullable(confidence),
		time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("merging sighting into %s: %w", id, err)
	}
	return nil
}

// mergeConfidence keeps the higher score per axis; a nil score on one side
// adopts the other's.
func mergeConfidence(stored, seen *event.Confidence) *event.Confidence {
	if seen == nil {
		return stored
	}
	if stored == nil {
		c := *seen
		return &c
	}
	stored.Category = maxScore(stored.Category, seen.Category)
	stored.Cuisine = maxScore(stored.Cuisine, seen.Cuisine)
	stored.Overall = maxScore(stored.Overall, seen.Overall)
	return stored
}

func maxScore(a, b *float64) *float64 {
	if a == nil {
		return b
	}
	if b == nil || *a >= *b {
		return a
	}
	return b
}

// ListOpts filters List results.
type ListOpts struct {
	Since    string // inclusive YYYY-MM-DD lower bound on date_start
	Until    string // inclusive upper bound
	Category string
	FreeOnly bool
	Limit    int
}

// List returns archived events ordered by start date then time.
func (a *Archive) List(ctx context.Context, opts ListOpts) ([]*event.Event, error) {
	query := `
		SELECT message_id, subject, mailing_list, title, description,
			organizer, date_start, time_start, time_end, timezone, location,
			category, free, food, urls, contacts, confidence
		FROM events WHERE 1=1`
	var args []any
	if opts.Since != "" {
		query += " AND date_start >= ?"
		args = append(args, opts.Since)
	}
	if opts.Until != "" {
		query += " AND date_start <= ?"
		args = append(args, opts.Until)
	}
	if opts.Category != "" {
		query += " AND category = ?"
		args = append(args, opts.Category)
	}
	if opts.FreeOnly {
		query += " AND free = 1"
	}
	query += " ORDER BY date_start, time_start"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []*event.Event
	for rows.Next() {
		var ev event.Event
		var free int
		var food, urls, contacts string
		var confidence sql.NullString
		var subject, mailingList, description, organizer sql.NullString
		var dateStart, timeStart, timeEnd, location, category sql.NullString
		if err := rows.Scan(&ev.SourceMessageID, &subject, &mailingList,
			&ev.Title, &description, &organizer, &dateStart, &timeStart,
			&timeEnd, &ev.Timezone, &location, &category, &free, &food,
			&urls, &contacts, &confidence); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}
		ev.SourceSubject = subject.String
		ev.MailingList = mailingList.String
		ev.Description = description.String
		ev.Organizer = organizer.String
		ev.DateStart = dateStart.String
		ev.TimeStart = timeStart.String
		ev.TimeEnd = timeEnd.String
		ev.Location = location.String
		ev.Category = category.String
		ev.Free = free != 0
		_ = json.Unmarshal([]byte(food), &ev.Food)
		_ = json.Unmarshal([]byte(urls), &ev.URLs)
		_ = json.Unmarshal([]byte(contacts), &ev.Contacts)
		if confidence.Valid && confidence.String != "" {
			var c event.Confidence
			if json.Unmarshal([]byte(confidence.String), &c) == nil {
				ev.Confidence = &c
			}
		}
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating event rows: %w", err)
	}
	return events, nil
}

// Count returns the number of archived events.
func (a *Archive) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting events: %w", err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
