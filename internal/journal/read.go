package journal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/helix/internal/change"
)

// ReadEvents returns every persisted event for one origin in commit order.
// Ordering is deterministic: seq is unique per origin, and the
// content-addressed id breaks ties for logs merged from multiple journals.
// Returns an empty slice, not nil, when the origin has no events.
func (j *Journal) ReadEvents(ctx context.Context, origin string) ([]change.Event, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT origin, seq, kind, path, old_value, new_value
		FROM events
		WHERE origin = ?
		ORDER BY seq ASC, event_id COLLATE BINARY ASC
	`, origin)
	if err != nil {
		return nil, fmt.Errorf("query events for %s: %w", origin, err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ReadAll returns every persisted event across all origins, grouped by
// origin and ordered by seq within each group.
func (j *Journal) ReadAll(ctx context.Context) ([]change.Event, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT origin, seq, kind, path, old_value, new_value
		FROM events
		ORDER BY origin ASC, seq ASC, event_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query all events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// Origins returns the distinct origin ids present in the journal, sorted.
func (j *Journal) Origins(ctx context.Context) ([]string, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT DISTINCT origin FROM events ORDER BY origin ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query origins: %w", err)
	}
	defer rows.Close()

	origins := []string{}
	for rows.Next() {
		var origin string
		if err := rows.Scan(&origin); err != nil {
			return nil, fmt.Errorf("scan origin: %w", err)
		}
		origins = append(origins, origin)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate origins: %w", err)
	}
	return origins, nil
}

func scanEvents(rows *sql.Rows) ([]change.Event, error) {
	events := []change.Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func scanEvent(rows *sql.Rows) (change.Event, error) {
	var (
		origin, kindName, pathJSON string
		oldJSON, newJSON           sql.NullString
		seq                        int64
	)
	if err := rows.Scan(&origin, &seq, &kindName, &pathJSON, &oldJSON, &newJSON); err != nil {
		return change.Event{}, fmt.Errorf("scan event: %w", err)
	}

	kind, err := change.ParseKind(kindName)
	if err != nil {
		return change.Event{}, fmt.Errorf("event origin=%s seq=%d: %w", origin, seq, err)
	}
	path, err := unmarshalPath(pathJSON)
	if err != nil {
		return change.Event{}, fmt.Errorf("event origin=%s seq=%d: %w", origin, seq, err)
	}
	oldValue, err := unmarshalOptionalValue(oldJSON)
	if err != nil {
		return change.Event{}, fmt.Errorf("event origin=%s seq=%d: old value: %w", origin, seq, err)
	}
	newValue, err := unmarshalOptionalValue(newJSON)
	if err != nil {
		return change.Event{}, fmt.Errorf("event origin=%s seq=%d: new value: %w", origin, seq, err)
	}

	return change.Event{
		Origin:   origin,
		Kind:     kind,
		Path:     path,
		OldValue: oldValue,
		NewValue: newValue,
		Seq:      seq,
	}, nil
}

func unmarshalPath(data string) (change.Path, error) {
	v, err := change.UnmarshalValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal path: %w", err)
	}
	arr, ok := v.(change.Array)
	if !ok {
		return nil, fmt.Errorf("unmarshal path: want array, got %T", v)
	}
	path := make(change.Path, len(arr))
	for i, elem := range arr {
		s, ok := elem.(change.String)
		if !ok {
			return nil, fmt.Errorf("unmarshal path: element %d: want string, got %T", i, elem)
		}
		path[i] = string(s)
	}
	return path, nil
}

// unmarshalOptionalValue inverts marshalOptionalValue: a SQL NULL column is
// an absent value and scans back to nil, while the stored literal "null" is
// an explicit change.Null payload and round-trips as one.
func unmarshalOptionalValue(data sql.NullString) (change.Value, error) {
	if !data.Valid {
		return nil, nil
	}
	return change.UnmarshalValue([]byte(data.String))
}
