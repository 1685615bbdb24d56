package journal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/helix/internal/change"
	"github.com/roach88/helix/internal/node"
	"github.com/roach88/helix/internal/selector"
)

// Recorder persists every change event emitted by the sources it is
// attached to. It implements node.Handler, so attaching is an ordinary
// subscription: the recorder sees events in commit order, synchronously,
// inside the origin's delivery pass.
//
// Append failures are logged and swallowed rather than propagated. A
// persistence fault must not fail the mutation that produced the event;
// the mutation is already committed by the time the recorder runs.
type Recorder struct {
	journal *Journal
	subs    []*node.Subscription
}

// NewRecorder creates a recorder writing to the given journal.
func NewRecorder(j *Journal) *Recorder {
	return &Recorder{journal: j}
}

// Attach subscribes the recorder to every event the source emits.
func (r *Recorder) Attach(src node.Source) error {
	sub, err := src.Subscribe(selector.All(), r)
	if err != nil {
		return fmt.Errorf("attach recorder to %s: %w", src.ID(), err)
	}
	r.subs = append(r.subs, sub)
	return nil
}

// Detach removes all of the recorder's subscriptions.
func (r *Recorder) Detach() {
	for _, sub := range r.subs {
		sub.Source().Unsubscribe(sub)
	}
	r.subs = nil
}

// OnChange implements node.Handler.
func (r *Recorder) OnChange(view selector.View) {
	if err := r.journal.Append(context.Background(), view.Event); err != nil {
		slog.Error("journal append failed",
			"origin", view.Event.Origin,
			"seq", view.Event.Seq,
			"error", err)
	}
}

// Append writes one event to the journal. Appending the same event twice
// is a no-op: the event id is derived from the event's content, and the
// insert ignores conflicts on it. Replays and reconnects can therefore
// re-deliver events without corrupting the log.
func (j *Journal) Append(ctx context.Context, ev change.Event) error {
	id, err := change.EventID(ev)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	pathJSON, err := marshalPath(ev.Path)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	oldJSON, err := marshalOptionalValue(ev.OldValue)
	if err != nil {
		return fmt.Errorf("append event: marshal old value: %w", err)
	}
	newJSON, err := marshalOptionalValue(ev.NewValue)
	if err != nil {
		return fmt.Errorf("append event: marshal new value: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO events (event_id, origin, seq, kind, path, old_value, new_value)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_id) DO NOTHING
	`, id, ev.Origin, ev.Seq, ev.Kind.String(), pathJSON, oldJSON, newJSON)
	if err != nil {
		return fmt.Errorf("insert event %s: %w", id, err)
	}
	return nil
}

// marshalPath renders a path as a canonical JSON array of strings.
func marshalPath(p change.Path) (string, error) {
	arr := make(change.Array, len(p))
	for i, k := range p {
		arr[i] = change.String(k)
	}
	data, err := change.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal path %s: %w", p, err)
	}
	return string(data), nil
}

// marshalOptionalValue renders a value as canonical JSON. An absent value
// maps to SQL NULL; an explicit change.Null renders as the literal "null".
// The two must stay distinct: a recorded Update carrying Null replays as
// Mutate(path, Update, Null{}), which is legal, while a nil value is not.
func marshalOptionalValue(v change.Value) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := change.MarshalCanonical(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
