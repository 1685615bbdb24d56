package journal

import (
	"context"
	"fmt"

	"github.com/roach88/helix/internal/change"
	"github.com/roach88/helix/internal/node"
)

// Replay re-applies an origin's persisted events to a master through its
// ordinary mutate path, reconstructing equivalent canonical data. The
// target should start from the same initial data the original master had;
// replaying onto diverged data fails on the first event whose precondition
// no longer holds.
//
// Replayed events are committed fresh: the target stamps its own identity
// and sequence numbers, and its subscribers observe the replay as live
// mutations. Returns the number of events applied.
func (j *Journal) Replay(ctx context.Context, origin string, m *node.Master) (int, error) {
	events, err := j.ReadEvents(ctx, origin)
	if err != nil {
		return 0, fmt.Errorf("replay %s: %w", origin, err)
	}

	for i, ev := range events {
		value := ev.NewValue
		if ev.Kind == change.Remove {
			value = nil
		}
		if _, err := m.Mutate(ev.Path, ev.Kind, value); err != nil {
			// Delivery failures do not roll back the mutation, so the
			// replay itself stays consistent and can continue.
			if node.IsDelivery(err) {
				continue
			}
			return i, fmt.Errorf("replay %s: event seq=%d %s %s: %w",
				origin, ev.Seq, ev.Kind, ev.Path, err)
		}
	}
	return len(events), nil
}

// ReplayState folds an origin's persisted events over the given initial
// data without involving a node, returning the reconstructed canonical
// data. Useful for inspecting a journal offline.
func (j *Journal) ReplayState(ctx context.Context, origin string, initial change.Value) (change.Value, error) {
	events, err := j.ReadEvents(ctx, origin)
	if err != nil {
		return nil, fmt.Errorf("replay state %s: %w", origin, err)
	}

	data := change.Clone(initial)
	for _, ev := range events {
		data, err = applyEvent(data, ev)
		if err != nil {
			return nil, fmt.Errorf("replay state %s: event seq=%d: %w", origin, ev.Seq, err)
		}
	}
	return data, nil
}

func applyEvent(data change.Value, ev change.Event) (change.Value, error) {
	switch ev.Kind {
	case change.Remove:
		return change.Prune(data, ev.Path), nil
	case change.Update, change.Replace:
		// Both assign wholesale at the path; a bare merge would keep keys
		// the recorded event removed.
		if len(ev.Path) == 0 {
			return change.Clone(ev.NewValue), nil
		}
		pruned := change.Prune(data, ev.Path)
		return change.Merge(pruned, change.Nest(ev.Path, ev.NewValue)), nil
	case change.Insert:
		return change.Merge(data, change.Nest(ev.Path, ev.NewValue)), nil
	default:
		return nil, fmt.Errorf("unknown event kind %q", ev.Kind)
	}
}
