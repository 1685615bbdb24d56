package node

import (
	"sync"

	"github.com/roach88/helix/internal/change"
	"github.com/roach88/helix/internal/selector"
)

// Expression is a derived, read-mostly view over one or more sources.
//
// It never aliases canonical data: its cache is rebuilt from delivered views
// (replace-on-update, never partially mutated in place) and its only write
// path is RequestEdit, which proxies into the nearest true master's mutate
// API.
type Expression struct {
	// mu serializes cache updates; only one OnChange is in flight per node
	// under the source-side locking discipline, but RequestEdit and View
	// may race with it from other goroutines.
	mu sync.Mutex

	links    []*link
	caches   []*originCache
	last     change.Event
	hasLast  bool
	notified int64
	observer func(selector.View)
}

type link struct {
	sub *Subscription
}

// originCache is one source's slice of the derived view. Caching per origin
// keeps a full-Replace snapshot from one source from wiping what another
// source contributed.
type originCache struct {
	origin string
	data   change.Value
}

// ExpressionOption configures an Expression at construction time.
type ExpressionOption func(*Expression)

// WithObserver installs a rendering-collaborator callback invoked
// synchronously after each cache update. The observer must not perform
// long-running work inline; schedule actual redraws elsewhere.
func WithObserver(fn func(selector.View)) ExpressionOption {
	return func(e *Expression) { e.observer = fn }
}

// NewExpression creates an unlinked expression with an empty cache.
func NewExpression(opts ...ExpressionOption) *Expression {
	e := &Expression{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Link subscribes to source through sel and immediately pulls an initial
// full snapshot - a synthetic Replace covering the current canonical state,
// filtered by the selector - so the derived view starts consistent rather
// than empty.
func (e *Expression) Link(source Source, sel selector.Selector) (*Subscription, error) {
	if source == nil {
		return nil, newError(CodeArgument, "", nil, "nil source")
	}

	sub, err := source.Subscribe(sel, e)
	if err != nil {
		return nil, err
	}

	snap, seq := source.Snapshot()
	synthetic := change.Event{
		Origin:   source.ID(),
		Kind:     change.Replace,
		NewValue: snap,
		Seq:      seq,
	}
	if sel.Match(synthetic) {
		if view, ok := sel.Project(synthetic); ok {
			e.OnChange(view)
		}
	}

	e.mu.Lock()
	e.links = append(e.links, &link{sub: sub})
	e.mu.Unlock()
	return sub, nil
}

// Unlink detaches a subscription. Subsequent changes on that source are no
// longer observed; the cached view is retained as a last-known snapshot,
// not cleared.
func (e *Expression) Unlink(sub *Subscription) {
	if sub == nil {
		return
	}

	e.mu.Lock()
	for i, l := range e.links {
		if l.sub == sub {
			e.links = append(e.links[:i], e.links[i+1:]...)
			break
		}
	}
	e.mu.Unlock()

	sub.source.Unsubscribe(sub)
}

// OnChange replaces the cached derived view with a fresh value incorporating
// the delivered projection. Invoked synchronously by the bound source within
// its mutate call.
func (e *Expression) OnChange(view selector.View) {
	e.mu.Lock()
	c := e.cacheFor(view.Event.Origin)
	c.data = applyView(c.data, view)
	e.last = view.Event
	e.hasLast = true
	e.notified++
	observer := e.observer
	e.mu.Unlock()

	if observer != nil {
		observer(view)
	}
}

// cacheFor returns the cache slice for an origin, creating it on first
// notification. Callers hold e.mu.
func (e *Expression) cacheFor(origin string) *originCache {
	for _, c := range e.caches {
		if c.origin == origin {
			return c
		}
	}
	c := &originCache{origin: origin}
	e.caches = append(e.caches, c)
	return c
}

// RequestEdit forwards an edit request to the nearest true master and
// returns the committed event.
//
// The event also arrives through the node's own subscription when the
// selector matches it - the echo is a normal notification, not a duplicate
// to be suppressed, and the caller must not assume the return value made it
// redundant.
func (e *Expression) RequestEdit(req change.EditRequest) (change.Event, error) {
	e.mu.Lock()
	if len(e.links) == 0 {
		e.mu.Unlock()
		return change.Event{}, newError(CodeArgument, "", req.Path, "expression is not linked")
	}
	// Edits route through the earliest surviving link.
	src := e.links[0].sub.source
	e.mu.Unlock()

	ev, err := src.Apply(req)
	if err != nil && !IsDelivery(err) {
		return change.Event{}, &Error{
			Code:    CodeRejectedEdit,
			Message: "upstream rejected edit",
			Node:    src.ID(),
			Path:    req.Path.Clone(),
			Err:     err,
		}
	}
	// A delivery failure still committed the mutation; report it as-is.
	return ev, err
}

// View returns a deep copy of the cached derived view, merging the slices
// from every origin in first-notification order. Nil until the first
// matching notification or snapshot arrives.
func (e *Expression) View() change.Value {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.caches) == 1 {
		return change.Clone(e.caches[0].data)
	}
	var out change.Value
	for _, c := range e.caches {
		if out == nil {
			out = change.Clone(c.data)
			continue
		}
		out = change.Merge(out, c.data)
	}
	return out
}

// LastEvent returns the most recently observed event, if any.
func (e *Expression) LastEvent() (change.Event, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last, e.hasLast
}

// NotifyCount returns how many notifications the expression has received,
// including initial snapshots. Used for testing and introspection.
func (e *Expression) NotifyCount() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.notified
}

// applyView folds one delivered projection into the previous cache value and
// returns the replacement. The previous value is never mutated: Merge and
// Prune both build fresh trees, keeping the cache trivially invalidated.
//
// Update assigns wholesale at the event path, the same way the master
// commits it, so the old subtree is pruned before the delivered data merges
// in. A bare merge would leave keys absent from the new value behind.
func applyView(cur change.Value, view selector.View) change.Value {
	ev := view.Event
	switch ev.Kind {
	case change.Remove:
		return change.Prune(cur, ev.Path)
	case change.Update, change.Replace:
		base := change.Prune(cur, ev.Path)
		if view.Data == nil {
			return base
		}
		return change.Merge(base, view.Data)
	default:
		if view.Data == nil {
			return cur
		}
		return change.Merge(cur, view.Data)
	}
}
