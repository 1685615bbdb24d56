package node

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/helix/internal/change"
	"github.com/roach88/helix/internal/selector"
)

// Handler receives projected views from a source a subscription is bound to.
// Delivery is synchronous within the mutating call: OnChange must not block
// on external work; rendering or persistence side effects should be queued
// by the collaborator, not performed inline.
type Handler interface {
	OnChange(view selector.View)
}

// Source is the master role: a node that owns data downstream subscribers
// derive from. Master implements it directly; Composite implements it as a
// relay over its own derived view.
type Source interface {
	// ID returns the node's identity.
	ID() string

	// Snapshot returns a deep copy of the current canonical data and the
	// sequence number it is consistent with.
	Snapshot() (change.Value, int64)

	// Subscribe registers interest in future changes. Fails only with an
	// ARGUMENT error when the selector or handler is malformed.
	Subscribe(sel selector.Selector, h Handler) (*Subscription, error)

	// Unsubscribe removes a subscription. Idempotent: unsubscribing a
	// subscription that is not registered is a no-op.
	Unsubscribe(sub *Subscription)

	// Apply routes an edit request to the nearest true master's mutate
	// path and returns the committed event.
	Apply(req change.EditRequest) (change.Event, error)

	// dependsOn reports whether id names this node or any node transitively
	// upstream of it. Sealed: only in-package node kinds participate in the
	// link graph, which is what makes the cycle check total.
	dependsOn(id string) bool
}

// Subscription binds one selector and one handler to one source. A source
// holds subscriptions by back-reference only: discarding the owning node and
// unsubscribing is all the cleanup there is.
type Subscription struct {
	id      int64
	sel     selector.Selector
	handler Handler
	source  Source
}

// ID returns the subscription's registration id, unique and increasing per
// source.
func (s *Subscription) ID() int64 {
	return s.id
}

// Source returns the source the subscription is registered against.
func (s *Subscription) Source() Source {
	return s.source
}

// Master owns one canonical data set and is its exclusive write gateway.
// There is no operation that hands out a mutable reference to the data:
// Mutate is the sole write path, so every write is observable.
//
// All mutation and subscription APIs are serialized by the master's own
// mutex - one mutation in flight at a time. Mutations to different masters
// are independent.
type Master struct {
	mu      sync.Mutex
	id      string
	data    change.Object
	clock   *Clock
	subs    []*Subscription
	nextSub int64
}

// MasterOption configures a Master at construction time.
type MasterOption func(*masterConfig)

type masterConfig struct {
	identity string
	gen      IdentityGenerator
}

// WithIdentity pins the master's identity instead of generating one.
func WithIdentity(id string) MasterOption {
	return func(c *masterConfig) { c.identity = id }
}

// WithIdentityGenerator overrides the identity generator (tests use
// FixedGenerator for deterministic traces).
func WithIdentityGenerator(gen IdentityGenerator) MasterOption {
	return func(c *masterConfig) { c.gen = gen }
}

// NewMaster creates a master owning a deep copy of initial. A nil initial
// data set starts empty.
func NewMaster(initial change.Object, opts ...MasterOption) *Master {
	cfg := masterConfig{gen: UUIDv7Generator{}}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.identity == "" {
		cfg.identity = cfg.gen.Generate()
	}

	data := change.Object{}
	if initial != nil {
		data = change.Clone(initial).(change.Object)
	}

	return &Master{
		id:    cfg.identity,
		data:  data,
		clock: NewClock(),
	}
}

// ID returns the master's identity.
func (m *Master) ID() string {
	return m.id
}

// Snapshot returns a deep copy of the canonical data and the seq it is
// consistent with.
func (m *Master) Snapshot() (change.Value, int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return change.Clone(m.data), m.clock.Current()
}

// Mutate applies one atomic change to the canonical data set at path.
//
// On success it assigns the next sequence number, commits, broadcasts to
// subscriptions in registration order, and returns the event that was
// broadcast. Rejections (INVALID_PATH, TYPE_CONFLICT) leave canonical data
// unchanged.
//
// Per-subscriber delivery failures do not abort the broadcast: the
// remaining subscribers are still notified, and the call returns the
// committed event together with a *DeliveryError naming the failures.
func (m *Master) Mutate(path change.Path, kind change.Kind, value change.Value) (change.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, err := applyMutation(m.id, &m.data, path, kind, value)
	if err != nil {
		return change.Event{}, err
	}

	ev := change.Event{
		Origin:   m.id,
		Kind:     kind,
		Path:     path.Clone(),
		OldValue: old,
		NewValue: change.Clone(value),
		Seq:      m.clock.Next(),
	}

	slog.Debug("mutation committed",
		"node", m.id,
		"kind", kind.String(),
		"path", ev.Path.String(),
		"seq", ev.Seq,
	)

	if failures := broadcast(ev, m.subs); len(failures) > 0 {
		return ev, &DeliveryError{Event: ev, Failures: failures}
	}
	return ev, nil
}

// Subscribe registers interest in future changes, evaluated in registration
// order on every broadcast.
func (m *Master) Subscribe(sel selector.Selector, h Handler) (*Subscription, error) {
	if !selector.Valid(sel) {
		return nil, newError(CodeArgument, m.id, nil, "malformed selector")
	}
	if h == nil {
		return nil, newError(CodeArgument, m.id, nil, "nil handler")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextSub++
	sub := &Subscription{id: m.nextSub, sel: sel, handler: h, source: m}
	m.subs = append(m.subs, sub)
	return sub, nil
}

// Unsubscribe removes a subscription, preserving the registration order of
// the rest. Idempotent.
func (m *Master) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = removeSub(m.subs, sub)
}

// Apply routes an edit request into Mutate. Master is the end of every edit
// forwarding chain.
func (m *Master) Apply(req change.EditRequest) (change.Event, error) {
	return m.Mutate(req.Path, req.Kind, req.Value)
}

// SubscriptionCount returns the number of live subscriptions. Used for
// testing and introspection.
func (m *Master) SubscriptionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// Seq returns the master's current sequence number.
func (m *Master) Seq() int64 {
	return m.clock.Current()
}

func (m *Master) dependsOn(id string) bool {
	// A pure master has no upstream: it only reaches itself.
	return m.id == id
}

func removeSub(subs []*Subscription, sub *Subscription) []*Subscription {
	for i, s := range subs {
		if s == sub {
			return append(subs[:i], subs[i+1:]...)
		}
	}
	return subs
}

// broadcast evaluates every subscription's predicate against ev in
// registration order and delivers projections to the matches. Failures are
// isolated per subscriber: a panicking projector or handler is recovered,
// recorded, and the loop continues.
func broadcast(ev change.Event, subs []*Subscription) []SubscriberFailure {
	var failures []SubscriberFailure
	for _, sub := range subs {
		if !sub.sel.Match(ev) {
			continue
		}
		if err := deliver(ev, sub); err != nil {
			slog.Error("subscriber delivery failed",
				"origin", ev.Origin,
				"seq", ev.Seq,
				"subscription", sub.id,
				"error", err,
			)
			failures = append(failures, SubscriberFailure{SubscriptionID: sub.id, Err: err})
		}
	}
	return failures
}

func deliver(ev change.Event, sub *Subscription) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panic: %v", r)
		}
	}()

	view, ok := sub.sel.Project(ev)
	if !ok {
		return nil
	}
	sub.handler.OnChange(view)
	return nil
}

// applyMutation validates and applies one mutation to the object rooted at
// *root. All-or-nothing: on error *root is untouched. On success it returns
// a deep copy of the previous value at path (nil for Insert).
func applyMutation(nodeID string, root *change.Object, path change.Path, kind change.Kind, value change.Value) (change.Value, error) {
	if len(path) == 0 {
		return applyRootMutation(nodeID, root, kind, value)
	}

	// Walk to the parent of the final key; every step must be an object.
	parent := *root
	for i, key := range path[:len(path)-1] {
		next, ok := parent[key]
		if !ok {
			return nil, newError(CodeInvalidPath, nodeID, path, "path does not resolve at %q", path[:i+1].String())
		}
		obj, ok := next.(change.Object)
		if !ok {
			return nil, newError(CodeInvalidPath, nodeID, path, "%q is not an object", path[:i+1].String())
		}
		parent = obj
	}

	key := path[len(path)-1]
	existing, exists := parent[key]

	switch kind {
	case change.Insert:
		if exists {
			return nil, newError(CodeInvalidPath, nodeID, path, "insert at existing key %q", key)
		}
		if value == nil {
			return nil, newError(CodeArgument, nodeID, path, "insert requires a value")
		}
		parent[key] = change.Clone(value)
		return nil, nil

	case change.Remove:
		if !exists {
			return nil, newError(CodeInvalidPath, nodeID, path, "remove at non-existent key %q", key)
		}
		delete(parent, key)
		return change.Clone(existing), nil

	case change.Update:
		if !exists {
			return nil, newError(CodeInvalidPath, nodeID, path, "update at non-existent key %q", key)
		}
		if value == nil {
			return nil, newError(CodeArgument, nodeID, path, "update requires a value")
		}
		if oc, nc := change.StructuralClass(existing), change.StructuralClass(value); oc != nc {
			return nil, newError(CodeTypeConflict, nodeID, path, "update would change %s to %s; use replace", oc, nc)
		}
		parent[key] = change.Clone(value)
		return change.Clone(existing), nil

	case change.Replace:
		if !exists {
			return nil, newError(CodeInvalidPath, nodeID, path, "replace at non-existent key %q; use insert", key)
		}
		if value == nil {
			return nil, newError(CodeArgument, nodeID, path, "replace requires a value")
		}
		parent[key] = change.Clone(value)
		return change.Clone(existing), nil

	default:
		return nil, newError(CodeArgument, nodeID, path, "unknown mutation kind %d", int(kind))
	}
}

// applyRootMutation handles the empty path: the whole canonical data set.
// Only Update and Replace make sense there, and both require an object so
// the root stays a mapping.
func applyRootMutation(nodeID string, root *change.Object, kind change.Kind, value change.Value) (change.Value, error) {
	switch kind {
	case change.Update, change.Replace:
		obj, ok := value.(change.Object)
		if !ok {
			return nil, newError(CodeTypeConflict, nodeID, nil, "root must remain an object, got %s", change.StructuralClass(value))
		}
		old := change.Clone(*root)
		*root = change.Clone(obj).(change.Object)
		return old, nil
	default:
		return nil, newError(CodeInvalidPath, nodeID, nil, "%s at root is not valid", kind)
	}
}
