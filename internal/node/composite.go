package node

import (
	"log/slog"
	"sync"

	"github.com/roach88/helix/internal/change"
	"github.com/roach88/helix/internal/selector"
)

// Composite is a node that is simultaneously an expression of one upstream
// source and a master to its own downstream subscribers, enabling chained
// and tree topologies.
//
// Its canonical data IS its derived view of the upstream link. On each
// upstream notification it re-runs the broadcast path with its own sequence
// numbers: it is a relay, not a pass-through, which is what preserves the
// per-master seq invariant for its subscribers.
type Composite struct {
	mu      sync.Mutex
	id      string
	clock   *Clock
	data    change.Value
	subs    []*Subscription
	nextSub int64

	upstream    Source
	upstreamSub *Subscription
}

// CompositeOption configures a Composite at construction time.
type CompositeOption func(*compositeConfig)

type compositeConfig struct {
	identity string
	gen      IdentityGenerator
}

// WithCompositeIdentity pins the composite's identity instead of generating
// one.
func WithCompositeIdentity(id string) CompositeOption {
	return func(c *compositeConfig) { c.identity = id }
}

// WithCompositeIdentityGenerator overrides the identity generator.
func WithCompositeIdentityGenerator(gen IdentityGenerator) CompositeOption {
	return func(c *compositeConfig) { c.gen = gen }
}

// NewComposite creates an unlinked composite with an empty derived view.
func NewComposite(opts ...CompositeOption) *Composite {
	cfg := compositeConfig{gen: UUIDv7Generator{}}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.identity == "" {
		cfg.identity = cfg.gen.Generate()
	}
	return &Composite{
		id:    cfg.identity,
		clock: NewClock(),
	}
}

// ID returns the composite's identity.
func (c *Composite) ID() string {
	return c.id
}

// Link attaches the composite below source through sel and pulls the initial
// snapshot, relaying it downstream.
//
// The link graph among composites must stay acyclic: Link fails with
// CYCLE_DETECTED - leaving the graph unchanged - when the proposed upstream
// already reaches this node, and with ARGUMENT when the composite is
// already linked (a composite wraps exactly one expression role).
func (c *Composite) Link(source Source, sel selector.Selector) (*Subscription, error) {
	if source == nil {
		return nil, newError(CodeArgument, c.id, nil, "nil source")
	}

	c.mu.Lock()
	if c.upstream != nil {
		c.mu.Unlock()
		return nil, newError(CodeArgument, c.id, nil, "already linked upstream of %s", c.upstream.ID())
	}
	c.mu.Unlock()

	// Reachability from the proposed upstream back to this node.
	if source.dependsOn(c.id) {
		return nil, newError(CodeCycleDetected, c.id, nil, "linking below %s would create a cycle", source.ID())
	}

	sub, err := source.Subscribe(sel, c)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.upstream = source
	c.upstreamSub = sub
	c.mu.Unlock()

	snap, seq := source.Snapshot()
	synthetic := change.Event{
		Origin:   source.ID(),
		Kind:     change.Replace,
		NewValue: snap,
		Seq:      seq,
	}
	if sel.Match(synthetic) {
		if view, ok := sel.Project(synthetic); ok {
			c.OnChange(view)
		}
	}

	return sub, nil
}

// Unlink detaches from the upstream source. The derived view is retained as
// a last-known snapshot for downstream subscribers.
func (c *Composite) Unlink() {
	c.mu.Lock()
	source, sub := c.upstream, c.upstreamSub
	c.upstream = nil
	c.upstreamSub = nil
	c.mu.Unlock()

	if source != nil {
		source.Unsubscribe(sub)
	}
}

// OnChange folds the upstream projection into the derived view and relays
// a re-sequenced event to downstream subscribers within the same call.
//
// Downstream delivery failures cannot fail the upstream mutation that is
// still on the stack; they are logged and the affected subscriber can
// recover by re-linking.
func (c *Composite) OnChange(view selector.View) {
	c.mu.Lock()

	oldAt, _ := change.Resolve(c.data, view.Event.Path)
	c.data = applyView(c.data, view)
	newAt, _ := change.Resolve(c.data, view.Event.Path)

	relay := change.Event{
		Origin:   c.id,
		Kind:     view.Event.Kind,
		Path:     view.Event.Path.Clone(),
		OldValue: change.Clone(oldAt),
		NewValue: change.Clone(newAt),
		Seq:      c.clock.Next(),
	}
	slog.Debug("relaying change",
		"node", c.id,
		"upstream", view.Event.Origin,
		"upstream_seq", view.Event.Seq,
		"seq", relay.Seq,
	)

	// Broadcast under the same lock that guards the subscription list, the
	// same discipline Master.Mutate follows.
	defer c.mu.Unlock()
	if failures := broadcast(relay, c.subs); len(failures) > 0 {
		slog.Error("downstream delivery failed",
			"node", c.id,
			"seq", relay.Seq,
			"failed", len(failures),
		)
	}
}

// Snapshot returns a deep copy of the derived view and the seq it is
// consistent with.
func (c *Composite) Snapshot() (change.Value, int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return change.Clone(c.data), c.clock.Current()
}

// Subscribe registers a downstream subscription, evaluated in registration
// order on every relay.
func (c *Composite) Subscribe(sel selector.Selector, h Handler) (*Subscription, error) {
	if !selector.Valid(sel) {
		return nil, newError(CodeArgument, c.id, nil, "malformed selector")
	}
	if h == nil {
		return nil, newError(CodeArgument, c.id, nil, "nil handler")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextSub++
	sub := &Subscription{id: c.nextSub, sel: sel, handler: h, source: c}
	c.subs = append(c.subs, sub)
	return sub, nil
}

// Unsubscribe removes a downstream subscription. Idempotent.
func (c *Composite) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = removeSub(c.subs, sub)
}

// Apply forwards an edit request through the composite chain to the nearest
// true master. The composite never mutates its own derived view directly:
// the edit re-enters through the upstream subscription like any other
// change.
func (c *Composite) Apply(req change.EditRequest) (change.Event, error) {
	c.mu.Lock()
	source := c.upstream
	c.mu.Unlock()

	if source == nil {
		return change.Event{}, newError(CodeArgument, c.id, req.Path, "composite is not linked upstream")
	}
	return source.Apply(req)
}

// RequestEdit is Apply under the expression-role name, for callers holding
// the composite as a derived node.
func (c *Composite) RequestEdit(req change.EditRequest) (change.Event, error) {
	ev, err := c.Apply(req)
	if err != nil && !IsDelivery(err) {
		return change.Event{}, &Error{
			Code:    CodeRejectedEdit,
			Message: "upstream rejected edit",
			Node:    c.id,
			Path:    req.Path.Clone(),
			Err:     err,
		}
	}
	return ev, err
}

// View returns a deep copy of the derived view.
func (c *Composite) View() change.Value {
	c.mu.Lock()
	defer c.mu.Unlock()
	return change.Clone(c.data)
}

// Seq returns the composite's current relay sequence number.
func (c *Composite) Seq() int64 {
	return c.clock.Current()
}

// SubscriptionCount returns the number of live downstream subscriptions.
func (c *Composite) SubscriptionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

func (c *Composite) dependsOn(id string) bool {
	if c.id == id {
		return true
	}
	c.mu.Lock()
	source := c.upstream
	c.mu.Unlock()
	return source != nil && source.dependsOn(id)
}
