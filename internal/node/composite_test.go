package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/helix/internal/change"
	"github.com/roach88/helix/internal/selector"
)

func TestComposite_RelaysWithOwnSequence(t *testing.T) {
	m := newPantry(t)
	c := NewComposite(WithCompositeIdentity("pies"))
	e := NewExpression()

	_, err := c.Link(m, selector.FieldMask("pie"))
	require.NoError(t, err)
	_, err = e.Link(c, selector.All())
	require.NoError(t, err)

	_, err = m.Mutate(change.Path{"alice", "pie"}, change.Update, change.String("cherry"))
	require.NoError(t, err)

	last, ok := e.LastEvent()
	require.True(t, ok)
	assert.Equal(t, "pies", last.Origin, "relayed events carry the composite's identity")
	assert.Equal(t, c.Seq(), last.Seq, "relayed events use the composite's own clock")

	pie, ok := change.Resolve(e.View(), change.Path{"alice", "pie"})
	require.True(t, ok)
	assert.Equal(t, change.Value(change.String("cherry")), pie)
}

func TestComposite_DerivedViewIsItsCanonicalData(t *testing.T) {
	m := newPantry(t)
	c := NewComposite(WithCompositeIdentity("pies"))

	_, err := c.Link(m, selector.FieldMask("pie"))
	require.NoError(t, err)

	snap, _ := c.Snapshot()
	assert.True(t, change.Equal(
		change.Object{
			"alice": change.Object{"pie": change.String("apple")},
			"bob":   change.Object{"pie": change.String("pecan")},
		},
		snap,
	))
}

func TestComposite_ObjectUpdateDropsStaleKeys(t *testing.T) {
	m := newPantry(t)
	c := NewComposite(WithCompositeIdentity("pies"))

	_, err := c.Link(m, selector.All())
	require.NoError(t, err)

	_, err = m.Mutate(change.Path{"alice"}, change.Update, change.Object{"pie": change.String("cherry")})
	require.NoError(t, err)

	masterSnap, _ := m.Snapshot()
	compositeSnap, _ := c.Snapshot()
	assert.True(t, change.Equal(masterSnap, compositeSnap), "relay data tracks canonical data")

	_, ok := change.Resolve(compositeSnap, change.Path{"alice", "age"})
	assert.False(t, ok, "key dropped by the update leaves the relay data")
}

func TestComposite_FiltersBeforeRelaying(t *testing.T) {
	m := newPantry(t)
	c := NewComposite(WithCompositeIdentity("pies"))
	e := NewExpression()

	_, err := c.Link(m, selector.FieldMask("pie"))
	require.NoError(t, err)
	_, err = e.Link(c, selector.All())
	require.NoError(t, err)
	base := e.NotifyCount()

	_, err = m.Mutate(change.Path{"alice", "age"}, change.Update, change.Int(31))
	require.NoError(t, err)

	assert.Equal(t, base, e.NotifyCount(), "changes the composite filtered out never reach downstream")
}

func TestComposite_ChainedEditRouting(t *testing.T) {
	// expression -> inner composite -> outer composite -> master
	m := newPantry(t)
	outer := NewComposite(WithCompositeIdentity("outer"))
	inner := NewComposite(WithCompositeIdentity("inner"))
	e := NewExpression()

	_, err := outer.Link(m, selector.All())
	require.NoError(t, err)
	_, err = inner.Link(outer, selector.All())
	require.NoError(t, err)
	_, err = e.Link(inner, selector.All())
	require.NoError(t, err)

	ev, err := e.RequestEdit(change.EditRequest{
		Path:  change.Path{"bob", "age"},
		Kind:  change.Update,
		Value: change.Int(26),
	})
	require.NoError(t, err)
	assert.Equal(t, m.ID(), ev.Origin, "the edit commits at the true master")

	snap, _ := m.Snapshot()
	age, ok := change.Resolve(snap, change.Path{"bob", "age"})
	require.True(t, ok)
	assert.Equal(t, change.Value(change.Int(26)), age)

	// And it re-enters the forward cycle all the way back down.
	age, ok = change.Resolve(e.View(), change.Path{"bob", "age"})
	require.True(t, ok)
	assert.Equal(t, change.Value(change.Int(26)), age)
}

func TestComposite_CycleDetected(t *testing.T) {
	// a <- b <- c, then closing the loop a -> c must fail.
	a := NewComposite(WithCompositeIdentity("a"))
	b := NewComposite(WithCompositeIdentity("b"))
	c := NewComposite(WithCompositeIdentity("c"))

	_, err := b.Link(a, selector.All())
	require.NoError(t, err)
	_, err = c.Link(b, selector.All())
	require.NoError(t, err)

	// c is transitively downstream of a; linking a below c closes the loop.
	_, err = a.Link(c, selector.All())
	require.Error(t, err)
	assert.True(t, IsCycleDetected(err))

	// Graph unchanged: c gained no downstream subscription and a is still
	// unlinked upstream.
	assert.Equal(t, 0, c.SubscriptionCount())
	_, err = a.Apply(change.EditRequest{Path: change.Path{"x"}, Kind: change.Update, Value: change.Int(1)})
	assert.True(t, IsArgument(err), "a still has no upstream")
}

func TestComposite_SelfLinkRejected(t *testing.T) {
	c := NewComposite(WithCompositeIdentity("selfie"))
	_, err := c.Link(c, selector.All())
	assert.True(t, IsCycleDetected(err))
}

func TestComposite_SecondUpstreamRejected(t *testing.T) {
	m1 := NewMaster(pantryData(), WithIdentity("pantry"))
	m2 := NewMaster(change.Object{}, WithIdentity("cellar"))
	c := NewComposite(WithCompositeIdentity("pies"))

	_, err := c.Link(m1, selector.All())
	require.NoError(t, err)
	_, err = c.Link(m2, selector.All())
	assert.True(t, IsArgument(err), "a composite wraps exactly one expression role")
}

func TestComposite_ApplyUnlinked(t *testing.T) {
	c := NewComposite(WithCompositeIdentity("orphan"))
	_, err := c.Apply(change.EditRequest{Path: change.Path{"x"}, Kind: change.Update, Value: change.Int(1)})
	assert.True(t, IsArgument(err))
}

func TestComposite_UnlinkRetainsDerivedView(t *testing.T) {
	m := newPantry(t)
	c := NewComposite(WithCompositeIdentity("pies"))

	_, err := c.Link(m, selector.FieldMask("pie"))
	require.NoError(t, err)

	c.Unlink()
	frozen := c.View()

	_, err = m.Mutate(change.Path{"alice", "pie"}, change.Update, change.String("cherry"))
	require.NoError(t, err)

	assert.True(t, change.Equal(frozen, c.View()), "detached composite keeps its last-known view")
	assert.Equal(t, 0, m.SubscriptionCount())

	// Unlinked composites can relink.
	_, err = c.Link(m, selector.FieldMask("pie"))
	require.NoError(t, err)
}

func TestComposite_DownstreamSubscriptionOrder(t *testing.T) {
	m := newPantry(t)
	c := NewComposite(WithCompositeIdentity("pies"))

	_, err := c.Link(m, selector.All())
	require.NoError(t, err)

	var order []string
	sub := func(name string) {
		_, err := c.Subscribe(selector.All(), handlerFunc(func(selector.View) {
			order = append(order, name)
		}))
		require.NoError(t, err)
	}
	sub("first")
	sub("second")

	_, err = m.Mutate(change.Path{"alice", "age"}, change.Update, change.Int(31))
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second"}, order)
}
