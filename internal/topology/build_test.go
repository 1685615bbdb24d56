package topology

import (
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/helix/internal/change"
)

const pantryTopology = `
master: pantry: {
	data: {
		alice: {age: 30, pie: "apple"}
		bob: {age: 25, pie: "pecan"}
	}
}

composite: kitchen: {
	upstream: "pantry"
	select: {prefix: ["alice"]}
}

expression: menu: {
	upstream: "kitchen"
	select: {fields: ["pie"]}
}
`

func compileTopology(t *testing.T, src string) *Spec {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	require.NoError(t, v.Err())

	spec, errs := CompileSpec(v, LoadModeCollectAll)
	require.Empty(t, errs)
	return spec
}

func TestBuild_MaterializesGraph(t *testing.T) {
	spec := compileTopology(t, pantryTopology)

	g, err := Build(spec)
	require.NoError(t, err)

	require.Contains(t, g.Masters, "pantry")
	require.Contains(t, g.Composites, "kitchen")
	require.Contains(t, g.Expressions, "menu")

	// The composite's initial view is already filtered to alice.
	kitchenData, _ := g.Composites["kitchen"].Snapshot()
	want := change.Object{
		"alice": change.Object{"age": change.Int(30), "pie": change.String("apple")},
	}
	assert.True(t, change.Equal(kitchenData, want), "kitchen view = %v", kitchenData)

	// The expression's initial view is further masked to pie.
	menuData := g.Expressions["menu"].View()
	wantMenu := change.Object{
		"alice": change.Object{"pie": change.String("apple")},
	}
	assert.True(t, change.Equal(menuData, wantMenu), "menu view = %v", menuData)
}

func TestBuild_PropagatesThroughChain(t *testing.T) {
	spec := compileTopology(t, pantryTopology)

	g, err := Build(spec)
	require.NoError(t, err)

	pantry := g.Masters["pantry"]
	_, err = pantry.Mutate(change.Path{"alice", "pie"}, change.Update, change.String("cherry"))
	require.NoError(t, err)

	menuData := g.Expressions["menu"].View()
	want := change.Object{
		"alice": change.Object{"pie": change.String("cherry")},
	}
	assert.True(t, change.Equal(menuData, want), "menu view = %v", menuData)

	// Filtered out by the kitchen prefix: bob never reaches the menu.
	_, err = pantry.Mutate(change.Path{"bob", "pie"}, change.Update, change.String("mud"))
	require.NoError(t, err)
	assert.True(t, change.Equal(g.Expressions["menu"].View(), want))
}

func TestBuild_CompositeChainsLinkInUpstreamOrder(t *testing.T) {
	// Declared out of order: counter depends on kitchen which depends on
	// the master. Build must still link them.
	spec := compileTopology(t, `
		master: pantry: {
			data: {alice: {pie: "apple"}}
		}
		composite: counter: {
			upstream: "kitchen"
		}
		composite: kitchen: {
			upstream: "pantry"
		}
	`)

	g, err := Build(spec)
	require.NoError(t, err)

	counterData, _ := g.Composites["counter"].Snapshot()
	want := change.Object{"alice": change.Object{"pie": change.String("apple")}}
	assert.True(t, change.Equal(counterData, want), "counter view = %v", counterData)
}

func TestBuild_RejectsInvalidSpec(t *testing.T) {
	spec := &Spec{
		Masters: []MasterSpec{pantryMaster("pantry")},
		Composites: []CompositeSpec{
			{Name: "a", Upstream: "a"},
		},
	}
	_, err := Build(spec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid topology")
}

func TestBuild_ExpressionWithMultipleUpstreams(t *testing.T) {
	spec := compileTopology(t, `
		master: pantry: {
			data: {alice: {pie: "apple"}}
		}
		master: cellar: {
			data: {wine: "merlot"}
		}
		expression: board: {
			upstream: ["pantry", "cellar"]
		}
	`)

	g, err := Build(spec)
	require.NoError(t, err)

	board := g.Expressions["board"].View()
	want := change.Object{
		"alice": change.Object{"pie": change.String("apple")},
		"wine":  change.String("merlot"),
	}
	assert.True(t, change.Equal(board, want), "board view = %v", board)
}
