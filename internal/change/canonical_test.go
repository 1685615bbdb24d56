package change

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_KeyOrder(t *testing.T) {
	obj := Object{"b": Int(2), "a": Int(1), "c": Int(3)}

	data, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2,"c":3}`, string(data))
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	data, err := MarshalCanonical(String("<a> & </a>"))
	require.NoError(t, err)
	assert.Equal(t, `"<a> & </a>"`, string(data))
}

func TestMarshalCanonical_NullAllowed(t *testing.T) {
	data, err := MarshalCanonical(Object{"old": Null{}})
	require.NoError(t, err)
	assert.Equal(t, `{"old":null}`, string(data))

	data, err = MarshalCanonical(nil)
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}

func TestMarshalCanonical_NFCNormalization(t *testing.T) {
	// "é" as e + combining acute must normalize to the composed form.
	decomposed := String("é")
	composed := String("é")

	d1, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	d2, err := MarshalCanonical(composed)
	require.NoError(t, err)
	assert.Equal(t, string(d2), string(d1))
}

func TestMarshalCanonical_LineSeparatorsLiteral(t *testing.T) {
	data, err := MarshalCanonical(String("a b c"))
	require.NoError(t, err)
	assert.Equal(t, "\"a b c\"", string(data))
}

func TestMarshalCanonical_EscapedBackslashBeforeU2028Text(t *testing.T) {
	// A literal backslash followed by the text "u2028" must stay escaped.
	data, err := MarshalCanonical(String(`\u2028`))
	require.NoError(t, err)
	assert.Equal(t, `"\\u2028"`, string(data))
}

func TestEventID_Stable(t *testing.T) {
	ev := Event{
		Origin:   "pantry",
		Kind:     Update,
		Path:     Path{"alice", "pie"},
		OldValue: String("apple"),
		NewValue: String("cherry"),
		Seq:      3,
	}

	id1, err := EventID(ev)
	require.NoError(t, err)
	id2, err := EventID(ev)
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "same event must hash identically")
	assert.Len(t, id1, 64, "hex-encoded SHA-256")
}

func TestEventID_DistinguishesKind(t *testing.T) {
	base := Event{Origin: "pantry", Path: Path{"k"}, NewValue: Int(1), Seq: 1}

	ins := base
	ins.Kind = Insert
	upd := base
	upd.Kind = Update

	idIns, err := EventID(ins)
	require.NoError(t, err)
	idUpd, err := EventID(upd)
	require.NoError(t, err)
	assert.NotEqual(t, idIns, idUpd)
}

func TestEventID_AbsentValuesHashAsNull(t *testing.T) {
	withNil := Event{Origin: "o", Kind: Remove, Path: Path{"k"}, OldValue: Int(1), Seq: 1}
	withNull := withNil
	withNull.NewValue = Null{}

	id1, err := EventID(withNil)
	require.NoError(t, err)
	id2, err := EventID(withNull)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
}
