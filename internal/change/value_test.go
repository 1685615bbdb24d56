package change

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqual_Scalars(t *testing.T) {
	assert.True(t, Equal(String("a"), String("a")))
	assert.False(t, Equal(String("a"), String("b")))
	assert.True(t, Equal(Int(5), Int(5)))
	assert.False(t, Equal(Int(5), Int(6)))
	assert.True(t, Equal(Bool(true), Bool(true)))
	assert.False(t, Equal(Int(1), Bool(true)), "different types never compare equal")
}

func TestEqual_NullAndNil(t *testing.T) {
	assert.True(t, Equal(nil, nil))
	assert.True(t, Equal(Null{}, nil), "Null and nil are the same absent value")
	assert.True(t, Equal(nil, Null{}))
	assert.False(t, Equal(Null{}, Int(0)))
}

func TestEqual_Nested(t *testing.T) {
	a := Object{
		"alice": Object{"age": Int(30), "pie": String("apple")},
		"tags":  Array{String("x"), String("y")},
	}
	b := Object{
		"alice": Object{"age": Int(30), "pie": String("apple")},
		"tags":  Array{String("x"), String("y")},
	}
	assert.True(t, Equal(a, b))

	b["alice"].(Object)["pie"] = String("cherry")
	assert.False(t, Equal(a, b))
}

func TestClone_Independent(t *testing.T) {
	orig := Object{"alice": Object{"pie": String("apple")}}
	cp := Clone(orig).(Object)

	cp["alice"].(Object)["pie"] = String("cherry")

	assert.Equal(t, String("apple"), orig["alice"].(Object)["pie"],
		"mutating the clone must not touch the original")
}

func TestFromGo_RejectsFloats(t *testing.T) {
	_, err := FromGo(map[string]any{"x": json.Number("1.5")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "float")
}

func TestFromGo_Conversions(t *testing.T) {
	v, err := FromGo(map[string]any{
		"s": "str",
		"n": int64(7),
		"b": true,
		"a": []any{"x", int64(1)},
		"o": map[string]any{"k": "v"},
	})
	require.NoError(t, err)

	obj, ok := v.(Object)
	require.True(t, ok)
	assert.Equal(t, String("str"), obj["s"])
	assert.Equal(t, Int(7), obj["n"])
	assert.Equal(t, Bool(true), obj["b"])
	assert.Equal(t, Array{String("x"), Int(1)}, obj["a"])
	assert.Equal(t, Object{"k": String("v")}, obj["o"])
}

func TestUnmarshalValue_RoundTrip(t *testing.T) {
	orig := Object{
		"name":  String("cart"),
		"count": Int(5),
		"open":  Bool(false),
		"items": Array{String("a"), String("b")},
		"none":  Null{},
	}

	data, err := MarshalValue(orig)
	require.NoError(t, err)

	back, err := UnmarshalValue(data)
	require.NoError(t, err)
	assert.True(t, Equal(orig, back))
}

func TestUnmarshalValue_RejectsFloats(t *testing.T) {
	_, err := UnmarshalValue([]byte(`{"x": 1.5}`))
	require.Error(t, err)
}

func TestObject_SortedKeys_UTF16Order(t *testing.T) {
	// U+FB33 (Hebrew) sorts before U+1F600 (emoji, surrogate pair in UTF-16)
	// even though its UTF-8 encoding is smaller in only some positions. This
	// is the RFC 8785 ordering trap.
	obj := Object{
		"é":     Int(1), // é
		"\U0001F600": Int(2), // 😀 - surrogate pair D83D DE00
		"דּ":     Int(3), // דּ
		"a":          Int(4),
	}

	keys := obj.SortedKeys()
	assert.Equal(t, []string{"a", "é", "דּ", "\U0001F600"}, keys)
}

func TestObj_Pairs(t *testing.T) {
	o := Obj(P("name", String("alice")), P("age", Int(30)))
	assert.Equal(t, Object{"name": String("alice"), "age": Int(30)}, o)
}
