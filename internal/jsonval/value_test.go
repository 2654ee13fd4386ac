// internal/jsonval/value_test.go
package jsonval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePreservesOrderAndNumbers(t *testing.T) {
	v, err := ParseString(`{"b":1,"a":2.50,"c":[true,null,"x"]}`)
	require.NoError(t, err)

	assert.Equal(t, Object, v.Kind())
	assert.Equal(t, []string{"b", "a", "c"}, v.Keys())
	assert.Equal(t, `{"b":1,"a":2.50,"c":[true,null,"x"]}`, v.String())

	a, ok := v.Get("a")
	require.True(t, ok)
	f, ok := a.AsFloat()
	assert.True(t, ok)
	assert.Equal(t, 2.5, f)
}

func TestParseRejectsInvalid(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{"truncated", `{"a":`},
		{"trailing data", `{"a":1} {"b":2}`},
		{"bare word", `hello`},
		{"empty", ``},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseString(tc.input)
			assert.Error(t, err)
		})
	}
}

func TestAsInt(t *testing.T) {
	testCases := []struct {
		name   string
		input  Value
		want   int64
		wantOk bool
	}{
		{"integer", IntValue(42), 42, true},
		{"integral float text", NumberValue("42.0"), 42, true},
		{"fraction", NumberValue("4.2"), 0, false},
		{"string", StringValue("42"), 0, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := tc.input.AsInt()
			assert.Equal(t, tc.wantOk, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPath(t *testing.T) {
	v, err := ParseString(`{"data":{"items":[{"name":"first"},{"name":"second"}]}}`)
	require.NoError(t, err)

	got, ok := v.Path("data.items.1.name")
	require.True(t, ok)
	s, _ := got.AsString()
	assert.Equal(t, "second", s)

	_, ok = v.Path("data.items.5.name")
	assert.False(t, ok)
	_, ok = v.Path("data.missing")
	assert.False(t, ok)

	self, ok := v.Path("$")
	assert.True(t, ok)
	assert.True(t, self.Equal(v))
}

func TestEqualIgnoresMemberOrder(t *testing.T) {
	a, _ := ParseString(`{"x":1,"y":[1,2]}`)
	b, _ := ParseString(`{"y":[1,2.0],"x":1.0}`)
	c, _ := ParseString(`{"y":[2,1],"x":1}`)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestFromAny(t *testing.T) {
	v := FromAny(map[string]any{
		"z":    1.0,
		"a":    []any{"s", false, nil},
		"nest": map[any]any{1: "one"},
		"f":    1.25,
	})
	assert.Equal(t, `{"a":["s",false,null],"f":1.25,"nest":{"1":"one"},"z":1}`, v.String())
}

func TestParseYAMLKeepsOrder(t *testing.T) {
	src := []byte(`
openapi: 3.0.0
info:
  title: T
  version: "1"
paths:
  /b: {}
  /a: {}
count: 3
ratio: 0.5
enabled: yes
nothing: ~
`)
	v, err := ParseYAML(src)
	require.NoError(t, err)

	paths, ok := v.Get("paths")
	require.True(t, ok)
	assert.Equal(t, []string{"/b", "/a"}, paths.Keys())

	version, _ := v.Path("info.version")
	s, ok := version.AsString()
	assert.True(t, ok)
	assert.Equal(t, "1", s)

	count, _ := v.Get("count")
	n, ok := count.AsInt()
	assert.True(t, ok)
	assert.Equal(t, int64(3), n)

	nothing, _ := v.Get("nothing")
	assert.True(t, nothing.IsNull())
}

func TestSetSharesStorage(t *testing.T) {
	obj := ObjectValue()
	alias := obj
	alias.Set("k", StringValue("v"))
	assert.True(t, obj.Has("k"))
	assert.Equal(t, 1, obj.Len())
}
