package conversion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvera-ai/interoperability-template-generator/internal/jsonval"
)

func parse(t *testing.T, s string) jsonval.Value {
	t.Helper()
	v, err := jsonval.ParseString(s)
	require.NoError(t, err)
	return v
}

func TestSandboxRun(t *testing.T) {
	testCases := []struct {
		name      string
		procedure string
		input     string
		want      string
	}{
		{
			name:      "int coercion of a string id",
			procedure: `output_data["id"] = int(input_data["id"])`,
			input:     `{"id":"42"}`,
			want:      `{"id":42}`,
		},
		{
			name: "conditional mapping",
			procedure: `
if "userName" in input_data:
    output_data["user_name"] = input_data["userName"]
if "email" in input_data:
    output_data["email"] = input_data["email"].lower()
`,
			input: `{"userName":"ada","email":"ADA@EXAMPLE.COM"}`,
			want:  `{"user_name":"ada","email":"ada@example.com"}`,
		},
		{
			name:      "output reassigned",
			procedure: "output_data = {\"n\": len(input_data[\"items\"])}",
			input:     `{"items":[1,2,3]}`,
			want:      `{"n":3}`,
		},
		{
			name:      "json namespace",
			procedure: `output_data["tags"] = json.dumps(input_data["tags"])` + "\n" + `output_data["meta"] = json.loads("{\"k\": 1}")`,
			input:     `{"tags":["a","b"]}`,
			want:      `{"tags":"[\"a\",\"b\"]","meta":{"k":1}}`,
		},
		{
			name: "loops and floats",
			procedure: `
total = 0.0
for item in input_data["prices"]:
    total += item
output_data["total"] = total
output_data["missing"] = input_data.get("missing")
`,
			input: `{"prices":[1.5,2.5]}`,
			want:  `{"total":4,"missing":null}`,
		},
	}

	sandbox := NewSandbox(0)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := sandbox.Run(context.Background(), tc.procedure, parse(t, tc.input))
			require.NoError(t, err)
			assert.True(t, parse(t, tc.want).Equal(out), "got %s", out)
		})
	}
}

func TestSandboxFailures(t *testing.T) {
	testCases := []struct {
		name      string
		procedure string
		wantMsg   string
	}{
		{"division by zero", `output_data["x"] = 1 // 0`, "division by zero"},
		{"syntax error", `output_data["x"] = (`, "template.star:1"},
		{"undefined name", `output_data["x"] = os.getcwd()`, "undefined: os"},
		{"load is disabled", `load("x.star", "y")`, "load"},
		{"bad int literal", `output_data["id"] = int(input_data["name"])`, "invalid literal"},
		{"fail builtin", `fail("nope")`, "nope"},
	}

	sandbox := NewSandbox(0)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := sandbox.Run(context.Background(), tc.procedure, parse(t, `{"name":"ada"}`))
			require.ErrorIs(t, err, ErrRuntime)
			assert.Contains(t, err.Error(), tc.wantMsg)
			assert.Equal(t, jsonval.Null, out.Kind())
		})
	}
}

func TestSandboxStepBudget(t *testing.T) {
	sandbox := NewSandbox(10_000)
	_, err := sandbox.Run(context.Background(), "while True:\n    pass\n", parse(t, `{}`))
	require.ErrorIs(t, err, ErrRuntime)
	assert.Contains(t, err.Error(), "too many steps")
}

func TestSandboxHonoursContext(t *testing.T) {
	sandbox := NewSandbox(1 << 62)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := sandbox.Run(ctx, "while True:\n    pass\n", parse(t, `{}`))
	require.ErrorIs(t, err, ErrRuntime)
	assert.Contains(t, err.Error(), "cancelled")
}

func TestSandboxCachesPrograms(t *testing.T) {
	sandbox := NewSandbox(0)
	procedure := `output_data["v"] = input_data["v"] * 2`
	for i := int64(1); i <= 3; i++ {
		out, err := sandbox.Run(context.Background(), procedure, jsonval.ObjectValue(jsonval.Member{Key: "v", Value: jsonval.IntValue(i)}))
		require.NoError(t, err)
		v, _ := out.Get("v")
		n, _ := v.AsInt()
		assert.Equal(t, i*2, n)
	}
	assert.Len(t, sandbox.cache, 1)
}

func TestSandboxInputIsolation(t *testing.T) {
	sandbox := NewSandbox(0)
	input := parse(t, `{"a":1}`)
	_, err := sandbox.Run(context.Background(), `input_data["a"] = 2`, input)
	require.NoError(t, err)

	a, _ := input.Get("a")
	n, _ := a.AsInt()
	assert.Equal(t, int64(1), n)
}
