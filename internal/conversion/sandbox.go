package conversion

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"

	starlarkjson "go.starlark.net/lib/json"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"
	"golang.org/x/crypto/blake2b"

	"github.com/alvera-ai/interoperability-template-generator/internal/jsonval"
)

// Names bound in every procedure's scope.
const (
	InputBinding  = "input_data"
	OutputBinding = "output_data"
	JSONBinding   = "json"
)

// DefaultMaxSteps bounds a single procedure run.
const DefaultMaxSteps = 1_000_000

const maxValueDepth = 64

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       false,
}

// The json namespace offers the starlark encode/decode functions plus
// dumps/loads aliases.
var jsonModule = &starlarkstruct.Module{
	Name: JSONBinding,
	Members: starlark.StringDict{
		"encode": starlarkjson.Module.Members["encode"],
		"decode": starlarkjson.Module.Members["decode"],
		"indent": starlarkjson.Module.Members["indent"],
		"dumps":  starlarkjson.Module.Members["encode"],
		"loads":  starlarkjson.Module.Members["decode"],
	},
}

// Sandbox runs conversion procedures in a Starlark interpreter. Procedures
// cannot load modules or touch the filesystem, network or processes, and
// each run is bounded by a step budget. Compiled programs are cached by a
// digest of their source.
type Sandbox struct {
	maxSteps uint64

	mu    sync.Mutex
	cache map[[32]byte]*starlark.Program
}

// NewSandbox returns a sandbox with the given step budget (0 selects
// DefaultMaxSteps).
func NewSandbox(maxSteps uint64) *Sandbox {
	if maxSteps == 0 {
		maxSteps = DefaultMaxSteps
	}
	return &Sandbox{maxSteps: maxSteps, cache: make(map[[32]byte]*starlark.Program)}
}

func isPredeclared(name string) bool {
	return name == InputBinding || name == OutputBinding || name == JSONBinding
}

func (s *Sandbox) compile(procedure string) (*starlark.Program, error) {
	key := blake2b.Sum256([]byte(procedure))

	s.mu.Lock()
	prog, ok := s.cache[key]
	s.mu.Unlock()
	if ok {
		return prog, nil
	}

	_, prog, err := starlark.SourceProgramOptions(fileOptions, "template.star", procedure, isPredeclared)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[key] = prog
	s.mu.Unlock()
	return prog, nil
}

// Run executes procedure with input bound to input_data and returns the
// final value of output_data. Every failure, including panics inside the
// interpreter, is reported as ErrRuntime.
func (s *Sandbox) Run(ctx context.Context, procedure string, input jsonval.Value) (out jsonval.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			customLog.Warnf("Conversion: procedure panicked: %v", r)
			out, err = jsonval.Value{}, fmt.Errorf("%w: %v", ErrRuntime, r)
		}
	}()

	prog, err := s.compile(procedure)
	if err != nil {
		return jsonval.Value{}, fmt.Errorf("%w: %s", ErrRuntime, err.Error())
	}

	inputValue, err := toStarlark(input)
	if err != nil {
		return jsonval.Value{}, fmt.Errorf("%w: %s", ErrRuntime, err.Error())
	}
	output := starlark.NewDict(0)
	predeclared := starlark.StringDict{
		InputBinding:  inputValue,
		OutputBinding: output,
		JSONBinding:   jsonModule,
	}

	thread := &starlark.Thread{
		Name: "conversion",
		Print: func(_ *starlark.Thread, msg string) {
			customLog.Debugf("Conversion: procedure printed: %s", msg)
		},
	}
	thread.SetMaxExecutionSteps(s.maxSteps)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()

	globals, err := prog.Init(thread, predeclared)
	if err != nil {
		msg := err.Error()
		if evalErr, ok := err.(*starlark.EvalError); ok {
			msg = evalErr.Msg
		}
		return jsonval.Value{}, fmt.Errorf("%w: %s", ErrRuntime, msg)
	}

	var result starlark.Value = output
	if reassigned, ok := globals[OutputBinding]; ok {
		result = reassigned
	}
	out, err = fromStarlark(result, 0)
	if err != nil {
		return jsonval.Value{}, fmt.Errorf("%w: %s", ErrRuntime, err.Error())
	}
	return out, nil
}

func toStarlark(v jsonval.Value) (starlark.Value, error) {
	switch v.Kind() {
	case jsonval.Null:
		return starlark.None, nil
	case jsonval.Bool:
		b, _ := v.AsBool()
		return starlark.Bool(b), nil
	case jsonval.Number:
		if i, ok := v.AsInt(); ok {
			if n, _ := v.AsNumber(); isIntegerLiteral(n) {
				return starlark.MakeInt64(i), nil
			}
		}
		f, _ := v.AsFloat()
		return starlark.Float(f), nil
	case jsonval.String:
		s, _ := v.AsString()
		return starlark.String(s), nil
	case jsonval.Array:
		items := v.Items()
		elems := make([]starlark.Value, 0, len(items))
		for _, item := range items {
			e, err := toStarlark(item)
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
		}
		return starlark.NewList(elems), nil
	case jsonval.Object:
		d := starlark.NewDict(v.Len())
		for _, m := range v.Members() {
			e, err := toStarlark(m.Value)
			if err != nil {
				return nil, err
			}
			if err := d.SetKey(starlark.String(m.Key), e); err != nil {
				return nil, err
			}
		}
		return d, nil
	}
	return nil, fmt.Errorf("unsupported input kind %s", v.Kind())
}

// isIntegerLiteral reports whether a JSON number was written without a
// fraction or exponent, so 1.0 stays a float inside the procedure.
func isIntegerLiteral(n json.Number) bool {
	for _, r := range n.String() {
		if r == '.' || r == 'e' || r == 'E' {
			return false
		}
	}
	return true
}

func fromStarlark(v starlark.Value, depth int) (jsonval.Value, error) {
	if depth > maxValueDepth {
		return jsonval.Value{}, fmt.Errorf("output nested deeper than %d levels", maxValueDepth)
	}
	switch x := v.(type) {
	case starlark.NoneType:
		return jsonval.NullValue(), nil
	case starlark.Bool:
		return jsonval.BoolValue(bool(x)), nil
	case starlark.Int:
		if i, ok := x.Int64(); ok {
			return jsonval.IntValue(i), nil
		}
		return jsonval.NumberValue(json.Number(x.String())), nil
	case starlark.Float:
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return jsonval.NullValue(), nil
		}
		return jsonval.FloatValue(f), nil
	case starlark.String:
		return jsonval.StringValue(string(x)), nil
	case *starlark.Dict:
		members := make([]jsonval.Member, 0, x.Len())
		for _, item := range x.Items() {
			key, ok := starlark.AsString(item[0])
			if !ok {
				key = item[0].String()
			}
			val, err := fromStarlark(item[1], depth+1)
			if err != nil {
				return jsonval.Value{}, err
			}
			members = append(members, jsonval.Member{Key: key, Value: val})
		}
		return jsonval.ObjectValue(members...), nil
	case starlark.Indexable:
		items := make([]jsonval.Value, 0, x.Len())
		for i := 0; i < x.Len(); i++ {
			val, err := fromStarlark(x.Index(i), depth+1)
			if err != nil {
				return jsonval.Value{}, err
			}
			items = append(items, val)
		}
		return jsonval.ArrayValue(items...), nil
	}
	return jsonval.Value{}, fmt.Errorf("cannot convert %s value to JSON", v.Type())
}
