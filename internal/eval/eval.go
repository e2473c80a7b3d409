// Package eval compiles and validates translated math expressions.
//
// It wraps github.com/expr-lang/expr: expressions are compiled once into a
// reusable program, then run once per sample against a scope that maps each
// identifier to that sample's value. Validation parses without evaluating.
package eval

import (
	"fmt"
	"math"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/recwave/recwave/internal/channel"
)

// functionNames is the evaluator's function allow-list. An identifier in
// call position must appear here; anything else must resolve to a base
// channel.
var functionNames = map[string]bool{
	"sqrt":  true,
	"abs":   true,
	"mean":  true,
	"min":   true,
	"max":   true,
	"sin":   true,
	"cos":   true,
	"floor": true,
	"ceil":  true,
}

// IsFunction reports whether name is in the evaluator's function allow-list.
func IsFunction(name string) bool {
	return functionNames[name]
}

// options returns the compile options shared by validation and evaluation:
// the math function set, with expr's own builtins disabled so the allow-list
// is the single source of truth.
func options() []expr.Option {
	return []expr.Option{
		expr.DisableAllBuiltins(),
		expr.Function("sqrt", func(params ...any) (any, error) {
			x, err := oneArg("sqrt", params)
			if err != nil {
				return nil, err
			}
			return math.Sqrt(x), nil
		}),
		expr.Function("abs", func(params ...any) (any, error) {
			x, err := oneArg("abs", params)
			if err != nil {
				return nil, err
			}
			return math.Abs(x), nil
		}),
		expr.Function("mean", func(params ...any) (any, error) {
			xs, err := floatArgs(params)
			if err != nil {
				return nil, err
			}
			if len(xs) == 0 {
				return math.NaN(), nil
			}
			var sum float64
			for _, x := range xs {
				sum += x
			}
			return sum / float64(len(xs)), nil
		}),
		expr.Function("min", func(params ...any) (any, error) {
			return fold("min", params, math.Min)
		}),
		expr.Function("max", func(params ...any) (any, error) {
			return fold("max", params, math.Max)
		}),
		expr.Function("sin", func(params ...any) (any, error) {
			x, err := oneArg("sin", params)
			if err != nil {
				return nil, err
			}
			return math.Sin(x), nil
		}),
		expr.Function("cos", func(params ...any) (any, error) {
			x, err := oneArg("cos", params)
			if err != nil {
				return nil, err
			}
			return math.Cos(x), nil
		}),
		expr.Function("floor", func(params ...any) (any, error) {
			x, err := oneArg("floor", params)
			if err != nil {
				return nil, err
			}
			return math.Floor(x), nil
		}),
		expr.Function("ceil", func(params ...any) (any, error) {
			x, err := oneArg("ceil", params)
			if err != nil {
				return nil, err
			}
			return math.Ceil(x), nil
		}),
	}
}

// Program is a compiled expression ready for per-sample evaluation.
//
// A Program is owned by the goroutine that runs it; Run mutates no shared
// state but the scope map passed in is reused by the caller, so a Program
// must not be shared across goroutines.
type Program struct {
	prog   *vm.Program
	idents []string
}

// Compile compiles a translated expression against the given identifier
// set. Identifiers are NFC-normalized before registration. The returned
// program is reusable: compile once, run N times.
func Compile(expression string, identifiers []string) (*Program, error) {
	if expression == "" {
		return nil, NewEmptyExpressionError()
	}
	env := make(map[string]any, len(identifiers))
	idents := make([]string, 0, len(identifiers))
	for _, id := range identifiers {
		norm := channel.NormalizeID(id)
		env[norm] = float64(0)
		idents = append(idents, norm)
	}
	opts := append(options(), expr.Env(env))
	prog, err := expr.Compile(expression, opts...)
	if err != nil {
		return nil, NewSyntaxError(err.Error())
	}
	return &Program{prog: prog, idents: idents}, nil
}

// Identifiers returns the normalized identifier names the program was
// compiled against.
func (p *Program) Identifiers() []string {
	return append([]string(nil), p.idents...)
}

// NewScope returns a scope map pre-populated with zeros for every
// identifier. Callers set values and pass the same map to Run each sample.
func (p *Program) NewScope() map[string]any {
	scope := make(map[string]any, len(p.idents))
	for _, id := range p.idents {
		scope[id] = float64(0)
	}
	return scope
}

// Run evaluates the program against one sample scope and returns the
// numeric result. IEEE-754 semantics apply: Inf and NaN are valid results,
// not errors.
func (p *Program) Run(scope map[string]any) (float64, error) {
	out, err := expr.Run(p.prog, scope)
	if err != nil {
		return 0, err
	}
	return toFloat(out)
}

// oneArg extracts a single float argument for a unary function.
func oneArg(name string, params []any) (float64, error) {
	if len(params) != 1 {
		return 0, fmt.Errorf("%s expects 1 argument, got %d", name, len(params))
	}
	return toFloat(params[0])
}

// floatArgs coerces all params to float64.
func floatArgs(params []any) ([]float64, error) {
	xs := make([]float64, len(params))
	for i, p := range params {
		x, err := toFloat(p)
		if err != nil {
			return nil, err
		}
		xs[i] = x
	}
	return xs, nil
}

// fold reduces variadic params with a binary op.
func fold(name string, params []any, op func(a, b float64) float64) (any, error) {
	xs, err := floatArgs(params)
	if err != nil {
		return nil, err
	}
	if len(xs) == 0 {
		return nil, fmt.Errorf("%s expects at least 1 argument", name)
	}
	acc := xs[0]
	for _, x := range xs[1:] {
		acc = op(acc, x)
	}
	return acc, nil
}

// toFloat coerces an evaluator result to float64.
func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	default:
		return 0, fmt.Errorf("expression result is not numeric: %T", v)
	}
}
