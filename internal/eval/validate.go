package eval

import (
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"

	"github.com/recwave/recwave/internal/channel"
)

// Validation is the outcome of validating a translated expression.
type Validation struct {
	// Expression is the validated expression text.
	Expression string

	// Refs lists the referenced base-channel ids in first-appearance
	// order. These become the task's buffer bindings.
	Refs []string
}

// Validate checks a translated expression against the recording without
// evaluating it.
//
// Every bare identifier must classify as either a known function name or a
// base-channel id; anything else fails with UNKNOWN_IDENTIFIER. The
// expression must also parse and compile under the evaluator's grammar, or
// validation fails with EXPRESSION_SYNTAX.
func Validate(expression string, rec *channel.Recording) (*Validation, error) {
	if expression == "" {
		return nil, NewEmptyExpressionError()
	}

	idents, err := ExtractIdentifiers(expression)
	if err != nil {
		return nil, err
	}

	refs := make([]string, 0, len(idents))
	for _, name := range idents {
		switch {
		case IsFunction(name):
			// Known function, not a channel reference.
		case rec.Has(name):
			refs = append(refs, name)
		default:
			return nil, NewUnknownIdentifierError(name)
		}
	}

	// Dry compile catches evaluator rejections that parsing alone does not
	// (arity, calling a channel as a function). Compilation never
	// evaluates.
	if _, err := Compile(expression, refs); err != nil {
		return nil, err
	}

	return &Validation{Expression: expression, Refs: refs}, nil
}

// ExtractIdentifiers parses the expression and returns all bare identifiers
// in first-appearance order, NFC-normalized and deduplicated. A parse
// failure yields an EXPRESSION_SYNTAX error.
func ExtractIdentifiers(expression string) ([]string, error) {
	tree, err := parser.Parse(expression)
	if err != nil {
		return nil, NewSyntaxError(err.Error())
	}
	c := &identCollector{seen: make(map[string]bool)}
	ast.Walk(&tree.Node, c)
	return c.names, nil
}

// identCollector gathers identifier nodes during an AST walk.
type identCollector struct {
	names []string
	seen  map[string]bool
}

// Visit implements ast.Visitor.
func (c *identCollector) Visit(node *ast.Node) {
	id, ok := (*node).(*ast.IdentifierNode)
	if !ok {
		return
	}
	name := channel.NormalizeID(id.Value)
	if c.seen[name] {
		return
	}
	c.seen[name] = true
	c.names = append(c.names, name)
}
