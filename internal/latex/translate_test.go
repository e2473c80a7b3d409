package latex

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
)

func TestTranslate_Scenarios(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "sqrt of sum of squares",
			in:   `\sqrt{I_{A}^2+I_{B}^2+I_{C}^2}`,
			want: `sqrt(IA^(2)+IB^(2)+IC^(2))`,
		},
		{
			name: "fraction",
			in:   `\frac{V_{A}}{I_{A}}`,
			want: `(VA)/(IA)`,
		},
		{
			name: "rms operator",
			in:   `\operatorname{RMS}\left(I_{A}\right)`,
			want: `sqrt(mean((IA)^2))`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Translate(tt.in))
		})
	}
}

func TestTranslate_Rules(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"subscript", `I_{A}`, `IA`},
		{"subscript multichar", `V_{rms2}`, `Vrms2`},
		{"sqrt", `\sqrt{IA}`, `sqrt(IA)`},
		{"sqrt nested", `\sqrt{\sqrt{IA}}`, `sqrt(sqrt(IA))`},
		{"frac", `\frac{1}{2}`, `(1)/(2)`},
		{"avg operator", `\operatorname{AVG}\left(V_{B}\right)`, `mean(VB)`},
		{"operator passthrough", `\operatorname{hypot}\left(IA,IB\right)`, `hypot(IA,IB)`},
		{"cdot", `I_{A}\cdot V_{A}`, `IA*VA`},
		{"times", `2\times I_{A}`, `2*IA`},
		{"abs", `\left\lvert I_{A} \right\rvert`, `abs( IA )`},
		{"left right parens", `\left(IA+IB\right)`, `(IA+IB)`},
		{"braced exponent", `I_{A}^{2+x}`, `IA^(2+x)`},
		{"bare numeric exponent", `IA^2`, `IA^(2)`},
		{"bare decimal exponent", `IA^1.5`, `IA^(1.5)`},
		{"bare letter exponent", `IA^n`, `IA^(n)`},
		{"residual command deleted", `\mathrm{IA}`, `IA`},
		{"residual braces deleted", `{IA}+{IB}`, `IA+IB`},
		{"unary minus", `-I_{A}`, `-IA`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Translate(tt.in))
		})
	}
}

func TestTranslate_EmptyInput(t *testing.T) {
	assert.Equal(t, "", Translate(""))
	assert.Equal(t, "", Translate("   \t\n"))
}

// Evaluator-ready input (no backslashes, no subscripts, no braces, no bare
// exponents) passes through as its trimmed self.
func TestTranslate_IdempotentOnEvaluatorReadyInput(t *testing.T) {
	inputs := []string{
		"IA + IB",
		"sqrt(IA^(2)+IB^(2))",
		"(VA)/(IA)",
		"mean(IA)*2 - abs(IB)",
		"  IA * 0.5  ",
	}
	for _, in := range inputs {
		out := Translate(in)
		assert.Equal(t, strings.TrimSpace(in), out, "input %q", in)
		assert.Equal(t, out, Translate(out), "translate must be idempotent for %q", in)
	}
}

// Totality: hostile input never panics and always yields a string.
func TestTranslate_TotalOnHostileInput(t *testing.T) {
	inputs := []string{
		`\frac{`,
		`\frac{A}{`,
		`\sqrt{`,
		`{{{`,
		`}}}`,
		`^`,
		`^{`,
		`IA^`,
		`\operatorname{RMS}`,
		`\operatorname{RMS}\left(IA`,
		`\operatorname{`,
		`\\\\`,
		`\frac{\frac{A}{B}}{C}`,
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() { _ = Translate(in) }, "input %q", in)
	}
}

func TestTranslate_NestedFrac(t *testing.T) {
	// Nested braces inside numerator resolve via brace matching.
	assert.Equal(t, `((A)/(B))/(C)`, Translate(`\frac{\frac{A}{B}}{C}`))
}

func TestTranslate_Golden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	tests := []struct {
		name string
		in   string
	}{
		{"apparent_power", `\sqrt{3}\cdot V_{AB}\cdot I_{A}`},
		{"rms_of_difference", `\operatorname{RMS}\left(I_{A}-I_{B}\right)`},
		{"neutral_current", `\left\lvert I_{A}+I_{B}+I_{C} \right\rvert`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g.Assert(t, tt.name, []byte(Translate(tt.in)))
		})
	}
}
