// Package latex translates the equation editor's LaTeX surface syntax into
// the infix math grammar the evaluator understands.
//
// The translation is a fixed sequence of textual rewrites, not a parser.
// That keeps it total (any input produces some output) at the cost of
// soundness on adversarial nesting, which the validator catches afterwards
// with a real parse.
package latex

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	subscriptRe = regexp.MustCompile(`([A-Za-z])_\{([A-Za-z0-9]+)\}`)
	commandRe   = regexp.MustCompile(`\\[A-Za-z]+`)
	absRe       = regexp.MustCompile(`\\left\\lvert(.*?)\\right\\rvert`)
)

// Translate converts a LaTeX source string into an evaluator-ready infix
// expression. It is pure, total, and deterministic: it never fails, and
// empty or whitespace-only input yields the empty string.
//
// Rewrites are applied in a fixed order. Exponent grouping runs before the
// command expansions so that templates emitted by \operatorname rewrites
// (which already carry final-form exponents) are not rewritten again.
func Translate(src string) string {
	s := strings.TrimSpace(src)
	if s == "" {
		return ""
	}

	s = rewriteSubscripts(s)
	s = rewriteExponents(s)
	s = expandGroupCommand(s, `\sqrt`, func(inner string) string {
		return "sqrt(" + inner + ")"
	})
	s = rewriteFrac(s)
	s = rewriteOperatorNames(s)
	s = strings.ReplaceAll(s, `\cdot`, "*")
	s = strings.ReplaceAll(s, `\times`, "*")
	s = absRe.ReplaceAllString(s, "abs($1)")
	s = strings.ReplaceAll(s, `\left(`, "(")
	s = strings.ReplaceAll(s, `\right)`, ")")
	s = commandRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "{", "")
	s = strings.ReplaceAll(s, "}", "")

	return norm.NFC.String(strings.TrimSpace(s))
}

// rewriteSubscripts turns X_{sub} into Xsub so subscripted signal names
// become plain identifiers. Applied repeatedly for chained subscripts.
func rewriteSubscripts(s string) string {
	for {
		next := subscriptRe.ReplaceAllString(s, "$1$2")
		if next == s {
			return s
		}
		s = next
	}
}

// rewriteExponents normalizes exponent notation: ^{E} becomes ^(E), and a
// bare exponent token (^2, ^x, ^1.5) becomes ^(2), ^(x), ^(1.5). Already
// parenthesized exponents pass through untouched.
func rewriteExponents(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		c := s[i]
		if c != '^' {
			b.WriteByte(c)
			i++
			continue
		}
		if i+1 < len(s) && s[i+1] == '{' {
			end := matchBrace(s, i+1)
			if end < 0 {
				// Unbalanced braces; leave the tail alone.
				b.WriteString(s[i:])
				return b.String()
			}
			b.WriteString("^(")
			b.WriteString(rewriteExponents(s[i+2 : end]))
			b.WriteByte(')')
			i = end + 1
			continue
		}
		if tok := exponentToken(s[i+1:]); tok != "" {
			b.WriteString("^(")
			b.WriteString(tok)
			b.WriteByte(')')
			i += 1 + len(tok)
			continue
		}
		b.WriteByte(c)
		i++
	}
	return b.String()
}

// exponentToken returns the bare exponent at the start of s: a numeric
// literal or a single letter. Empty when the exponent is already grouped or
// absent.
func exponentToken(s string) string {
	if s == "" {
		return ""
	}
	if isDigit(s[0]) {
		n := 1
		for n < len(s) && (isDigit(s[n]) || s[n] == '.') {
			n++
		}
		return s[:n]
	}
	if isLetter(s[0]) {
		return s[:1]
	}
	return ""
}

// expandGroupCommand rewrites every \cmd{E} into repl(E), left to right.
// Inner content is re-scanned, so nested occurrences expand too.
func expandGroupCommand(s, cmd string, repl func(inner string) string) string {
	for {
		idx := strings.Index(s, cmd+"{")
		if idx < 0 {
			return s
		}
		open := idx + len(cmd)
		end := matchBrace(s, open)
		if end < 0 {
			return s
		}
		inner := strings.TrimSpace(s[open+1 : end])
		s = s[:idx] + repl(inner) + s[end+1:]
	}
}

// rewriteFrac turns \frac{A}{B} into (A)/(B).
func rewriteFrac(s string) string {
	for {
		idx := strings.Index(s, `\frac{`)
		if idx < 0 {
			return s
		}
		openA := idx + len(`\frac`)
		endA := matchBrace(s, openA)
		if endA < 0 || endA+1 >= len(s) || s[endA+1] != '{' {
			return s
		}
		endB := matchBrace(s, endA+1)
		if endB < 0 {
			return s
		}
		num := strings.TrimSpace(s[openA+1 : endA])
		den := strings.TrimSpace(s[endA+2 : endB])
		s = s[:idx] + "(" + num + ")/(" + den + ")" + s[endB+1:]
	}
}

// rewriteOperatorNames expands \operatorname commands. RMS and AVG have
// dedicated templates; any other name passes through as a plain function
// name, leaving its \left( ... \right) argument to the paren rewrites.
func rewriteOperatorNames(s string) string {
	for {
		idx := strings.Index(s, `\operatorname{`)
		if idx < 0 {
			return s
		}
		open := idx + len(`\operatorname`)
		end := matchBrace(s, open)
		if end < 0 {
			return s
		}
		name := strings.TrimSpace(s[open+1 : end])
		rest := s[end+1:]

		switch name {
		case "RMS", "AVG":
			arg, tail, ok := takeDelimitedArg(rest)
			if ok {
				var expanded string
				if name == "RMS" {
					expanded = "sqrt(mean((" + arg + ")^2))"
				} else {
					expanded = "mean(" + arg + ")"
				}
				s = s[:idx] + expanded + tail
				continue
			}
			// No \left( group; fall through to name passthrough.
		}
		s = s[:idx] + name + rest
	}
}

// takeDelimitedArg consumes a leading \left( E \right) group (allowing
// leading whitespace) and returns the trimmed inner expression and the
// remaining tail. Nested \left( groups are depth-matched.
func takeDelimitedArg(s string) (arg, tail string, ok bool) {
	const lp, rp = `\left(`, `\right)`
	trimmed := strings.TrimLeft(s, " \t")
	if !strings.HasPrefix(trimmed, lp) {
		return "", "", false
	}
	body := trimmed[len(lp):]
	depth := 1
	for i := 0; i < len(body); i++ {
		if strings.HasPrefix(body[i:], lp) {
			depth++
			i += len(lp) - 1
			continue
		}
		if strings.HasPrefix(body[i:], rp) {
			depth--
			if depth == 0 {
				return strings.TrimSpace(body[:i]), body[i+len(rp):], true
			}
			i += len(rp) - 1
		}
	}
	return "", "", false
}

// matchBrace returns the index of the '}' matching the '{' at open, or -1
// when unbalanced. s[open] must be '{'.
func matchBrace(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
func isLetter(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
