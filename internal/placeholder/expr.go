package placeholder

import (
	"fmt"
	"strings"
	"unicode"
)

// value is the outcome of evaluating an expression term.
type value struct {
	text    string
	items   []string
	list    bool
	present bool
	// ref names the lookup that produced a missing value.
	ref string
}

func (v value) String() string {
	if v.list {
		return strings.Join(v.items, ",")
	}
	return v.text
}

func (v value) empty() bool {
	return !v.present || (!v.list && v.text == "")
}

func text(s string) value {
	return value{text: s, present: true}
}

// evaluator is a recursive descent parser over:
//
//	expr    = postfix [ "?:" expr ]
//	postfix = primary { ".split(" string ")" }
//	primary = string | number | map | "null" | "true" | "false"
//	        | ( "systemProperties" | "systemEnvironment" ) "[" string "]"
type evaluator struct {
	r    *Resolver
	expr string
	pos  int
}

func (e *evaluator) evaluate() (value, error) {
	v, err := e.parseElvis()
	if err != nil {
		return value{}, err
	}
	e.skipSpace()
	if e.pos < len(e.expr) {
		return value{}, e.errorf("unexpected %q", e.expr[e.pos:])
	}
	return v, nil
}

func (e *evaluator) parseElvis() (value, error) {
	left, err := e.parsePostfix()
	if err != nil {
		return value{}, err
	}
	e.skipSpace()
	if !strings.HasPrefix(e.expr[e.pos:], "?:") {
		return left, nil
	}
	e.pos += 2

	right, err := e.parseElvis()
	if err != nil {
		return value{}, err
	}
	if left.empty() {
		return right, nil
	}
	return left, nil
}

func (e *evaluator) parsePostfix() (value, error) {
	v, err := e.parsePrimary()
	if err != nil {
		return value{}, err
	}
	for {
		e.skipSpace()
		if !strings.HasPrefix(e.expr[e.pos:], ".split(") {
			return v, nil
		}
		e.pos += len(".split(")
		e.skipSpace()
		sep, err := e.parseString()
		if err != nil {
			return value{}, err
		}
		if sep == "" {
			return value{}, e.errorf("split separator must not be empty")
		}
		if err := e.expect(')'); err != nil {
			return value{}, err
		}
		if !v.present {
			continue
		}
		parts := strings.Split(v.String(), sep)
		items := make([]string, 0, len(parts))
		for _, part := range parts {
			items = append(items, strings.TrimSpace(part))
		}
		v = value{items: items, list: true, present: true}
	}
}

func (e *evaluator) parsePrimary() (value, error) {
	e.skipSpace()
	if e.pos >= len(e.expr) {
		return value{}, e.errorf("unexpected end of expression")
	}

	c := e.expr[e.pos]
	switch {
	case c == '\'' || c == '"':
		s, err := e.parseString()
		if err != nil {
			return value{}, err
		}
		return text(s), nil
	case c == '{' || c == '[':
		return e.parseMapLiteral()
	case c == '-' || isDigit(c):
		return e.parseNumber(), nil
	case isIdentStart(c):
		return e.parseIdentifier()
	default:
		return value{}, e.errorf("unexpected character %q", c)
	}
}

func (e *evaluator) parseIdentifier() (value, error) {
	start := e.pos
	for e.pos < len(e.expr) && isIdentPart(e.expr[e.pos]) {
		e.pos++
	}
	ident := e.expr[start:e.pos]

	switch ident {
	case "null":
		return value{ref: ident}, nil
	case "true", "false":
		return text(ident), nil
	case "systemProperties", "systemEnvironment":
	default:
		e.pos = start
		return value{}, e.errorf("unsupported identifier %q", ident)
	}

	if err := e.expect('['); err != nil {
		return value{}, err
	}
	e.skipSpace()
	name, err := e.parseString()
	if err != nil {
		return value{}, err
	}
	if err := e.expect(']'); err != nil {
		return value{}, err
	}

	lookup := e.r.system
	if ident == "systemEnvironment" {
		lookup = e.r.env
	}
	ref := fmt.Sprintf("%s['%s']", ident, name)
	if v, ok := lookup(name); ok {
		return value{text: v, present: true, ref: ref}, nil
	}
	return value{ref: ref}, nil
}

// parseMapLiteral returns an inline {k:v,...} literal verbatim; its contents
// are interpreted by the coercion layer.
func (e *evaluator) parseMapLiteral() (value, error) {
	open := e.expr[e.pos]
	closing := byte('}')
	if open == '[' {
		closing = ']'
	}
	depth := 0
	for j := e.pos; j < len(e.expr); j++ {
		switch e.expr[j] {
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				lit := e.expr[e.pos : j+1]
				e.pos = j + 1
				return text(lit), nil
			}
		}
	}
	return value{}, e.errorf("unterminated literal")
}

func (e *evaluator) parseNumber() value {
	start := e.pos
	e.pos++
	for e.pos < len(e.expr) && (isDigit(e.expr[e.pos]) || e.expr[e.pos] == '.') {
		e.pos++
	}
	return text(e.expr[start:e.pos])
}

// parseString reads a quoted literal; a doubled quote escapes itself.
func (e *evaluator) parseString() (string, error) {
	if e.pos >= len(e.expr) || (e.expr[e.pos] != '\'' && e.expr[e.pos] != '"') {
		return "", e.errorf("expected string literal")
	}
	quote := e.expr[e.pos]
	e.pos++

	var b strings.Builder
	for e.pos < len(e.expr) {
		c := e.expr[e.pos]
		if c == quote {
			if e.pos+1 < len(e.expr) && e.expr[e.pos+1] == quote {
				b.WriteByte(quote)
				e.pos += 2
				continue
			}
			e.pos++
			return b.String(), nil
		}
		b.WriteByte(c)
		e.pos++
	}
	return "", e.errorf("unterminated string literal")
}

func (e *evaluator) expect(c byte) error {
	e.skipSpace()
	if e.pos >= len(e.expr) || e.expr[e.pos] != c {
		return e.errorf("expected %q", c)
	}
	e.pos++
	return nil
}

func (e *evaluator) skipSpace() {
	for e.pos < len(e.expr) && unicode.IsSpace(rune(e.expr[e.pos])) {
		e.pos++
	}
}

func (e *evaluator) errorf(format string, args ...any) error {
	return &ExpressionError{Expr: e.expr, Pos: e.pos, Msg: fmt.Sprintf(format, args...)}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}
