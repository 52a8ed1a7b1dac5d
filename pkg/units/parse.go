package units

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Unit is a resolved unit expression: a multiplier to SI base units and a
// dimension.
type Unit struct {
	Expr  string
	Scale float64
	Dim   Dimension
}

func (u Unit) String() string {
	if u.Expr == "" {
		return "dimensionless"
	}
	return u.Expr
}

// Parse resolves an expression such as "kpccm/h", "(kpc/h)*(km/s)" or
// "Msun/yr" against the registry. Operators are '*', '/', '**' or '^' with an
// integer power, and parentheses. The empty string is dimensionless.
func (r *Registry) Parse(expr string) (Unit, error) {
	toks, err := tokenize(expr)
	if err != nil {
		return Unit{}, err
	}
	if len(toks) == 0 {
		return Unit{Expr: "", Scale: 1}, nil
	}
	p := &parser{toks: toks, reg: r}
	u, err := p.expr()
	if err != nil {
		return Unit{}, fmt.Errorf("%w: %q: %w", ErrSyntax, expr, err)
	}
	if p.pos != len(p.toks) {
		return Unit{}, fmt.Errorf("%w: %q: unexpected %q", ErrSyntax, expr, p.toks[p.pos].text)
	}
	u.Expr = strings.TrimSpace(expr)
	return u, nil
}

// MustParse is Parse for expressions known to be valid.
func (r *Registry) MustParse(expr string) Unit {
	u, err := r.Parse(expr)
	if err != nil {
		panic(err)
	}
	return u
}

// Physical rewrites a unit expression so that every comoving unit symbol is
// replaced by the physical unit it was derived from ("kpccm/h" -> "kpc/h").
func (r *Registry) Physical(u Unit) (Unit, error) {
	toks, err := tokenize(u.Expr)
	if err != nil {
		return Unit{}, err
	}
	var b strings.Builder
	for _, t := range toks {
		if t.kind == tokName {
			if d, ok := r.Lookup(t.text); ok && d.ComovingOf != "" {
				b.WriteString(strings.TrimSuffix(t.text, ComovingSuffix))
				continue
			}
		}
		b.WriteString(t.text)
	}
	return r.Parse(b.String())
}

type tokKind int

const (
	tokName tokKind = iota
	tokNumber
	tokMul
	tokDiv
	tokPow
	tokLParen
	tokRParen
)

type token struct {
	kind tokKind
	text string
}

func isNameStart(c rune) bool {
	return unicode.IsLetter(c) || c == '_' || c == '%'
}

func isNamePart(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_'
}

func tokenize(s string) ([]token, error) {
	var toks []token
	rs := []rune(s)
	for i := 0; i < len(rs); {
		c := rs[i]
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '*':
			if i+1 < len(rs) && rs[i+1] == '*' {
				toks = append(toks, token{tokPow, "**"})
				i += 2
			} else {
				toks = append(toks, token{tokMul, "*"})
				i++
			}
		case c == '^':
			toks = append(toks, token{tokPow, "^"})
			i++
		case c == '/':
			toks = append(toks, token{tokDiv, "/"})
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case unicode.IsDigit(c) || c == '.' || c == '-' || c == '+':
			j := i + 1
			for j < len(rs) && (unicode.IsDigit(rs[j]) || rs[j] == '.' ||
				rs[j] == 'e' || rs[j] == 'E' ||
				((rs[j] == '-' || rs[j] == '+') && (rs[j-1] == 'e' || rs[j-1] == 'E'))) {
				j++
			}
			toks = append(toks, token{tokNumber, string(rs[i:j])})
			i = j
		case isNameStart(c):
			j := i + 1
			for j < len(rs) && isNamePart(rs[j]) {
				j++
			}
			toks = append(toks, token{tokName, string(rs[i:j])})
			i = j
		default:
			return nil, fmt.Errorf("%w: unexpected character %q in %q", ErrSyntax, c, s)
		}
	}
	return toks, nil
}

type parser struct {
	toks []token
	pos  int
	reg  *Registry
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos], true
}

// expr := term (('*' | '/') term)*
func (p *parser) expr() (Unit, error) {
	u, err := p.term()
	if err != nil {
		return Unit{}, err
	}
	for {
		t, ok := p.peek()
		if !ok || (t.kind != tokMul && t.kind != tokDiv) {
			return u, nil
		}
		p.pos++
		rhs, err := p.term()
		if err != nil {
			return Unit{}, err
		}
		if t.kind == tokMul {
			u = Unit{Scale: u.Scale * rhs.Scale, Dim: u.Dim.Mul(rhs.Dim)}
		} else {
			u = Unit{Scale: u.Scale / rhs.Scale, Dim: u.Dim.Div(rhs.Dim)}
		}
	}
}

// term := factor (('**' | '^') integer)?
func (p *parser) term() (Unit, error) {
	u, err := p.factor()
	if err != nil {
		return Unit{}, err
	}
	t, ok := p.peek()
	if !ok || t.kind != tokPow {
		return u, nil
	}
	p.pos++
	t, ok = p.peek()
	if !ok || t.kind != tokNumber {
		return Unit{}, fmt.Errorf("expected integer power")
	}
	p.pos++
	n, err := strconv.Atoi(t.text)
	if err != nil {
		return Unit{}, fmt.Errorf("power %q is not an integer", t.text)
	}
	scale := 1.0
	base := u.Scale
	if n < 0 {
		base = 1 / base
	}
	for i := 0; i < abs(n); i++ {
		scale *= base
	}
	return Unit{Scale: scale, Dim: u.Dim.Pow(n)}, nil
}

// factor := name | number | '(' expr ')'
func (p *parser) factor() (Unit, error) {
	t, ok := p.peek()
	if !ok {
		return Unit{}, fmt.Errorf("unexpected end of expression")
	}
	p.pos++
	switch t.kind {
	case tokName:
		d, ok := p.reg.Lookup(t.text)
		if !ok {
			return Unit{}, fmt.Errorf("%w: %q", ErrUnknownUnit, t.text)
		}
		return Unit{Scale: d.BaseValue, Dim: d.Dim}, nil
	case tokNumber:
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return Unit{}, fmt.Errorf("bad number %q", t.text)
		}
		return Unit{Scale: v}, nil
	case tokLParen:
		u, err := p.expr()
		if err != nil {
			return Unit{}, err
		}
		if c, ok := p.peek(); !ok || c.kind != tokRParen {
			return Unit{}, fmt.Errorf("missing ')'")
		}
		p.pos++
		return u, nil
	default:
		return Unit{}, fmt.Errorf("unexpected %q", t.text)
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
