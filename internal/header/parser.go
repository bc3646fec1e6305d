package header

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Declaration is one array definition found in a header:
//
//	<qualifiers/type> Name[d1][d2]... = { literals };
//
// Nested braces are flattened in row-major order.
type Declaration struct {
	Name   string
	Type   string
	Dims   []int
	Values []float64
	Line   int

	// Err is set when the initializer could not be parsed. It is only reported if the
	// declaration is one that was asked for.
	Err error
}

// ElementBits is the precision literals are stored at: 32 for float, 64 otherwise.
func (d *Declaration) ElementBits() int {
	return elementBits(d.Type)
}

func elementBits(typ string) int {
	for _, w := range strings.Fields(typ) {
		if w == "float" {
			return 32
		}
	}
	return 64
}

type parser struct {
	toks   []token
	pos    int
	macros map[string]int
}

// Parse returns every sized array declaration with a brace initializer in src,
// in source order.
func Parse(src []byte) ([]*Declaration, error) {
	toks, macros, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, macros: macros}
	return p.declarations(), nil
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) at(i int) token {
	if i < len(p.toks) {
		return p.toks[i]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) declarations() []*Declaration {
	var decls []*Declaration
	stmtStart := 0

	for p.peek().kind != tokEOF {
		t := p.peek()

		if t.kind == tokIdent && p.at(p.pos+1).is("[") {
			if d, ok := p.declaration(stmtStart); ok {
				decls = append(decls, d)
				stmtStart = p.pos
				continue
			}
		}

		// Initializer braces are consumed by declaration, so any brace seen here
		// opens or closes a wrapper block (extern "C", namespace) or a body.
		p.next()
		if t.is("{") || t.is("}") || t.is(";") {
			stmtStart = p.pos
		}
	}
	return decls
}

// declaration tries to parse a declaration whose name is the current token. On a
// mismatch before the initializer it rewinds and returns false.
func (p *parser) declaration(stmtStart int) (*Declaration, bool) {
	start := p.pos
	nameTok := p.next()

	var dims []int
	for p.peek().is("[") {
		p.next()
		d, ok := p.dimension()
		if !ok || !p.peek().is("]") {
			p.pos = start
			return nil, false
		}
		p.next()
		dims = append(dims, d)
	}
	if !p.peek().is("=") || !p.at(p.pos+1).is("{") {
		p.pos = start
		return nil, false
	}
	p.next()

	var typeWords []string
	for i := stmtStart; i < start; i++ {
		if p.toks[i].kind == tokIdent {
			typeWords = append(typeWords, p.toks[i].text)
		}
	}

	d := &Declaration{
		Name: nameTok.text,
		Type: strings.Join(typeWords, " "),
		Dims: dims,
		Line: nameTok.line,
	}

	values, err := p.initializer(d.Name, d.ElementBits())
	if err != nil {
		d.Err = err
		p.skipStatement()
		return d, true
	}
	d.Values = values
	if p.peek().is(";") {
		p.next()
	}
	return d, true
}

func (p *parser) dimension() (int, bool) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		v, err := parseInteger(t.text)
		if err != nil || v <= 0 {
			return 0, false
		}
		return v, true
	case tokIdent:
		v, ok := p.macros[t.text]
		return v, ok && v > 0
	default:
		return 0, false
	}
}

// initializer parses a brace list, flattening nested lists.
func (p *parser) initializer(name string, bits int) ([]float64, error) {
	open := p.next()
	if !open.is("{") {
		return nil, p.unexpected(name, open, "'{'")
	}

	var out []float64
	for {
		t := p.peek()
		if t.is("}") {
			p.next()
			return out, nil
		}

		if t.is("{") {
			inner, err := p.initializer(name, bits)
			if err != nil {
				return nil, err
			}
			out = append(out, inner...)
		} else {
			v, err := p.literal(name, bits)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}

		sep := p.peek()
		switch {
		case sep.is(","):
			p.next()
		case sep.is("}"):
		default:
			return nil, p.unexpected(name, sep, "',' or '}'")
		}
	}
}

func (p *parser) literal(name string, bits int) (float64, error) {
	neg := false
	for p.peek().is("-") || p.peek().is("+") {
		if p.next().text == "-" {
			neg = !neg
		}
	}

	t := p.next()
	if t.kind != tokNumber {
		return 0, p.unexpected(name, t, "numeric literal")
	}
	v, err := parseFloat(t.text, bits)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, &ParseError{Name: name, Line: t.line, Col: t.col, Token: t.text, Msg: "invalid numeric literal"}
	}
	if neg {
		v = -v
	}
	return v, nil
}

func (p *parser) unexpected(name string, t token, want string) error {
	if t.kind == tokEOF {
		return &ParseError{Name: name, Line: t.line, Col: t.col, Msg: fmt.Sprintf("unexpected end of input, expected %s", want)}
	}
	return &ParseError{Name: name, Line: t.line, Col: t.col, Token: t.text, Msg: fmt.Sprintf("unexpected %s, expected %s", t.kind, want)}
}

// skipStatement advances past the closing brace and semicolon of a broken declaration.
func (p *parser) skipStatement() {
	depth := 0
	for p.peek().kind != tokEOF {
		t := p.next()
		switch {
		case t.is("{"):
			depth++
		case t.is("}"):
			depth--
		case t.is(";") && depth <= 0:
			return
		}
	}
}
