package header

import (
	"fmt"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokPunct
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "EOF"
	case tokIdent:
		return "identifier"
	case tokNumber:
		return "number"
	case tokString:
		return "string"
	case tokPunct:
		return "punctuation"
	default:
		return fmt.Sprintf("token(%d)", int(k))
	}
}

type token struct {
	kind tokenKind
	text string
	line int
	col  int
}

func (t token) is(punct string) bool {
	return t.kind == tokPunct && t.text == punct
}

// lexer splits a C header into tokens. Comments are dropped and preprocessor lines are
// consumed, keeping only `#define NAME <integer>` so dimensions may be given by macro.
type lexer struct {
	src    []byte
	pos    int
	line   int
	col    int
	bol    bool
	tokens []token
	macros map[string]int
}

func lex(src []byte) ([]token, map[string]int, error) {
	l := &lexer{src: src, line: 1, col: 1, bol: true, macros: make(map[string]int)}
	if err := l.run(); err != nil {
		return nil, nil, err
	}
	return l.tokens, l.macros, nil
}

func (l *lexer) peekAt(off int) byte {
	if l.pos+off < len(l.src) {
		return l.src[l.pos+off]
	}
	return 0
}

func (l *lexer) advance() byte {
	c := l.src[l.pos]
	l.pos++
	if c == '\n' {
		l.line++
		l.col = 1
		l.bol = true
	} else {
		l.col++
	}
	return c
}

func (l *lexer) errorf(line, col int, format string, args ...interface{}) error {
	return &ParseError{Line: line, Col: col, Msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) run() error {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		line, col := l.line, l.col

		switch {
		case c == '\n':
			l.advance()
		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			l.advance()
		case c == '/' && l.peekAt(1) == '/':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.advance()
			}
		case c == '/' && l.peekAt(1) == '*':
			l.advance()
			l.advance()
			closed := false
			for l.pos < len(l.src) {
				if l.src[l.pos] == '*' && l.peekAt(1) == '/' {
					l.advance()
					l.advance()
					closed = true
					break
				}
				l.advance()
			}
			if !closed {
				return l.errorf(line, col, "unterminated block comment")
			}
		case c == '#' && l.bol:
			l.directive()
		case c == '"' || c == '\'':
			if err := l.quoted(c); err != nil {
				return err
			}
		case isIdentStart(c):
			start := l.pos
			for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
				l.advance()
			}
			l.emit(tokIdent, string(l.src[start:l.pos]), line, col)
		case isDigit(c) || (c == '.' && isDigit(l.peekAt(1))):
			l.number(line, col)
		default:
			l.advance()
			l.emit(tokPunct, string(c), line, col)
		}

		if c != '\n' && c != ' ' && c != '\t' && c != '\r' {
			l.bol = false
		}
	}
	l.tokens = append(l.tokens, token{kind: tokEOF, line: l.line, col: l.col})
	return nil
}

func (l *lexer) emit(kind tokenKind, text string, line, col int) {
	l.tokens = append(l.tokens, token{kind: kind, text: text, line: line, col: col})
}

// directive consumes one preprocessor line, honouring backslash continuations.
func (l *lexer) directive() {
	var sb strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '\\' && l.peekAt(1) == '\n' {
			l.advance()
			l.advance()
			sb.WriteByte(' ')
			continue
		}
		if c == '\n' {
			break
		}
		sb.WriteByte(l.advance())
	}

	fields := strings.Fields(strings.TrimPrefix(sb.String(), "#"))
	if len(fields) >= 3 && fields[0] == "define" {
		if v, err := parseInteger(strings.Trim(fields[2], "()")); err == nil {
			l.macros[fields[1]] = v
		}
	}
}

func (l *lexer) quoted(quote byte) error {
	line, col := l.line, l.col
	start := l.pos
	l.advance()
	for l.pos < len(l.src) {
		c := l.advance()
		switch c {
		case '\\':
			if l.pos < len(l.src) {
				l.advance()
			}
		case quote:
			l.emit(tokString, string(l.src[start:l.pos]), line, col)
			return nil
		case '\n':
			return l.errorf(line, col, "unterminated literal")
		}
	}
	return l.errorf(line, col, "unterminated literal")
}

// number consumes a pp-number: digits, letters, dots, and signs following an exponent.
func (l *lexer) number(line, col int) {
	start := l.pos
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if isIdentPart(c) || c == '.' {
			l.advance()
			continue
		}
		if (c == '+' || c == '-') && l.pos > start {
			prev := l.src[l.pos-1]
			hex := l.pos-start > 1 && (l.src[start+1] == 'x' || l.src[start+1] == 'X')
			if ((prev == 'e' || prev == 'E') && !hex) || prev == 'p' || prev == 'P' {
				l.advance()
				continue
			}
		}
		break
	}
	l.emit(tokNumber, string(l.src[start:l.pos]), line, col)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHex(s string) bool {
	return len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

// trimSuffixes strips C literal suffixes (f, l, u in any case and combination).
func trimSuffixes(s string, float bool) string {
	for len(s) > 0 {
		c := s[len(s)-1]
		switch c {
		case 'l', 'L', 'u', 'U':
		case 'f', 'F':
			// In a hex literal f is a digit unless a p exponent precedes it.
			if !float || (isHex(s) && !strings.ContainsAny(s, "pP")) {
				return s
			}
		default:
			return s
		}
		s = s[:len(s)-1]
	}
	return s
}

// parseFloat parses a C floating or integer literal at the given precision (32 or 64).
func parseFloat(text string, bitSize int) (float64, error) {
	s := trimSuffixes(text, true)
	if isHex(s) && !strings.ContainsAny(s, "pP") {
		v, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return 0, err
		}
		return float64(v), nil
	}
	return strconv.ParseFloat(s, bitSize)
}

func parseInteger(text string) (int, error) {
	v, err := strconv.ParseInt(trimSuffixes(text, false), 0, 64)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}
