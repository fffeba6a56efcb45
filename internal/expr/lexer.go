// internal/expr/lexer.go
package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tamzrod/modbus-monitor/internal/model"
)

type tokKind uint8

const (
	tEOF tokKind = iota
	tNum
	tIdent
	tRef
	tOp
	tLParen
	tRParen
	tComma
)

type token struct {
	kind tokKind
	pos  int
	text string
	num  float64
	ref  model.Key
}

// lexer splits an expression into tokens. With refs enabled, D<s>.R<a>
// and bare R<a> lex as register references.
type lexer struct {
	src  string
	pos  int
	refs bool
}

var twoCharOps = []string{"**", "//", "<=", ">=", "==", "!="}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool { return isIdentStart(c) || isDigit(c) }

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}

func (l *lexer) all() ([]token, error) {
	var out []token
	for {
		t, err := l.next()
		if err != nil {
			return out, err
		}
		out = append(out, t)
		if t.kind == tEOF {
			return out, nil
		}
	}
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
			break
		}
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{kind: tEOF, pos: l.pos}, nil
	}

	start := l.pos
	c := l.src[start]

	switch {
	case isDigit(c) || (c == '.' && start+1 < len(l.src) && isDigit(l.src[start+1])):
		return l.number()
	case isIdentStart(c):
		return l.ident()
	case c == '(':
		l.pos++
		return token{kind: tLParen, pos: start, text: "("}, nil
	case c == ')':
		l.pos++
		return token{kind: tRParen, pos: start, text: ")"}, nil
	case c == ',':
		l.pos++
		return token{kind: tComma, pos: start, text: ","}, nil
	}

	rest := l.src[start:]
	for _, op := range twoCharOps {
		if strings.HasPrefix(rest, op) {
			l.pos += 2
			return token{kind: tOp, pos: start, text: op}, nil
		}
	}
	switch c {
	case '+', '-', '*', '/', '%', '<', '>':
		l.pos++
		return token{kind: tOp, pos: start, text: string(c)}, nil
	case '&', '|', '^', '~', '@':
		return token{}, fmt.Errorf("%w: operator %q", ErrUnsupported, string(c))
	case '=':
		return token{}, fmt.Errorf("%w: assignment", ErrUnsupported)
	case '.':
		return token{}, fmt.Errorf("%w: attribute access", ErrUnsupported)
	case '[', ']', '{', '}':
		return token{}, fmt.Errorf("%w: subscripts and literals", ErrUnsupported)
	}
	return token{}, fmt.Errorf("%w: unexpected character %q at %d", ErrSyntax, string(c), start)
}

func (l *lexer) number() (token, error) {
	start := l.pos
	src := l.src

	if src[l.pos] == '0' && l.pos+1 < len(src) && strings.ContainsRune("xXbBoO", rune(src[l.pos+1])) {
		l.pos += 2
		for l.pos < len(src) && isIdentChar(src[l.pos]) {
			l.pos++
		}
		text := src[start:l.pos]
		n, err := strconv.ParseInt(text, 0, 64)
		if err != nil {
			return token{}, fmt.Errorf("%w: bad literal %q", ErrSyntax, text)
		}
		return token{kind: tNum, pos: start, text: text, num: float64(n)}, nil
	}

	for l.pos < len(src) && isDigit(src[l.pos]) {
		l.pos++
	}
	if l.pos < len(src) && src[l.pos] == '.' {
		l.pos++
		for l.pos < len(src) && isDigit(src[l.pos]) {
			l.pos++
		}
	}
	if l.pos < len(src) && (src[l.pos] == 'e' || src[l.pos] == 'E') {
		p := l.pos + 1
		if p < len(src) && (src[p] == '+' || src[p] == '-') {
			p++
		}
		if p < len(src) && isDigit(src[p]) {
			for p < len(src) && isDigit(src[p]) {
				p++
			}
			l.pos = p
		}
	}

	text := src[start:l.pos]
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		// Overflowing literals become +Inf, as Python does.
		if ne, ok := err.(*strconv.NumError); !ok || ne.Err != strconv.ErrRange {
			return token{}, fmt.Errorf("%w: bad literal %q", ErrSyntax, text)
		}
	}
	if l.pos < len(src) && isIdentStart(src[l.pos]) {
		return token{}, fmt.Errorf("%w: bad literal %q", ErrSyntax, src[start:l.pos+1])
	}
	return token{kind: tNum, pos: start, text: text, num: f}, nil
}

func (l *lexer) ident() (token, error) {
	start := l.pos
	for l.pos < len(l.src) && isIdentChar(l.src[l.pos]) {
		l.pos++
	}
	text := l.src[start:l.pos]

	if len(text) < 2 {
		return token{kind: tIdent, pos: start, text: text}, nil
	}
	if !l.refs {
		// A register reference where none are allowed names an unknown symbol.
		if text[0] == 'D' && allDigits(text[1:]) && l.pos < len(l.src) && l.src[l.pos] == '.' {
			return token{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, text)
		}
		return token{kind: tIdent, pos: start, text: text}, nil
	}

	// D<slave>.R<address>
	if text[0] == 'D' && allDigits(text[1:]) &&
		l.pos+2 < len(l.src) && l.src[l.pos] == '.' && l.src[l.pos+1] == 'R' && isDigit(l.src[l.pos+2]) {
		p := l.pos + 2
		for p < len(l.src) && isDigit(l.src[p]) {
			p++
		}
		if p < len(l.src) && isIdentChar(l.src[p]) {
			return token{kind: tIdent, pos: start, text: text}, nil
		}
		addrText := l.src[l.pos+2 : p]
		l.pos = p
		return refToken(start, l.src[start:p], text[1:], addrText)
	}

	// R<address>, slave 1
	if text[0] == 'R' && allDigits(text[1:]) {
		return refToken(start, text, "1", text[1:])
	}

	return token{kind: tIdent, pos: start, text: text}, nil
}

func refToken(pos int, text, slave, addr string) (token, error) {
	s, err := strconv.ParseUint(slave, 10, 8)
	if err != nil {
		return token{}, fmt.Errorf("%w: slave out of range in %s", ErrSyntax, text)
	}
	a, err := strconv.ParseUint(addr, 10, 16)
	if err != nil {
		return token{}, fmt.Errorf("%w: address out of range in %s", ErrSyntax, text)
	}
	return token{
		kind: tRef,
		pos:  pos,
		text: text,
		ref:  model.Key{Slave: uint8(s), Address: uint16(a)},
	}, nil
}
