// internal/expr/parser.go
package expr

import (
	"fmt"

	"github.com/tamzrod/modbus-monitor/internal/model"
)

type nodeKind uint8

const (
	nNum nodeKind = iota
	nValue
	nRef
	nNeg
	nPos
	nBinary
	nCompare
	nCond
	nCall
)

type binOp uint8

const (
	opAdd binOp = iota
	opSub
	opMul
	opDiv
	opFloorDiv
	opMod
	opPow
	opLt
	opLe
	opGt
	opGe
	opEq
	opNe
)

var binOps = map[string]binOp{
	"+": opAdd, "-": opSub, "*": opMul, "/": opDiv, "//": opFloorDiv, "%": opMod, "**": opPow,
	"<": opLt, "<=": opLe, ">": opGt, ">=": opGe, "==": opEq, "!=": opNe,
}

// node is one expression tree node. Which fields apply depends on kind:
//
//	nNum      num
//	nRef      ref
//	nNeg/nPos args[0]
//	nBinary   op, args[0..1]
//	nCompare  ops[i] between args[i] and args[i+1]
//	nCond     args = {then, cond, else}
//	nCall     fn, args
type node struct {
	kind nodeKind
	num  float64
	ref  model.Key
	op   binOp
	ops  []binOp
	fn   fnID
	args []*node
}

type parser struct {
	toks  []token
	pos   int
	funcs map[string]fnID
	value bool
}

// parse builds a tree from src. value allows the identifier `value`;
// refs enables register reference tokens; funcs is the call allow-list.
func parse(src string, value, refs bool, funcs map[string]fnID) (*node, error) {
	lx := &lexer{src: src, refs: refs}
	toks, err := lx.all()
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, funcs: funcs, value: value}
	n, err := p.ternary()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tEOF {
		return nil, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, t.text, t.pos)
	}
	return n, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if t.kind != tEOF {
		p.pos++
	}
	return t
}

func (p *parser) isOp(text string) bool {
	t := p.peek()
	return t.kind == tOp && t.text == text
}

func (p *parser) isKeyword(word string) bool {
	t := p.peek()
	return t.kind == tIdent && t.text == word
}

// ternary := compare [ "if" compare "else" ternary ]
func (p *parser) ternary() (*node, error) {
	then, err := p.compare()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("if") {
		return then, nil
	}
	p.advance()
	cond, err := p.compare()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("else") {
		return nil, fmt.Errorf("%w: expected else at %d", ErrSyntax, p.peek().pos)
	}
	p.advance()
	other, err := p.ternary()
	if err != nil {
		return nil, err
	}
	return &node{kind: nCond, args: []*node{then, cond, other}}, nil
}

func isCompareOp(op binOp) bool { return op >= opLt }

// compare := arith { cmpop arith }
func (p *parser) compare() (*node, error) {
	left, err := p.arith()
	if err != nil {
		return nil, err
	}
	var (
		args = []*node{left}
		ops  []binOp
	)
	for {
		t := p.peek()
		if t.kind != tOp {
			break
		}
		op, ok := binOps[t.text]
		if !ok || !isCompareOp(op) {
			break
		}
		p.advance()
		right, err := p.arith()
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
		args = append(args, right)
	}
	if len(ops) == 0 {
		return left, nil
	}
	return &node{kind: nCompare, ops: ops, args: args}, nil
}

// arith := term { ("+"|"-") term }
func (p *parser) arith() (*node, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for p.isOp("+") || p.isOp("-") {
		op := binOps[p.advance().text]
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = &node{kind: nBinary, op: op, args: []*node{left, right}}
	}
	return left, nil
}

// term := unary { ("*"|"/"|"//"|"%") unary }
func (p *parser) term() (*node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.isOp("*") || p.isOp("/") || p.isOp("//") || p.isOp("%") {
		op := binOps[p.advance().text]
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = &node{kind: nBinary, op: op, args: []*node{left, right}}
	}
	return left, nil
}

// unary := ("-"|"+") unary | power
func (p *parser) unary() (*node, error) {
	if p.isOp("-") || p.isOp("+") {
		neg := p.advance().text == "-"
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		if neg {
			return &node{kind: nNeg, args: []*node{operand}}, nil
		}
		return &node{kind: nPos, args: []*node{operand}}, nil
	}
	return p.power()
}

// power := atom [ "**" unary ]; binds tighter than a unary on its left
// and is right associative.
func (p *parser) power() (*node, error) {
	base, err := p.atom()
	if err != nil {
		return nil, err
	}
	if !p.isOp("**") {
		return base, nil
	}
	p.advance()
	exp, err := p.unary()
	if err != nil {
		return nil, err
	}
	return &node{kind: nBinary, op: opPow, args: []*node{base, exp}}, nil
}

func (p *parser) atom() (*node, error) {
	t := p.advance()
	switch t.kind {
	case tNum:
		return &node{kind: nNum, num: t.num}, nil
	case tRef:
		return &node{kind: nRef, ref: t.ref}, nil
	case tLParen:
		n, err := p.ternary()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tRParen {
			return nil, fmt.Errorf("%w: expected ) at %d", ErrSyntax, p.peek().pos)
		}
		p.advance()
		return n, nil
	case tIdent:
		if p.peek().kind == tLParen {
			return p.call(t)
		}
		if t.text == "value" && p.value {
			return &node{kind: nValue}, nil
		}
		if t.text == "if" || t.text == "else" {
			return nil, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, t.text, t.pos)
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, t.text)
	case tEOF:
		return nil, fmt.Errorf("%w: unexpected end of expression", ErrSyntax)
	}
	return nil, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, t.text, t.pos)
}

func (p *parser) call(name token) (*node, error) {
	fn, ok := p.funcs[name.text]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, name.text)
	}
	p.advance() // (

	var args []*node
	if p.peek().kind != tRParen {
		for {
			a, err := p.ternary()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if p.peek().kind != tComma {
				break
			}
			p.advance()
			if p.peek().kind == tRParen {
				break
			}
		}
	}
	if p.peek().kind != tRParen {
		return nil, fmt.Errorf("%w: expected ) at %d", ErrSyntax, p.peek().pos)
	}
	p.advance()

	if err := checkArity(fn, len(args)); err != nil {
		return nil, err
	}
	return &node{kind: nCall, fn: fn, args: args}, nil
}
