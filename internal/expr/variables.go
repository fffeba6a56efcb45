// internal/expr/variables.go
package expr

import (
	"errors"
	"strings"

	"github.com/tamzrod/modbus-monitor/internal/model"
)

var ErrEmpty = errors.New("expression is empty")

// Table resolves register references to scaled values.
type Table interface {
	Lookup(key model.Key) (float64, bool)
}

// MapTable is a Table over a plain map.
type MapTable map[model.Key]float64

func (m MapTable) Lookup(k model.Key) (float64, bool) {
	v, ok := m[k]
	return v, ok
}

// Variables evaluates variable expressions against a register table.
// References are D<slave>.R<address> or R<address> (slave 1). A reference
// missing from the table evaluates to 0.
type Variables struct {
	c cache
}

func NewVariables() *Variables {
	return &Variables{c: cache{refs: true, funcs: variableFuncs}}
}

// Evaluate computes src against t. An empty expression yields 0.
func (v *Variables) Evaluate(src string, t Table) (float64, error) {
	if strings.TrimSpace(src) == "" {
		return 0, nil
	}
	n, err := v.c.get(src)
	if err != nil {
		return 0, err
	}
	e := &env{}
	if t != nil {
		e.lookup = t.Lookup
	}
	return n.eval(e)
}

// Validate parses src and evaluates it with every reference bound to
// ValidationValue. The cache is not touched.
func (v *Variables) Validate(src string) error {
	if strings.TrimSpace(src) == "" {
		return ErrEmpty
	}
	n, err := parse(src, false, true, variableFuncs)
	if err != nil {
		return err
	}
	_, err = n.eval(&env{lookup: func(model.Key) (float64, bool) { return ValidationValue, true }})
	return err
}

// ReferencedRegisters lists the registers src refers to, in first-seen
// order without duplicates. Only the lexer runs; nothing is evaluated.
func (v *Variables) ReferencedRegisters(src string) []model.Key {
	return ReferencedRegisters(src)
}

func ReferencedRegisters(src string) []model.Key {
	lx := &lexer{src: src, refs: true}
	var (
		out  []model.Key
		seen = make(map[model.Key]bool)
	)
	for {
		t, err := lx.next()
		if err != nil || t.kind == tEOF {
			return out
		}
		if t.kind == tRef && !seen[t.ref] {
			seen[t.ref] = true
			out = append(out, t.ref)
		}
	}
}

func (v *Variables) Cached() int { return v.c.len() }

func (v *Variables) ClearCache() { v.c.clear() }
