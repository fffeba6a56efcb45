// internal/expr/eval.go
package expr

import (
	"errors"
	"fmt"
	"math"

	"github.com/tamzrod/modbus-monitor/internal/model"
)

var (
	ErrSyntax        = errors.New("invalid expression syntax")
	ErrUnknownSymbol = errors.New("unknown symbol")
	ErrUnsupported   = errors.New("unsupported operation")
	ErrDomain        = errors.New("math domain error")
	ErrRange         = errors.New("math range error")
)

// zeroEpsilon is the divisor magnitude below which division is refused.
const zeroEpsilon = 1e-10

type fnID uint8

const (
	fnAbs fnID = iota
	fnMin
	fnMax
	fnSqrt
	fnRound
	fnInt
	fnFloat
	fnPow
	fnSin
	fnCos
	fnTan
	fnLog
	fnLog10
	fnExp
)

var fnNames = [...]string{
	fnAbs: "abs", fnMin: "min", fnMax: "max", fnSqrt: "sqrt", fnRound: "round",
	fnInt: "int", fnFloat: "float", fnPow: "pow", fnSin: "sin", fnCos: "cos",
	fnTan: "tan", fnLog: "log", fnLog10: "log10", fnExp: "exp",
}

func (f fnID) String() string { return fnNames[f] }

func allowList(ids ...fnID) map[string]fnID {
	m := make(map[string]fnID, len(ids))
	for _, id := range ids {
		m[fnNames[id]] = id
	}
	return m
}

var (
	scalingFuncs  = allowList(fnAbs, fnMin, fnMax, fnSqrt, fnRound, fnInt, fnFloat, fnPow)
	variableFuncs = allowList(fnAbs, fnMin, fnMax, fnSqrt, fnRound, fnInt, fnFloat, fnPow,
		fnSin, fnCos, fnTan, fnLog, fnLog10, fnExp)
)

func checkArity(fn fnID, n int) error {
	lo, hi := 1, 1
	switch fn {
	case fnMin, fnMax:
		lo, hi = 2, math.MaxInt
	case fnPow:
		lo, hi = 2, 2
	case fnRound, fnLog:
		lo, hi = 1, 2
	}
	if n < lo || n > hi {
		return fmt.Errorf("%w: %s() takes %s, got %d", ErrSyntax, fn, arityText(lo, hi), n)
	}
	return nil
}

func arityText(lo, hi int) string {
	switch {
	case lo == hi && lo == 1:
		return "1 argument"
	case lo == hi:
		return fmt.Sprintf("%d arguments", lo)
	case hi == math.MaxInt:
		return fmt.Sprintf("at least %d arguments", lo)
	}
	return fmt.Sprintf("%d to %d arguments", lo, hi)
}

// env supplies the free variables of one evaluation.
type env struct {
	value  float64
	lookup func(model.Key) (float64, bool)
}

func (n *node) eval(e *env) (float64, error) {
	switch n.kind {
	case nNum:
		return n.num, nil

	case nValue:
		return e.value, nil

	case nRef:
		if e.lookup == nil {
			return 0, nil
		}
		v, ok := e.lookup(n.ref)
		if !ok {
			return 0, nil
		}
		return v, nil

	case nNeg:
		v, err := n.args[0].eval(e)
		return -v, err

	case nPos:
		return n.args[0].eval(e)

	case nBinary:
		a, err := n.args[0].eval(e)
		if err != nil {
			return 0, err
		}
		b, err := n.args[1].eval(e)
		if err != nil {
			return 0, err
		}
		return checked(binary(n.op, a, b))

	case nCompare:
		left, err := n.args[0].eval(e)
		if err != nil {
			return 0, err
		}
		for i, op := range n.ops {
			right, err := n.args[i+1].eval(e)
			if err != nil {
				return 0, err
			}
			if !compare(op, left, right) {
				return 0, nil
			}
			left = right
		}
		return 1, nil

	case nCond:
		cond, err := n.args[1].eval(e)
		if err != nil {
			return 0, err
		}
		if cond != 0 {
			return n.args[0].eval(e)
		}
		return n.args[2].eval(e)

	case nCall:
		args := make([]float64, len(n.args))
		for i, a := range n.args {
			v, err := a.eval(e)
			if err != nil {
				return 0, err
			}
			args[i] = v
		}
		return checked(call(n.fn, args))
	}
	return 0, fmt.Errorf("%w: node kind %d", ErrUnsupported, n.kind)
}

// checked turns NaN and Inf results into errors.
func checked(v float64, err error) (float64, error) {
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) {
		return 0, ErrDomain
	}
	if math.IsInf(v, 0) {
		return 0, ErrRange
	}
	return v, nil
}

func binary(op binOp, a, b float64) (float64, error) {
	switch op {
	case opAdd:
		return a + b, nil
	case opSub:
		return a - b, nil
	case opMul:
		return a * b, nil
	case opDiv, opFloorDiv, opMod:
		if math.Abs(b) < zeroEpsilon {
			return 0, fmt.Errorf("%w: division by zero", ErrDomain)
		}
		switch op {
		case opDiv:
			return a / b, nil
		case opFloorDiv:
			return math.Floor(a / b), nil
		default:
			return floorMod(a, b), nil
		}
	case opPow:
		if a == 0 && b < 0 {
			return 0, fmt.Errorf("%w: zero to a negative power", ErrDomain)
		}
		return math.Pow(a, b), nil
	}
	return 0, fmt.Errorf("%w: operator %d", ErrUnsupported, op)
}

// floorMod has the sign of the divisor.
func floorMod(a, b float64) float64 {
	r := math.Mod(a, b)
	if r != 0 && (r < 0) != (b < 0) {
		r += b
	}
	return r
}

func compare(op binOp, a, b float64) bool {
	switch op {
	case opLt:
		return a < b
	case opLe:
		return a <= b
	case opGt:
		return a > b
	case opGe:
		return a >= b
	case opEq:
		return a == b
	case opNe:
		return a != b
	}
	return false
}

func call(fn fnID, args []float64) (float64, error) {
	x := args[0]
	switch fn {
	case fnAbs:
		return math.Abs(x), nil
	case fnMin:
		m := x
		for _, v := range args[1:] {
			if v < m {
				m = v
			}
		}
		return m, nil
	case fnMax:
		m := x
		for _, v := range args[1:] {
			if v > m {
				m = v
			}
		}
		return m, nil
	case fnSqrt:
		if x < 0 {
			return 0, fmt.Errorf("%w: sqrt() argument must be non-negative", ErrDomain)
		}
		return math.Sqrt(x), nil
	case fnRound:
		if len(args) == 1 {
			return math.RoundToEven(x), nil
		}
		p := math.Pow(10, math.Trunc(args[1]))
		return math.RoundToEven(x*p) / p, nil
	case fnInt:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, fmt.Errorf("%w: int() of non-finite value", ErrDomain)
		}
		return math.Trunc(x), nil
	case fnFloat:
		return x, nil
	case fnPow:
		return binary(opPow, x, args[1])
	case fnSin:
		return math.Sin(x), nil
	case fnCos:
		return math.Cos(x), nil
	case fnTan:
		return math.Tan(x), nil
	case fnLog:
		if x <= 0 {
			return 0, fmt.Errorf("%w: log() argument must be positive", ErrDomain)
		}
		if len(args) == 2 {
			base := args[1]
			if base <= 0 || base == 1 {
				return 0, fmt.Errorf("%w: invalid log() base", ErrDomain)
			}
			return math.Log(x) / math.Log(base), nil
		}
		return math.Log(x), nil
	case fnLog10:
		if x <= 0 {
			return 0, fmt.Errorf("%w: log10() argument must be positive", ErrDomain)
		}
		return math.Log10(x), nil
	case fnExp:
		return math.Exp(x), nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownSymbol, fn)
}
