// internal/expr/expr_test.go
package expr

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/tamzrod/modbus-monitor/internal/model"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestScaling_Evaluate(t *testing.T) {
	s := NewScaling()

	cases := []struct {
		src   string
		value float64
		want  float64
	}{
		{"value", 42, 42},
		{"", 7, 7},
		{"value * 2 + 1", 5, 11},
		{"max(0, min(100, value))", 150, 100},
		{"max(0, min(100, value))", -3, 0},
		{"(value - 4000) / 16000 * 100", 12000, 50},
		{"value * 0.1", 123, 12.3},
		{"-2 ** 2", 0, -4},
		{"2 ** 3 ** 2", 0, 512},
		{"2 ** -1", 0, 0.5},
		{"-7 // 2", 0, -4},
		{"-7 % 3", 0, 2},
		{"7 % -3", 0, -2},
		{"value > 10", 11, 1},
		{"value > 10", 9, 0},
		{"1 < value < 3", 2, 1},
		{"1 < value < 3", 3, 0},
		{"value if value > 0 else 0", -5, 0},
		{"value if value > 0 else 0", 5, 5},
		{"1 if value < 0 else 2 if value == 0 else 3", 0, 2},
		{"round(2.5)", 0, 2},
		{"round(3.5)", 0, 4},
		{"round(1.234, 2)", 0, 1.23},
		{"int(-2.7)", 0, -2},
		{"abs(value)", -4, 4},
		{"pow(value, 2)", 3, 9},
		{"sqrt(16)", 0, 4},
		{"0x10 + value", 1, 17},
		{"1e3", 0, 1000},
		{".5 + value", 1, 1.5},
		{"max(1, 2, 3,)", 0, 3},
	}

	for _, c := range cases {
		got, err := s.Evaluate(c.src, c.value)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", c.src, err)
		}
		if !near(got, c.want) {
			t.Fatalf("%q value=%v: got=%v want=%v", c.src, c.value, got, c.want)
		}
	}
}

func TestScaling_Errors(t *testing.T) {
	s := NewScaling()

	cases := []struct {
		src  string
		want error
	}{
		{"value / 0", ErrDomain},
		{"value // 0.00000000001", ErrDomain},
		{"value % 0", ErrDomain},
		{"sqrt(-1)", ErrDomain},
		{"foo + 1", ErrUnknownSymbol},
		{"sin(value)", ErrUnknownSymbol},
		{"__import__(value)", ErrUnknownSymbol},
		{"value & 1", ErrUnsupported},
		{"value = 1", ErrUnsupported},
		{"value.real", ErrUnsupported},
		{"value +", ErrSyntax},
		{"(value", ErrSyntax},
		{"value 2", ErrSyntax},
		{"1 if value", ErrSyntax},
		{"abs()", ErrSyntax},
		{"10.0 ** 400", ErrRange},
		{"(-8) ** 0.5", ErrDomain},
		{"D1.R0", ErrUnknownSymbol},
		{"value + D12.R3", ErrUnknownSymbol},
		{"R3", ErrUnknownSymbol},
	}

	for _, c := range cases {
		_, err := s.Evaluate(c.src, 1)
		if !errors.Is(err, c.want) {
			t.Fatalf("%q: got err=%v want %v", c.src, err, c.want)
		}
	}
}

func TestScaling_CachesBySource(t *testing.T) {
	s := NewScaling()

	for i := 0; i < 5; i++ {
		if _, err := s.Evaluate("value * 3", float64(i)); err != nil {
			t.Fatalf("evaluate: %v", err)
		}
	}
	if s.Cached() != 1 {
		t.Fatalf("cached=%d want 1", s.Cached())
	}

	// Parse failures are not cached.
	_, _ = s.Evaluate("value +", 1)
	if s.Cached() != 1 {
		t.Fatalf("cached=%d want 1", s.Cached())
	}

	s.ClearCache()
	if s.Cached() != 0 {
		t.Fatalf("cached=%d after clear", s.Cached())
	}
}

func TestScaling_ValidateHasNoSideEffects(t *testing.T) {
	s := NewScaling()

	if err := s.Validate("value * 2"); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := s.Validate("value / (value - 1)"); !errors.Is(err, ErrDomain) {
		t.Fatalf("expected domain error at placeholder, got %v", err)
	}
	if err := s.Validate("bogus"); !errors.Is(err, ErrUnknownSymbol) {
		t.Fatalf("expected unknown symbol, got %v", err)
	}
	if s.Cached() != 0 {
		t.Fatalf("validate must not populate the cache")
	}
}

func TestScaling_IndependentInstances(t *testing.T) {
	a, b := NewScaling(), NewScaling()
	_, _ = a.Evaluate("value + 1", 1)
	if b.Cached() != 0 {
		t.Fatalf("instances must not share a cache")
	}
}

func TestVariables_Evaluate(t *testing.T) {
	v := NewVariables()
	table := MapTable{
		{Slave: 1, Address: 0}: 10,
		{Slave: 2, Address: 0}: 20,
		{Slave: 1, Address: 1}: 4,
	}

	cases := []struct {
		src  string
		want float64
	}{
		{"D1.R0 + D2.R0", 30},
		{"R0 + R1", 14},
		{"D1.R0 + R0", 20},
		{"D9.R9", 0},
		{"R500 + 1", 1},
		{"sqrt(D1.R0**2 + D1.R1**2) > 10", 1},
		{"log10(D1.R0)", 1},
		{"log(exp(2))", 2},
		{"log(8, 2)", 3},
		{"sin(0) + cos(0)", 1},
		{"", 0},
	}

	for _, c := range cases {
		got, err := v.Evaluate(c.src, table)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", c.src, err)
		}
		if !near(got, c.want) {
			t.Fatalf("%q: got=%v want=%v", c.src, got, c.want)
		}
	}
}

func TestVariables_LegacyReference(t *testing.T) {
	v := NewVariables()
	table := MapTable{
		{Slave: 1, Address: 0}: 3,
		{Slave: 1, Address: 1}: 4,
	}

	got, err := v.Evaluate("R0 + R1", table)
	if err != nil || got != 7 {
		t.Fatalf("got=%v err=%v", got, err)
	}
}

func TestVariables_Errors(t *testing.T) {
	v := NewVariables()
	table := MapTable{{Slave: 1, Address: 0}: -1}

	cases := []struct {
		src  string
		want error
	}{
		{"sqrt(D1.R0)", ErrDomain},
		{"log(D1.R0)", ErrDomain},
		{"log10(D1.R0)", ErrDomain},
		{"log(0)", ErrDomain},
		{"D1.R0 / D5.R5", ErrDomain},
		{"value", ErrUnknownSymbol},
		{"D1.R70000", ErrSyntax},
		{"D300.R0", ErrSyntax},
		{"exp(1000)", ErrRange},
	}

	for _, c := range cases {
		_, err := v.Evaluate(c.src, table)
		if !errors.Is(err, c.want) {
			t.Fatalf("%q: got err=%v want %v", c.src, err, c.want)
		}
	}
}

func TestVariables_Validate(t *testing.T) {
	v := NewVariables()

	if err := v.Validate("D1.R0 / R3"); err != nil {
		t.Fatalf("placeholder division should pass: %v", err)
	}
	if err := v.Validate("  "); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected empty error, got %v", err)
	}
	if err := v.Validate("D1.R0 - R0 / (R0 - 1)"); !errors.Is(err, ErrDomain) {
		t.Fatalf("expected domain error, got %v", err)
	}
	if v.Cached() != 0 {
		t.Fatalf("validate must not populate the cache")
	}
}

func TestReferencedRegisters(t *testing.T) {
	got := ReferencedRegisters("sqrt(D1.R0**2+D1.R1**2)")
	want := []model.Key{{Slave: 1, Address: 0}, {Slave: 1, Address: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}

	got = ReferencedRegisters("R5 + D2.R5 + R5 + D1.R5")
	want = []model.Key{{Slave: 1, Address: 5}, {Slave: 2, Address: 5}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}

	// Identifiers that merely contain R<digits> are not references.
	if got := ReferencedRegisters("XR5 + R5x"); len(got) != 0 {
		t.Fatalf("got %v want none", got)
	}
}

func TestReferencedRegisters_DoesNotEvaluate(t *testing.T) {
	v := NewVariables()
	got := v.ReferencedRegisters("D1.R0 / 0")
	if len(got) != 1 {
		t.Fatalf("got %v", got)
	}
	if v.Cached() != 0 {
		t.Fatalf("static analysis must not parse into the cache")
	}
}
