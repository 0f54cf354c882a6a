package valuecore

import (
	"math"
	"testing"

	"github.com/mauludsadiq/fard/internal/ferr"
)

// Ported from original_source/crates/valuecore/tests/gate8_valuecore_division_edges.rs.
func TestDivisionTruncatesTowardZero(t *testing.T) {
	cases := []struct {
		a, b    int64
		q, r    int64
	}{
		{7, 3, 2, 1},
		{-7, 3, -2, -1},
		{7, -3, -2, 1},
		{-7, -3, 2, -1},
	}
	for _, c := range cases {
		q, err := IDiv(NewInt(c.a), NewInt(c.b))
		if err != nil {
			t.Fatalf("IDiv(%d,%d) error: %v", c.a, c.b, err)
		}
		r, err := IRem(NewInt(c.a), NewInt(c.b))
		if err != nil {
			t.Fatalf("IRem(%d,%d) error: %v", c.a, c.b, err)
		}
		if q.V.Int64() != c.q || r.V.Int64() != c.r {
			t.Fatalf("IDiv/IRem(%d,%d) = (%s,%s), want (%d,%d)", c.a, c.b, q.V, r.V, c.q, c.r)
		}
	}
}

func TestDivZero(t *testing.T) {
	if _, err := IDiv(NewInt(1), NewInt(0)); !isClass(err, ferr.ErrDivZero) {
		t.Fatalf("IDiv(1,0) should fail ERROR_DIV_ZERO, got %v", err)
	}
	if _, err := IRem(NewInt(1), NewInt(0)); !isClass(err, ferr.ErrDivZero) {
		t.Fatalf("IRem(1,0) should fail ERROR_DIV_ZERO, got %v", err)
	}
}

func TestMinDivNegOneOverflows(t *testing.T) {
	min := NewInt(math.MinInt64)
	negOne := NewInt(-1)
	if _, err := IDiv(min, negOne); !isClass(err, ferr.ErrOverflow) {
		t.Fatalf("IDiv(MIN,-1) should fail ERROR_OVERFLOW, got %v", err)
	}
	if _, err := IRem(min, negOne); !isClass(err, ferr.ErrOverflow) {
		t.Fatalf("IRem(MIN,-1) should fail ERROR_OVERFLOW, got %v", err)
	}
}

func TestDivisionIdentity(t *testing.T) {
	pairs := [][2]int64{
		{7, 3}, {-7, 3}, {7, -3}, {-7, -3},
		{1, 1}, {-1, 1}, {100, 7}, {-100, 7},
		{0, 5}, {5, 1}, {-5, 1}, {17, 5}, {-17, -5},
	}
	for _, p := range pairs {
		a, b := p[0], p[1]
		q, err := IDiv(NewInt(a), NewInt(b))
		if err != nil {
			t.Fatalf("IDiv(%d,%d): %v", a, b, err)
		}
		r, err := IRem(NewInt(a), NewInt(b))
		if err != nil {
			t.Fatalf("IRem(%d,%d): %v", a, b, err)
		}
		if a != q.V.Int64()*b+r.V.Int64() {
			t.Fatalf("a != q*b+r for (%d,%d)", a, b)
		}
		if abs(r.V.Int64()) >= abs(b) {
			t.Fatalf("|r| >= |b| for (%d,%d)", a, b)
		}
	}
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

func isClass(err error, class ferr.Class) bool {
	fe, ok := err.(*ferr.Error)
	return ok && fe.Class == class
}
