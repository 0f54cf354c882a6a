package valuecore

import (
	"math"
	"math/big"

	"github.com/mauludsadiq/fard/internal/ferr"
)

var (
	minInt64 = big.NewInt(math.MinInt64)
	maxInt64 = big.NewInt(math.MaxInt64)
)

func checkRange(z *big.Int) error {
	if z.Cmp(minInt64) < 0 || z.Cmp(maxInt64) > 0 {
		return ferr.New(ferr.ErrOverflow, "result %s out of int64 range", z.String())
	}
	return nil
}

// IAdd, ISub, IMul, INeg are the checked arithmetic primitives referenced
// throughout §4.1/§4.4: canonical Int is unbounded, but these primitives
// enforce 64-bit bounded semantics and fail ERROR_OVERFLOW on wrap, per the
// Open-Questions resolution recorded in DESIGN.md.
func IAdd(a, b Int) (Int, error) {
	z := new(big.Int).Add(a.V, b.V)
	if err := checkRange(z); err != nil {
		return Int{}, err
	}
	return Int{V: z}, nil
}

func ISub(a, b Int) (Int, error) {
	z := new(big.Int).Sub(a.V, b.V)
	if err := checkRange(z); err != nil {
		return Int{}, err
	}
	return Int{V: z}, nil
}

func IMul(a, b Int) (Int, error) {
	z := new(big.Int).Mul(a.V, b.V)
	if err := checkRange(z); err != nil {
		return Int{}, err
	}
	return Int{V: z}, nil
}

func INeg(a Int) (Int, error) {
	z := new(big.Int).Neg(a.V)
	if err := checkRange(z); err != nil {
		return Int{}, err
	}
	return Int{V: z}, nil
}

// IDiv and IRem truncate toward zero. Division/remainder by zero fail
// ERROR_DIV_ZERO; MIN/-1 and MIN%-1 fail ERROR_OVERFLOW.
func IDiv(a, b Int) (Int, error) {
	if b.V.Sign() == 0 {
		return Int{}, ferr.New(ferr.ErrDivZero, "division by zero")
	}
	if a.V.Cmp(minInt64) == 0 && b.V.Cmp(big.NewInt(-1)) == 0 {
		return Int{}, ferr.New(ferr.ErrOverflow, "MIN / -1 overflows")
	}
	z := new(big.Int).Quo(a.V, b.V)
	return Int{V: z}, nil
}

func IRem(a, b Int) (Int, error) {
	if b.V.Sign() == 0 {
		return Int{}, ferr.New(ferr.ErrDivZero, "division by zero")
	}
	if a.V.Cmp(minInt64) == 0 && b.V.Cmp(big.NewInt(-1)) == 0 {
		return Int{}, ferr.New(ferr.ErrOverflow, "MIN %% -1 overflows")
	}
	z := new(big.Int).Rem(a.V, b.V)
	return Int{V: z}, nil
}
