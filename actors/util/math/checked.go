package math

import (
	"math"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"golang.org/x/xerrors"
)

// Token amounts are bounded to unsigned 256-bit integers.
const TokenAmountBits = 256

var (
	// Returned when a result exceeds its representable range.
	ErrOverflow = xerrors.New("arithmetic overflow")
	// Returned when a subtraction of token amounts would go negative.
	ErrUnderflow = xerrors.New("arithmetic underflow")
)

// MaxTokenAmount is the largest representable token amount, 2^256 - 1.
var MaxTokenAmount = big.Sub(big.Lsh(big.NewInt(1), TokenAmountBits), big.NewInt(1))

// Whether a token amount lies within [0, MaxTokenAmount].
func InTokenRange(a abi.TokenAmount) bool {
	return a.Sign() >= 0 && a.BitLen() <= TokenAmountBits
}

func checkRange(op string, a, b, r abi.TokenAmount) (abi.TokenAmount, error) {
	if r.Sign() < 0 {
		return big.Zero(), xerrors.Errorf("%v %s %v: %w", a, op, b, ErrUnderflow)
	}
	if r.BitLen() > TokenAmountBits {
		return big.Zero(), xerrors.Errorf("%v %s %v: %w", a, op, b, ErrOverflow)
	}
	return r, nil
}

// Adds two token amounts, failing with ErrOverflow if the sum exceeds MaxTokenAmount.
func CheckedAdd(a, b abi.TokenAmount) (abi.TokenAmount, error) {
	return checkRange("+", a, b, big.Add(a, b))
}

// Subtracts b from a, failing with ErrUnderflow if the result is negative.
func CheckedSub(a, b abi.TokenAmount) (abi.TokenAmount, error) {
	return checkRange("-", a, b, big.Sub(a, b))
}

// Multiplies two token amounts, failing with ErrOverflow if the product exceeds MaxTokenAmount.
func CheckedMul(a, b abi.TokenAmount) (abi.TokenAmount, error) {
	return checkRange("*", a, b, big.Mul(a, b))
}

// Computes floor(a * num / denom) with the intermediate product checked against the token bound.
func CheckedMulDiv(a, num, denom abi.TokenAmount) (abi.TokenAmount, error) {
	if denom.Sign() <= 0 {
		return big.Zero(), xerrors.Errorf("non-positive divisor %v", denom)
	}
	product, err := CheckedMul(a, num)
	if err != nil {
		return big.Zero(), err
	}
	return big.Div(product, denom), nil
}

// Adds two epochs, failing with ErrOverflow if the sum does not fit in an int64.
func CheckedAddEpochs(a, b abi.ChainEpoch) (abi.ChainEpoch, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, xerrors.Errorf("epoch %d + %d: %w", a, b, ErrOverflow)
	}
	return a + b, nil
}
