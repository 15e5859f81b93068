package ledger

import (
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// Amount as the ledger's integer representation with the given number of decimal places.
// Digits past the precision are truncated.
func ToFixedPoint(amount decimal.Decimal, decimals int32) *big.Int {
	return amount.Shift(decimals).Truncate(0).BigInt()
}

func FromFixedPoint(v *big.Int, decimals int32) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -decimals)
}

// Amount argument of a contract call
func Amount(amount decimal.Decimal, decimals int32) Value {
	return I128(ToFixedPoint(amount, decimals))
}

// Timestamp argument of a contract call, in epoch seconds
func Timestamp(t time.Time) Value {
	if t.Unix() < 0 {
		return U64(0)
	}
	return U64(uint64(t.Unix()))
}

func decodeAmount(v Value, decimals int32) (decimal.Decimal, error) {
	i, err := v.AsI128()
	if err != nil {
		return decimal.Zero, err
	}
	return FromFixedPoint(i, decimals), nil
}

func decodeTime(v Value) (time.Time, error) {
	u, err := v.AsU64()
	if err != nil {
		return time.Time{}, err
	}
	if u == 0 {
		return time.Time{}, nil
	}
	if u > uint64(1<<62) {
		return time.Time{}, fmt.Errorf("%w: timestamp out of range", ErrDecode)
	}
	return time.Unix(int64(u), 0).UTC(), nil
}
