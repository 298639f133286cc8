package priceformat

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Display converts a raw integer amount into its human-readable form given
// the payment asset's decimals, e.g. 1500000000000000000 with 18 decimals
// renders as "1.5".
func Display(amount *big.Int, decimals int32) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -decimals).String()
}

// Parse converts a display amount back into raw integer units. The second
// return value is false when the string is not a valid decimal number or
// carries more fractional digits than the asset supports.
func Parse(display string, decimals int32) (*big.Int, bool) {
	d, err := decimal.NewFromString(display)
	if err != nil {
		return nil, false
	}
	scaled := d.Shift(decimals)
	if !scaled.IsInteger() {
		return nil, false
	}
	return scaled.BigInt(), true
}
