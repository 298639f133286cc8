package domain

import (
	"math/big"
	"strings"
)

type Address string

const NullAddress = Address("0x0000000000000000000000000000000000000000")

func (a Address) ToLower() Address {
	return Address(strings.ToLower(string(a)))
}

func (a Address) ToLowerStr() string {
	return strings.ToLower(string(a))
}

// IsNull reports whether the address is unset or the all-zero address.
func (a Address) IsNull() bool {
	return len(a) == 0 || a.ToLower() == NullAddress
}

func (a Address) Equals(b Address) bool {
	return a.ToLowerStr() == b.ToLowerStr()
}

// AssetId identifies a unique non-fungible item whose custody the auction
// engine escrows.
type AssetId string

func (id AssetId) String() string {
	return string(id)
}

func (id AssetId) IsEmpty() bool {
	return len(id) == 0
}

// BpsDenominator is the divisor for fee cuts expressed in basis points.
const BpsDenominator = 10000

// ValidBps reports whether a cut lies in [0, 10000].
func ValidBps(bps int64) bool {
	return bps >= 0 && bps <= BpsDenominator
}

// CutOf returns amount*bps/10000, rounded down.
func CutOf(amount *big.Int, bps int64) *big.Int {
	cut := new(big.Int).Mul(amount, big.NewInt(bps))
	return cut.Div(cut, big.NewInt(BpsDenominator))
}
