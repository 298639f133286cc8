package ethereum

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// IsHexAddress reports whether s is a valid hex-encoded address.
func IsHexAddress(s string) bool {
	return common.IsHexAddress(s)
}

// Normalize returns the lower-cased canonical form of a hex address.
func Normalize(s string) string {
	return strings.ToLower(common.HexToAddress(s).Hex())
}
