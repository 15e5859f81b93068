package ledger

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Validates a party address. Accepts 0x-prefixed 20 byte hex addresses in any letter case.
func IsValidAddress(address string) bool {
	return common.IsHexAddress(address)
}

// Checksummed form of a valid address, input unchanged otherwise
func CanonicalAddress(address string) string {
	if !common.IsHexAddress(address) {
		return strings.TrimSpace(address)
	}
	return common.HexToAddress(address).Hex()
}

// Addresses equal regardless of checksum casing
func SameAddress(a, b string) bool {
	return CanonicalAddress(a) == CanonicalAddress(b)
}
