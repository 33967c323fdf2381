package model

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/text/unicode/norm"
)

// Address identifies an account (creator, holder, seller, buyer or payee).
type Address = common.Address

// ZeroAddress is never a valid participant.
var ZeroAddress Address

// ParseAddress parses a 0x-prefixed hex address. The zero address is rejected.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return ZeroAddress, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	addr := common.HexToAddress(s)
	if addr == ZeroAddress {
		return ZeroAddress, fmt.Errorf("%w: zero address", ErrInvalidAddress)
	}
	return addr, nil
}

// CleanText NFC-normalizes and trims free-text metadata.
func CleanText(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}
