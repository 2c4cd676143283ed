package domain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// AddressLength is the byte length of a Sui address.
const AddressLength = 32

// BurnAddress receives value that must leave the transaction but has no owner.
const BurnAddress = "0x0000000000000000000000000000000000000000000000000000000000000000"

// NormalizeAddress validates a 0x-prefixed hex address and returns its
// canonical 32-byte, lower-case form.
func NormalizeAddress(s string) (string, error) {
	raw := strings.ToLower(strings.TrimSpace(s))
	if !strings.HasPrefix(raw, "0x") {
		return "", fmt.Errorf("%w: %q missing 0x prefix", ErrInvalidAddress, s)
	}
	hexPart := raw[2:]
	if len(hexPart) == 0 || len(hexPart) > AddressLength*2 {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	padded := "0x" + strings.Repeat("0", AddressLength*2-len(hexPart)) + hexPart
	b, err := hexutil.Decode(padded)
	if err != nil || len(b) != AddressLength {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return hexutil.Encode(b), nil
}

// AddressBytes decodes a normalized or short address into 32 bytes.
func AddressBytes(s string) ([]byte, error) {
	norm, err := NormalizeAddress(s)
	if err != nil {
		return nil, err
	}
	return hexutil.Decode(norm)
}

// IsAddress reports whether s parses as a Sui address.
func IsAddress(s string) bool {
	_, err := NormalizeAddress(s)
	return err == nil
}
