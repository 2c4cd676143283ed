package ptb

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
)

var errShortInput = errors.New("bcs: short input")

// EncodeU64 is the BCS encoding of a u64 (little endian).
func EncodeU64(v uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, v)
}

// EncodeU8 is the BCS encoding of a u8.
func EncodeU8(v uint8) []byte { return []byte{v} }

// EncodeBool is the BCS encoding of a bool.
func EncodeBool(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

// EncodeAddress is the BCS encoding of a 32-byte address.
func EncodeAddress(addr string) ([]byte, error) {
	return domain.AddressBytes(addr)
}

// EncodeString is the BCS encoding of a UTF-8 string: ULEB128 length, bytes.
func EncodeString(s string) []byte {
	out := appendULEB128(nil, uint64(len(s)))
	return append(out, s...)
}

// EncodeOption wraps an already encoded value as Some, or encodes None.
func EncodeOption(inner []byte) []byte {
	if inner == nil {
		return []byte{0}
	}
	return append([]byte{1}, inner...)
}

func appendULEB128(dst []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(dst, b)
		}
		dst = append(dst, b|0x80)
	}
}

func readULEB128(b []byte) (uint64, int, error) {
	var (
		v     uint64
		shift uint
	)
	for i, c := range b {
		if shift >= 64 {
			return 0, 0, fmt.Errorf("bcs: uleb128 overflow")
		}
		v |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			return v, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, errShortInput
}

// DecodeU64 reads a BCS u64.
func DecodeU64(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("bcs: u64 wants 8 bytes, got %d", len(b))
	}
	return binary.LittleEndian.Uint64(b), nil
}

// DecodeU8 reads a BCS u8.
func DecodeU8(b []byte) (uint8, error) {
	if len(b) != 1 {
		return 0, fmt.Errorf("bcs: u8 wants 1 byte, got %d", len(b))
	}
	return b[0], nil
}

// DecodeBool reads a BCS bool.
func DecodeBool(b []byte) (bool, error) {
	if len(b) != 1 || b[0] > 1 {
		return false, fmt.Errorf("bcs: invalid bool")
	}
	return b[0] == 1, nil
}

// DecodeAddress reads a BCS address into its 0x form.
func DecodeAddress(b []byte) (string, error) {
	if len(b) != domain.AddressLength {
		return "", fmt.Errorf("bcs: address wants %d bytes, got %d", domain.AddressLength, len(b))
	}
	return domain.NormalizeAddress(fmt.Sprintf("0x%x", b))
}

// DecodeString reads a BCS string.
func DecodeString(b []byte) (string, error) {
	n, used, err := readULEB128(b)
	if err != nil {
		return "", err
	}
	if uint64(len(b)-used) != n {
		return "", fmt.Errorf("bcs: string length %d, have %d bytes", n, len(b)-used)
	}
	return string(b[used:]), nil
}
