package ptb

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/crypto/blake2b"
)

// TransactionVersion is the JSON transaction data format version.
const TransactionVersion = 2

// Transaction is unsigned programmable transaction data in the JSON v2 form
// wallets accept for signing.
type Transaction struct {
	Version    int       `json:"version"`
	Sender     string    `json:"sender"`
	Expiration *string   `json:"expiration"`
	GasData    GasData   `json:"gasData"`
	Inputs     []Input   `json:"inputs"`
	Commands   []Command `json:"commands"`
}

// JSON returns the canonical JSON encoding.
func (t *Transaction) JSON() ([]byte, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("ptb: marshal transaction: %w", err)
	}
	return raw, nil
}

// Base64 returns the JSON encoding, base64 encoded, for transport to a signer.
func (t *Transaction) Base64() (string, error) {
	raw, err := t.JSON()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Digest returns the 0x-prefixed blake2b-256 hash of the JSON encoding. It
// identifies a build for audit and archiving; the chain computes its own
// digest over the signed BCS bytes.
func (t *Transaction) Digest() (string, error) {
	raw, err := t.JSON()
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(raw)
	return hexutil.Encode(sum[:]), nil
}

// Decode parses JSON transaction data.
func Decode(raw []byte) (*Transaction, error) {
	var t Transaction
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("ptb: decode transaction: %w", err)
	}
	if t.Version != TransactionVersion {
		return nil, fmt.Errorf("ptb: unsupported transaction version %d", t.Version)
	}
	return &t, nil
}

// DecodeBase64 parses the output of Base64.
func DecodeBase64(s string) (*Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("ptb: decode base64: %w", err)
	}
	return Decode(raw)
}
