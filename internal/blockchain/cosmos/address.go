package cosmos

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"

	"tokendesk/internal/models"
)

// EncodeBech32 renders a 20-byte account under the given human-readable prefix
func EncodeBech32(prefix string, addr common.Address) (string, error) {
	conv, err := bech32.ConvertBits(addr.Bytes(), 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("failed to convert bits for bech32: %w", err)
	}

	address, err := bech32.Encode(prefix, conv)
	if err != nil {
		return "", fmt.Errorf("failed to encode bech32 address: %w", err)
	}

	return address, nil
}

// DecodeBech32 parses a bech32 account address and checks its prefix and length
func DecodeBech32(prefix, address string) (common.Address, error) {
	if address == "" {
		return common.Address{}, fmt.Errorf("address cannot be empty")
	}

	hrp, data5bit, err := bech32.Decode(address)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to decode bech32 address: %w", err)
	}
	if hrp != prefix {
		return common.Address{}, fmt.Errorf("unexpected address prefix %q, want %q", hrp, prefix)
	}

	data8bit, err := bech32.ConvertBits(data5bit, 5, 8, false)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to convert address bits: %w", err)
	}
	if len(data8bit) != common.AddressLength {
		return common.Address{}, fmt.Errorf("unexpected account length %d", len(data8bit))
	}

	return common.BytesToAddress(data8bit), nil
}

// Addresses parses bech32 accounts with a fixed prefix. Hex accounts are
// accepted too and refer to the same 20 bytes.
type Addresses struct {
	Prefix string
}

// ParseAddress implements ledger.AddressParser
func (a Addresses) ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, a.Prefix+"1") {
		addr, err := DecodeBech32(a.Prefix, s)
		if err != nil {
			return common.Address{}, fmt.Errorf("%w: %v", models.ErrInvalidAddress, err)
		}
		return addr, nil
	}
	return models.ParseHexAddress(s)
}
