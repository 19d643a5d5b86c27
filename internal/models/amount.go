package models

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrTooManyDecimals = errors.New("amount has more fractional digits than the token supports")
	ErrInvalidAddress  = errors.New("invalid address")
	ErrAmountTooLarge  = errors.New("amount does not fit in 256 bits")
)

const (
	maxAmountDigits = 78 // decimal length of 2^256-1
	maxAmountBits   = 256
)

// ParseAmount parses a human-readable decimal amount and scales it to base units
func ParseAmount(text string, decimals uint8) (decimal.Decimal, *big.Int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return decimal.Zero, nil, ErrInvalidAmount
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, nil, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}

	if d.IsZero() {
		return d, new(big.Int), nil
	}

	// bound the integer part before scaling so huge exponents never expand
	digits := len(new(big.Int).Abs(d.Coefficient()).String())
	if int64(digits)+int64(d.Exponent())+int64(decimals) > maxAmountDigits {
		return decimal.Zero, nil, ErrAmountTooLarge
	}

	scaled := d.Shift(int32(decimals))
	if !scaled.IsInteger() {
		return decimal.Zero, nil, ErrTooManyDecimals
	}

	raw := scaled.BigInt()
	if raw.BitLen() > maxAmountBits {
		return decimal.Zero, nil, ErrAmountTooLarge
	}

	return d, raw, nil
}

// FormatAmount renders base units with the token's decimals. Whole amounts keep
// a single fractional zero ("100.0"), matching common wallet formatting.
func FormatAmount(raw *big.Int, decimals uint8) string {
	if raw == nil {
		return "0.0"
	}
	s := decimal.NewFromBigInt(raw, -int32(decimals)).String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// ParseHexAddress validates a 20-byte hex account identifier. Mixed-case input
// must carry a valid EIP-55 checksum.
func ParseHexAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, ErrInvalidAddress
	}

	body := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if body != strings.ToLower(body) && body != strings.ToUpper(body) {
		addr := common.HexToAddress(s)
		if addr.Hex()[2:] != body {
			return common.Address{}, fmt.Errorf("%w: bad checksum", ErrInvalidAddress)
		}
		return addr, nil
	}

	return common.HexToAddress(s), nil
}
