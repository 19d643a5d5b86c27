package ledger

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"tokendesk/internal/models"
)

// Request carries validated parameters for a write action
type Request struct {
	Action models.Action
	Amount *big.Int        // base units
	Target *common.Address // nil for mint and burn
}

// Receipt describes a finalized operation
type Receipt struct {
	Reference   string
	BlockNumber uint64
	GasUsed     uint64
}

// Client submits token operations to a ledger and waits for their finality.
// Submit returns as soon as the ledger accepted the operation and assigned a
// reference; AwaitFinality blocks until that reference reaches a terminal outcome.
type Client interface {
	Submit(ctx context.Context, req Request) (string, error)
	AwaitFinality(ctx context.Context, reference string) (*Receipt, error)
	Allowance(ctx context.Context, spender common.Address) (*big.Int, error)
}

// TokenReader exposes the read-only token data the read model refreshes
type TokenReader interface {
	TokenInfo(ctx context.Context) (*models.TokenInfo, error)
	BalanceOf(ctx context.Context) (*big.Int, error)
}

// AddressParser turns user input into a 20-byte account identifier without
// touching the network
type AddressParser interface {
	ParseAddress(s string) (common.Address, error)
}

// HexAddresses parses plain hex account identifiers
type HexAddresses struct{}

// ParseAddress implements AddressParser
func (HexAddresses) ParseAddress(s string) (common.Address, error) {
	return models.ParseHexAddress(s)
}

// Error is a ledger failure carrying a structured reason when one is known
type Error struct {
	Op      string // "submit", "finality", "query"
	Reason  string // decoded revert reason or custom error
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	case e.Reason != "":
		return e.Reason
	}
	return "ledger error"
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ReasonText returns the structured reason, if any
func (e *Error) ReasonText() string {
	return e.Reason
}

// ErrReverted marks an operation that was included but did not execute successfully
var ErrReverted = errors.New("transaction reverted")
