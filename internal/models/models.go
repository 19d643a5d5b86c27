package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Action identifies a user-triggered ledger action. Write actions become
// Operations; the allowance check is read-only and never enters the history.
type Action string

const (
	ActionMint           Action = "mint"
	ActionMintTo         Action = "mintTo"
	ActionTransfer       Action = "transfer"
	ActionApprove        Action = "approve"
	ActionBurn           Action = "burn"
	ActionCheckAllowance Action = "checkAllowance"
)

// IsWrite reports whether the action changes ledger state
func (a Action) IsWrite() bool {
	switch a {
	case ActionMint, ActionMintTo, ActionTransfer, ActionApprove, ActionBurn:
		return true
	}
	return false
}

// RequiresAddress reports whether the action carries a target account
func (a Action) RequiresAddress() bool {
	switch a {
	case ActionMintTo, ActionTransfer, ActionApprove, ActionCheckAllowance:
		return true
	}
	return false
}

// ParseAction maps a wire name onto a known action
func ParseAction(s string) (Action, bool) {
	a := Action(s)
	switch a {
	case ActionMint, ActionMintTo, ActionTransfer, ActionApprove, ActionBurn, ActionCheckAllowance:
		return a, true
	}
	return "", false
}

// OperationStatus represents the recorded outcome of a history entry
type OperationStatus string

const (
	OperationStatusPending OperationStatus = "pending"
	OperationStatusSuccess OperationStatus = "success"
	OperationStatusError   OperationStatus = "error"
)

// DisplayStatus represents the ephemeral status shown to the initiating user
type DisplayStatus string

const (
	DisplayStatusNone    DisplayStatus = "none"
	DisplayStatusPending DisplayStatus = "pending"
	DisplayStatusSuccess DisplayStatus = "success"
	DisplayStatusError   DisplayStatus = "error"
)

// Operation is a state-changing request recorded once the ledger assigned a reference.
// Only Status and Message change after insertion.
type Operation struct {
	Kind          Action
	Amount        *big.Int // base units
	AmountText    string   // amount as entered
	Decimals      uint8
	TargetAddress *common.Address
	SubmittedAt   time.Time
	Status        OperationStatus
	Message       string
	ExternalRef   string
}

// Clone returns a deep copy safe to hand outside the owning component
func (o Operation) Clone() Operation {
	out := o
	if o.Amount != nil {
		out.Amount = new(big.Int).Set(o.Amount)
	}
	if o.TargetAddress != nil {
		addr := *o.TargetAddress
		out.TargetAddress = &addr
	}
	return out
}

// GateState is the single-instance admission and display state
type GateState struct {
	Busy          bool
	ActiveKind    Action // empty when none
	DisplayStatus DisplayStatus
	Message       string
}

// TokenInfo holds derived token data refreshed from the ledger
type TokenInfo struct {
	Name        string
	Symbol      string
	Decimals    uint8
	TotalSupply *big.Int
	Balance     *big.Int
	Owner       string
	UpdatedAt   time.Time
}
