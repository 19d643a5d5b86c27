package coordinator

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"tokendesk/internal/models"
)

var (
	ErrBusy              = errors.New("another operation is in flight")
	ErrUnsupportedAction = errors.New("unsupported action")
)

// Request is a user-triggered write action as entered
type Request struct {
	Action  models.Action
	Amount  string
	Address string
}

// ValidationError is a local pre-flight failure. Message is the fixed text
// shown to the user.
type ValidationError struct {
	Action  models.Action
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// params are validated request parameters ready for submission
type params struct {
	action     models.Action
	amount     *big.Int
	amountText string
	decimals   uint8
	target     *common.Address
	targetText string
}

func addressMessage(action models.Action) string {
	switch action {
	case models.ActionMintTo:
		return "Please enter a valid Ethereum address"
	case models.ActionTransfer:
		return "Please enter a valid recipient address"
	default:
		return "Please enter a valid spender address"
	}
}

func amountMessage(action models.Action) string {
	switch action {
	case models.ActionTransfer:
		return "Please enter a valid transfer amount"
	case models.ActionApprove:
		return "Please enter a valid approve amount"
	case models.ActionBurn:
		return "Please enter a valid burn amount"
	default:
		return "Please enter a valid mint amount"
	}
}

// validate checks action preconditions. It never suspends and never reaches
// the ledger. The address is checked before the amount.
func (c *Coordinator) validate(req Request) (*params, error) {
	if !req.Action.IsWrite() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAction, req.Action)
	}

	p := &params{
		action:     req.Action,
		amountText: strings.TrimSpace(req.Amount),
		decimals:   c.decimals(),
	}

	if req.Action.RequiresAddress() {
		addr, err := c.addresses.ParseAddress(req.Address)
		if err != nil {
			return nil, &ValidationError{Action: req.Action, Field: "address", Message: addressMessage(req.Action)}
		}
		p.target = &addr
		p.targetText = strings.TrimSpace(req.Address)
	}

	_, raw, err := models.ParseAmount(p.amountText, p.decimals)
	if err != nil {
		return nil, &ValidationError{Action: req.Action, Field: "amount", Message: amountMessage(req.Action)}
	}

	// approve permits zero to revoke an allowance
	minSign := 1
	if req.Action == models.ActionApprove {
		minSign = 0
	}
	if raw.Sign() < minSign {
		return nil, &ValidationError{Action: req.Action, Field: "amount", Message: amountMessage(req.Action)}
	}
	p.amount = raw

	return p, nil
}

func (c *Coordinator) validateSpender(spender string) (common.Address, error) {
	addr, err := c.addresses.ParseAddress(spender)
	if err != nil {
		return common.Address{}, &ValidationError{
			Action:  models.ActionCheckAllowance,
			Field:   "spender",
			Message: addressMessage(models.ActionCheckAllowance),
		}
	}
	return addr, nil
}
