package coordinator

import (
	"errors"
	"fmt"

	"tokendesk/internal/models"
)

const (
	fallbackMessage         = "Transaction failed"
	allowanceErrorMessage   = "Error checking allowance"
	allowancePendingMessage = "Checking allowance..."
)

func pendingMessage(action models.Action) string {
	switch action {
	case models.ActionMint:
		return "Minting tokens..."
	case models.ActionMintTo:
		return "Minting tokens to address..."
	case models.ActionTransfer:
		return "Transferring tokens..."
	case models.ActionApprove:
		return "Approving tokens..."
	case models.ActionBurn:
		return "Burning tokens..."
	case models.ActionCheckAllowance:
		return allowancePendingMessage
	}
	return "Processing..."
}

func successMessage(p *params) string {
	switch p.action {
	case models.ActionMint:
		return fmt.Sprintf("%s tokens minted successfully!", p.amountText)
	case models.ActionMintTo:
		return fmt.Sprintf("%s tokens minted to %s successfully!", p.amountText, p.targetText)
	case models.ActionTransfer:
		return fmt.Sprintf("%s tokens transferred to %s successfully!", p.amountText, p.targetText)
	case models.ActionApprove:
		return fmt.Sprintf("%s tokens approved for %s successfully!", p.amountText, p.targetText)
	case models.ActionBurn:
		return fmt.Sprintf("%s tokens burned successfully!", p.amountText)
	}
	return "Operation completed successfully!"
}

// DeriveMessage picks the user-facing text for a failure: a structured reason
// when present, otherwise the error text, otherwise a fixed fallback.
func DeriveMessage(err error) string {
	if err == nil {
		return fallbackMessage
	}

	var reasoner interface{ ReasonText() string }
	if errors.As(err, &reasoner) && reasoner.ReasonText() != "" {
		return reasoner.ReasonText()
	}

	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallbackMessage
}
