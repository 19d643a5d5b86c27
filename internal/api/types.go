package api

import (
	"time"

	"tokendesk/internal/models"
)

// ==================== Token ====================

// TokenResponse represents the cached token view
type TokenResponse struct {
	Name                 string     `json:"name"`
	Symbol               string     `json:"symbol"`
	Decimals             uint8      `json:"decimals"`
	TotalSupply          string     `json:"total_supply"` // in base units
	TotalSupplyFormatted string     `json:"total_supply_formatted"`
	Balance              string     `json:"balance"` // in base units
	BalanceFormatted     string     `json:"balance_formatted"`
	Owner                string     `json:"owner"`
	Loaded               bool       `json:"loaded"`
	UpdatedAt            *time.Time `json:"updated_at,omitempty"`
}

// RefreshResponse reports whether a token refresh was queued
type RefreshResponse struct {
	Queued bool `json:"queued"`
}

// ==================== Display Status ====================

// StatusResponse represents the ephemeral display status
type StatusResponse struct {
	Status    models.DisplayStatus `json:"status"`
	Message   string               `json:"message"`
	Operation models.Action        `json:"operation,omitempty"`
	Busy      bool                 `json:"busy"`
}

// ==================== Operations ====================

// SubmitOperationRequest represents a write action request
type SubmitOperationRequest struct {
	Kind    string `json:"kind"`
	Amount  string `json:"amount"`
	Address string `json:"address,omitempty"`
}

// CheckAllowanceRequest represents an allowance query request
type CheckAllowanceRequest struct {
	Spender string `json:"spender"`
}

// AdmittedResponse is returned once a run passed validation and admission
type AdmittedResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// OperationSummary represents one history entry
type OperationSummary struct {
	Kind          models.Action          `json:"kind"`
	Amount        string                 `json:"amount"` // in base units
	AmountText    string                 `json:"amount_text"`
	Decimals      uint8                  `json:"decimals"`
	TargetAddress *string                `json:"target_address"`
	Status        models.OperationStatus `json:"status"`
	Reference     string                 `json:"reference"`
	Message       string                 `json:"message"`
	SubmittedAt   time.Time              `json:"submitted_at"`
	ExplorerURL   string                 `json:"explorer_url"`
}

// OperationStats counts history entries per status
type OperationStats struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Success int `json:"success"`
	Error   int `json:"error"`
}

// ListOperationsResponse represents the history snapshot
type ListOperationsResponse struct {
	Operations []OperationSummary `json:"operations"`
	Stats      OperationStats     `json:"stats"`
}

// ==================== Error Response ====================

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ==================== Health Check ====================

// HealthResponse represents health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}
