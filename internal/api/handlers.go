package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"tokendesk/internal/coordinator"
	"tokendesk/internal/history"
	"tokendesk/internal/models"
	"tokendesk/internal/service"
)

// RefreshRequester queues an asynchronous token refresh
type RefreshRequester interface {
	RequestRefresh() bool
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	coordinator  *coordinator.Coordinator
	tokenService *service.TokenService
	refresher    RefreshRequester
	explorerURL  string
	logger       *zap.Logger
}

// NewHandler creates a new API handler. refresher may be nil.
func NewHandler(
	coord *coordinator.Coordinator,
	tokenService *service.TokenService,
	refresher RefreshRequester,
	explorerURL string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		coordinator:  coord,
		tokenService: tokenService,
		refresher:    refresher,
		explorerURL:  explorerURL,
		logger:       logger,
	}
}

// ==================== Health Check ====================

// HandleHealth returns service health status
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:  "ok",
		Version: "1.0.0",
	}
	respondJSON(w, http.StatusOK, response)
}

// ==================== Token ====================

// HandleGetToken handles GET /api/v1/token
func (h *Handler) HandleGetToken(w http.ResponseWriter, r *http.Request) {
	info := h.tokenService.Info()

	response := TokenResponse{
		Name:                 info.Name,
		Symbol:               info.Symbol,
		Decimals:             info.Decimals,
		TotalSupply:          info.TotalSupply.String(),
		TotalSupplyFormatted: models.FormatAmount(info.TotalSupply, info.Decimals),
		Balance:              info.Balance.String(),
		BalanceFormatted:     models.FormatAmount(info.Balance, info.Decimals),
		Owner:                info.Owner,
		Loaded:               h.tokenService.Loaded(),
	}
	if !info.UpdatedAt.IsZero() {
		updated := info.UpdatedAt.UTC()
		response.UpdatedAt = &updated
	}

	respondJSON(w, http.StatusOK, response)
}

// HandleRefreshToken handles POST /api/v1/token/refresh
func (h *Handler) HandleRefreshToken(w http.ResponseWriter, r *http.Request) {
	if h.refresher == nil {
		respondError(w, http.StatusServiceUnavailable, "Token refresh is not available", nil)
		return
	}

	respondJSON(w, http.StatusAccepted, RefreshResponse{Queued: h.refresher.RequestRefresh()})
}

// ==================== Display Status ====================

// HandleGetStatus handles GET /api/v1/status
// An optional ?kind= reports whether the button for that kind should be disabled
func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	state := h.coordinator.DisplayStatus()

	busy := state.Busy
	if kind := r.URL.Query().Get("kind"); kind != "" {
		action, ok := models.ParseAction(kind)
		if !ok {
			respondError(w, http.StatusBadRequest, "Unsupported operation kind", nil)
			return
		}
		busy = h.coordinator.IsBusyFor(action)
	}

	response := StatusResponse{
		Status:    state.DisplayStatus,
		Message:   state.Message,
		Operation: state.ActiveKind,
		Busy:      busy,
	}

	respondJSON(w, http.StatusOK, response)
}

// ==================== Operations ====================

// HandleSubmitOperation handles POST /api/v1/operations
// The run continues in the background; its progress shows up in the status and history
func (h *Handler) HandleSubmitOperation(w http.ResponseWriter, r *http.Request) {
	var req SubmitOperationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Failed to decode request", zap.Error(err))
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	action, ok := models.ParseAction(req.Kind)
	if !ok || !action.IsWrite() {
		respondError(w, http.StatusBadRequest, "Unsupported operation kind", nil)
		return
	}

	run, err := h.coordinator.Submit(coordinator.Request{
		Action:  action,
		Amount:  req.Amount,
		Address: req.Address,
	})
	if err != nil {
		h.respondRunError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, AdmittedResponse{RunID: run.ID, Status: "admitted"})
}

// HandleCheckAllowance handles POST /api/v1/allowance
func (h *Handler) HandleCheckAllowance(w http.ResponseWriter, r *http.Request) {
	var req CheckAllowanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Failed to decode request", zap.Error(err))
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	run, err := h.coordinator.CheckAllowance(req.Spender)
	if err != nil {
		h.respondRunError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, AdmittedResponse{RunID: run.ID, Status: "admitted"})
}

// HandleListOperations handles GET /api/v1/operations
func (h *Handler) HandleListOperations(w http.ResponseWriter, r *http.Request) {
	ops := h.coordinator.History()
	stats := h.coordinator.HistoryLog().Stats()

	summaries := make([]OperationSummary, 0, len(ops))
	for _, op := range ops {
		summaries = append(summaries, h.summarize(op))
	}

	response := ListOperationsResponse{
		Operations: summaries,
		Stats:      toStats(stats),
	}

	respondJSON(w, http.StatusOK, response)
}

// HandleGetOperation handles GET /api/v1/operations/{reference}
func (h *Handler) HandleGetOperation(w http.ResponseWriter, r *http.Request) {
	reference := mux.Vars(r)["reference"]
	if reference == "" {
		respondError(w, http.StatusBadRequest, "reference is required", nil)
		return
	}

	op, ok := h.coordinator.HistoryLog().Get(reference)
	if !ok {
		respondError(w, http.StatusNotFound, "Operation not found", nil)
		return
	}

	respondJSON(w, http.StatusOK, h.summarize(op))
}

// ==================== Helper Functions ====================

func (h *Handler) respondRunError(w http.ResponseWriter, err error) {
	var verr *coordinator.ValidationError
	switch {
	case errors.As(err, &verr):
		respondError(w, http.StatusBadRequest, verr.Message, nil)
	case errors.Is(err, coordinator.ErrBusy):
		respondError(w, http.StatusConflict, "Another operation is in progress", nil)
	case errors.Is(err, coordinator.ErrUnsupportedAction):
		respondError(w, http.StatusBadRequest, "Unsupported operation kind", nil)
	default:
		h.logger.Error("Failed to start run", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to start operation", err)
	}
}

func (h *Handler) summarize(op models.Operation) OperationSummary {
	summary := OperationSummary{
		Kind:        op.Kind,
		Amount:      "0",
		AmountText:  op.AmountText,
		Decimals:    op.Decimals,
		Status:      op.Status,
		Reference:   op.ExternalRef,
		Message:     op.Message,
		SubmittedAt: op.SubmittedAt.UTC(),
		ExplorerURL: explorerLink(h.explorerURL, op.ExternalRef),
	}
	if op.Amount != nil {
		summary.Amount = op.Amount.String()
	}
	if op.TargetAddress != nil {
		addr := op.TargetAddress.Hex()
		summary.TargetAddress = &addr
	}
	return summary
}

func explorerLink(base, reference string) string {
	if base == "" || reference == "" {
		return ""
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + reference
}

func toStats(s history.Stats) OperationStats {
	return OperationStats{
		Total:   s.Total,
		Pending: s.Pending,
		Success: s.Success,
		Error:   s.Error,
	}
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log error but can't send response since headers already written
		fmt.Printf("Failed to encode JSON response: %v\n", err)
	}
}

// respondError sends an error response
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errorMsg := message
	if err != nil {
		errorMsg = fmt.Sprintf("%s: %v", message, err)
	}

	response := ErrorResponse{
		Error:   message,
		Message: errorMsg,
	}

	respondJSON(w, statusCode, response)
}
