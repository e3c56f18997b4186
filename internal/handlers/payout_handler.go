package handlers

import (
	"net/http"

	"eventhub/internal/services"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"
)

type PayoutHandler struct {
	workflow *services.PayoutWorkflow
	ledger   *services.RevenueLedger
}

func NewPayoutHandler(workflow *services.PayoutWorkflow, ledger *services.RevenueLedger) *PayoutHandler {
	return &PayoutHandler{workflow: workflow, ledger: ledger}
}

func (h *PayoutHandler) SubmitRequest(e *core.RequestEvent) error {
	organizerID, err := organizerScope(e)
	if err != nil {
		return err
	}

	var req struct {
		EventID string          `json:"event_id"`
		Amount  decimal.Decimal `json:"amount"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	pr, err := h.workflow.SubmitRequest(e.Request.Context(), organizerID, req.EventID, req.Amount)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusCreated, pr)
}

func (h *PayoutHandler) ListRequests(e *core.RequestEvent) error {
	organizerID, err := organizerScope(e)
	if err != nil {
		return err
	}

	requests, err := h.workflow.ListRequests(e.Request.Context(), organizerID)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"items": requests,
		"total": len(requests),
	})
}

func (h *PayoutHandler) ListPayouts(e *core.RequestEvent) error {
	organizerID, err := organizerScope(e)
	if err != nil {
		return err
	}

	payouts, err := h.workflow.ListPayouts(e.Request.Context(), organizerID)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"items": payouts,
		"total": len(payouts),
	})
}

func (h *PayoutHandler) Balance(e *core.RequestEvent) error {
	organizerID, err := organizerScope(e)
	if err != nil {
		return err
	}

	balance, err := h.ledger.AvailableBalance(e.Request.Context(), organizerID)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, balance)
}
