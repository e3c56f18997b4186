package handlers

import (
	"net/http"

	"eventhub/internal/services"

	"github.com/pocketbase/pocketbase/core"
)

const idempotencyHeader = "Idempotency-Key"

type CheckoutHandler struct {
	pipeline *services.PurchasePipeline
}

func NewCheckoutHandler(pipeline *services.PurchasePipeline) *CheckoutHandler {
	return &CheckoutHandler{pipeline: pipeline}
}

// Checkout converts the caller's cart into tickets. Lines are committed
// independently; the response lists the outcome of each. Retrying with the
// same Idempotency-Key replays the first result.
func (h *CheckoutHandler) Checkout(e *core.RequestEvent) error {
	p, err := requireAuth(e)
	if err != nil {
		return err
	}

	result, err := h.pipeline.Checkout(e.Request.Context(), services.CheckoutRequest{
		UserID:    p.ID,
		AttemptID: e.Request.Header.Get(idempotencyHeader),
	})
	if err != nil {
		return apiError(err)
	}

	code := http.StatusCreated
	if len(result.Succeeded()) == 0 {
		code = http.StatusConflict
	} else if result.Replayed {
		code = http.StatusOK
	}
	return e.JSON(code, map[string]any{
		"checkout": result,
		"partial":  result.Partial(),
	})
}

func (h *CheckoutHandler) ListTickets(e *core.RequestEvent) error {
	p, err := requireAuth(e)
	if err != nil {
		return err
	}

	tickets, err := h.pipeline.TicketsForUser(e.Request.Context(), p.ID)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"items": tickets,
		"total": len(tickets),
	})
}

func (h *CheckoutHandler) Refund(e *core.RequestEvent) error {
	p, err := requireAuth(e)
	if err != nil {
		return err
	}

	ticket, err := h.pipeline.Refund(e.Request.Context(), p.ID, e.Request.PathValue("id"))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, ticket)
}
