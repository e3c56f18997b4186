package handlers

import (
	"net/http"
	"strings"

	"eventhub/internal/services"
	"eventhub/models"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type AdminHandler struct {
	workflow *services.PayoutWorkflow
}

func NewAdminHandler(workflow *services.PayoutWorkflow) *AdminHandler {
	return &AdminHandler{workflow: workflow}
}

func reasonBody(e *core.RequestEvent) (string, error) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := e.BindBody(&req); err != nil {
		return "", apis.NewBadRequestError("Invalid request", err)
	}
	return strings.TrimSpace(req.Reason), nil
}

func (h *AdminHandler) ApproveRequest(e *core.RequestEvent) error {
	if _, err := requireRole(e, models.RoleAdmin); err != nil {
		return err
	}

	payout, err := h.workflow.Approve(e.Request.Context(), e.Request.PathValue("id"))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, payout)
}

func (h *AdminHandler) RejectRequest(e *core.RequestEvent) error {
	if _, err := requireRole(e, models.RoleAdmin); err != nil {
		return err
	}
	reason, err := reasonBody(e)
	if err != nil {
		return err
	}

	pr, err := h.workflow.Reject(e.Request.Context(), e.Request.PathValue("id"), reason)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, pr)
}

func (h *AdminHandler) MarkProcessed(e *core.RequestEvent) error {
	if _, err := requireRole(e, models.RoleAdmin); err != nil {
		return err
	}

	payout, err := h.workflow.MarkProcessed(e.Request.Context(), e.Request.PathValue("id"))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, payout)
}

func (h *AdminHandler) MarkFailed(e *core.RequestEvent) error {
	if _, err := requireRole(e, models.RoleAdmin); err != nil {
		return err
	}
	reason, err := reasonBody(e)
	if err != nil {
		return err
	}

	payout, err := h.workflow.MarkFailed(e.Request.Context(), e.Request.PathValue("id"), reason)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, payout)
}
