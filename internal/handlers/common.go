package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"eventhub/internal/status"
	"eventhub/models"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

// apiError maps service errors onto PocketBase API errors.
func apiError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, status.ErrNotFound):
		return apis.NewNotFoundError(err.Error(), nil)
	case errors.Is(err, status.ErrForbidden):
		return apis.NewForbiddenError(err.Error(), nil)
	case errors.Is(err, status.ErrInvalidInput), errors.Is(err, status.ErrEmptyCart):
		return apis.NewBadRequestError(err.Error(), nil)
	case errors.Is(err, status.ErrInsufficientInventory):
		return apis.NewApiError(http.StatusConflict, err.Error(), map[string]string{"reason": "insufficient_inventory"})
	case errors.Is(err, status.ErrInsufficientBalance):
		return apis.NewApiError(http.StatusUnprocessableEntity, err.Error(), map[string]string{"reason": "insufficient_balance"})
	case errors.Is(err, status.ErrInvalidState), errors.Is(err, status.ErrNotRefundable),
		errors.Is(err, status.ErrCheckoutInProgress):
		return apis.NewApiError(http.StatusConflict, err.Error(), nil)
	}

	slog.Error("request failed", "error", err)
	return apis.NewInternalServerError("Something went wrong while processing your request.", nil)
}

type principal struct {
	ID   string
	Role models.Role
}

func principalOf(e *core.RequestEvent) (principal, bool) {
	if e.Auth == nil {
		return principal{}, false
	}
	if e.HasSuperuserAuth() {
		return principal{ID: e.Auth.Id, Role: models.RoleAdmin}, true
	}

	role := models.Role(e.Auth.GetString("role"))
	if role == "" {
		role = models.RoleAttendee
	}
	return principal{ID: e.Auth.Id, Role: role}, true
}

func requireAuth(e *core.RequestEvent) (principal, error) {
	p, ok := principalOf(e)
	if !ok {
		return principal{}, apis.NewUnauthorizedError("Unauthorized", nil)
	}
	return p, nil
}

func requireRole(e *core.RequestEvent, roles ...models.Role) (principal, error) {
	p, err := requireAuth(e)
	if err != nil {
		return p, err
	}
	for _, r := range roles {
		if p.Role == r {
			return p, nil
		}
	}
	return p, apis.NewForbiddenError("Insufficient permissions", nil)
}

// organizerScope returns the organizer a request acts for. Admins may pass
// organizer_id to act for any organizer.
func organizerScope(e *core.RequestEvent) (string, error) {
	p, err := requireRole(e, models.RoleOrganizer, models.RoleAdmin)
	if err != nil {
		return "", err
	}
	if p.Role == models.RoleAdmin {
		id := e.Request.URL.Query().Get("organizer_id")
		if id == "" {
			return "", apis.NewBadRequestError("organizer_id is required", nil)
		}
		return id, nil
	}
	return p.ID, nil
}
