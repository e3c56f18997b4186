package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"eventhub/internal/status"
	"eventhub/models"
	"eventhub/monitoring"
	"eventhub/utils"

	"github.com/shopspring/decimal"
)

// PayoutFees configures the processing fee charged on each payout. It is
// separate from the platform fee taken on sales.
type PayoutFees struct {
	Percent decimal.Decimal
	Flat    decimal.Decimal
}

// Fee returns round(amount*percent/100 + flat, 2), never more than amount.
func (f PayoutFees) Fee(amount decimal.Decimal) decimal.Decimal {
	fee := amount.Mul(f.Percent).Div(hundred).Add(f.Flat).Round(2)
	if fee.GreaterThan(amount) {
		return amount
	}
	return fee
}

type PayoutWorkflow struct {
	ledger   *RevenueLedger
	payouts  PayoutStore
	events   EventStore
	notifier Notifier
	fees     PayoutFees
	locks    *utils.KeyedMutex
	now      func() time.Time
}

func NewPayoutWorkflow(ledger *RevenueLedger, payouts PayoutStore, events EventStore, notifier Notifier, fees PayoutFees) *PayoutWorkflow {
	return &PayoutWorkflow{
		ledger:   ledger,
		payouts:  payouts,
		events:   events,
		notifier: notifier,
		fees:     fees,
		locks:    utils.NewKeyedMutex(),
		now:      time.Now,
	}
}

// SubmitRequest files a payout request if amount fits in the organizer's
// available balance. Requests of the same organizer are serialized so two
// of them cannot spend the same balance.
func (w *PayoutWorkflow) SubmitRequest(ctx context.Context, organizerID, eventID string, amount decimal.Decimal) (*models.PayoutRequest, error) {
	if organizerID == "" {
		return nil, fmt.Errorf("%w: organizer id is required", status.ErrInvalidInput)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", status.ErrInvalidInput)
	}
	if !amount.Equal(amount.Round(2)) {
		return nil, fmt.Errorf("%w: amount has more than two decimals", status.ErrInvalidInput)
	}

	if eventID != "" {
		event, err := w.events.GetEvent(ctx, eventID)
		if err != nil {
			return nil, err
		}
		if event.OrganizerID != organizerID {
			return nil, fmt.Errorf("%w: event %s belongs to another organizer", status.ErrForbidden, eventID)
		}
	}

	unlock := w.locks.Lock(organizerID)
	defer unlock()

	balance, err := w.ledger.AvailableBalance(ctx, organizerID)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(balance.Available) {
		return nil, fmt.Errorf("%w: requested %s, available %s",
			status.ErrInsufficientBalance, amount.StringFixed(2), balance.Available.StringFixed(2))
	}

	req := &models.PayoutRequest{
		ID:              utils.NewID(),
		OrganizerID:     organizerID,
		EventID:         eventID,
		RequestedAmount: amount,
		Status:          models.PayoutRequestPending,
		CreatedAt:       w.now().UTC(),
	}
	if err := w.payouts.CreateRequest(ctx, req); err != nil {
		return nil, err
	}

	monitoring.TrackPayoutTransition(string(models.PayoutRequestPending))
	slog.Info("payout requested", "request_id", req.ID, "organizer_id", organizerID, "amount", amount.StringFixed(2))
	return req, nil
}

// Approve turns a pending request into a processing payout and records the
// payout and fee entries in the ledger.
func (w *PayoutWorkflow) Approve(ctx context.Context, requestID string) (*models.Payout, error) {
	req, err := w.payouts.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != models.PayoutRequestPending {
		return nil, fmt.Errorf("%w: payout request %s is %s", status.ErrInvalidState, requestID, req.Status)
	}

	unlock := w.locks.Lock(req.OrganizerID)
	defer unlock()

	ref, err := utils.GenerateCode(4)
	if err != nil {
		return nil, fmt.Errorf("generate payout reference: %w", err)
	}

	now := w.now().UTC()
	fee := w.fees.Fee(req.RequestedAmount)
	payout := &models.Payout{
		ID:           utils.NewID(),
		RequestID:    req.ID,
		OrganizerID:  req.OrganizerID,
		EventID:      req.EventID,
		Reference:    "PO-" + ref,
		PayoutAmount: req.RequestedAmount.Sub(fee),
		PayoutFee:    fee,
		PayoutStatus: models.PayoutProcessing,
		CreatedAt:    now,
	}

	txns := []models.Transaction{{
		ID:              utils.NewID(),
		UserID:          req.OrganizerID,
		OrganizerID:     req.OrganizerID,
		EventID:         req.EventID,
		RelatedPayoutID: payout.ID,
		Type:            models.TransactionPayout,
		Amount:          payout.PayoutAmount,
		FeePercent:      decimal.Zero,
		Status:          models.TransactionPending,
		TransactionDate: now,
	}}
	if fee.IsPositive() {
		txns = append(txns, models.Transaction{
			ID:              utils.NewID(),
			UserID:          req.OrganizerID,
			OrganizerID:     req.OrganizerID,
			EventID:         req.EventID,
			RelatedPayoutID: payout.ID,
			Type:            models.TransactionFee,
			Amount:          fee,
			FeePercent:      decimal.Zero,
			Status:          models.TransactionPending,
			TransactionDate: now,
		})
	}

	if err := w.payouts.ApproveRequest(ctx, requestID, now, payout, txns); err != nil {
		return nil, err
	}

	monitoring.TrackPayoutTransition(string(models.PayoutRequestApproved))
	slog.Info("payout approved",
		"request_id", requestID,
		"payout_id", payout.ID,
		"amount", payout.PayoutAmount.StringFixed(2),
		"fee", fee.StringFixed(2),
	)
	w.notify(ctx, req.OrganizerID, "payout_approved", payout)
	return payout, nil
}

func (w *PayoutWorkflow) Reject(ctx context.Context, requestID, reason string) (*models.PayoutRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: a rejection reason is required", status.ErrInvalidInput)
	}

	if err := w.payouts.RejectRequest(ctx, requestID, reason, w.now().UTC()); err != nil {
		return nil, err
	}
	req, err := w.payouts.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	monitoring.TrackPayoutTransition(string(models.PayoutRequestRejected))
	slog.Info("payout rejected", "request_id", requestID, "reason", reason)
	return req, nil
}

func (w *PayoutWorkflow) MarkProcessed(ctx context.Context, payoutID string) (*models.Payout, error) {
	return w.finish(ctx, payoutID, models.PayoutProcessed, "")
}

func (w *PayoutWorkflow) MarkFailed(ctx context.Context, payoutID, reason string) (*models.Payout, error) {
	return w.finish(ctx, payoutID, models.PayoutFailed, strings.TrimSpace(reason))
}

func (w *PayoutWorkflow) finish(ctx context.Context, payoutID string, to models.PayoutStatus, reason string) (*models.Payout, error) {
	if err := w.payouts.FinishPayout(ctx, payoutID, to, reason, w.now().UTC()); err != nil {
		return nil, err
	}
	payout, err := w.payouts.GetPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}

	monitoring.TrackPayoutTransition(string(to))
	slog.Info("payout finished", "payout_id", payoutID, "status", to, "reason", reason)
	w.notify(ctx, payout.OrganizerID, "payout_"+string(to), payout)
	return payout, nil
}

func (w *PayoutWorkflow) ListRequests(ctx context.Context, organizerID string) ([]models.PayoutRequest, error) {
	return w.payouts.ListRequests(ctx, organizerID)
}

func (w *PayoutWorkflow) ListPayouts(ctx context.Context, organizerID string) ([]models.Payout, error) {
	return w.payouts.ListPayouts(ctx, organizerID)
}

func (w *PayoutWorkflow) notify(ctx context.Context, organizerID, kind string, payout *models.Payout) {
	if w.notifier == nil {
		return
	}
	err := w.notifier.Notify(ctx, "organizer-"+organizerID, map[string]any{
		"type":      kind,
		"payout_id": payout.ID,
		"reference": payout.Reference,
		"amount":    payout.PayoutAmount.StringFixed(2),
		"status":    string(payout.PayoutStatus),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("payout notification not delivered", "organizer_id", organizerID, "error", err)
	}
}
