package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"eventhub/internal/status"
	"eventhub/models"
	"eventhub/monitoring"
	"eventhub/utils"

	"github.com/shopspring/decimal"
)

// Line failure reasons reported to clients.
const (
	ReasonInsufficientInventory = "insufficient_inventory"
	ReasonStorageFailure        = "storage_failure"
	ReasonNotFound              = "not_found"
	ReasonInvalidState          = "invalid_state"
	ReasonCancelled             = "cancelled"
	ReasonError                 = "error"
)

var reasonErrors = map[string]error{
	ReasonInsufficientInventory: status.ErrInsufficientInventory,
	ReasonStorageFailure:        status.ErrStorageFailure,
	ReasonNotFound:              status.ErrNotFound,
	ReasonInvalidState:          status.ErrInvalidState,
	ReasonCancelled:             context.Canceled,
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, status.ErrInsufficientInventory):
		return ReasonInsufficientInventory
	case errors.Is(err, status.ErrStorageFailure):
		return ReasonStorageFailure
	case errors.Is(err, status.ErrNotFound):
		return ReasonNotFound
	case errors.Is(err, status.ErrInvalidState):
		return ReasonInvalidState
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonCancelled
	}
	return ReasonError
}

type CheckoutRequest struct {
	UserID    string
	AttemptID string
}

type LineResult struct {
	LineItemID   string              `json:"line_item_id"`
	TicketTypeID string              `json:"ticket_type_id"`
	Quantity     int                 `json:"quantity"`
	Ticket       *models.Ticket      `json:"ticket,omitempty"`
	Transaction  *models.Transaction `json:"transaction,omitempty"`
	Reason       string              `json:"reason,omitempty"`
	Error        string              `json:"error,omitempty"`
	Available    *int                `json:"available,omitempty"` // seats left when inventory ran short

	err error
}

func (l LineResult) OK() bool { return l.Reason == "" }

// Err returns the cause of a failed line, also for results replayed from storage.
func (l LineResult) Err() error {
	if l.OK() {
		return nil
	}
	if l.err != nil {
		return l.err
	}
	if err, ok := reasonErrors[l.Reason]; ok {
		return fmt.Errorf("%w: %s", err, l.Error)
	}
	return errors.New(l.Error)
}

type CheckoutResult struct {
	CheckoutID    string               `json:"checkout_id"`
	UserID        string               `json:"user_id"`
	Lines         []LineResult         `json:"lines"`
	IssuedTickets []models.Ticket      `json:"issued_tickets"`
	Transactions  []models.Transaction `json:"transactions"`
	CompletedAt   time.Time            `json:"completed_at"`
	Replayed      bool                 `json:"replayed"`
}

func (r *CheckoutResult) Succeeded() []LineResult {
	var out []LineResult
	for _, l := range r.Lines {
		if l.OK() {
			out = append(out, l)
		}
	}
	return out
}

func (r *CheckoutResult) Failed() []LineResult {
	var out []LineResult
	for _, l := range r.Lines {
		if !l.OK() {
			out = append(out, l)
		}
	}
	return out
}

// Partial reports whether some but not all lines were committed.
func (r *CheckoutResult) Partial() bool {
	ok := len(r.Succeeded())
	return ok > 0 && ok < len(r.Lines)
}

type PipelineConfig struct {
	DefaultFeePercent    decimal.Decimal
	IdempotencyLockTTL   time.Duration
	IdempotencyResultTTL time.Duration
}

// PurchasePipeline turns carts into issued tickets. Each line is its own
// saga: reserve seats, persist ticket and sale together, release the seats
// again if persisting fails.
type PurchasePipeline struct {
	catalog     *Catalog
	carts       *CartStore
	events      EventStore
	tickets     TicketStore
	users       UserStore
	idempotency IdempotencyStore
	notifier    Notifier
	cfg         PipelineConfig
	locks       *utils.KeyedMutex // one checkout per user at a time
	now         func() time.Time
}

// NewPurchasePipeline wires the pipeline. idempotency and notifier may be nil.
func NewPurchasePipeline(catalog *Catalog, carts *CartStore, events EventStore, tickets TicketStore, users UserStore,
	idempotency IdempotencyStore, notifier Notifier, cfg PipelineConfig) *PurchasePipeline {
	if cfg.IdempotencyLockTTL <= 0 {
		cfg.IdempotencyLockTTL = 30 * time.Second
	}
	if cfg.IdempotencyResultTTL <= 0 {
		cfg.IdempotencyResultTTL = 24 * time.Hour
	}
	return &PurchasePipeline{
		catalog:     catalog,
		carts:       carts,
		events:      events,
		tickets:     tickets,
		users:       users,
		idempotency: idempotency,
		notifier:    notifier,
		cfg:         cfg,
		locks:       utils.NewKeyedMutex(),
		now:         time.Now,
	}
}

func attemptKey(userID, attemptID string) string {
	return fmt.Sprintf("checkout:%s:%s", userID, attemptID)
}

func (p *PurchasePipeline) Checkout(ctx context.Context, req CheckoutRequest) (result *CheckoutResult, err error) {
	started := p.now()
	defer monitoring.TrackCheckout(started)

	if req.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", status.ErrInvalidInput)
	}

	var key string
	if req.AttemptID != "" && p.idempotency != nil {
		key = attemptKey(req.UserID, req.AttemptID)

		prior, claimed, err := p.idempotency.Claim(ctx, key, p.cfg.IdempotencyLockTTL)
		if err != nil {
			return nil, fmt.Errorf("claim checkout attempt: %w", err)
		}
		if !claimed {
			if prior == nil {
				return nil, status.ErrCheckoutInProgress
			}
			var replay CheckoutResult
			if err := json.Unmarshal(prior, &replay); err != nil {
				return nil, fmt.Errorf("%w: decode stored checkout: %v", status.ErrStorageFailure, err)
			}
			replay.Replayed = true
			slog.Info("checkout replayed", "user_id", req.UserID, "checkout_id", replay.CheckoutID)
			return &replay, nil
		}

		defer func() {
			if result != nil {
				return
			}
			if relErr := p.idempotency.Release(context.WithoutCancel(ctx), key); relErr != nil {
				slog.Error("failed to release checkout attempt", "key", key, "error", relErr)
			}
		}()
	}

	// Snapshot through RemoveLines must not interleave with another checkout
	// of the same cart, or both would buy the same lines.
	unlock := p.locks.Lock(req.UserID)
	defer unlock()

	snap := p.carts.Snapshot(req.UserID)
	if len(snap.Items) == 0 {
		return nil, status.ErrEmptyCart
	}

	result = &CheckoutResult{
		CheckoutID:    utils.NewID(),
		UserID:        req.UserID,
		Lines:         make([]LineResult, 0, len(snap.Items)),
		IssuedTickets: []models.Ticket{},
		Transactions:  []models.Transaction{},
	}

	committed := make(map[string]int, len(snap.Items))
	for _, line := range snap.Items {
		lr := p.processLine(ctx, result.CheckoutID, req.UserID, line)
		result.Lines = append(result.Lines, lr)

		if lr.OK() {
			committed[line.ID] = line.Quantity
			result.IssuedTickets = append(result.IssuedTickets, *lr.Ticket)
			result.Transactions = append(result.Transactions, *lr.Transaction)
			monitoring.TrackCheckoutLine("committed")
		} else {
			monitoring.TrackCheckoutLine(lr.Reason)
		}
	}
	result.CompletedAt = p.now().UTC()

	p.carts.RemoveLines(req.UserID, committed)

	if key != "" {
		p.storeResult(ctx, key, result)
	}
	p.notifyCheckout(ctx, result)

	slog.Info("checkout finished",
		"user_id", req.UserID,
		"checkout_id", result.CheckoutID,
		"committed", len(committed),
		"failed", len(result.Lines)-len(committed),
	)
	return result, nil
}

func (p *PurchasePipeline) processLine(ctx context.Context, checkoutID, userID string, line models.CartLineItem) LineResult {
	lr := LineResult{
		LineItemID:   line.ID,
		TicketTypeID: line.TicketTypeID,
		Quantity:     line.Quantity,
	}
	fail := func(reason string, err error) LineResult {
		lr.Reason = reason
		lr.Error = err.Error()
		lr.err = err
		return lr
	}

	if err := ctx.Err(); err != nil {
		return fail(ReasonCancelled, err)
	}

	tt, err := p.catalog.Get(ctx, line.TicketTypeID)
	if err != nil {
		return fail(reasonFor(err), err)
	}
	event, err := p.events.GetEvent(ctx, tt.EventID)
	if err != nil {
		return fail(reasonFor(err), err)
	}
	if !event.OpenForSales() {
		return fail(ReasonInvalidState, fmt.Errorf("%w: event %s is %s", status.ErrInvalidState, event.ID, event.Status))
	}
	fee, err := p.feePercent(ctx, event.OrganizerID)
	if err != nil {
		return fail(reasonFor(err), err)
	}

	if err := p.catalog.ReserveIfAvailable(ctx, tt.ID, line.Quantity); err != nil {
		if errors.Is(err, status.ErrInsufficientInventory) {
			if n, aerr := p.catalog.AvailableSeats(ctx, tt.ID); aerr == nil {
				lr.Available = &n
			}
		}
		return fail(reasonFor(err), err)
	}

	now := p.now().UTC()
	amount := line.Subtotal()
	ticket := &models.Ticket{
		ID:             utils.NewID(),
		UserID:         userID,
		EventID:        event.ID,
		TicketTypeID:   tt.ID,
		CheckoutID:     checkoutID,
		Quantity:       line.Quantity,
		TotalPricePaid: amount,
		Status:         models.TicketActive,
		PurchaseDate:   now,
	}
	sale := &models.Transaction{
		ID:              utils.NewID(),
		UserID:          userID,
		OrganizerID:     event.OrganizerID,
		EventID:         event.ID,
		RelatedTicketID: ticket.ID,
		Type:            models.TransactionSale,
		Amount:          amount,
		FeePercent:      fee,
		Quantity:        line.Quantity,
		Status:          models.TransactionSettled,
		TransactionDate: now,
	}

	if err := p.tickets.IssueTicket(ctx, ticket, sale); err != nil {
		p.compensate(ctx, tt.ID, line.Quantity, err)
		if !errors.Is(err, status.ErrStorageFailure) {
			err = fmt.Errorf("%w: %v", status.ErrStorageFailure, err)
		}
		return fail(ReasonStorageFailure, err)
	}

	lr.Ticket = ticket
	lr.Transaction = sale
	return lr
}

// compensate gives back seats reserved for a line that could not be persisted.
func (p *PurchasePipeline) compensate(ctx context.Context, ticketTypeID string, qty int, cause error) {
	slog.Warn("ticket issue failed, releasing seats",
		"ticket_type_id", ticketTypeID,
		"quantity", qty,
		"error", cause,
	)
	if err := p.catalog.Release(context.WithoutCancel(ctx), ticketTypeID, qty); err != nil {
		monitoring.TrackReleaseFailure()
		slog.Error("compensating release failed, seats leaked",
			"ticket_type_id", ticketTypeID,
			"quantity", qty,
			"error", err,
		)
	}
}

func (p *PurchasePipeline) feePercent(ctx context.Context, organizerID string) (decimal.Decimal, error) {
	u, err := p.users.GetUser(ctx, organizerID)
	if errors.Is(err, status.ErrNotFound) {
		return p.cfg.DefaultFeePercent, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return models.FeeScheduleFor(*u, p.cfg.DefaultFeePercent).Percent, nil
}

func (p *PurchasePipeline) storeResult(ctx context.Context, key string, result *CheckoutResult) {
	data, err := json.Marshal(result)
	if err != nil {
		slog.Error("failed to encode checkout result", "key", key, "error", err)
		return
	}
	// on failure the claim expires with its lock TTL; committed lines are already out of the cart
	if err := p.idempotency.Complete(context.WithoutCancel(ctx), key, data, p.cfg.IdempotencyResultTTL); err != nil {
		slog.Error("failed to store checkout result", "key", key, "error", err)
	}
}

func (p *PurchasePipeline) notifyCheckout(ctx context.Context, result *CheckoutResult) {
	if p.notifier == nil {
		return
	}

	total := decimal.Zero
	for _, t := range result.IssuedTickets {
		total = total.Add(t.TotalPricePaid)
	}
	err := p.notifier.Notify(ctx, "user-"+result.UserID, map[string]any{
		"type":        "checkout_completed",
		"checkout_id": result.CheckoutID,
		"committed":   len(result.IssuedTickets),
		"failed":      len(result.Lines) - len(result.IssuedTickets),
		"total":       total.StringFixed(2),
	})
	if err != nil {
		slog.Warn("checkout notification not delivered", "user_id", result.UserID, "error", err)
	}
}

// Refund cancels an active refundable ticket, fails its sale transaction and
// returns the seats to inventory.
func (p *PurchasePipeline) Refund(ctx context.Context, userID, ticketID string) (*models.Ticket, error) {
	ticket, err := p.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.UserID != userID {
		return nil, fmt.Errorf("%w: ticket %s belongs to another user", status.ErrForbidden, ticketID)
	}
	if ticket.Status != models.TicketActive {
		return nil, fmt.Errorf("%w: ticket %s is %s", status.ErrInvalidState, ticketID, ticket.Status)
	}

	tt, err := p.catalog.Get(ctx, ticket.TicketTypeID)
	if err != nil {
		return nil, err
	}
	if !tt.Refundable {
		return nil, fmt.Errorf("%w: ticket type %s", status.ErrNotRefundable, tt.ID)
	}

	if err := p.tickets.CancelTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	ticket.Status = models.TicketCancelled

	if err := p.catalog.Release(context.WithoutCancel(ctx), tt.ID, ticket.Quantity); err != nil {
		monitoring.TrackReleaseFailure()
		slog.Error("refund release failed, seats leaked",
			"ticket_id", ticketID,
			"ticket_type_id", tt.ID,
			"quantity", ticket.Quantity,
			"error", err,
		)
	}

	if p.notifier != nil {
		err := p.notifier.Notify(ctx, "user-"+userID, map[string]any{
			"type":      "ticket_refunded",
			"ticket_id": ticketID,
			"amount":    ticket.TotalPricePaid.StringFixed(2),
		})
		if err != nil {
			slog.Warn("refund notification not delivered", "user_id", userID, "error", err)
		}
	}

	slog.Info("ticket refunded", "ticket_id", ticketID, "user_id", userID)
	return ticket, nil
}

// CompleteEvent closes sales for an event and marks its active tickets attended.
// An empty organizerID skips the ownership check (admin).
func (p *PurchasePipeline) CompleteEvent(ctx context.Context, organizerID, eventID string) (int, error) {
	event, err := p.events.GetEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}
	if organizerID != "" && event.OrganizerID != organizerID {
		return 0, fmt.Errorf("%w: event %s belongs to another organizer", status.ErrForbidden, eventID)
	}
	if !event.OpenForSales() {
		return 0, fmt.Errorf("%w: event %s is %s", status.ErrInvalidState, eventID, event.Status)
	}

	event.Status = models.EventCompleted
	if err := p.events.SaveEvent(ctx, event); err != nil {
		return 0, err
	}

	tickets, err := p.tickets.ListTicketsByEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}

	attended := 0
	for _, t := range tickets {
		if t.Status != models.TicketActive {
			continue
		}
		err := p.tickets.UpdateTicketStatus(ctx, t.ID, models.TicketActive, models.TicketAttended)
		if errors.Is(err, status.ErrInvalidState) {
			continue // refunded meanwhile
		}
		if err != nil {
			return attended, err
		}
		attended++
	}

	slog.Info("event completed", "event_id", eventID, "attended", attended)
	return attended, nil
}

func (p *PurchasePipeline) TicketsForUser(ctx context.Context, userID string) ([]models.Ticket, error) {
	return p.tickets.ListTicketsByUser(ctx, userID)
}
