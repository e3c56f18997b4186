package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"eventhub/internal/status"
	"eventhub/models"
)

// Memory keeps every entity in process memory behind one lock. It is used
// by tests and by STORE_DRIVER=memory demos; nothing survives a restart.
type Memory struct {
	mu sync.RWMutex

	users       map[string]models.User
	events      map[string]models.Event
	ticketTypes map[string]models.TicketType
	tickets     map[string]models.Ticket
	txns        []models.Transaction
	requests    map[string]models.PayoutRequest
	payouts     map[string]models.Payout
}

func NewMemory() *Memory {
	return &Memory{
		users:       make(map[string]models.User),
		events:      make(map[string]models.Event),
		ticketTypes: make(map[string]models.TicketType),
		tickets:     make(map[string]models.Ticket),
		requests:    make(map[string]models.PayoutRequest),
		payouts:     make(map[string]models.Payout),
	}
}

func notFound(kind, id string) error {
	return fmt.Errorf("%w: %s %s", status.ErrNotFound, kind, id)
}

// Users

func (m *Memory) PutUser(u models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *Memory) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, notFound("user", id)
	}
	return &u, nil
}

// Events

func (m *Memory) GetEvent(_ context.Context, id string) (*models.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.events[id]
	if !ok {
		return nil, notFound("event", id)
	}
	return &e, nil
}

func (m *Memory) SaveEvent(_ context.Context, event *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[event.ID] = *event
	return nil
}

// Ticket types

func (m *Memory) CreateTicketType(_ context.Context, tt *models.TicketType) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.ticketTypes[tt.ID]; ok {
		return fmt.Errorf("%w: ticket type %s already exists", status.ErrInvalidInput, tt.ID)
	}
	m.ticketTypes[tt.ID] = *tt
	return nil
}

func (m *Memory) GetTicketType(_ context.Context, id string) (*models.TicketType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tt, ok := m.ticketTypes[id]
	if !ok {
		return nil, notFound("ticket type", id)
	}
	return &tt, nil
}

func (m *Memory) ListTicketTypes(_ context.Context, eventID string) ([]models.TicketType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.TicketType
	for _, tt := range m.ticketTypes {
		if tt.EventID == eventID {
			out = append(out, tt)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) IncrementSold(_ context.Context, id string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tt, ok := m.ticketTypes[id]
	if !ok {
		return notFound("ticket type", id)
	}
	if tt.QuantitySold+qty > tt.TotalQuantity {
		return fmt.Errorf("%w: ticket type %s", status.ErrInsufficientInventory, id)
	}
	tt.QuantitySold += qty
	m.ticketTypes[id] = tt
	return nil
}

func (m *Memory) DecrementSold(_ context.Context, id string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tt, ok := m.ticketTypes[id]
	if !ok {
		return notFound("ticket type", id)
	}
	if tt.QuantitySold < qty {
		return fmt.Errorf("%w: ticket type %s has only %d sold", status.ErrInvalidState, id, tt.QuantitySold)
	}
	tt.QuantitySold -= qty
	m.ticketTypes[id] = tt
	return nil
}

// Tickets

func (m *Memory) IssueTicket(_ context.Context, ticket *models.Ticket, sale *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tickets[ticket.ID]; ok {
		return fmt.Errorf("%w: ticket %s already issued", status.ErrStorageFailure, ticket.ID)
	}
	m.tickets[ticket.ID] = *ticket
	m.txns = append(m.txns, *sale)
	return nil
}

func (m *Memory) GetTicket(_ context.Context, id string) (*models.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tickets[id]
	if !ok {
		return nil, notFound("ticket", id)
	}
	return &t, nil
}

func (m *Memory) listTickets(match func(models.Ticket) bool) []models.Ticket {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Ticket
	for _, t := range m.tickets {
		if match(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PurchaseDate.Equal(out[j].PurchaseDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].PurchaseDate.Before(out[j].PurchaseDate)
	})
	return out
}

func (m *Memory) ListTicketsByUser(_ context.Context, userID string) ([]models.Ticket, error) {
	return m.listTickets(func(t models.Ticket) bool { return t.UserID == userID }), nil
}

func (m *Memory) ListTicketsByEvent(_ context.Context, eventID string) ([]models.Ticket, error) {
	return m.listTickets(func(t models.Ticket) bool { return t.EventID == eventID }), nil
}

func (m *Memory) UpdateTicketStatus(_ context.Context, id string, from, to models.TicketStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tickets[id]
	if !ok {
		return notFound("ticket", id)
	}
	if t.Status != from || !from.CanTransition(to) {
		return fmt.Errorf("%w: ticket %s is %s", status.ErrInvalidState, id, t.Status)
	}
	t.Status = to
	m.tickets[id] = t
	return nil
}

func (m *Memory) CancelTicket(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tickets[id]
	if !ok {
		return notFound("ticket", id)
	}
	if !t.Status.CanTransition(models.TicketCancelled) {
		return fmt.Errorf("%w: ticket %s is %s", status.ErrInvalidState, id, t.Status)
	}

	saleIdx := -1
	for i, tx := range m.txns {
		if tx.Type == models.TransactionSale && tx.RelatedTicketID == id {
			saleIdx = i
			break
		}
	}
	if saleIdx >= 0 && !m.txns[saleIdx].Status.CanTransition(models.TransactionFailed) {
		return fmt.Errorf("%w: sale of ticket %s is %s", status.ErrInvalidState, id, m.txns[saleIdx].Status)
	}

	t.Status = models.TicketCancelled
	m.tickets[id] = t
	if saleIdx >= 0 {
		m.txns[saleIdx].Status = models.TransactionFailed
	}
	return nil
}

// Transactions

func (m *Memory) ListTransactions(_ context.Context, filter models.TransactionFilter) ([]models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Transaction
	for _, tx := range m.txns {
		if filter.Matches(tx) {
			out = append(out, tx)
		}
	}
	return out, nil
}

// Payouts

func (m *Memory) CreateRequest(_ context.Context, req *models.PayoutRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.ID] = *req
	return nil
}

func (m *Memory) GetRequest(_ context.Context, id string) (*models.PayoutRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.requests[id]
	if !ok {
		return nil, notFound("payout request", id)
	}
	return &r, nil
}

func (m *Memory) ListRequests(_ context.Context, organizerID string) ([]models.PayoutRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.PayoutRequest
	for _, r := range m.requests {
		if r.OrganizerID == organizerID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) ApproveRequest(_ context.Context, requestID string, decidedAt time.Time, payout *models.Payout, txns []models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[requestID]
	if !ok {
		return notFound("payout request", requestID)
	}
	if r.Status != models.PayoutRequestPending {
		return fmt.Errorf("%w: payout request %s is %s", status.ErrInvalidState, requestID, r.Status)
	}

	r.Status = models.PayoutRequestApproved
	r.DecidedAt = &decidedAt
	m.requests[requestID] = r
	m.payouts[payout.ID] = *payout
	m.txns = append(m.txns, txns...)
	return nil
}

func (m *Memory) RejectRequest(_ context.Context, requestID, reason string, decidedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[requestID]
	if !ok {
		return notFound("payout request", requestID)
	}
	if r.Status != models.PayoutRequestPending {
		return fmt.Errorf("%w: payout request %s is %s", status.ErrInvalidState, requestID, r.Status)
	}

	r.Status = models.PayoutRequestRejected
	r.Reason = reason
	r.DecidedAt = &decidedAt
	m.requests[requestID] = r
	return nil
}

func (m *Memory) GetPayout(_ context.Context, id string) (*models.Payout, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.payouts[id]
	if !ok {
		return nil, notFound("payout", id)
	}
	return &p, nil
}

func (m *Memory) ListPayouts(_ context.Context, organizerID string) ([]models.Payout, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Payout
	for _, p := range m.payouts {
		if p.OrganizerID == organizerID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) FinishPayout(_ context.Context, payoutID string, to models.PayoutStatus, reason string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payouts[payoutID]
	if !ok {
		return notFound("payout", payoutID)
	}
	if p.PayoutStatus != models.PayoutProcessing {
		return fmt.Errorf("%w: payout %s is %s", status.ErrInvalidState, payoutID, p.PayoutStatus)
	}

	txStatus := payoutTxnStatus(to)
	p.PayoutStatus = to
	p.FailureReason = reason
	p.ProcessedDate = &at
	m.payouts[payoutID] = p

	for i, tx := range m.txns {
		if tx.RelatedPayoutID == payoutID && tx.Status.CanTransition(txStatus) {
			m.txns[i].Status = txStatus
		}
	}
	return nil
}

// payoutTxnStatus maps a terminal payout status to the status of its ledger entries.
func payoutTxnStatus(to models.PayoutStatus) models.TransactionStatus {
	if to == models.PayoutProcessed {
		return models.TransactionSettled
	}
	return models.TransactionFailed
}
