package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"eventhub/internal/status"
	"eventhub/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Scope narrows ledger reads. OrganizerID is required; EventID and the
// half-open [From, To) window are optional.
type Scope struct {
	OrganizerID string
	EventID     string
	From        time.Time
	To          time.Time
}

// MonthScope covers the calendar month of t in t's location.
func MonthScope(organizerID string, t time.Time) Scope {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return Scope{
		OrganizerID: organizerID,
		From:        start,
		To:          start.AddDate(0, 1, 0),
	}
}

func (s Scope) filter(types ...models.TransactionType) models.TransactionFilter {
	return models.TransactionFilter{
		OrganizerID: s.OrganizerID,
		EventID:     s.EventID,
		Types:       types,
		From:        s.From,
		To:          s.To,
	}
}

type RevenueSummary struct {
	OrganizerID  string          `json:"organizer_id"`
	EventID      string          `json:"event_id,omitempty"`
	Gross        decimal.Decimal `json:"gross"`
	PlatformFee  decimal.Decimal `json:"platform_fee"`
	Net          decimal.Decimal `json:"net"`
	TicketsSold  int             `json:"tickets_sold"`
	Transactions int             `json:"transactions"`
}

type Balance struct {
	OrganizerID string          `json:"organizer_id"`
	Net         decimal.Decimal `json:"net"`
	PaidOut     decimal.Decimal `json:"paid_out"`    // payout and payout-fee entries not failed
	Outstanding decimal.Decimal `json:"outstanding"` // pending requests
	Available   decimal.Decimal `json:"available"`
}

// RevenueLedger derives revenue figures from the transaction log alone. Nothing
// is cached; every call reads the log again.
type RevenueLedger struct {
	txns    TransactionLog
	payouts PayoutStore
}

func NewRevenueLedger(txns TransactionLog, payouts PayoutStore) *RevenueLedger {
	return &RevenueLedger{txns: txns, payouts: payouts}
}

func (l *RevenueLedger) sales(ctx context.Context, scope Scope) ([]models.Transaction, error) {
	if scope.OrganizerID == "" {
		return nil, fmt.Errorf("%w: organizer id is required", status.ErrInvalidInput)
	}
	all, err := l.txns.ListTransactions(ctx, scope.filter(models.TransactionSale))
	if err != nil {
		return nil, err
	}

	out := all[:0]
	for _, tx := range all {
		if tx.Status != models.TransactionFailed {
			out = append(out, tx)
		}
	}
	return out, nil
}

// saleFee is the platform fee of one sale using the percent captured at sale time.
func saleFee(tx models.Transaction) decimal.Decimal {
	return tx.Amount.Mul(tx.FeePercent).Div(hundred)
}

func (l *RevenueLedger) GrossRevenue(ctx context.Context, scope Scope) (decimal.Decimal, error) {
	sales, err := l.sales(ctx, scope)
	if err != nil {
		return decimal.Zero, err
	}
	return summarize(sales).Gross, nil
}

func (l *RevenueLedger) PlatformFee(ctx context.Context, scope Scope) (decimal.Decimal, error) {
	sales, err := l.sales(ctx, scope)
	if err != nil {
		return decimal.Zero, err
	}
	return summarize(sales).PlatformFee, nil
}

func (l *RevenueLedger) NetRevenue(ctx context.Context, scope Scope) (decimal.Decimal, error) {
	sales, err := l.sales(ctx, scope)
	if err != nil {
		return decimal.Zero, err
	}
	return summarize(sales).Net, nil
}

func (l *RevenueLedger) Summary(ctx context.Context, scope Scope) (*RevenueSummary, error) {
	sales, err := l.sales(ctx, scope)
	if err != nil {
		return nil, err
	}
	s := summarize(sales)
	s.OrganizerID = scope.OrganizerID
	s.EventID = scope.EventID
	return s, nil
}

func summarize(sales []models.Transaction) *RevenueSummary {
	s := &RevenueSummary{Gross: decimal.Zero, PlatformFee: decimal.Zero}
	for _, tx := range sales {
		s.Gross = s.Gross.Add(tx.Amount)
		s.PlatformFee = s.PlatformFee.Add(saleFee(tx))
		s.TicketsSold += tx.Quantity
	}
	s.Net = s.Gross.Sub(s.PlatformFee)
	s.Transactions = len(sales)
	return s
}

// ByEvent splits the scope's revenue per event, ordered by event id.
func (l *RevenueLedger) ByEvent(ctx context.Context, scope Scope) ([]RevenueSummary, error) {
	sales, err := l.sales(ctx, scope)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]models.Transaction)
	for _, tx := range sales {
		grouped[tx.EventID] = append(grouped[tx.EventID], tx)
	}

	out := make([]RevenueSummary, 0, len(grouped))
	for eventID, txs := range grouped {
		s := summarize(txs)
		s.OrganizerID = scope.OrganizerID
		s.EventID = eventID
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventID < out[j].EventID })
	return out, nil
}

// PaidOut sums payout and payout-fee entries that have not failed.
func (l *RevenueLedger) PaidOut(ctx context.Context, organizerID string) (decimal.Decimal, error) {
	txs, err := l.txns.ListTransactions(ctx, models.TransactionFilter{
		OrganizerID: organizerID,
		Types:       []models.TransactionType{models.TransactionPayout, models.TransactionFee},
	})
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, tx := range txs {
		if tx.Status != models.TransactionFailed {
			total = total.Add(tx.Amount)
		}
	}
	return total, nil
}

// AvailableBalance is net revenue minus what was paid out or is already requested.
func (l *RevenueLedger) AvailableBalance(ctx context.Context, organizerID string) (*Balance, error) {
	net, err := l.NetRevenue(ctx, Scope{OrganizerID: organizerID})
	if err != nil {
		return nil, err
	}
	paid, err := l.PaidOut(ctx, organizerID)
	if err != nil {
		return nil, err
	}

	outstanding := decimal.Zero
	if l.payouts != nil {
		reqs, err := l.payouts.ListRequests(ctx, organizerID)
		if err != nil {
			return nil, err
		}
		for _, r := range reqs {
			if r.Status == models.PayoutRequestPending {
				outstanding = outstanding.Add(r.RequestedAmount)
			}
		}
	}

	return &Balance{
		OrganizerID: organizerID,
		Net:         net,
		PaidOut:     paid,
		Outstanding: outstanding,
		Available:   net.Sub(paid).Sub(outstanding),
	}, nil
}
