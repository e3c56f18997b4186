package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"eventhub/internal/status"
	"eventhub/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/shopspring/decimal"
)

const (
	colEvents         = "events"
	colTicketTypes    = "ticket_types"
	colTickets        = "tickets"
	colTransactions   = "transactions"
	colPayoutRequests = "payout_requests"
	colPayouts        = "payouts"
	colUsers          = "users"
)

// PocketBase persists entities as records of the collections created in
// migrations/. Money is stored as decimal text.
type PocketBase struct {
	app core.App
}

func NewPocketBase(app core.App) *PocketBase {
	return &PocketBase{app: app}
}

func storageErr(op string, err error) error {
	if errors.Is(err, status.ErrNotFound) || errors.Is(err, status.ErrInvalidState) ||
		errors.Is(err, status.ErrInsufficientInventory) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", status.ErrStorageFailure, op, err)
}

func (s *PocketBase) find(app core.App, collection, id string) (*core.Record, error) {
	rec, err := app.FindRecordById(collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(collection, id)
	}
	if err != nil {
		return nil, storageErr("find "+collection, err)
	}
	return rec, nil
}

func (s *PocketBase) newRecord(app core.App, collection, id string) (*core.Record, error) {
	col, err := app.FindCollectionByNameOrId(collection)
	if err != nil {
		return nil, storageErr("collection "+collection, err)
	}
	rec := core.NewRecord(col)
	rec.Id = id
	return rec, nil
}

func dbTime(t time.Time) string {
	return t.UTC().Format(types.DefaultDateLayout)
}

func recDecimal(rec *core.Record, field string) decimal.Decimal {
	d, err := decimal.NewFromString(rec.GetString(field))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func recTime(rec *core.Record, field string) time.Time {
	return rec.GetDateTime(field).Time()
}

func recTimePtr(rec *core.Record, field string) *time.Time {
	t := rec.GetDateTime(field).Time()
	if t.IsZero() {
		return nil
	}
	return &t
}

// rowsAffected runs a conditional UPDATE and reports how many rows matched.
func rowsAffected(app core.App, query string, params dbx.Params) (int64, error) {
	res, err := app.DB().NewQuery(query).Bind(params).Execute()
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Users

func (s *PocketBase) GetUser(ctx context.Context, id string) (*models.User, error) {
	rec, err := s.find(s.app, colUsers, id)
	if err != nil {
		return nil, err
	}
	role := models.Role(rec.GetString("role"))
	if role == "" {
		role = models.RoleAttendee
	}
	u := &models.User{
		ID:    rec.Id,
		Email: rec.GetString("email"),
		Name:  rec.GetString("name"),
		Role:  role,
	}
	if rec.GetBool("custom_fee") {
		fee := decimal.NewFromFloat(rec.GetFloat("fee_percent"))
		u.FeePercent = &fee
	}
	return u, nil
}

// Events

func eventFromRecord(rec *core.Record) *models.Event {
	return &models.Event{
		ID:          rec.Id,
		OrganizerID: rec.GetString("organizer"),
		Title:       rec.GetString("title"),
		Venue:       rec.GetString("venue"),
		StartTime:   recTime(rec, "start_time"),
		EndTime:     recTime(rec, "end_time"),
		Status:      models.EventStatus(rec.GetString("status")),
	}
}

func (s *PocketBase) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	rec, err := s.find(s.app, colEvents, id)
	if err != nil {
		return nil, err
	}
	return eventFromRecord(rec), nil
}

func (s *PocketBase) SaveEvent(ctx context.Context, event *models.Event) error {
	rec, err := s.find(s.app, colEvents, event.ID)
	if errors.Is(err, status.ErrNotFound) {
		rec, err = s.newRecord(s.app, colEvents, event.ID)
	}
	if err != nil {
		return err
	}

	rec.Set("organizer", event.OrganizerID)
	rec.Set("title", event.Title)
	rec.Set("venue", event.Venue)
	rec.Set("start_time", event.StartTime)
	rec.Set("end_time", event.EndTime)
	rec.Set("status", string(event.Status))

	if err := s.app.SaveWithContext(ctx, rec); err != nil {
		return storageErr("save event", err)
	}
	return nil
}

// Ticket types

func ticketTypeFromRecord(rec *core.Record) models.TicketType {
	return models.TicketType{
		ID:            rec.Id,
		EventID:       rec.GetString("event"),
		Name:          rec.GetString("name"),
		UnitPrice:     recDecimal(rec, "unit_price"),
		TotalQuantity: rec.GetInt("total_quantity"),
		QuantitySold:  rec.GetInt("quantity_sold"),
		Refundable:    rec.GetBool("refundable"),
		CreatedAt:     recTime(rec, "created"),
	}
}

func (s *PocketBase) CreateTicketType(ctx context.Context, tt *models.TicketType) error {
	rec, err := s.newRecord(s.app, colTicketTypes, tt.ID)
	if err != nil {
		return err
	}
	rec.Set("event", tt.EventID)
	rec.Set("name", tt.Name)
	rec.Set("unit_price", tt.UnitPrice.String())
	rec.Set("total_quantity", tt.TotalQuantity)
	rec.Set("quantity_sold", tt.QuantitySold)
	rec.Set("refundable", tt.Refundable)

	if err := s.app.SaveWithContext(ctx, rec); err != nil {
		return storageErr("create ticket type", err)
	}
	return nil
}

func (s *PocketBase) GetTicketType(ctx context.Context, id string) (*models.TicketType, error) {
	rec, err := s.find(s.app, colTicketTypes, id)
	if err != nil {
		return nil, err
	}
	tt := ticketTypeFromRecord(rec)
	return &tt, nil
}

func (s *PocketBase) ListTicketTypes(ctx context.Context, eventID string) ([]models.TicketType, error) {
	var records []*core.Record
	err := s.app.RecordQuery(colTicketTypes).
		AndWhere(dbx.HashExp{"event": eventID}).
		OrderBy("created ASC", "id ASC").
		All(&records)
	if err != nil {
		return nil, storageErr("list ticket types", err)
	}

	out := make([]models.TicketType, 0, len(records))
	for _, rec := range records {
		out = append(out, ticketTypeFromRecord(rec))
	}
	return out, nil
}

func (s *PocketBase) IncrementSold(ctx context.Context, id string, qty int) error {
	n, err := rowsAffected(s.app,
		"UPDATE ticket_types SET quantity_sold = quantity_sold + {:qty} "+
			"WHERE id = {:id} AND quantity_sold + {:qty} <= total_quantity",
		dbx.Params{"id": id, "qty": qty})
	if err != nil {
		return storageErr("increment sold", err)
	}
	if n == 0 {
		if _, err := s.find(s.app, colTicketTypes, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: ticket type %s", status.ErrInsufficientInventory, id)
	}
	return nil
}

func (s *PocketBase) DecrementSold(ctx context.Context, id string, qty int) error {
	n, err := rowsAffected(s.app,
		"UPDATE ticket_types SET quantity_sold = quantity_sold - {:qty} "+
			"WHERE id = {:id} AND quantity_sold >= {:qty}",
		dbx.Params{"id": id, "qty": qty})
	if err != nil {
		return storageErr("decrement sold", err)
	}
	if n == 0 {
		if _, err := s.find(s.app, colTicketTypes, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: ticket type %s has fewer than %d sold", status.ErrInvalidState, id, qty)
	}
	return nil
}

// Tickets

func ticketFromRecord(rec *core.Record) models.Ticket {
	return models.Ticket{
		ID:             rec.Id,
		UserID:         rec.GetString("user"),
		EventID:        rec.GetString("event"),
		TicketTypeID:   rec.GetString("ticket_type"),
		CheckoutID:     rec.GetString("checkout"),
		Quantity:       rec.GetInt("quantity"),
		TotalPricePaid: recDecimal(rec, "total_price_paid"),
		Status:         models.TicketStatus(rec.GetString("status")),
		PurchaseDate:   recTime(rec, "purchase_date"),
	}
}

func (s *PocketBase) saveTransaction(app core.App, tx *models.Transaction) error {
	rec, err := s.newRecord(app, colTransactions, tx.ID)
	if err != nil {
		return err
	}
	rec.Set("user", tx.UserID)
	rec.Set("organizer", tx.OrganizerID)
	rec.Set("event", tx.EventID)
	rec.Set("related_ticket", tx.RelatedTicketID)
	rec.Set("related_payout", tx.RelatedPayoutID)
	rec.Set("type", string(tx.Type))
	rec.Set("amount", tx.Amount.String())
	rec.Set("fee_percent", tx.FeePercent.String())
	rec.Set("quantity", tx.Quantity)
	rec.Set("status", string(tx.Status))
	rec.Set("transaction_date", tx.TransactionDate)
	return app.Save(rec)
}

func (s *PocketBase) IssueTicket(ctx context.Context, ticket *models.Ticket, sale *models.Transaction) error {
	err := s.app.RunInTransaction(func(txApp core.App) error {
		rec, err := s.newRecord(txApp, colTickets, ticket.ID)
		if err != nil {
			return err
		}
		rec.Set("user", ticket.UserID)
		rec.Set("event", ticket.EventID)
		rec.Set("ticket_type", ticket.TicketTypeID)
		rec.Set("checkout", ticket.CheckoutID)
		rec.Set("quantity", ticket.Quantity)
		rec.Set("total_price_paid", ticket.TotalPricePaid.String())
		rec.Set("status", string(ticket.Status))
		rec.Set("purchase_date", ticket.PurchaseDate)
		if err := txApp.Save(rec); err != nil {
			return err
		}
		return s.saveTransaction(txApp, sale)
	})
	if err != nil {
		return storageErr("issue ticket", err)
	}
	return nil
}

func (s *PocketBase) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	rec, err := s.find(s.app, colTickets, id)
	if err != nil {
		return nil, err
	}
	t := ticketFromRecord(rec)
	return &t, nil
}

func (s *PocketBase) listTickets(field, value string) ([]models.Ticket, error) {
	var records []*core.Record
	err := s.app.RecordQuery(colTickets).
		AndWhere(dbx.HashExp{field: value}).
		OrderBy("purchase_date ASC", "id ASC").
		All(&records)
	if err != nil {
		return nil, storageErr("list tickets", err)
	}

	out := make([]models.Ticket, 0, len(records))
	for _, rec := range records {
		out = append(out, ticketFromRecord(rec))
	}
	return out, nil
}

func (s *PocketBase) ListTicketsByUser(ctx context.Context, userID string) ([]models.Ticket, error) {
	return s.listTickets("user", userID)
}

func (s *PocketBase) ListTicketsByEvent(ctx context.Context, eventID string) ([]models.Ticket, error) {
	return s.listTickets("event", eventID)
}

func (s *PocketBase) UpdateTicketStatus(ctx context.Context, id string, from, to models.TicketStatus) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: ticket %s cannot go from %s to %s", status.ErrInvalidState, id, from, to)
	}
	n, err := rowsAffected(s.app,
		"UPDATE tickets SET status = {:to} WHERE id = {:id} AND status = {:from}",
		dbx.Params{"id": id, "from": string(from), "to": string(to)})
	if err != nil {
		return storageErr("update ticket", err)
	}
	if n == 0 {
		if _, err := s.find(s.app, colTickets, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: ticket %s is not %s", status.ErrInvalidState, id, from)
	}
	return nil
}

func (s *PocketBase) CancelTicket(ctx context.Context, id string) error {
	err := s.app.RunInTransaction(func(txApp core.App) error {
		n, err := rowsAffected(txApp,
			"UPDATE tickets SET status = {:to} WHERE id = {:id} AND status = {:from}",
			dbx.Params{"id": id, "from": string(models.TicketActive), "to": string(models.TicketCancelled)})
		if err != nil {
			return err
		}
		if n == 0 {
			if _, err := s.find(txApp, colTickets, id); err != nil {
				return err
			}
			return fmt.Errorf("%w: ticket %s is not active", status.ErrInvalidState, id)
		}

		_, err = txApp.DB().NewQuery(
			"UPDATE transactions SET status = {:failed} " +
				"WHERE related_ticket = {:id} AND type = {:sale} AND status != {:failed}").
			Bind(dbx.Params{"id": id, "sale": string(models.TransactionSale), "failed": string(models.TransactionFailed)}).
			Execute()
		return err
	})
	if err != nil {
		return storageErr("cancel ticket", err)
	}
	return nil
}

// Transactions

func transactionFromRecord(rec *core.Record) models.Transaction {
	return models.Transaction{
		ID:              rec.Id,
		UserID:          rec.GetString("user"),
		OrganizerID:     rec.GetString("organizer"),
		EventID:         rec.GetString("event"),
		RelatedTicketID: rec.GetString("related_ticket"),
		RelatedPayoutID: rec.GetString("related_payout"),
		Type:            models.TransactionType(rec.GetString("type")),
		Amount:          recDecimal(rec, "amount"),
		FeePercent:      recDecimal(rec, "fee_percent"),
		Quantity:        rec.GetInt("quantity"),
		Status:          models.TransactionStatus(rec.GetString("status")),
		TransactionDate: recTime(rec, "transaction_date"),
	}
}

func (s *PocketBase) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error) {
	q := s.app.RecordQuery(colTransactions)

	hash := dbx.HashExp{}
	if filter.OrganizerID != "" {
		hash["organizer"] = filter.OrganizerID
	}
	if filter.EventID != "" {
		hash["event"] = filter.EventID
	}
	if filter.UserID != "" {
		hash["user"] = filter.UserID
	}
	if len(hash) > 0 {
		q = q.AndWhere(hash)
	}
	if len(filter.Types) > 0 {
		kinds := make([]any, len(filter.Types))
		for i, t := range filter.Types {
			kinds[i] = string(t)
		}
		q = q.AndWhere(dbx.In("type", kinds...))
	}
	if !filter.From.IsZero() {
		q = q.AndWhere(dbx.NewExp("transaction_date >= {:from}", dbx.Params{"from": dbTime(filter.From)}))
	}
	if !filter.To.IsZero() {
		q = q.AndWhere(dbx.NewExp("transaction_date < {:to}", dbx.Params{"to": dbTime(filter.To)}))
	}

	var records []*core.Record
	if err := q.OrderBy("transaction_date ASC", "id ASC").All(&records); err != nil {
		return nil, storageErr("list transactions", err)
	}

	out := make([]models.Transaction, 0, len(records))
	for _, rec := range records {
		out = append(out, transactionFromRecord(rec))
	}
	return out, nil
}

// Payouts

func requestFromRecord(rec *core.Record) models.PayoutRequest {
	return models.PayoutRequest{
		ID:              rec.Id,
		OrganizerID:     rec.GetString("organizer"),
		EventID:         rec.GetString("event"),
		RequestedAmount: recDecimal(rec, "requested_amount"),
		Status:          models.PayoutRequestStatus(rec.GetString("status")),
		Reason:          rec.GetString("reason"),
		CreatedAt:       recTime(rec, "created"),
		DecidedAt:       recTimePtr(rec, "decided_at"),
	}
}

func payoutFromRecord(rec *core.Record) models.Payout {
	return models.Payout{
		ID:            rec.Id,
		RequestID:     rec.GetString("request"),
		OrganizerID:   rec.GetString("organizer"),
		EventID:       rec.GetString("event"),
		Reference:     rec.GetString("reference"),
		PayoutAmount:  recDecimal(rec, "payout_amount"),
		PayoutFee:     recDecimal(rec, "payout_fee"),
		PayoutStatus:  models.PayoutStatus(rec.GetString("payout_status")),
		FailureReason: rec.GetString("failure_reason"),
		ProcessedDate: recTimePtr(rec, "processed_date"),
		CreatedAt:     recTime(rec, "created"),
	}
}

func (s *PocketBase) CreateRequest(ctx context.Context, req *models.PayoutRequest) error {
	rec, err := s.newRecord(s.app, colPayoutRequests, req.ID)
	if err != nil {
		return err
	}
	rec.Set("organizer", req.OrganizerID)
	rec.Set("event", req.EventID)
	rec.Set("requested_amount", req.RequestedAmount.String())
	rec.Set("status", string(req.Status))

	if err := s.app.SaveWithContext(ctx, rec); err != nil {
		return storageErr("create payout request", err)
	}
	return nil
}

func (s *PocketBase) GetRequest(ctx context.Context, id string) (*models.PayoutRequest, error) {
	rec, err := s.find(s.app, colPayoutRequests, id)
	if err != nil {
		return nil, err
	}
	r := requestFromRecord(rec)
	return &r, nil
}

func (s *PocketBase) ListRequests(ctx context.Context, organizerID string) ([]models.PayoutRequest, error) {
	var records []*core.Record
	err := s.app.RecordQuery(colPayoutRequests).
		AndWhere(dbx.HashExp{"organizer": organizerID}).
		OrderBy("created ASC", "id ASC").
		All(&records)
	if err != nil {
		return nil, storageErr("list payout requests", err)
	}

	out := make([]models.PayoutRequest, 0, len(records))
	for _, rec := range records {
		out = append(out, requestFromRecord(rec))
	}
	return out, nil
}

// decideRequest moves a pending request within app, failing when it is not pending.
func (s *PocketBase) decideRequest(app core.App, requestID string, to models.PayoutRequestStatus, reason string, at time.Time) error {
	n, err := rowsAffected(app,
		"UPDATE payout_requests SET status = {:to}, reason = {:reason}, decided_at = {:at} "+
			"WHERE id = {:id} AND status = {:pending}",
		dbx.Params{
			"id":      requestID,
			"to":      string(to),
			"reason":  reason,
			"at":      dbTime(at),
			"pending": string(models.PayoutRequestPending),
		})
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.find(app, colPayoutRequests, requestID); err != nil {
			return err
		}
		return fmt.Errorf("%w: payout request %s is not pending", status.ErrInvalidState, requestID)
	}
	return nil
}

func (s *PocketBase) ApproveRequest(ctx context.Context, requestID string, decidedAt time.Time, payout *models.Payout, txns []models.Transaction) error {
	err := s.app.RunInTransaction(func(txApp core.App) error {
		if err := s.decideRequest(txApp, requestID, models.PayoutRequestApproved, "", decidedAt); err != nil {
			return err
		}

		rec, err := s.newRecord(txApp, colPayouts, payout.ID)
		if err != nil {
			return err
		}
		rec.Set("request", payout.RequestID)
		rec.Set("organizer", payout.OrganizerID)
		rec.Set("event", payout.EventID)
		rec.Set("reference", payout.Reference)
		rec.Set("payout_amount", payout.PayoutAmount.String())
		rec.Set("payout_fee", payout.PayoutFee.String())
		rec.Set("payout_status", string(payout.PayoutStatus))
		if err := txApp.Save(rec); err != nil {
			return err
		}

		for i := range txns {
			if err := s.saveTransaction(txApp, &txns[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return storageErr("approve payout request", err)
	}
	return nil
}

func (s *PocketBase) RejectRequest(ctx context.Context, requestID, reason string, decidedAt time.Time) error {
	if err := s.decideRequest(s.app, requestID, models.PayoutRequestRejected, reason, decidedAt); err != nil {
		return storageErr("reject payout request", err)
	}
	return nil
}

func (s *PocketBase) GetPayout(ctx context.Context, id string) (*models.Payout, error) {
	rec, err := s.find(s.app, colPayouts, id)
	if err != nil {
		return nil, err
	}
	p := payoutFromRecord(rec)
	return &p, nil
}

func (s *PocketBase) ListPayouts(ctx context.Context, organizerID string) ([]models.Payout, error) {
	var records []*core.Record
	err := s.app.RecordQuery(colPayouts).
		AndWhere(dbx.HashExp{"organizer": organizerID}).
		OrderBy("created ASC", "id ASC").
		All(&records)
	if err != nil {
		return nil, storageErr("list payouts", err)
	}

	out := make([]models.Payout, 0, len(records))
	for _, rec := range records {
		out = append(out, payoutFromRecord(rec))
	}
	return out, nil
}

func (s *PocketBase) FinishPayout(ctx context.Context, payoutID string, to models.PayoutStatus, reason string, at time.Time) error {
	err := s.app.RunInTransaction(func(txApp core.App) error {
		n, err := rowsAffected(txApp,
			"UPDATE payouts SET payout_status = {:to}, failure_reason = {:reason}, processed_date = {:at} "+
				"WHERE id = {:id} AND payout_status = {:processing}",
			dbx.Params{
				"id":         payoutID,
				"to":         string(to),
				"reason":     reason,
				"at":         dbTime(at),
				"processing": string(models.PayoutProcessing),
			})
		if err != nil {
			return err
		}
		if n == 0 {
			if _, err := s.find(txApp, colPayouts, payoutID); err != nil {
				return err
			}
			return fmt.Errorf("%w: payout %s is not processing", status.ErrInvalidState, payoutID)
		}

		_, err = txApp.DB().NewQuery(
			"UPDATE transactions SET status = {:to} WHERE related_payout = {:id} AND status = {:pending}").
			Bind(dbx.Params{
				"id":      payoutID,
				"to":      string(payoutTxnStatus(to)),
				"pending": string(models.TransactionPending),
			}).
			Execute()
		return err
	})
	if err != nil {
		return storageErr("finish payout", err)
	}
	return nil
}
