package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eventhub/internal/status"
	"eventhub/models"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type userRow struct {
	ID         string           `gorm:"type:varchar(36);primaryKey"`
	Email      string           `gorm:"uniqueIndex"`
	Name       string
	Role       string           `gorm:"type:varchar(16);not null;default:attendee"`
	FeePercent *decimal.Decimal `gorm:"type:numeric(5,2)"` // NULL means platform default
}

func (userRow) TableName() string { return "users" }

type eventRow struct {
	ID          string `gorm:"type:varchar(36);primaryKey"`
	OrganizerID string `gorm:"type:varchar(36);index;not null"`
	Title       string `gorm:"not null"`
	Venue       string
	StartTime   time.Time
	EndTime     time.Time
	Status      string `gorm:"type:varchar(16);not null"`
}

func (eventRow) TableName() string { return "events" }

type ticketTypeRow struct {
	ID            string          `gorm:"type:varchar(36);primaryKey"`
	EventID       string          `gorm:"type:varchar(36);index;not null"`
	Name          string          `gorm:"not null"`
	UnitPrice     decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	TotalQuantity int             `gorm:"not null;check:total_quantity >= 1"`
	QuantitySold  int             `gorm:"not null;default:0;check:quantity_sold >= 0"`
	Refundable    bool
	CreatedAt     time.Time
}

func (ticketTypeRow) TableName() string { return "ticket_types" }

type ticketRow struct {
	ID             string          `gorm:"type:varchar(36);primaryKey"`
	UserID         string          `gorm:"type:varchar(36);index;not null"`
	EventID        string          `gorm:"type:varchar(36);index;not null"`
	TicketTypeID   string          `gorm:"type:varchar(36);not null"`
	CheckoutID     string          `gorm:"type:varchar(36)"`
	Quantity       int             `gorm:"not null"`
	TotalPricePaid decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Status         string          `gorm:"type:varchar(16);not null"`
	PurchaseDate   time.Time
}

func (ticketRow) TableName() string { return "tickets" }

type transactionRow struct {
	ID              string          `gorm:"type:varchar(36);primaryKey"`
	UserID          string          `gorm:"type:varchar(36)"`
	OrganizerID     string          `gorm:"type:varchar(36);index;not null"`
	EventID         string          `gorm:"type:varchar(36);index"`
	RelatedTicketID string          `gorm:"type:varchar(36);index"`
	RelatedPayoutID string          `gorm:"type:varchar(36);index"`
	Type            string          `gorm:"type:varchar(16);not null"`
	Amount          decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	FeePercent      decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0"`
	Quantity        int             `gorm:"not null;default:0"`
	Status          string          `gorm:"type:varchar(16);not null"`
	TransactionDate time.Time       `gorm:"index"`
}

func (transactionRow) TableName() string { return "transactions" }

type payoutRequestRow struct {
	ID              string          `gorm:"type:varchar(36);primaryKey"`
	OrganizerID     string          `gorm:"type:varchar(36);index;not null"`
	EventID         string          `gorm:"type:varchar(36)"`
	RequestedAmount decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Status          string          `gorm:"type:varchar(16);not null"`
	Reason          string
	CreatedAt       time.Time
	DecidedAt       *time.Time
}

func (payoutRequestRow) TableName() string { return "payout_requests" }

type payoutRow struct {
	ID            string          `gorm:"type:varchar(36);primaryKey"`
	RequestID     string          `gorm:"type:varchar(36);uniqueIndex;not null"`
	OrganizerID   string          `gorm:"type:varchar(36);index;not null"`
	EventID       string          `gorm:"type:varchar(36)"`
	Reference     string          `gorm:"type:varchar(32)"`
	PayoutAmount  decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	PayoutFee     decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	PayoutStatus  string          `gorm:"type:varchar(16);not null"`
	FailureReason string
	ProcessedDate *time.Time
	CreatedAt     time.Time
}

func (payoutRow) TableName() string { return "payouts" }

// Postgres stores entities through GORM. quantity_sold only moves through
// conditional UPDATEs so concurrent instances cannot oversell.
type Postgres struct {
	db *gorm.DB
}

func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewPostgres(db)
}

func NewPostgres(db *gorm.DB) (*Postgres, error) {
	err := db.AutoMigrate(&userRow{}, &eventRow{}, &ticketTypeRow{}, &ticketRow{},
		&transactionRow{}, &payoutRequestRow{}, &payoutRow{})
	if err != nil {
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	return &Postgres{db: db}, nil
}

func gormErr(op, kind, id string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(kind, id)
	}
	return storageErr(op, err)
}

// Users

func (p *Postgres) GetUser(ctx context.Context, id string) (*models.User, error) {
	var row userRow
	if err := p.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, gormErr("get user", "user", id, err)
	}
	return &models.User{
		ID:         row.ID,
		Email:      row.Email,
		Name:       row.Name,
		Role:       models.Role(row.Role),
		FeePercent: row.FeePercent,
	}, nil
}

// Events

func (p *Postgres) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var row eventRow
	if err := p.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, gormErr("get event", "event", id, err)
	}
	return &models.Event{
		ID:          row.ID,
		OrganizerID: row.OrganizerID,
		Title:       row.Title,
		Venue:       row.Venue,
		StartTime:   row.StartTime,
		EndTime:     row.EndTime,
		Status:      models.EventStatus(row.Status),
	}, nil
}

func (p *Postgres) SaveEvent(ctx context.Context, event *models.Event) error {
	row := eventRow{
		ID:          event.ID,
		OrganizerID: event.OrganizerID,
		Title:       event.Title,
		Venue:       event.Venue,
		StartTime:   event.StartTime,
		EndTime:     event.EndTime,
		Status:      string(event.Status),
	}
	err := p.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	if err != nil {
		return storageErr("save event", err)
	}
	return nil
}

// Ticket types

func (r ticketTypeRow) model() models.TicketType {
	return models.TicketType{
		ID:            r.ID,
		EventID:       r.EventID,
		Name:          r.Name,
		UnitPrice:     r.UnitPrice,
		TotalQuantity: r.TotalQuantity,
		QuantitySold:  r.QuantitySold,
		Refundable:    r.Refundable,
		CreatedAt:     r.CreatedAt,
	}
}

func (p *Postgres) CreateTicketType(ctx context.Context, tt *models.TicketType) error {
	row := ticketTypeRow{
		ID:            tt.ID,
		EventID:       tt.EventID,
		Name:          tt.Name,
		UnitPrice:     tt.UnitPrice,
		TotalQuantity: tt.TotalQuantity,
		QuantitySold:  tt.QuantitySold,
		Refundable:    tt.Refundable,
		CreatedAt:     tt.CreatedAt,
	}
	if err := p.db.WithContext(ctx).Create(&row).Error; err != nil {
		return storageErr("create ticket type", err)
	}
	return nil
}

func (p *Postgres) GetTicketType(ctx context.Context, id string) (*models.TicketType, error) {
	var row ticketTypeRow
	if err := p.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, gormErr("get ticket type", "ticket type", id, err)
	}
	tt := row.model()
	return &tt, nil
}

func (p *Postgres) ListTicketTypes(ctx context.Context, eventID string) ([]models.TicketType, error) {
	var rows []ticketTypeRow
	err := p.db.WithContext(ctx).Where("event_id = ?", eventID).Order("created_at, id").Find(&rows).Error
	if err != nil {
		return nil, storageErr("list ticket types", err)
	}

	out := make([]models.TicketType, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

// adjustSold moves quantity_sold by delta only while 0 <= sold <= total holds.
func adjustSold(db *gorm.DB, id string, delta int) *gorm.DB {
	q := db.Model(&ticketTypeRow{})
	if delta >= 0 {
		q = q.Where("id = ? AND quantity_sold + ? <= total_quantity", id, delta)
	} else {
		q = q.Where("id = ? AND quantity_sold >= ?", id, -delta)
	}
	return q.UpdateColumn("quantity_sold", gorm.Expr("quantity_sold + ?", delta))
}

func (p *Postgres) IncrementSold(ctx context.Context, id string, qty int) error {
	res := adjustSold(p.db.WithContext(ctx), id, qty)
	if res.Error != nil {
		return storageErr("increment sold", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := p.GetTicketType(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: ticket type %s", status.ErrInsufficientInventory, id)
	}
	return nil
}

func (p *Postgres) DecrementSold(ctx context.Context, id string, qty int) error {
	res := adjustSold(p.db.WithContext(ctx), id, -qty)
	if res.Error != nil {
		return storageErr("decrement sold", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := p.GetTicketType(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: ticket type %s has fewer than %d sold", status.ErrInvalidState, id, qty)
	}
	return nil
}

// Tickets

func (r ticketRow) model() models.Ticket {
	return models.Ticket{
		ID:             r.ID,
		UserID:         r.UserID,
		EventID:        r.EventID,
		TicketTypeID:   r.TicketTypeID,
		CheckoutID:     r.CheckoutID,
		Quantity:       r.Quantity,
		TotalPricePaid: r.TotalPricePaid,
		Status:         models.TicketStatus(r.Status),
		PurchaseDate:   r.PurchaseDate,
	}
}

func transactionToRow(tx models.Transaction) transactionRow {
	return transactionRow{
		ID:              tx.ID,
		UserID:          tx.UserID,
		OrganizerID:     tx.OrganizerID,
		EventID:         tx.EventID,
		RelatedTicketID: tx.RelatedTicketID,
		RelatedPayoutID: tx.RelatedPayoutID,
		Type:            string(tx.Type),
		Amount:          tx.Amount,
		FeePercent:      tx.FeePercent,
		Quantity:        tx.Quantity,
		Status:          string(tx.Status),
		TransactionDate: tx.TransactionDate,
	}
}

func (p *Postgres) IssueTicket(ctx context.Context, ticket *models.Ticket, sale *models.Transaction) error {
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := ticketRow{
			ID:             ticket.ID,
			UserID:         ticket.UserID,
			EventID:        ticket.EventID,
			TicketTypeID:   ticket.TicketTypeID,
			CheckoutID:     ticket.CheckoutID,
			Quantity:       ticket.Quantity,
			TotalPricePaid: ticket.TotalPricePaid,
			Status:         string(ticket.Status),
			PurchaseDate:   ticket.PurchaseDate,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		saleRow := transactionToRow(*sale)
		return tx.Create(&saleRow).Error
	})
	if err != nil {
		return storageErr("issue ticket", err)
	}
	return nil
}

func (p *Postgres) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	var row ticketRow
	if err := p.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, gormErr("get ticket", "ticket", id, err)
	}
	t := row.model()
	return &t, nil
}

func (p *Postgres) listTickets(ctx context.Context, column, value string) ([]models.Ticket, error) {
	var rows []ticketRow
	err := p.db.WithContext(ctx).Where(column+" = ?", value).Order("purchase_date, id").Find(&rows).Error
	if err != nil {
		return nil, storageErr("list tickets", err)
	}

	out := make([]models.Ticket, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

func (p *Postgres) ListTicketsByUser(ctx context.Context, userID string) ([]models.Ticket, error) {
	return p.listTickets(ctx, "user_id", userID)
}

func (p *Postgres) ListTicketsByEvent(ctx context.Context, eventID string) ([]models.Ticket, error) {
	return p.listTickets(ctx, "event_id", eventID)
}

func (p *Postgres) UpdateTicketStatus(ctx context.Context, id string, from, to models.TicketStatus) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: ticket %s cannot go from %s to %s", status.ErrInvalidState, id, from, to)
	}
	res := p.db.WithContext(ctx).Model(&ticketRow{}).
		Where("id = ? AND status = ?", id, string(from)).
		Update("status", string(to))
	if res.Error != nil {
		return storageErr("update ticket", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := p.GetTicket(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: ticket %s is not %s", status.ErrInvalidState, id, from)
	}
	return nil
}

func (p *Postgres) CancelTicket(ctx context.Context, id string) error {
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&ticketRow{}).
			Where("id = ? AND status = ?", id, string(models.TicketActive)).
			Update("status", string(models.TicketCancelled))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var row ticketRow
			if err := tx.First(&row, "id = ?", id).Error; err != nil {
				return gormErr("get ticket", "ticket", id, err)
			}
			return fmt.Errorf("%w: ticket %s is %s", status.ErrInvalidState, id, row.Status)
		}

		return tx.Model(&transactionRow{}).
			Where("related_ticket_id = ? AND type = ? AND status <> ?",
				id, string(models.TransactionSale), string(models.TransactionFailed)).
			Update("status", string(models.TransactionFailed)).Error
	})
	if err != nil {
		return storageErr("cancel ticket", err)
	}
	return nil
}

// Transactions

func (r transactionRow) model() models.Transaction {
	return models.Transaction{
		ID:              r.ID,
		UserID:          r.UserID,
		OrganizerID:     r.OrganizerID,
		EventID:         r.EventID,
		RelatedTicketID: r.RelatedTicketID,
		RelatedPayoutID: r.RelatedPayoutID,
		Type:            models.TransactionType(r.Type),
		Amount:          r.Amount,
		FeePercent:      r.FeePercent,
		Quantity:        r.Quantity,
		Status:          models.TransactionStatus(r.Status),
		TransactionDate: r.TransactionDate,
	}
}

func (p *Postgres) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error) {
	q := p.db.WithContext(ctx).Model(&transactionRow{})
	if filter.OrganizerID != "" {
		q = q.Where("organizer_id = ?", filter.OrganizerID)
	}
	if filter.EventID != "" {
		q = q.Where("event_id = ?", filter.EventID)
	}
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if len(filter.Types) > 0 {
		kinds := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			kinds[i] = string(t)
		}
		q = q.Where("type IN ?", kinds)
	}
	if !filter.From.IsZero() {
		q = q.Where("transaction_date >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		q = q.Where("transaction_date < ?", filter.To)
	}

	var rows []transactionRow
	if err := q.Order("transaction_date, id").Find(&rows).Error; err != nil {
		return nil, storageErr("list transactions", err)
	}

	out := make([]models.Transaction, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

// Payouts

func (r payoutRequestRow) model() models.PayoutRequest {
	return models.PayoutRequest{
		ID:              r.ID,
		OrganizerID:     r.OrganizerID,
		EventID:         r.EventID,
		RequestedAmount: r.RequestedAmount,
		Status:          models.PayoutRequestStatus(r.Status),
		Reason:          r.Reason,
		CreatedAt:       r.CreatedAt,
		DecidedAt:       r.DecidedAt,
	}
}

func (r payoutRow) model() models.Payout {
	return models.Payout{
		ID:            r.ID,
		RequestID:     r.RequestID,
		OrganizerID:   r.OrganizerID,
		EventID:       r.EventID,
		Reference:     r.Reference,
		PayoutAmount:  r.PayoutAmount,
		PayoutFee:     r.PayoutFee,
		PayoutStatus:  models.PayoutStatus(r.PayoutStatus),
		FailureReason: r.FailureReason,
		ProcessedDate: r.ProcessedDate,
		CreatedAt:     r.CreatedAt,
	}
}

func (p *Postgres) CreateRequest(ctx context.Context, req *models.PayoutRequest) error {
	row := payoutRequestRow{
		ID:              req.ID,
		OrganizerID:     req.OrganizerID,
		EventID:         req.EventID,
		RequestedAmount: req.RequestedAmount,
		Status:          string(req.Status),
		CreatedAt:       req.CreatedAt,
	}
	if err := p.db.WithContext(ctx).Create(&row).Error; err != nil {
		return storageErr("create payout request", err)
	}
	return nil
}

func (p *Postgres) GetRequest(ctx context.Context, id string) (*models.PayoutRequest, error) {
	var row payoutRequestRow
	if err := p.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, gormErr("get payout request", "payout request", id, err)
	}
	r := row.model()
	return &r, nil
}

func (p *Postgres) ListRequests(ctx context.Context, organizerID string) ([]models.PayoutRequest, error) {
	var rows []payoutRequestRow
	err := p.db.WithContext(ctx).Where("organizer_id = ?", organizerID).Order("created_at, id").Find(&rows).Error
	if err != nil {
		return nil, storageErr("list payout requests", err)
	}

	out := make([]models.PayoutRequest, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

func decideRequest(tx *gorm.DB, requestID string, to models.PayoutRequestStatus, reason string, at time.Time) error {
	res := tx.Model(&payoutRequestRow{}).
		Where("id = ? AND status = ?", requestID, string(models.PayoutRequestPending)).
		Updates(map[string]any{"status": string(to), "reason": reason, "decided_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var row payoutRequestRow
		if err := tx.First(&row, "id = ?", requestID).Error; err != nil {
			return gormErr("get payout request", "payout request", requestID, err)
		}
		return fmt.Errorf("%w: payout request %s is %s", status.ErrInvalidState, requestID, row.Status)
	}
	return nil
}

func (p *Postgres) ApproveRequest(ctx context.Context, requestID string, decidedAt time.Time, payout *models.Payout, txns []models.Transaction) error {
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := decideRequest(tx, requestID, models.PayoutRequestApproved, "", decidedAt); err != nil {
			return err
		}

		row := payoutRow{
			ID:           payout.ID,
			RequestID:    payout.RequestID,
			OrganizerID:  payout.OrganizerID,
			EventID:      payout.EventID,
			Reference:    payout.Reference,
			PayoutAmount: payout.PayoutAmount,
			PayoutFee:    payout.PayoutFee,
			PayoutStatus: string(payout.PayoutStatus),
			CreatedAt:    payout.CreatedAt,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}

		if len(txns) == 0 {
			return nil
		}
		rows := make([]transactionRow, len(txns))
		for i, t := range txns {
			rows[i] = transactionToRow(t)
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return storageErr("approve payout request", err)
	}
	return nil
}

func (p *Postgres) RejectRequest(ctx context.Context, requestID, reason string, decidedAt time.Time) error {
	if err := decideRequest(p.db.WithContext(ctx), requestID, models.PayoutRequestRejected, reason, decidedAt); err != nil {
		return storageErr("reject payout request", err)
	}
	return nil
}

func (p *Postgres) GetPayout(ctx context.Context, id string) (*models.Payout, error) {
	var row payoutRow
	if err := p.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, gormErr("get payout", "payout", id, err)
	}
	out := row.model()
	return &out, nil
}

func (p *Postgres) ListPayouts(ctx context.Context, organizerID string) ([]models.Payout, error) {
	var rows []payoutRow
	err := p.db.WithContext(ctx).Where("organizer_id = ?", organizerID).Order("created_at, id").Find(&rows).Error
	if err != nil {
		return nil, storageErr("list payouts", err)
	}

	out := make([]models.Payout, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

func (p *Postgres) FinishPayout(ctx context.Context, payoutID string, to models.PayoutStatus, reason string, at time.Time) error {
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&payoutRow{}).
			Where("id = ? AND payout_status = ?", payoutID, string(models.PayoutProcessing)).
			Updates(map[string]any{"payout_status": string(to), "failure_reason": reason, "processed_date": at})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var row payoutRow
			if err := tx.First(&row, "id = ?", payoutID).Error; err != nil {
				return gormErr("get payout", "payout", payoutID, err)
			}
			return fmt.Errorf("%w: payout %s is %s", status.ErrInvalidState, payoutID, row.PayoutStatus)
		}

		return tx.Model(&transactionRow{}).
			Where("related_payout_id = ? AND status = ?", payoutID, string(models.TransactionPending)).
			Update("status", string(payoutTxnStatus(to))).Error
	})
	if err != nil {
		return storageErr("finish payout", err)
	}
	return nil
}
