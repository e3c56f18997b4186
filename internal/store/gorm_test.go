package store

import (
	"context"
	"testing"
	"time"

	"eventhub/internal/status"
	"eventhub/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// mockDB opens gorm on a sqlmock connection, so no server is dialed.
func mockDB(t *testing.T, cfg *gorm.Config) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	cfg.DisableAutomaticPing = true
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), cfg)
	require.NoError(t, err)
	return db, mock
}

func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, mock := mockDB(t, &gorm.Config{DryRun: true, SkipDefaultTransaction: true})
	t.Cleanup(func() { assert.NoError(t, mock.ExpectationsWereMet()) })
	return db
}

func TestAdjustSold_GuardsBounds(t *testing.T) {
	db := dryRunDB(t)

	tests := []struct {
		name  string
		delta int
		guard string
		vars  []any
	}{
		{"increment", 3, "<= total_quantity", []any{"tt-1", 3, 3}},
		{"decrement", -2, "quantity_sold >=", []any{"tt-1", 2, -2}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			stmt := adjustSold(db, "tt-1", tc.delta).Statement
			sql := stmt.SQL.String()

			assert.Contains(t, sql, `UPDATE "ticket_types"`)
			assert.Contains(t, sql, tc.guard)
			assert.ElementsMatch(t, tc.vars, stmt.Vars)
		})
	}
}

func TestPostgres_IncrementSoldRejectsOversell(t *testing.T) {
	db, mock := mockDB(t, &gorm.Config{})
	p := &Postgres{db: db}

	// the guarded update matches no row, the follow-up read tells sold out from missing
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "ticket_types" SET "quantity_sold"=quantity_sold \+ \$1 WHERE .*id = \$2 AND quantity_sold \+ \$3 <= total_quantity`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT \* FROM "ticket_types" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_id", "total_quantity", "quantity_sold"}).
			AddRow("tt-1", "evt-1", 5, 5))

	err := p.IncrementSold(context.Background(), "tt-1", 1)
	assert.ErrorIs(t, err, status.ErrInsufficientInventory)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "ticket_types" SET "quantity_sold"=quantity_sold \+ \$1 WHERE .*id = \$2 AND quantity_sold >= \$3`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT \* FROM "ticket_types" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	err = p.DecrementSold(context.Background(), "gone", 1)
	assert.ErrorIs(t, err, status.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRow_KeepsFeeSnapshot(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tx := models.Transaction{
		ID:              "tx-1",
		OrganizerID:     "org-1",
		EventID:         "evt-1",
		RelatedTicketID: "t-1",
		Type:            models.TransactionSale,
		Amount:          decimal.RequireFromString("120.50"),
		FeePercent:      decimal.RequireFromString("12.5"),
		Quantity:        3,
		Status:          models.TransactionSettled,
		TransactionDate: now,
	}

	row := transactionToRow(tx)
	assert.Equal(t, "sale", row.Type)
	assert.Equal(t, "settled", row.Status)
	assert.Equal(t, tx, row.model())
}
