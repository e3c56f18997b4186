package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

func init() {
	m.Register(func(app core.App) error {
		col := core.NewBaseCollection("transactions")
		uuidIDs(col)

		col.Fields.Add(
			&core.TextField{Name: "user", Max: 36},
			&core.TextField{Name: "organizer", Required: true, Max: 36},
			&core.TextField{Name: "event", Max: 36},
			&core.TextField{Name: "related_ticket", Max: 36},
			&core.TextField{Name: "related_payout", Max: 36},
			&core.SelectField{
				Name:      "type",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"sale", "payout", "fee"},
			},
			&core.TextField{Name: "amount", Required: true, Max: 32},
			&core.TextField{Name: "fee_percent", Max: 16},
			&core.NumberField{Name: "quantity", OnlyInt: true, Min: types.Pointer(0.0)},
			&core.SelectField{
				Name:      "status",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"pending", "settled", "failed"},
			},
			&core.DateField{Name: "transaction_date", Required: true},
		)
		col.AddIndex("idx_transactions_organizer_date", false, "organizer, transaction_date", "")
		col.AddIndex("idx_transactions_ticket", false, "related_ticket", "related_ticket != ''")
		col.AddIndex("idx_transactions_payout", false, "related_payout", "related_payout != ''")

		return app.Save(col)
	}, func(app core.App) error {
		return dropCollection(app, "transactions")
	})
}
