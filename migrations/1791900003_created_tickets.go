package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

func init() {
	m.Register(func(app core.App) error {
		col := core.NewBaseCollection("tickets")
		uuidIDs(col)

		col.Fields.Add(
			&core.TextField{Name: "user", Required: true, Max: 36},
			&core.TextField{Name: "event", Required: true, Max: 36},
			&core.TextField{Name: "ticket_type", Required: true, Max: 36},
			&core.TextField{Name: "checkout", Max: 36},
			&core.NumberField{Name: "quantity", Required: true, OnlyInt: true, Min: types.Pointer(1.0)},
			&core.TextField{Name: "total_price_paid", Required: true, Max: 32},
			&core.SelectField{
				Name:      "status",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"active", "attended", "cancelled"},
			},
			&core.DateField{Name: "purchase_date", Required: true},
		)
		col.AddIndex("idx_tickets_user", false, "user", "")
		col.AddIndex("idx_tickets_event", false, "event", "")

		return app.Save(col)
	}, func(app core.App) error {
		return dropCollection(app, "tickets")
	})
}
