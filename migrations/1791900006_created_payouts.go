package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		col := core.NewBaseCollection("payouts")
		uuidIDs(col)

		col.Fields.Add(
			&core.TextField{Name: "request", Required: true, Max: 36},
			&core.TextField{Name: "organizer", Required: true, Max: 36},
			&core.TextField{Name: "event", Max: 36},
			&core.TextField{Name: "reference", Max: 32},
			&core.TextField{Name: "payout_amount", Required: true, Max: 32},
			&core.TextField{Name: "payout_fee", Max: 32},
			&core.SelectField{
				Name:      "payout_status",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"processing", "processed", "failed"},
			},
			&core.TextField{Name: "failure_reason", Max: 500},
			&core.DateField{Name: "processed_date"},
			&core.AutodateField{Name: "created", OnCreate: true},
		)
		// one payout per approved request
		col.AddIndex("idx_payouts_request", true, "request", "")
		col.AddIndex("idx_payouts_organizer", false, "organizer", "")

		return app.Save(col)
	}, func(app core.App) error {
		return dropCollection(app, "payouts")
	})
}
