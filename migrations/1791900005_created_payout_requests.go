package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		col := core.NewBaseCollection("payout_requests")
		uuidIDs(col)

		col.Fields.Add(
			&core.TextField{Name: "organizer", Required: true, Max: 36},
			&core.TextField{Name: "event", Max: 36},
			&core.TextField{Name: "requested_amount", Required: true, Max: 32},
			&core.SelectField{
				Name:      "status",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"pending", "approved", "rejected"},
			},
			&core.TextField{Name: "reason", Max: 500},
			&core.DateField{Name: "decided_at"},
			&core.AutodateField{Name: "created", OnCreate: true},
		)
		col.AddIndex("idx_payout_requests_organizer", false, "organizer, status", "")

		return app.Save(col)
	}, func(app core.App) error {
		return dropCollection(app, "payout_requests")
	})
}
