package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

func init() {
	m.Register(func(app core.App) error {
		col := core.NewBaseCollection("ticket_types")
		uuidIDs(col)

		// unit_price is a decimal string; quantity_sold only moves through
		// conditional UPDATEs in the store.
		col.Fields.Add(
			&core.TextField{Name: "event", Required: true, Max: 36},
			&core.TextField{Name: "name", Required: true, Max: 255},
			&core.TextField{Name: "unit_price", Required: true, Max: 32},
			&core.NumberField{Name: "total_quantity", Required: true, OnlyInt: true, Min: types.Pointer(1.0)},
			&core.NumberField{Name: "quantity_sold", OnlyInt: true, Min: types.Pointer(0.0)},
			&core.BoolField{Name: "refundable"},
			&core.AutodateField{Name: "created", OnCreate: true},
		)
		col.AddIndex("idx_ticket_types_event", false, "event", "")

		return app.Save(col)
	}, func(app core.App) error {
		return dropCollection(app, "ticket_types")
	})
}
