package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

func init() {
	m.Register(func(app core.App) error {
		col, err := app.FindCollectionByNameOrId("users")
		if err != nil {
			return err
		}

		col.Fields.Add(
			&core.SelectField{
				Name:      "role",
				MaxSelect: 1,
				Values:    []string{"attendee", "organizer", "admin"},
			},
			// fee_percent only applies while custom_fee is set, so 0% can be negotiated
			&core.BoolField{Name: "custom_fee"},
			&core.NumberField{Name: "fee_percent", Min: types.Pointer(0.0), Max: types.Pointer(100.0)},
		)

		return app.Save(col)
	}, func(app core.App) error {
		col, err := app.FindCollectionByNameOrId("users")
		if err != nil {
			return err
		}

		col.Fields.RemoveByName("role")
		col.Fields.RemoveByName("custom_fee")
		col.Fields.RemoveByName("fee_percent")
		return app.Save(col)
	})
}
