package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		col := core.NewBaseCollection("events")
		uuidIDs(col)

		col.Fields.Add(
			&core.TextField{Name: "organizer", Required: true, Max: 36},
			&core.TextField{Name: "title", Required: true, Max: 255},
			&core.TextField{Name: "venue", Max: 255},
			&core.DateField{Name: "start_time"},
			&core.DateField{Name: "end_time"},
			&core.SelectField{
				Name:      "status",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"draft", "published", "completed", "cancelled"},
			},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)
		col.AddIndex("idx_events_organizer", false, "organizer", "")

		return app.Save(col)
	}, func(app core.App) error {
		return dropCollection(app, "events")
	})
}
