package migrations

import (
	"github.com/pocketbase/pocketbase/core"
)

// uuidIDs lets the collection store ids generated by the service.
func uuidIDs(col *core.Collection) {
	if f, ok := col.Fields.GetByName("id").(*core.TextField); ok {
		f.Min = 15
		f.Max = 36
		f.Pattern = "^[a-z0-9-]+$"
	}
}

func dropCollection(app core.App, name string) error {
	col, err := app.FindCollectionByNameOrId(name)
	if err != nil {
		return err
	}
	return app.Delete(col)
}
