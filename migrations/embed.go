// Package migrations embeds the SQL schema for both supported drivers so a
// single binary can provision its own database.
package migrations

import "embed"

//go:embed postgres sqlite seeds
var FS embed.FS

// SeedsDir holds driver-neutral seed files.
const SeedsDir = "seeds"

// Dir returns the migrations directory for the given driver name.
func Dir(driver string) string {
	if driver == "sqlite" {
		return "sqlite"
	}
	return "postgres"
}
