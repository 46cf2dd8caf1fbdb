// Package migrations embeds the Synexa schema into the binary and registers
// it with the database package on import.
package migrations

import (
	"embed"

	"github.com/undarez/synexa-sub001/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.RegisterMigrations(migrationsFS, ".")
}
