package auth

import (
	"embed"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the per dialect migration files for the users
// and trainer_applications tables
func GetMigrationsFS() embed.FS {
	return migrationsFS
}
