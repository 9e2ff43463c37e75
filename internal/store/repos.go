package store

import (
	"database/sql"

	"fleetd/internal/catalog"
)

// Repositories returns SQLite repositories for every catalog.
func Repositories(db *sql.DB) catalog.Repositories {
	return catalog.Repositories{
		KernelInputs: NewEntityRepo[*catalog.KernelInput](db, "kernel-input"),
		Groups:       NewEntityRepo[*catalog.Group](db, "group"),
		Works:        NewEntityRepo[*catalog.Work](db, "work"),
		Coins:        NewEntityRepo[*catalog.Coin](db, "coin"),
	}
}
