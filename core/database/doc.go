// Package database opens the local store database through GORM.
//
// SQLite is the default (an on-device replica); MySQL is supported for shared
// deployments of the control API. Connect configures the pool for the driver and
// verifies the connection with a ping.
//
// # Schema Inspection
//
// GetTableColumns and MissingColumns let the store verify, after migration,
// that every table carries the synchronization columns the engine relies on.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
//
//	missing, err := database.MissingColumns(db, "cards", []string{"local_id", "status"})
package database
