// Package database owns the service's sqlite file.
//
// One file holds three things:
//
//	auth_events        # audit log of facade calls (database/audit)
//	provider_sessions  # sealed identity provider session (tokenstore)
//	sessions           # scs key/value rows backing demo mode storage
//
// The first two are gorm models migrated on open. The sessions table is created
// with raw SQL because scs/sqlite3store reads it through database/sql directly:
//
//	db, err := database.NewDatabase("./nutrinani.db", logger)
//	sqlDB, err := db.SQL()
//	store := storage.NewSCSStore(sqlite3store.New(sqlDB))
package database
