// Package models holds the GORM rows behind the vendor registry, the
// commission ledger and payouts. Domain types never carry GORM tags; the
// repositories convert with the To*/From* mappers next to each row.
//
// Tags stay portable between PostgreSQL and SQLite so repository tests can run
// on an in-memory database. PostgreSQL-only constraints, such as the partial
// unique index on open payout periods, live in the SQL migrations.
package models
