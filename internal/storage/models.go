package storage

import (
	"database/sql"
)

// Sync states of a materials row.
const (
	SyncPending = "pending"
	SyncClaimed = "syncing"
	SyncSynced  = "synced"
	SyncError   = "error"
)

type Material struct {
	ID               int64
	MaterialName     string
	MaterialType     string
	SiteLocation     string
	QuantityMilli    int64
	Unit             string
	CostPerUnitCents int64
	TotalCostCents   int64
	DateUsed         string
	Supplier         string
	Notes            string
	CreatedAt        string
	SyncStatus       string
	SyncedAt         sql.NullString
	SheetsRef        string
}
