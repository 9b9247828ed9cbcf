package storage

import (
	"context"
	"database/sql"
)

const materialColumns = `id, material_name, material_type, site_location, quantity_milli, unit,
    cost_per_unit_cents, total_cost_cents, date_used, supplier, notes, created_at,
    sync_status, synced_at, sheets_ref`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMaterial(row rowScanner) (Material, error) {
	var i Material
	err := row.Scan(
		&i.ID,
		&i.MaterialName,
		&i.MaterialType,
		&i.SiteLocation,
		&i.QuantityMilli,
		&i.Unit,
		&i.CostPerUnitCents,
		&i.TotalCostCents,
		&i.DateUsed,
		&i.Supplier,
		&i.Notes,
		&i.CreatedAt,
		&i.SyncStatus,
		&i.SyncedAt,
		&i.SheetsRef,
	)
	return i, err
}

func scanMaterials(rows *sql.Rows) ([]Material, error) {
	defer rows.Close()
	var items []Material
	for rows.Next() {
		i, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var items []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createMaterial = `-- name: CreateMaterial :one
INSERT INTO materials (
    material_name, material_type, site_location, quantity_milli, unit,
    cost_per_unit_cents, total_cost_cents, date_used, supplier, notes, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + materialColumns

type CreateMaterialParams struct {
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
}

func (q *Queries) CreateMaterial(ctx context.Context, arg CreateMaterialParams) (Material, error) {
	row := q.db.QueryRowContext(ctx, createMaterial,
		arg.MaterialName,
		arg.MaterialType,
		arg.SiteLocation,
		arg.QuantityMilli,
		arg.Unit,
		arg.CostPerUnitCents,
		arg.TotalCostCents,
		arg.DateUsed,
		arg.Supplier,
		arg.Notes,
		arg.CreatedAt,
	)
	return scanMaterial(row)
}

const getMaterial = `-- name: GetMaterial :one
SELECT ` + materialColumns + `
FROM materials
WHERE id = ?`

func (q *Queries) GetMaterial(ctx context.Context, id int64) (Material, error) {
	row := q.db.QueryRowContext(ctx, getMaterial, id)
	return scanMaterial(row)
}

const getRecentMaterials = `-- name: GetRecentMaterials :many
SELECT ` + materialColumns + `
FROM materials
ORDER BY created_at DESC, id DESC
LIMIT ?`

func (q *Queries) GetRecentMaterials(ctx context.Context, limit int64) ([]Material, error) {
	rows, err := q.db.QueryContext(ctx, getRecentMaterials, limit)
	if err != nil {
		return nil, err
	}
	return scanMaterials(rows)
}

const getOverview = `-- name: GetOverview :one
SELECT
    COALESCE(SUM(total_cost_cents), 0) AS total_cents,
    COUNT(*) AS entries,
    COUNT(DISTINCT site_location) AS sites
FROM materials`

type GetOverviewRow struct {
	TotalCents int64
	Entries    int64
	Sites      int64
}

func (q *Queries) GetOverview(ctx context.Context) (GetOverviewRow, error) {
	row := q.db.QueryRowContext(ctx, getOverview)
	var i GetOverviewRow
	err := row.Scan(&i.TotalCents, &i.Entries, &i.Sites)
	return i, err
}

const getDistinctSites = `-- name: GetDistinctSites :many
SELECT DISTINCT site_location FROM materials
WHERE site_location != ''
ORDER BY site_location COLLATE NOCASE`

func (q *Queries) GetDistinctSites(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, getDistinctSites)
	if err != nil {
		return nil, err
	}
	return scanStrings(rows)
}

const getDistinctMaterialTypes = `-- name: GetDistinctMaterialTypes :many
SELECT DISTINCT material_type FROM materials
WHERE material_type != ''
ORDER BY material_type COLLATE NOCASE`

func (q *Queries) GetDistinctMaterialTypes(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, getDistinctMaterialTypes)
	if err != nil {
		return nil, err
	}
	return scanStrings(rows)
}

const getDistinctUnits = `-- name: GetDistinctUnits :many
SELECT DISTINCT unit FROM materials
WHERE unit != ''
ORDER BY unit COLLATE NOCASE`

func (q *Queries) GetDistinctUnits(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, getDistinctUnits)
	if err != nil {
		return nil, err
	}
	return scanStrings(rows)
}

const getDistinctSuppliers = `-- name: GetDistinctSuppliers :many
SELECT DISTINCT supplier FROM materials
WHERE supplier != ''
ORDER BY supplier COLLATE NOCASE`

func (q *Queries) GetDistinctSuppliers(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, getDistinctSuppliers)
	if err != nil {
		return nil, err
	}
	return scanStrings(rows)
}

const getPendingSyncMaterials = `-- name: GetPendingSyncMaterials :many
SELECT id FROM materials
WHERE sync_status IN ('pending', 'error')
   OR (sync_status = 'syncing' AND sync_claimed_at < ?)
ORDER BY sync_attempts ASC, id ASC
LIMIT ?`

type GetPendingSyncMaterialsParams struct {
	ClaimedBefore string
	Limit         int64
}

func (q *Queries) GetPendingSyncMaterials(ctx context.Context, arg GetPendingSyncMaterialsParams) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, getPendingSyncMaterials, arg.ClaimedBefore, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const claimMaterialSync = `-- name: ClaimMaterialSync :execrows
UPDATE materials
SET sync_status = 'syncing', sync_claimed_at = ?
WHERE id = ?
  AND (sync_status IN ('pending', 'error')
       OR (sync_status = 'syncing' AND sync_claimed_at < ?))`

type ClaimMaterialSyncParams struct {
	ClaimedAt     string
	ID            int64
	ClaimedBefore string
}

func (q *Queries) ClaimMaterialSync(ctx context.Context, arg ClaimMaterialSyncParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, claimMaterialSync, arg.ClaimedAt, arg.ID, arg.ClaimedBefore)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const markMaterialSynced = `-- name: MarkMaterialSynced :exec
UPDATE materials
SET sync_status = 'synced', synced_at = ?, sheets_ref = ?
WHERE id = ?`

type MarkMaterialSyncedParams struct {
	SyncedAt  string
	SheetsRef string
	ID        int64
}

func (q *Queries) MarkMaterialSynced(ctx context.Context, arg MarkMaterialSyncedParams) error {
	_, err := q.db.ExecContext(ctx, markMaterialSynced, arg.SyncedAt, arg.SheetsRef, arg.ID)
	return err
}

const markMaterialSyncError = `-- name: MarkMaterialSyncError :exec
UPDATE materials
SET sync_status = 'error', sync_attempts = sync_attempts + 1
WHERE id = ? AND sync_status != 'synced'`

func (q *Queries) MarkMaterialSyncError(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, markMaterialSyncError, id)
	return err
}
