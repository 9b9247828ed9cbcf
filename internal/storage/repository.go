package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"materials/internal/core"

	_ "modernc.org/sqlite"
)

// Fixed-width UTC timestamps so created_at sorts correctly as text.
const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite serialises writers
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CreateRecord inserts a validated record and returns it with ID and CreatedAt set.
func (r *SQLiteRepository) CreateRecord(ctx context.Context, rec core.MaterialRecord) (core.MaterialRecord, error) {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	m, err := r.queries.CreateMaterial(ctx, CreateMaterialParams{
		MaterialName:     rec.MaterialName,
		MaterialType:     rec.MaterialType,
		SiteLocation:     rec.SiteLocation,
		QuantityMilli:    rec.Quantity.Milli,
		Unit:             rec.Unit,
		CostPerUnitCents: rec.CostPerUnit.Cents,
		TotalCostCents:   rec.TotalCost.Cents,
		DateUsed:         rec.DateUsed.String(),
		Supplier:         rec.Supplier,
		Notes:            rec.Notes,
		CreatedAt:        createdAt.UTC().Format(timestampLayout),
	})
	if err != nil {
		return core.MaterialRecord{}, fmt.Errorf("create material: %w", err)
	}

	slog.DebugContext(ctx, "Material record saved to SQLite",
		"id", m.ID,
		"material", m.MaterialName,
		"site", m.SiteLocation,
		"total_cents", m.TotalCostCents)

	return toRecord(m)
}

// GetRecord returns core.ErrRecordNotFound when id does not exist.
func (r *SQLiteRepository) GetRecord(ctx context.Context, id int64) (core.MaterialRecord, error) {
	m, err := r.queries.GetMaterial(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.MaterialRecord{}, core.ErrRecordNotFound
	}
	if err != nil {
		return core.MaterialRecord{}, fmt.Errorf("get material %d: %w", id, err)
	}
	return toRecord(m)
}

// ListRecords returns the records matching f in the requested order.
func (r *SQLiteRepository) ListRecords(ctx context.Context, f core.RecordFilter) ([]core.MaterialRecord, error) {
	rows, err := r.queries.ListMaterials(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	return toRecords(rows)
}

// RecentRecords returns the newest records by insertion time.
func (r *SQLiteRepository) RecentRecords(ctx context.Context, limit int) ([]core.MaterialRecord, error) {
	rows, err := r.queries.GetRecentMaterials(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get recent materials: %w", err)
	}
	return toRecords(rows)
}

func (r *SQLiteRepository) Overview(ctx context.Context) (core.Overview, error) {
	row, err := r.queries.GetOverview(ctx)
	if err != nil {
		return core.Overview{}, fmt.Errorf("get overview: %w", err)
	}
	return core.Overview{
		TotalCost: core.Money{Cents: row.TotalCents},
		Entries:   int(row.Entries),
		Sites:     int(row.Sites),
	}, nil
}

// FilterOptions collects the distinct values used by dropdowns and datalists.
func (r *SQLiteRepository) FilterOptions(ctx context.Context) (core.FilterOptions, error) {
	var (
		opts core.FilterOptions
		err  error
	)
	if opts.Sites, err = r.queries.GetDistinctSites(ctx); err != nil {
		return opts, fmt.Errorf("get distinct sites: %w", err)
	}
	if opts.MaterialTypes, err = r.queries.GetDistinctMaterialTypes(ctx); err != nil {
		return opts, fmt.Errorf("get distinct material types: %w", err)
	}
	if opts.Units, err = r.queries.GetDistinctUnits(ctx); err != nil {
		return opts, fmt.Errorf("get distinct units: %w", err)
	}
	if opts.Suppliers, err = r.queries.GetDistinctSuppliers(ctx); err != nil {
		return opts, fmt.Errorf("get distinct suppliers: %w", err)
	}
	return opts, nil
}

// SyncClaimTimeout is how long a claim may be held before another worker
// may take the row over.
const SyncClaimTimeout = 10 * time.Minute

// PendingSyncIDs returns up to limit record IDs not yet mirrored. Rows with
// fewer failed attempts come first, then oldest first, so a batch of rows
// that keep failing cannot hold back newer ones. Abandoned claims count as
// pending.
func (r *SQLiteRepository) PendingSyncIDs(ctx context.Context, limit int) ([]int64, error) {
	ids, err := r.queries.GetPendingSyncMaterials(ctx, GetPendingSyncMaterialsParams{
		ClaimedBefore: time.Now().UTC().Add(-SyncClaimTimeout).Format(timestampLayout),
		Limit:         int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("get pending sync materials: %w", err)
	}
	return ids, nil
}

// ClaimSync marks the record as being mirrored by the caller. It reports
// false when the row is already synced or claimed by someone else, and
// core.ErrRecordNotFound when it does not exist.
func (r *SQLiteRepository) ClaimSync(ctx context.Context, id int64) (bool, error) {
	now := time.Now().UTC()
	n, err := r.queries.ClaimMaterialSync(ctx, ClaimMaterialSyncParams{
		ClaimedAt:     now.Format(timestampLayout),
		ID:            id,
		ClaimedBefore: now.Add(-SyncClaimTimeout).Format(timestampLayout),
	})
	if err != nil {
		return false, fmt.Errorf("claim material %d: %w", id, err)
	}
	if n == 1 {
		return true, nil
	}
	if _, err := r.queries.GetMaterial(ctx, id); errors.Is(err, sql.ErrNoRows) {
		return false, core.ErrRecordNotFound
	} else if err != nil {
		return false, fmt.Errorf("get material %d: %w", id, err)
	}
	return false, nil
}

// IsSynced reports whether the record has already been mirrored.
func (r *SQLiteRepository) IsSynced(ctx context.Context, id int64) (bool, error) {
	m, err := r.queries.GetMaterial(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, core.ErrRecordNotFound
	}
	if err != nil {
		return false, fmt.Errorf("get material %d: %w", id, err)
	}
	return m.SyncStatus == SyncSynced, nil
}

// MarkSynced records a successful mirror with the remote reference.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64, ref string) error {
	err := r.queries.MarkMaterialSynced(ctx, MarkMaterialSyncedParams{
		SyncedAt:  time.Now().UTC().Format(timestampLayout),
		SheetsRef: ref,
		ID:        id,
	})
	if err != nil {
		return fmt.Errorf("mark material synced: %w", err)
	}

	slog.InfoContext(ctx, "Material record marked as synced", "id", id, "ref", ref)
	return nil
}

// MarkSyncError flags a failed mirror attempt and releases the claim;
// synced rows are left alone.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	if err := r.queries.MarkMaterialSyncError(ctx, id); err != nil {
		return fmt.Errorf("mark material sync error: %w", err)
	}

	slog.WarnContext(ctx, "Material record marked with sync error", "id", id)
	return nil
}

func toRecords(rows []Material) ([]core.MaterialRecord, error) {
	out := make([]core.MaterialRecord, 0, len(rows))
	for _, m := range rows {
		rec, err := toRecord(m)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func toRecord(m Material) (core.MaterialRecord, error) {
	date, err := core.ParseDate(m.DateUsed)
	if err != nil {
		return core.MaterialRecord{}, fmt.Errorf("material %d: date_used %q: %w", m.ID, m.DateUsed, err)
	}
	createdAt, err := time.Parse(timestampLayout, m.CreatedAt)
	if err != nil {
		return core.MaterialRecord{}, fmt.Errorf("material %d: created_at %q: %w", m.ID, m.CreatedAt, err)
	}
	return core.MaterialRecord{
		ID:           m.ID,
		MaterialName: m.MaterialName,
		MaterialType: m.MaterialType,
		SiteLocation: m.SiteLocation,
		Quantity:     core.Quantity{Milli: m.QuantityMilli},
		Unit:         m.Unit,
		CostPerUnit:  core.Money{Cents: m.CostPerUnitCents},
		TotalCost:    core.Money{Cents: m.TotalCostCents},
		DateUsed:     date,
		Supplier:     m.Supplier,
		Notes:        m.Notes,
		CreatedAt:    createdAt,
	}, nil
}
