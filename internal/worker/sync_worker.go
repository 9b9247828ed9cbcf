package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"materials/internal/amqp"
	"materials/internal/core"
	"materials/internal/sheets"
)

// SyncStore is the storage the worker reads records and sync state from.
type SyncStore interface {
	GetRecord(ctx context.Context, id int64) (core.MaterialRecord, error)
	ClaimSync(ctx context.Context, id int64) (bool, error)
	PendingSyncIDs(ctx context.Context, limit int) ([]int64, error)
	MarkSynced(ctx context.Context, id int64, ref string) error
	MarkSyncError(ctx context.Context, id int64) error
}

// SyncWorker mirrors stored records to the spreadsheet.
type SyncWorker struct {
	store     SyncStore
	sheets    sheets.RecordAppender
	batchSize int
}

func NewSyncWorker(store SyncStore, appender sheets.RecordAppender, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 25
	}
	return &SyncWorker{
		store:     store,
		sheets:    appender,
		batchSize: batchSize,
	}
}

// HandleSyncMessage mirrors the record named by msg.
// Append failures are recorded on the row and left for the sweep, so only
// storage failures cause the delivery to be requeued.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.RecordSyncMessage) error {
	slog.DebugContext(ctx, "Processing sync message", "id", msg.ID, "message_id", msg.MessageID)

	_, err := w.syncRecord(ctx, msg.ID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, core.ErrRecordNotFound):
		slog.WarnContext(ctx, "Sync message for unknown record, dropping", "id", msg.ID)
		return nil
	case errors.Is(err, errAppend):
		return nil
	default:
		return err
	}
}

var errAppend = errors.New("append to sheet")

// syncRecord appends the record if this worker wins the claim on it.
// It reports whether a row was appended.
func (w *SyncWorker) syncRecord(ctx context.Context, id int64) (bool, error) {
	claimed, err := w.store.ClaimSync(ctx, id)
	if err != nil {
		return false, err
	}
	if !claimed {
		slog.DebugContext(ctx, "Record already synced or in progress, skipping", "id", id)
		return false, nil
	}

	rec, err := w.store.GetRecord(ctx, id)
	if err != nil {
		if markErr := w.store.MarkSyncError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to release sync claim", "id", id, "error", markErr)
		}
		return false, fmt.Errorf("get record: %w", err)
	}

	ref, err := w.sheets.AppendRecord(ctx, rec)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to append record to sheet", "id", id, "error", err)
		if markErr := w.store.MarkSyncError(ctx, id); markErr != nil {
			return false, fmt.Errorf("mark sync error: %w", markErr)
		}
		return false, fmt.Errorf("%w: %v", errAppend, err)
	}

	if err := w.store.MarkSynced(ctx, id, ref); err != nil {
		return true, fmt.Errorf("mark synced: %w", err)
	}
	return true, nil
}

// ProcessPending mirrors up to one batch of unsynced records.
// It recovers records whose messages were lost or whose append failed.
func (w *SyncWorker) ProcessPending(ctx context.Context) (synced, failed int, err error) {
	ids, err := w.store.PendingSyncIDs(ctx, w.batchSize)
	if err != nil {
		return 0, 0, fmt.Errorf("get pending records: %w", err)
	}
	if len(ids) == 0 {
		return 0, 0, nil
	}

	slog.InfoContext(ctx, "Processing pending records", "count", len(ids))

	for _, id := range ids {
		if ctx.Err() != nil {
			return synced, failed, ctx.Err()
		}
		appended, err := w.syncRecord(ctx, id)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to sync pending record", "id", id, "error", err)
			failed++
			continue
		}
		if appended {
			synced++
		}
	}

	slog.InfoContext(ctx, "Pending sync pass completed", "synced", synced, "failed", failed)
	return synced, failed, nil
}
