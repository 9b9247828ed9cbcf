package sheets

import (
	"context"

	"materials/internal/core"
)

// Ports for outbound adapters.
type (
	// RecordAppender mirrors a stored record as one spreadsheet row.
	RecordAppender interface {
		AppendRecord(ctx context.Context, rec core.MaterialRecord) (rowRef string, err error)
	}
)
