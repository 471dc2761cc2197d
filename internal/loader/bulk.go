package loader

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/siglatools/sigla/internal/docstore"
)

// reconcile submits ops as one bulk upsert into collection and records the
// outcome on the run's report
func (r *run) reconcile(ctx context.Context, collection string, ops []docstore.UpsertOp) (*docstore.BulkResult, error) {
	if len(ops) == 0 {
		return docstore.NewBulkResult(), nil
	}

	result, err := r.store.BulkUpsert(ctx, collection, ops)
	if result != nil {
		r.report.add(collection, result)
	}
	if err != nil {
		return result, fmt.Errorf("load %s from sheet %q: %w", collection, r.payload.SheetTitle, err)
	}

	r.logger.Info(fmt.Sprintf("Loaded %d %s from sheet: %s", result.Upserted, collection, r.payload.SheetTitle),
		zap.String("sheet", r.payload.SheetTitle),
		zap.String("collection", collection),
		zap.Int("created", result.Upserted),
		zap.Int("matched", result.Matched),
		zap.Int("modified", result.Modified),
	)
	return result, nil
}
