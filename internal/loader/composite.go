package loader

import (
	"context"

	"github.com/siglatools/sigla/internal/docstore"
	"github.com/siglatools/sigla/internal/sheet"
)

// loadCompositeVariable writes every row of a composite sheet into the
// collection named by its data type, keyed by the variable reference and the
// row index
func (r *run) loadCompositeVariable(ctx context.Context) error {
	p := r.payload
	dataType := p.DataType()
	if err := docstore.ValidateCollection(dataType); err != nil {
		return &MalformedRowError{SheetTitle: p.SheetTitle, Row: -1, Field: sheet.KeyDataType, Reason: "is not a valid collection name"}
	}
	for i, row := range p.FormattedData {
		if row[fieldIndex] == nil {
			return &MalformedRowError{SheetTitle: p.SheetTitle, Row: i, Field: fieldIndex, Reason: "is missing"}
		}
	}

	ref, err := resolveVariableReference(ctx, r.store, p)
	if err != nil {
		return err
	}

	ops := make([]docstore.UpsertOp, len(p.FormattedData))
	for i, row := range p.FormattedData {
		c := CompositeRow{Reference: ref, Index: row[fieldIndex], Fields: row}
		ops[i] = docstore.UpsertOp{Filter: c.Key(), Set: c.Document()}
	}
	_, err = r.reconcile(ctx, dataType, ops)
	return err
}
