package loader

import (
	"context"
	"fmt"

	"github.com/siglatools/sigla/internal/docstore"
)

// findOne returns the document of collection identified by keys, creating it
// when it does not exist yet
func findOne(ctx context.Context, store docstore.Store, collection string, keys docstore.Document) (docstore.Document, error) {
	doc, err := store.FindOneAndUpsert(ctx, collection, keys)
	if err != nil {
		return nil, fmt.Errorf("find or create %s %s: %w", collection, docstore.Filter(keys), err)
	}
	return doc, nil
}
