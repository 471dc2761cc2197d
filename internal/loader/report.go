package loader

import (
	"sort"

	"github.com/siglatools/sigla/internal/docstore"
)

// Counts summarizes the bulk writes into one collection
type Counts struct {
	Created  int `json:"created"`
	Matched  int `json:"matched"`
	Modified int `json:"modified"`
}

// Report describes what one Load wrote. Only bulk writes are counted; the
// find-or-create of an aggregate institution is logged but not counted.
type Report struct {
	SheetTitle  string             `json:"sheet_title"`
	Format      string             `json:"format"`
	Collections map[string]*Counts `json:"collections"`
}

func newReport(title, format string) *Report {
	return &Report{
		SheetTitle:  title,
		Format:      format,
		Collections: make(map[string]*Counts),
	}
}

func (r *Report) add(collection string, result *docstore.BulkResult) {
	c, ok := r.Collections[collection]
	if !ok {
		c = &Counts{}
		r.Collections[collection] = c
	}
	c.Created += result.Upserted
	c.Matched += result.Matched
	c.Modified += result.Modified
}

// Counts returns the totals for one collection
func (r *Report) Counts(collection string) Counts {
	if c, ok := r.Collections[collection]; ok {
		return *c
	}
	return Counts{}
}

// Created returns the number of documents created across all collections
func (r *Report) Created() int {
	total := 0
	for _, c := range r.Collections {
		total += c.Created
	}
	return total
}

// CollectionNames returns the touched collections in sorted order
func (r *Report) CollectionNames() []string {
	names := make([]string, 0, len(r.Collections))
	for name := range r.Collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
