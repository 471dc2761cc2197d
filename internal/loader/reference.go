package loader

import (
	"context"
	"fmt"
	"strings"

	"github.com/siglatools/sigla/internal/docstore"
	"github.com/siglatools/sigla/internal/sheet"
)

// institutionNames splits the ;-separated name list declared by a composite sheet
func institutionNames(p *sheet.Payload) ([]string, error) {
	raw := p.MetaData.String(sheet.KeyName)
	if strings.TrimSpace(raw) == "" {
		return nil, &MalformedRowError{SheetTitle: p.SheetTitle, Row: -1, Field: sheet.KeyName, Reason: "is empty"}
	}
	parts := strings.Split(raw, ";")
	names := make([]string, len(parts))
	for i, part := range parts {
		names[i] = strings.TrimSpace(part)
	}
	return names, nil
}

// resolveVariableReference finds the composite variables a composite sheet
// belongs to: one per institution named in meta_data.name
func resolveVariableReference(ctx context.Context, store docstore.Store, p *sheet.Payload) (Reference, error) {
	names, err := institutionNames(p)
	if err != nil {
		return nil, err
	}

	institutionQuery := docstore.Filter{
		fieldName:     docstore.InStrings(names),
		fieldCountry:  p.MetaData.Value(sheet.KeyCountry),
		fieldCategory: p.MetaData.Value(sheet.KeyCategory),
	}
	institutions, err := store.Find(ctx, CollectionInstitutions, institutionQuery)
	if err != nil {
		return nil, fmt.Errorf("resolve institutions for sheet %q: %w", p.SheetTitle, err)
	}
	institutionIDs := make([]docstore.ID, len(institutions))
	for i, doc := range institutions {
		institutionIDs[i] = doc.ID()
	}

	variableQuery := docstore.Filter{
		fieldInstitution: docstore.InIDs(institutionIDs),
		fieldHeading:     p.MetaData.Value(sheet.KeyVariableHeading),
		fieldName:        p.MetaData.Value(sheet.KeyVariableName),
		fieldType:        string(TypeComposite),
	}
	variables, err := store.Find(ctx, CollectionVariables, variableQuery)
	if err != nil {
		return nil, fmt.Errorf("resolve variables for sheet %q: %w", p.SheetTitle, err)
	}

	if len(variables) != len(names) {
		return nil, &DocumentNotFoundError{
			SheetTitle: p.SheetTitle,
			Collection: CollectionVariables,
			Query:      variableQuery,
		}
	}

	ids := make([]docstore.ID, len(variables))
	for i, doc := range variables {
		ids[i] = doc.ID()
	}

	if p.DataType() == sheet.LegalFramework {
		return VariableList{IDs: ids}, nil
	}
	if len(ids) > 1 {
		return nil, fmt.Errorf("%w: sheet %q names %d institutions for data type %q",
			ErrAmbiguousReference, p.SheetTitle, len(ids), p.DataType())
	}
	return SingleVariable{ID: ids[0]}, nil
}
