package loader

import (
	"context"
	"fmt"

	"github.com/siglatools/sigla/internal/docstore"
	"github.com/siglatools/sigla/internal/sheet"
)

// parseInstitution splits a row into the institution's own columns and its
// child variables
func parseInstitution(title string, index int, row sheet.Row) (Institution, error) {
	inst := Institution{Fields: make(docstore.Document, len(row))}
	for k, v := range row {
		if k != fieldChilds {
			inst.Fields[k] = v
		}
	}

	raw, ok := row[fieldChilds]
	if !ok || raw == nil {
		return inst, nil
	}
	childs, ok := raw.([]interface{})
	if !ok {
		return Institution{}, &MalformedRowError{SheetTitle: title, Row: index, Field: fieldChilds, Reason: "is not a list"}
	}

	for j, c := range childs {
		obj, ok := asObject(c)
		if !ok {
			return Institution{}, &MalformedRowError{
				SheetTitle: title, Row: index, Field: fmt.Sprintf("%s[%d]", fieldChilds, j), Reason: "is not an object",
			}
		}
		child, field, ok := parseChild(obj)
		if !ok {
			return Institution{}, &MalformedRowError{
				SheetTitle: title, Row: index, Field: fmt.Sprintf("%s[%d].%s", fieldChilds, j, field), Reason: "is not an integer",
			}
		}
		inst.Children = append(inst.Children, child)
	}
	return inst, nil
}

// parseChild reads a child variable row. When ok is false, field names the
// index that could not be read.
func parseChild(obj map[string]interface{}) (v Variable, field string, ok bool) {
	variableIndex, ok := asInt(obj[fieldVariableIndex])
	if !ok {
		return Variable{}, fieldVariableIndex, false
	}
	answerIndex, ok := asInt(obj[fieldSiglaAnswerIndex])
	if !ok {
		return Variable{}, fieldSiglaAnswerIndex, false
	}

	v = Variable{
		Heading:          obj[fieldHeading],
		Name:             obj[fieldName],
		VariableIndex:    variableIndex,
		SiglaAnswerIndex: answerIndex,
		Fields:           make(docstore.Document, len(obj)),
	}
	if t, ok := obj[fieldType].(string); ok {
		v.Type = VariableType(t)
	}
	for k, val := range obj {
		v.Fields[k] = val
	}
	return v, "", true
}

// loadInstitutions writes every row as an institution, then every child row
// as a variable of that institution
func (r *run) loadInstitutions(ctx context.Context) error {
	p := r.payload
	withCountry := p.MetaData.Has(sheet.KeyCountry)

	institutions := make([]Institution, len(p.FormattedData))
	for i, row := range p.FormattedData {
		inst, err := parseInstitution(p.SheetTitle, i, row)
		if err != nil {
			return err
		}
		institutions[i] = inst
	}

	ops := make([]docstore.UpsertOp, len(institutions))
	for i, inst := range institutions {
		ops[i] = docstore.UpsertOp{Filter: inst.Key(withCountry), Set: inst.Fields}
	}
	result, err := r.reconcile(ctx, CollectionInstitutions, ops)
	if err != nil {
		return err
	}

	var variableOps []docstore.UpsertOp
	for i, inst := range institutions {
		// The bulk result only carries identities of created documents
		id, ok := result.UpsertedIDs[i]
		if !ok {
			id, err = r.institutionID(ctx, inst.Key(withCountry))
			if err != nil {
				return err
			}
		}
		for _, child := range inst.Children {
			child.Institution = id
			variableOps = append(variableOps, docstore.UpsertOp{Filter: child.Key(), Set: child.Document()})
		}
	}

	_, err = r.reconcile(ctx, CollectionVariables, variableOps)
	return err
}

// institutionID looks up an institution that a bulk write matched
func (r *run) institutionID(ctx context.Context, key docstore.Filter) (docstore.ID, error) {
	docs, err := r.store.Find(ctx, CollectionInstitutions, key)
	if err != nil {
		return "", fmt.Errorf("find institution for sheet %q: %w", r.payload.SheetTitle, err)
	}
	if len(docs) == 0 {
		return "", &DocumentNotFoundError{
			SheetTitle: r.payload.SheetTitle,
			Collection: CollectionInstitutions,
			Query:      key,
		}
	}
	return docs[0].ID(), nil
}
