package loader

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/siglatools/sigla/internal/docstore"
	"github.com/siglatools/sigla/internal/sheet"
)

// answerGroups collects the rows of a sheet by their first answer. Each group
// keeps the remaining answers of its rows in row order.
type answerGroups struct {
	headings []string
	answers  map[string][]interface{}
}

func groupAnswers(p *sheet.Payload) (*answerGroups, error) {
	g := &answerGroups{answers: make(map[string][]interface{})}

	for i, row := range p.FormattedData {
		answers, ok := row[fieldSiglaAnswers].([]interface{})
		if !ok || len(answers) == 0 {
			return nil, &MalformedRowError{SheetTitle: p.SheetTitle, Row: i, Field: fieldSiglaAnswers, Reason: "is not a non-empty list"}
		}
		first, ok := asObject(answers[0])
		if !ok {
			return nil, &MalformedRowError{SheetTitle: p.SheetTitle, Row: i, Field: fieldSiglaAnswers + "[0]", Reason: "is not an object"}
		}
		heading, ok := first[fieldAnswer].(string)
		if !ok {
			return nil, &MalformedRowError{SheetTitle: p.SheetTitle, Row: i, Field: fieldSiglaAnswers + "[0].answer", Reason: "is not a string"}
		}

		rest := make([]interface{}, len(answers)-1)
		copy(rest, answers[1:])
		if _, seen := g.answers[heading]; !seen {
			g.headings = append(g.headings, heading)
		}
		g.answers[heading] = append(g.answers[heading], rest)
	}

	sort.Strings(g.headings)
	return g, nil
}

// loadAggregateInstitution stores the sheet's subject as an institution and
// one aggregate variable per answer heading. Headings are indexed in sorted
// order so the result does not depend on row order.
func (r *run) loadAggregateInstitution(ctx context.Context) error {
	p := r.payload
	groups, err := groupAnswers(p)
	if err != nil {
		return err
	}

	keys := docstore.Document{
		fieldName:     p.MetaData.Value(sheet.KeyVariableHeading),
		fieldCountry:  p.MetaData.Value(sheet.KeyCountry),
		fieldCategory: p.MetaData.Value(sheet.KeyCategory),
	}
	institution, err := findOne(ctx, r.store, CollectionInstitutions, keys)
	if err != nil {
		return fmt.Errorf("sheet %q: %w", p.SheetTitle, err)
	}
	r.logger.Info(fmt.Sprintf("Loaded 1 %s from sheet: %s", CollectionInstitutions, p.SheetTitle),
		zap.String("sheet", p.SheetTitle),
		zap.String("collection", CollectionInstitutions),
		zap.String("institution", institution.ID().String()),
	)

	ops := make([]docstore.UpsertOp, len(groups.headings))
	for i, heading := range groups.headings {
		v := Variable{
			Institution:      institution.ID(),
			Heading:          heading,
			Name:             heading,
			Type:             TypeAggregate,
			VariableIndex:    i,
			SiglaAnswerIndex: 0,
			SiglaAnswer:      groups.answers[heading],
		}
		ops[i] = docstore.UpsertOp{Filter: v.Key(), Set: v.Document()}
	}
	_, err = r.reconcile(ctx, CollectionVariables, ops)
	return err
}
