package loader

import (
	"github.com/siglatools/sigla/internal/docstore"
	"github.com/siglatools/sigla/internal/sheet"
)

// Fixed collection names
const (
	CollectionInstitutions = "institutions"
	CollectionVariables    = "variables"
)

// Document field names shared by the strategies
const (
	fieldName             = "name"
	fieldCountry          = "country"
	fieldCategory         = "category"
	fieldChilds           = "childs"
	fieldInstitution      = "institution"
	fieldHeading          = "heading"
	fieldType             = "type"
	fieldVariableIndex    = "variable_index"
	fieldSiglaAnswerIndex = "sigla_answer_index"
	fieldSiglaAnswer      = "sigla_answer"
	fieldSiglaAnswers     = "sigla_answers"
	fieldAnswer           = "answer"
	fieldIndex            = "index"
	fieldVariable         = "variable"
	fieldVariables        = "variables"
)

// VariableType classifies variable documents
type VariableType string

const (
	TypeStandard  VariableType = "standard"
	TypeComposite VariableType = "composite"
	TypeAggregate VariableType = "aggregate"
)

// Institution is one row of an institution sheet
type Institution struct {
	// Fields holds every column of the row except childs
	Fields   docstore.Document
	Children []Variable
}

// Key returns the natural key of the institution. Country joins the key only
// when the sheet declares one.
func (i Institution) Key(withCountry bool) docstore.Filter {
	key := docstore.Filter{
		fieldName:     i.Fields[fieldName],
		fieldCategory: i.Fields[fieldCategory],
	}
	if withCountry {
		key[fieldCountry] = i.Fields[fieldCountry]
	}
	return key
}

// Variable is a variable document owned by an institution
type Variable struct {
	Institution      docstore.ID
	Heading          interface{}
	Name             interface{}
	Type             VariableType
	VariableIndex    int
	SiglaAnswerIndex int
	// SiglaAnswer holds the grouped answers of an aggregate variable
	SiglaAnswer []interface{}
	// Fields holds the remaining columns of a child row
	Fields docstore.Document
}

// Key returns the natural key of the variable
func (v Variable) Key() docstore.Filter {
	return docstore.Filter{
		fieldInstitution:      v.Institution,
		fieldHeading:          v.Heading,
		fieldName:             v.Name,
		fieldVariableIndex:    v.VariableIndex,
		fieldSiglaAnswerIndex: v.SiglaAnswerIndex,
	}
}

// Document returns the fields written for the variable
func (v Variable) Document() docstore.Document {
	doc := make(docstore.Document, len(v.Fields)+7)
	for k, val := range v.Fields {
		doc[k] = val
	}
	doc[fieldInstitution] = v.Institution
	doc[fieldHeading] = v.Heading
	doc[fieldName] = v.Name
	doc[fieldVariableIndex] = v.VariableIndex
	doc[fieldSiglaAnswerIndex] = v.SiglaAnswerIndex
	if v.Type != "" {
		doc[fieldType] = string(v.Type)
	}
	if v.SiglaAnswer != nil {
		doc[fieldSiglaAnswer] = v.SiglaAnswer
	}
	return doc
}

// Reference links composite rows to the variable documents they belong to
type Reference interface {
	// Field is the document field holding the reference
	Field() string
	// Value is the stored form of the reference
	Value() interface{}

	reference()
}

// SingleVariable references one composite variable
type SingleVariable struct {
	ID docstore.ID
}

func (r SingleVariable) Field() string      { return fieldVariable }
func (r SingleVariable) Value() interface{} { return r.ID }
func (SingleVariable) reference()           {}

// VariableList references every variable of a legal framework sheet
type VariableList struct {
	IDs []docstore.ID
}

func (r VariableList) Field() string { return fieldVariables }

func (r VariableList) Value() interface{} {
	out := make([]interface{}, len(r.IDs))
	for i, id := range r.IDs {
		out[i] = id
	}
	return out
}

func (VariableList) reference() {}

// CompositeRow is one row of a composite variable table
type CompositeRow struct {
	Reference Reference
	Index     interface{}
	Fields    sheet.Row
}

// Key returns the natural key of the row
func (c CompositeRow) Key() docstore.Filter {
	return docstore.Filter{
		c.Reference.Field(): c.Reference.Value(),
		fieldIndex:          c.Index,
	}
}

// Document returns the reference merged with the row's columns
func (c CompositeRow) Document() docstore.Document {
	doc := make(docstore.Document, len(c.Fields)+1)
	doc[c.Reference.Field()] = c.Reference.Value()
	for k, v := range c.Fields {
		doc[k] = v
	}
	return doc
}
