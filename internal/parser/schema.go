package parser

import (
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

// SchemaValidator checks parsed records against a JSON Schema. Violations
// are advisory: the record is still rendered.
type SchemaValidator struct {
	schema *gojsonschema.Schema
}

// LoadSchemaValidator compiles the schema file at path.
func LoadSchemaValidator(path string) (*SchemaValidator, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(err, "resolve schema path")
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewReferenceLoader("file://" + filepath.ToSlash(abs)))
	if err != nil {
		return nil, errors.Wrapf(err, "load schema %s", path)
	}
	return &SchemaValidator{schema: schema}, nil
}

// NewSchemaValidator compiles an in-memory schema document.
func NewSchemaValidator(schemaJSON []byte) (*SchemaValidator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	if err != nil {
		return nil, errors.Wrap(err, "compile schema")
	}
	return &SchemaValidator{schema: schema}, nil
}

// Validate returns one message per violation. A nil validator accepts everything.
func (v *SchemaValidator) Validate(data map[string]any) ([]string, error) {
	if v == nil || v.schema == nil {
		return nil, nil
	}
	res, err := v.schema.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return nil, errors.Wrap(err, "validate parsed data")
	}
	if res.Valid() {
		return nil, nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, "schema: "+e.String())
	}
	return msgs, nil
}
