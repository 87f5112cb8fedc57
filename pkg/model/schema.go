// pkg/model/schema.go
package model

// SchemaField describes one column in a table schema file, as produced by
// the schema inference tool and consumed by the table creation tool.
type SchemaField struct {
	FieldName      string   `json:"field_name"`
	ExampleValues  []string `json:"example_values"`
	HasNulls       bool     `json:"has_nulls"`
	NullPercentage float64  `json:"null_percentage"`
	SuggestedType  string   `json:"suggested_type"`
	// Default is nil, a string ("" or the "-inf" float sentinel) or an int64.
	Default any `json:"default"`
}

// TableSchema is the on-disk schema file format: the physical sort order
// plus per-column descriptors. OrderBy always lists the participant id
// column first, followed by the first detected temporal column, if any.
type TableSchema struct {
	OrderBy []string      `json:"orderby"`
	Fields  []SchemaField `json:"fields"`
}

// Field returns the descriptor for a field name, or nil if absent.
func (s *TableSchema) Field(name string) *SchemaField {
	for i := range s.Fields {
		if s.Fields[i].FieldName == name {
			return &s.Fields[i]
		}
	}
	return nil
}
