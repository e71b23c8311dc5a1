// Package dto holds the loosely-typed wire shapes of the upstream tabular
// API. Record field values stay as a generic key/value map until they pass
// through the mapper, so untyped access never leaks past the boundary.
package dto

// Base is one workspace base as listed by the upstream metadata endpoint.
type Base struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	PermissionLevel string `json:"permissionLevel"`
}

type BasesResponse struct {
	Bases  []Base `json:"bases"`
	Offset string `json:"offset,omitempty"`
}

// Choice is one selectable value of a select-type field.
type Choice struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

type FieldOptions struct {
	Choices []Choice `json:"choices,omitempty"`
}

// Field is one column descriptor of an upstream table schema. Type is the
// upstream's own loosely-typed name and is only given meaning by the mapper.
type Field struct {
	Name    string        `json:"name"`
	Type    string        `json:"type"`
	Options *FieldOptions `json:"options,omitempty"`
}

type Table struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

type SchemaResponse struct {
	Tables []Table `json:"tables"`
}

// Record is one upstream row. Fields is deliberately generic: values are
// whatever JSON the upstream produced for each column.
type Record struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// RecordsPage is one page of the paginated records endpoint. A non-empty
// Offset is the opaque cursor for the next page; its absence terminates
// pagination.
type RecordsPage struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset,omitempty"`
}
