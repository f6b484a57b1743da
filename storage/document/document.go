// Package document defines a schemaless document store over named
// collections. A document is a flat set of fields keyed by a string id;
// partial updates merge only the supplied fields.
package document

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	ErrNotFound = errors.New("document not found")
	ErrExists   = errors.New("document already exists")
)

// Well-known collection names. Other tooling authorizes by these names;
// they must not change.
const (
	Identities = "identities"
	Users      = "users"
	Admins     = "admins"
	Materials  = "materials"
	Scores     = "scores"
	Quizzes    = "quizzes"
)

type (
	Document map[string]interface{}

	// Keyed pairs a document with its id for query results.
	Keyed struct {
		ID  string
		Doc Document
	}

	// Filter is an equality match on a top-level document field.
	Filter struct {
		Field string
		Value interface{}
	}

	Collection interface {
		Get(ctx context.Context, id string) (Document, error)
		Exists(ctx context.Context, id string) (bool, error)
		// Create fails with ErrExists when id is already present;
		// it never silently overwrites.
		Create(ctx context.Context, id string, fields Document) error
		// Set is a full-document upsert.
		Set(ctx context.Context, id string, fields Document) error
		// Update merges only the supplied fields into an existing document.
		Update(ctx context.Context, id string, partial Document) error
		// Add stores fields under a generated id and returns it.
		Add(ctx context.Context, fields Document) (string, error)
		Delete(ctx context.Context, id string) error
		// Query applies AND over the given equality filters.
		Query(ctx context.Context, filters ...Filter) ([]Keyed, error)
	}

	Store interface {
		Collection(name string) Collection
	}
)

// GetString returns the named field as a string, or "" when absent or not a string.
func (d Document) GetString(field string) string {
	if v, ok := d[field]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetInt returns the named field as an int, tolerating the numeric types a
// JSON round-trip may produce.
func (d Document) GetInt(field string) int {
	switch v := d[field].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	}
	return 0
}

// Decode unmarshals the document into out via its json tags.
func (d Document) Decode(out interface{}) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// Encode marshals in (via its json tags) into a Document.
func Encode(in interface{}) (Document, error) {
	raw, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
