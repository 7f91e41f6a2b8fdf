// Package types holds the shared data structures used across the
// application. Keeping them in one place prevents import cycles:
// handlers, storage and utils can all import types without depending
// on each other.
package types

import (
	"errors"
	"fmt"
)

// Document is a schemaless record as kept by the document store.
// Values are whatever the JSON decoder produced (string, float64, bool,
// nil, []any, map[string]any).
type Document map[string]any

// Clone returns a shallow copy of d.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Merge copies every field of fields into d, overwriting existing keys
// and leaving the rest untouched.
func (d Document) Merge(fields Document) {
	for k, v := range fields {
		d[k] = v
	}
}

// Field names of a stored student document.
const (
	FieldID     = "id"
	FieldName   = "name"
	FieldStatus = "status"
)

var (
	// ErrIncomplete means the create body lacks the "id" or "name" key.
	// It is the only create failure answered with 400.
	ErrIncomplete = errors.New("id and name are required")

	// ErrMissingStatus means the create body lacks the "status" key.
	ErrMissingStatus = errors.New("status field is missing")

	// ErrNotObject means the create body is not a JSON object (null).
	ErrNotObject = errors.New("body is not a JSON object")

	// ErrIDNotString means "id" is present but cannot be a document key.
	ErrIDNotString = errors.New("id must be a string")
)

// NewStudent builds the stored document from a create body.
//
// Only the presence of each key is checked, never its value: "name" and
// "status" may be null, numbers, anything, and are stored as sent. Keys
// other than id, name and status are dropped. The checks run in this
// order:
//
//	"id" or "name" absent   → ErrIncomplete
//	"status" absent         → ErrMissingStatus
//	"id" not a string       → ErrIDNotString
//
// The returned key is the document id.
func NewStudent(body Document) (key string, doc Document, err error) {
	if body == nil {
		return "", nil, ErrNotObject
	}

	_, hasID := body[FieldID]
	_, hasName := body[FieldName]
	if !hasID || !hasName {
		return "", nil, ErrIncomplete
	}

	status, hasStatus := body[FieldStatus]
	if !hasStatus {
		return "", nil, ErrMissingStatus
	}

	key, ok := body[FieldID].(string)
	if !ok {
		return "", nil, fmt.Errorf("%w: got %T", ErrIDNotString, body[FieldID])
	}

	return key, Document{
		FieldID:     key,
		FieldName:   body[FieldName],
		FieldStatus: status,
	}, nil
}
