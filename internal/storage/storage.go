// Package storage defines the Storage interface, the contract any
// document store backend must satisfy to work with this application.
//
// Handlers only depend on this interface, so the backend is chosen in
// one place (package backend) and tests can run against any
// implementation.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aanand-mishra/alunos-api/internal/types"
)

var (
	// ErrNotFound is returned when no document exists under a key.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidKey is returned for an empty document key.
	ErrInvalidKey = errors.New("invalid document key")

	// ErrInvalidField is returned for a field name some backend cannot
	// store literally. See CheckFields.
	ErrInvalidField = errors.New("invalid field name")
)

// Storage is a document store addressing documents by collection name
// and key. Implementations must be safe for concurrent use.
type Storage interface {
	// Get returns the document stored under key, or ErrNotFound.
	Get(ctx context.Context, collection, key string) (types.Document, error)

	// Set creates the document or replaces it entirely.
	// Field names must pass CheckFields.
	Set(ctx context.Context, collection, key string, doc types.Document) error

	// Update merges fields into an existing document. Fields not named
	// in fields are left as stored. Returns ErrNotFound if the document
	// does not exist. Field names must pass CheckFields.
	Update(ctx context.Context, collection, key string, fields types.Document) error

	// Delete removes the document. Deleting a missing key is not an error.
	Delete(ctx context.Context, collection, key string) error

	// List returns every document in the collection, in no particular
	// order. The result is never nil.
	List(ctx context.Context, collection string) ([]types.Document, error)

	// Close releases the underlying client or file.
	Close() error
}

// CheckKey validates a document key before it reaches a backend.
func CheckKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	return nil
}

// CheckFields rejects field names that MongoDB would read as a nested
// path ("a.b"), an operator ("$set") or its own key ("_id"), and the
// empty name. Every backend applies the same rule so a document means
// the same thing whichever store holds it.
func CheckFields(doc types.Document) error {
	for name := range doc {
		if name == "" || name == "_id" || strings.Contains(name, ".") || strings.HasPrefix(name, "$") {
			return fmt.Errorf("%w: %q", ErrInvalidField, name)
		}
	}
	return nil
}
