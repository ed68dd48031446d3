// Package docstore is the contract this module has with its hosted document
// backend: path-addressed documents, ordered collection listings, and live
// subscriptions that re-emit the full ordered snapshot on every change.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrNotFound is returned when no document exists at a path.
	ErrNotFound = errors.New("document not found")
	// ErrExists is returned by Create when the path is already occupied.
	ErrExists = errors.New("document already exists")
	// ErrClosed is returned once the store has been shut down.
	ErrClosed = errors.New("store closed")
)

// Document is one record of a collection snapshot, already positioned
// according to the subscription's ordering field.
type Document struct {
	ID   string
	Data json.RawMessage
}

// Decode unmarshals the document body into out and is tolerant of bodies
// that carry their own id field.
func (d Document) Decode(out any) error {
	return json.Unmarshal(d.Data, out)
}

// Snapshot is a complete replacement of a collection's state. Consumers
// must swap their local copy wholesale, never patch it.
type Snapshot struct {
	Collection string
	Docs       []Document
}

// Subscription is a live feed of snapshots for one collection. Releasing
// it is the subscriber's job; nothing is garbage collected automatically.
type Subscription interface {
	// Snapshots yields a fresh full snapshot after every change, starting
	// with the collection's current state. The channel closes after
	// Unsubscribe or when the transport dies; the store does not retry.
	Snapshots() <-chan Snapshot
	Unsubscribe()
}

// MutateFunc transforms a document body inside an atomic read-modify-write.
// Returning the input unchanged is allowed and still writes.
type MutateFunc func(data json.RawMessage) (json.RawMessage, error)

// Store is the document backend surface the sync core runs on. Drivers:
// memory (tests, single node) and postgres.
type Store interface {
	// Get loads the document at path into out. ErrNotFound if absent.
	Get(ctx context.Context, path string, out any) error
	// Set writes doc at path, creating or replacing it.
	Set(ctx context.Context, path string, doc any) error
	// Create writes doc at path only if the path is free; ErrExists
	// otherwise. This is the primitive uniqueness constraints hang off.
	Create(ctx context.Context, path string, doc any) error
	// Add appends doc to a collection under a backend-assigned id and
	// returns that id.
	Add(ctx context.Context, collection string, doc any) (string, error)
	// Update merges top-level fields into the document at path.
	// ErrNotFound if absent.
	Update(ctx context.Context, path string, fields map[string]any) error
	// Mutate runs fn over the current body of path atomically with
	// respect to other Mutate calls on the same path.
	Mutate(ctx context.Context, path string, fn MutateFunc) error
	// Delete removes the document at path. Deleting an absent document
	// is not an error.
	Delete(ctx context.Context, path string) error
	// List returns the collection's documents ordered ascending by the
	// orderBy field (normalized as a timestamp).
	List(ctx context.Context, collection, orderBy string) ([]Document, error)
	// Subscribe opens a live snapshot feed for the collection.
	Subscribe(ctx context.Context, collection, orderBy string) (Subscription, error)
}
