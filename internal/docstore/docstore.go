package docstore

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned when a document does not exist at the given location.
var ErrNotFound = errors.New("document not found")

// Document is a single stored document with its collection-local ID.
type Document struct {
	ID   string
	Data map[string]interface{}
}

// Filter is an equality filter applied to a collection query.
type Filter struct {
	Field string
	Value interface{}
}

// Subscription delivers the full current snapshot of the matching document
// set on every change. The first snapshot arrives shortly after opening.
type Subscription struct {
	Updates <-chan []Document
	Errors  <-chan error
	stop    func()
}

// Stop tears down the subscription. Safe to call more than once.
func (s *Subscription) Stop() {
	if s.stop != nil {
		s.stop()
	}
}

// Batch accumulates writes that are committed atomically.
type Batch interface {
	Set(collection, id string, data map[string]interface{})
	Delete(collection, id string)
	Commit(ctx context.Context) error
}

// Store is the document database the engine runs against. Collection paths
// may be nested ("users/abc/goals"); IDs are collection-local.
type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Set(ctx context.Context, collection, id string, data map[string]interface{}) error
	Update(ctx context.Context, collection, id string, data map[string]interface{}) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	Subscribe(ctx context.Context, collection string, filters ...Filter) (*Subscription, error)
	Batch() Batch
	Close() error
}

// ToMap converts an entity into the document representation via its JSON
// tags. Fields marked omitempty are dropped, so persisted documents only
// contain defined keys.
func ToMap(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// ToValue converts a single field value (e.g. a task slice) into its
// document representation, mirroring ToMap.
func ToValue(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DataTo decodes a document into the given entity pointer.
func DataTo(doc Document, v interface{}) error {
	raw, err := json.Marshal(doc.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
