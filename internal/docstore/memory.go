package docstore

import (
	"context"
	"encoding/json"
	"reflect"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store used when no Firebase project is
// configured (dev mode) and in tests. It reproduces the subscribe-for-changes
// contract: every mutation re-delivers the full matching snapshot.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]map[string]map[string]interface{} // collection -> id -> doc
	subs   map[int]*memorySub
	nextID int
	closed bool
}

type memorySub struct {
	collection string
	filters    []Filter
	updates    chan []Document
	errs       chan error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]map[string]map[string]interface{}),
		subs: make(map[int]*memorySub),
	}
}

func (m *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.data[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return Document{ID: id, Data: copyDoc(doc)}, nil
}

func (m *MemoryStore) Set(ctx context.Context, collection, id string, data map[string]interface{}) error {
	m.mu.Lock()
	if m.data[collection] == nil {
		m.data[collection] = make(map[string]map[string]interface{})
	}
	m.data[collection][id] = copyDoc(data)
	m.mu.Unlock()
	m.notify(collection)
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, collection, id string, data map[string]interface{}) error {
	m.mu.Lock()
	doc, ok := m.data[collection][id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	for k, v := range copyDoc(data) {
		doc[k] = v
	}
	m.mu.Unlock()
	m.notify(collection)
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	delete(m.data[collection], id)
	m.mu.Unlock()
	m.notify(collection)
	return nil
}

func (m *MemoryStore) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot(collection, filters), nil
}

func (m *MemoryStore) Subscribe(ctx context.Context, collection string, filters ...Filter) (*Subscription, error) {
	sub := &memorySub{
		collection: collection,
		filters:    filters,
		updates:    make(chan []Document, 32),
		errs:       make(chan error, 1),
	}

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = sub
	// Initial snapshot, delivered before any mutation can race ahead.
	sub.updates <- m.snapshot(collection, filters)
	m.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}

	return &Subscription{Updates: sub.updates, Errors: sub.errs, stop: stop}, nil
}

func (m *MemoryStore) Batch() Batch {
	return &memoryBatch{store: m}
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.subs = make(map[int]*memorySub)
	m.mu.Unlock()
	return nil
}

// notify pushes a fresh snapshot to every subscription on the collection.
// Slow consumers drop intermediate snapshots rather than block writers.
func (m *MemoryStore) notify(collection string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, sub := range m.subs {
		if sub.collection != collection {
			continue
		}
		snap := m.snapshot(collection, sub.filters)
		select {
		case sub.updates <- snap:
		default:
		}
	}
}

// snapshot must be called with at least a read lock held.
func (m *MemoryStore) snapshot(collection string, filters []Filter) []Document {
	docs := make([]Document, 0)
	for id, doc := range m.data[collection] {
		if !matches(doc, filters) {
			continue
		}
		docs = append(docs, Document{ID: id, Data: copyDoc(doc)})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs
}

func matches(doc map[string]interface{}, filters []Filter) bool {
	for _, f := range filters {
		if !reflect.DeepEqual(doc[f.Field], f.Value) {
			return false
		}
	}
	return true
}

func copyDoc(doc map[string]interface{}) map[string]interface{} {
	raw, err := json.Marshal(doc)
	if err != nil {
		return map[string]interface{}{}
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]interface{}{}
	}
	return out
}

type memoryOp struct {
	collection string
	id         string
	data       map[string]interface{} // nil means delete
}

type memoryBatch struct {
	store *MemoryStore
	ops   []memoryOp
}

func (b *memoryBatch) Set(collection, id string, data map[string]interface{}) {
	b.ops = append(b.ops, memoryOp{collection: collection, id: id, data: copyDoc(data)})
}

func (b *memoryBatch) Delete(collection, id string) {
	b.ops = append(b.ops, memoryOp{collection: collection, id: id})
}

func (b *memoryBatch) Commit(ctx context.Context) error {
	touched := make(map[string]bool)
	b.store.mu.Lock()
	for _, op := range b.ops {
		if op.data == nil {
			delete(b.store.data[op.collection], op.id)
		} else {
			if b.store.data[op.collection] == nil {
				b.store.data[op.collection] = make(map[string]map[string]interface{})
			}
			b.store.data[op.collection][op.id] = op.data
		}
		touched[op.collection] = true
	}
	b.store.mu.Unlock()
	for collection := range touched {
		b.store.notify(collection)
	}
	return nil
}
