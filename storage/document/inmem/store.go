package inmemdoc

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/bhoidhruv/ddquest/storage/document"
)

// Store is an in-memory document.Store for tests and local development.
type Store struct {
	mutex       sync.RWMutex
	collections map[string]map[string]document.Document
}

var _ document.Store = (*Store)(nil)

func Open() *Store {
	return &Store{collections: make(map[string]map[string]document.Document)}
}

func (s *Store) Collection(name string) document.Collection {
	return &collection{store: s, name: name}
}

// table lazily materializes a collection. Callers must hold the write lock.
func (s *Store) table(name string) map[string]document.Document {
	tbl, ok := s.collections[name]
	if !ok {
		tbl = make(map[string]document.Document)
		s.collections[name] = tbl
	}
	return tbl
}

// lookup never mutates; a nil map is fine for reads. Callers hold at least
// the read lock.
func (s *Store) lookup(name string) map[string]document.Document {
	return s.collections[name]
}

type collection struct {
	store *Store
	name  string
}

var _ document.Collection = (*collection)(nil)

// copyDoc guards callers against aliasing the stored map.
func copyDoc(doc document.Document) document.Document {
	cp := make(document.Document, len(doc))
	for k, v := range doc {
		cp[k] = v
	}
	return cp
}

func (c *collection) Get(_ context.Context, id string) (document.Document, error) {
	c.store.mutex.RLock()
	defer c.store.mutex.RUnlock()

	if doc, ok := c.store.lookup(c.name)[id]; ok {
		return copyDoc(doc), nil
	}
	return nil, document.ErrNotFound
}

func (c *collection) Exists(_ context.Context, id string) (bool, error) {
	c.store.mutex.RLock()
	defer c.store.mutex.RUnlock()

	_, ok := c.store.lookup(c.name)[id]
	return ok, nil
}

func (c *collection) Create(_ context.Context, id string, fields document.Document) error {
	c.store.mutex.Lock()
	defer c.store.mutex.Unlock()

	tbl := c.store.table(c.name)
	if _, ok := tbl[id]; ok {
		return document.ErrExists
	}
	tbl[id] = copyDoc(fields)
	return nil
}

func (c *collection) Set(_ context.Context, id string, fields document.Document) error {
	c.store.mutex.Lock()
	defer c.store.mutex.Unlock()

	c.store.table(c.name)[id] = copyDoc(fields)
	return nil
}

func (c *collection) Update(_ context.Context, id string, partial document.Document) error {
	c.store.mutex.Lock()
	defer c.store.mutex.Unlock()

	tbl := c.store.table(c.name)
	doc, ok := tbl[id]
	if !ok {
		return document.ErrNotFound
	}
	for k, v := range partial {
		doc[k] = v
	}
	return nil
}

func (c *collection) Add(_ context.Context, fields document.Document) (string, error) {
	c.store.mutex.Lock()
	defer c.store.mutex.Unlock()

	id := uuid.New().String()
	c.store.table(c.name)[id] = copyDoc(fields)
	return id, nil
}

func (c *collection) Delete(_ context.Context, id string) error {
	c.store.mutex.Lock()
	defer c.store.mutex.Unlock()

	tbl := c.store.table(c.name)
	if _, ok := tbl[id]; !ok {
		return document.ErrNotFound
	}
	delete(tbl, id)
	return nil
}

func (c *collection) Query(_ context.Context, filters ...document.Filter) ([]document.Keyed, error) {
	c.store.mutex.RLock()
	defer c.store.mutex.RUnlock()

	var out []document.Keyed
	for id, doc := range c.store.lookup(c.name) {
		if matches(doc, filters) {
			out = append(out, document.Keyed{ID: id, Doc: copyDoc(doc)})
		}
	}
	return out, nil
}

func matches(doc document.Document, filters []document.Filter) bool {
	for _, f := range filters {
		if doc[f.Field] != f.Value {
			return false
		}
	}
	return true
}
