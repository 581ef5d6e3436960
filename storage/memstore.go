package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"golang.org/x/exp/maps"
)

/*
MemStore is an in-memory storage provider backed by a map. It is only suitable
for tests.
*/

////////////////////////////////////////////////////////////////////////////////

// MemStore is an in-memory store.
type MemStore struct {
	data map[string][]byte
	mtx  *sync.RWMutex
}

// NewMemStore returns a new in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		data: make(map[string][]byte),
		mtx:  &sync.RWMutex{},
	}
}

// Put stores an object in the store.
func (m *MemStore) Put(_ context.Context, id string, data []byte) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.data[id] = append([]byte{}, data...)
	return nil
}

// PutIfAbsent stores an object only if it does not already exist.
func (m *MemStore) PutIfAbsent(_ context.Context, id string, data []byte) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if _, ok := m.data[id]; ok {
		return ErrObjectExists
	}
	m.data[id] = append([]byte{}, data...)
	return nil
}

// Get retrieves an object from the store.
func (m *MemStore) Get(_ context.Context, id string) ([]byte, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	data, ok := m.data[id]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return data, nil
}

// List returns the IDs of objects under the given prefix in lexicographic
// order.
func (m *MemStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	var ids []string
	for _, id := range maps.Keys(m.data) {
		if strings.HasPrefix(id, prefix) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes an object from the store.
func (m *MemStore) Delete(_ context.Context, id string) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	delete(m.data, id)
	return nil
}

func (m *MemStore) String() string {
	return "memory"
}
