// Package storagetest provides an in-memory object store for exercising the Cloud backend.
package storagetest

import (
	"context"
	"slices"
	"strings"
	"sync"

	"tickerlake/apperror"
)

// MemStore is a storage.ObjectStore held in memory. Setting PutErr or GetErr makes the matching
// calls fail without touching the stored objects.
type MemStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string

	PutErr error
	GetErr error
	Puts   int
}

func NewMemStore() *MemStore {
	return &MemStore{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (m *MemStore) Put(ctx context.Context, name string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Puts++
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.PutErr != nil {
		return m.PutErr
	}
	m.objects[name] = slices.Clone(data)
	m.types[name] = contentType
	return nil
}

func (m *MemStore) Get(ctx context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetErr != nil {
		return nil, m.GetErr
	}
	data, ok := m.objects[name]
	if !ok {
		return nil, apperror.Newf(apperror.DataUnavailable, "no object %s", name)
	}
	return slices.Clone(data), nil
}

func (m *MemStore) Exists(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[name]
	return ok, nil
}

func (m *MemStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var names []string
	for name := range m.objects {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

// ContentType reports the content type name was uploaded with.
func (m *MemStore) ContentType(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.types[name]
}

// Len is the number of stored objects.
func (m *MemStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
