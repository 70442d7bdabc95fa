package artifact

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Memory is an in-process Store, used by tests.
type Memory struct {
	mu    sync.RWMutex
	files map[Kind]map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{files: make(map[Kind]map[string][]byte)}
}

func (m *Memory) List(_ context.Context, kind Kind) ([]Artifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]Artifact, 0, len(m.files[kind]))
	for name := range m.files[kind] {
		date, ok := kind.ParseName(name)
		if !ok {
			continue
		}
		list = append(list, Artifact{Kind: kind, Date: date, Name: name})
	}
	sortByDate(list)
	return list, nil
}

func (m *Memory) Read(_ context.Context, a Artifact) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.files[a.Kind][a.Name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", a.Name, ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (m *Memory) Write(_ context.Context, kind Kind, date time.Time, data []byte) (Artifact, error) {
	date = day(date)
	a := Artifact{Kind: kind, Date: date, Name: kind.FileName(date)}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files[kind] == nil {
		m.files[kind] = make(map[string][]byte)
	}
	m.files[kind][a.Name] = append([]byte(nil), data...)
	return a, nil
}

// Put stores data under an arbitrary name, bypassing the naming scheme.
func (m *Memory) Put(kind Kind, name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files[kind] == nil {
		m.files[kind] = make(map[string][]byte)
	}
	m.files[kind][name] = append([]byte(nil), data...)
}
