package store

import (
	"context"
	"sync"

	"github.com/0dayfall/webfinger"
)

type MemoryStore struct {
	mu      sync.RWMutex
	records map[webfinger.Resource]webfinger.Response
	aliases map[webfinger.Resource]webfinger.Resource
}

func NewMemoryStore(records ...webfinger.Response) *MemoryStore {
	m := &MemoryStore{
		records: make(map[webfinger.Resource]webfinger.Response),
		aliases: make(map[webfinger.Resource]webfinger.Resource),
	}
	for _, r := range records {
		m.add(r)
	}
	return m
}

func (m *MemoryStore) add(resp webfinger.Response) {
	subject := resp.Subject()
	if old, ok := m.records[subject]; ok {
		for _, alias := range old.Aliases() {
			delete(m.aliases, alias)
		}
	}
	m.records[subject] = resp
	for _, alias := range resp.Aliases() {
		m.aliases[alias] = subject
	}
}

func (m *MemoryStore) Put(_ context.Context, resp webfinger.Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.add(resp)
	return nil
}

func (m *MemoryStore) Lookup(_ context.Context, resource webfinger.Resource) (webfinger.Response, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if resp, ok := m.records[resource]; ok {
		return resp, nil
	}
	if subject, ok := m.aliases[resource]; ok {
		return m.records[subject], nil
	}
	return webfinger.Response{}, notFound(resource)
}

// Len returns the number of records.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *MemoryStore) Ping(context.Context) error {
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
