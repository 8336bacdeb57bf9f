package kvstore

import (
	"context"
	"encoding/json"
	"sync"

	"stockwatch/pkg/models"
)

// Memory keeps documents in process. Nothing survives a restart; it backs
// `--store memory` dry runs and tests.
type Memory struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key string, out any) (bool, error) {
	m.mu.RLock()
	raw, ok := m.docs[key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, &models.PersistenceError{Op: "decode", Key: key, Err: err}
	}
	return true, nil
}

func (m *Memory) Put(_ context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return &models.PersistenceError{Op: "encode", Key: key, Err: err}
	}
	m.mu.Lock()
	m.docs[key] = b
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.docs, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
