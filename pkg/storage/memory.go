package storage

import "sync"

// Memory is a process-local Storage.
type Memory struct {
	mu    sync.RWMutex
	data  map[string][]byte
	used  int
	quota int
}

// NewMemory creates an empty store. A quota of zero means unlimited.
func NewMemory(quota int) *Memory {
	return &Memory{data: make(map[string][]byte), quota: quota}
}

func (m *Memory) Get(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *Memory) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	oldSize := 0
	if old, ok := m.data[key]; ok {
		oldSize = entrySize(key, old)
	}
	newSize := entrySize(key, value)
	if err := checkQuota(m.quota, m.used, oldSize, newSize); err != nil {
		return err
	}
	m.data[key] = append([]byte(nil), value...)
	m.used += newSize - oldSize
	return nil
}

func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.data[key]; ok {
		m.used -= entrySize(key, old)
		delete(m.data, key)
	}
	return nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string][]byte)
	m.used = 0
	return nil
}

// Keys returns the stored keys in no particular order.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys
}

func (m *Memory) Close() error { return nil }
