package sessionstore

import "sync"

var _ BatchSlots = (*MemorySlots)(nil)

// MemorySlots keeps slots in process memory.
type MemorySlots struct {
	values map[string]string
	lock   sync.RWMutex
}

func NewMemorySlots() *MemorySlots {
	return &MemorySlots{
		values: make(map[string]string),
	}
}

func (m *MemorySlots) Get(key string) (string, bool, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemorySlots) GetAll(keys []string) (map[string]string, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := m.values[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *MemorySlots) Put(key, value string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemorySlots) Delete(key string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.values, key)
	return nil
}

func (m *MemorySlots) Apply(puts map[string]string, deletes []string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	for k, v := range puts {
		m.values[k] = v
	}
	for _, k := range deletes {
		delete(m.values, k)
	}
	return nil
}

// Len returns the number of stored slots.
func (m *MemorySlots) Len() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.values)
}
