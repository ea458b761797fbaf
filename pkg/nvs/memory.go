package nvs

import "sync"

// Memory is an in-RAM partition for targets without a filesystem.
// It follows the same error contract as Partition.
type Memory struct {
	mu          sync.Mutex
	formatted   bool
	version     int
	corrupt     bool
	initialized bool
	erases      int
}

// NewMemory returns an unformatted in-memory partition.
func NewMemory() *Memory {
	return &Memory{}
}

// Init formats the partition on first use and validates it afterwards.
func (m *Memory) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.corrupt:
		return ErrNoFreePages
	case !m.formatted:
		m.formatted = true
		m.version = FormatVersion
	case m.version != FormatVersion:
		return ErrNewVersionFound
	}
	m.initialized = true
	return nil
}

// Erase wipes the partition.
func (m *Memory) Erase() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.formatted = false
	m.corrupt = false
	m.version = 0
	m.initialized = false
	m.erases++
	return nil
}

// Corrupt makes the next Init fail with ErrNoFreePages until erased.
func (m *Memory) Corrupt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.corrupt = true
}

// SetVersion marks the partition as formatted with the given version.
func (m *Memory) SetVersion(v int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.formatted = true
	m.version = v
}

// Initialized reports whether the last Init succeeded.
func (m *Memory) Initialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialized
}

// Erases returns how many times the partition was erased.
func (m *Memory) Erases() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.erases
}
