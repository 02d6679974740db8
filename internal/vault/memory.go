package vault

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"

	"mbhd-go/internal/mbhd"
)

// MemoryTarget is an in-memory implementation of mbhd.Target, useful for
// tests. It is safe for concurrent use.
type MemoryTarget struct {
	name    string
	objects map[string][]byte
	mu      sync.RWMutex
}

// NewMemoryTarget creates a new in-memory target with the given name.
func NewMemoryTarget(name string) *MemoryTarget {
	return &MemoryTarget{
		name:    name,
		objects: make(map[string][]byte),
	}
}

func (m *MemoryTarget) Name() string { return m.name }

func (m *MemoryTarget) Location(name string) string {
	return "memory://" + m.name + "/" + name
}

func (m *MemoryTarget) Put(name string, r io.Reader, size int64) error {
	if err := checkName(name); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name] = data
	return nil
}

func (m *MemoryTarget) Get(name string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[name]
	if !ok {
		return fmt.Errorf("backup not found: %s: %w", name, os.ErrNotExist)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}
	return nil
}

func (m *MemoryTarget) List() ([]*mbhd.TargetEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*mbhd.TargetEntry, 0, len(m.objects))
	for name, data := range m.objects {
		out = append(out, &mbhd.TargetEntry{Name: name, Size: int64(len(data))})
	}
	return out, nil
}

func (m *MemoryTarget) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.objects[name]
	if !ok {
		return fmt.Errorf("backup not found: %s: %w", name, os.ErrNotExist)
	}
	clear(data)
	delete(m.objects, name)
	return nil
}

// ValidateSetup always succeeds for an in-memory target.
func (m *MemoryTarget) ValidateSetup() error {
	return nil
}

var _ mbhd.Target = (*MemoryTarget)(nil)
