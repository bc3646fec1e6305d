package arrow_client

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/23skdu/longbow-qfix/internal/quantize"
)

// MockPublisher keeps published sets in memory, keyed by descriptor path.
type MockPublisher struct {
	mu        sync.RWMutex
	connected bool
	data      map[string]*quantize.QuantizedTensorSet

	// FailWith, when set, is returned by Publish.
	FailWith error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{data: make(map[string]*quantize.QuantizedTensorSet)}
}

func (m *MockPublisher) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

func (m *MockPublisher) Publish(ctx context.Context, path []string, set *quantize.QuantizedTensorSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return fmt.Errorf("client not connected")
	}
	if m.FailWith != nil {
		return m.FailWith
	}
	m.data[strings.Join(path, "/")] = set
	return nil
}

// Get returns the set published under path.
func (m *MockPublisher) Get(path ...string) (*quantize.QuantizedTensorSet, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set, ok := m.data[strings.Join(path, "/")]
	return set, ok
}
