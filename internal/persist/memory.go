package persist

import (
	"context"
	"sync"
)

// Memory keeps the snapshot in process memory. Used by tests and ephemeral
// environments where restart warm-up is not wanted.
type Memory struct {
	mu      sync.Mutex
	payload []byte
	saveErr error
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory { return &Memory{} }

// FailSavesWith makes every subsequent Save return err (nil restores normal
// behavior). Test hook for the swallow-on-failure path.
func (m *Memory) FailSavesWith(err error) {
	m.mu.Lock()
	m.saveErr = err
	m.mu.Unlock()
}

func (m *Memory) Load(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.payload == nil {
		return nil, ErrNoSnapshot
	}
	return append([]byte(nil), m.payload...), nil
}

func (m *Memory) Save(ctx context.Context, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.payload = append([]byte(nil), payload...)
	return nil
}
