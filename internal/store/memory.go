package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gmsas95/dosewise/internal/medication"
)

// Memory holds the encoded user record in process memory. Values go through
// JSON so callers see the same round trip as the disk backends.
type Memory struct {
	mu   sync.Mutex
	data []byte
	fail error
}

func NewMemory() *Memory {
	return &Memory{}
}

// FailWrites makes every later save and delete return err; nil clears it
func (m *Memory) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

func (m *Memory) GetUser(ctx context.Context) (*medication.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data == nil {
		return nil, nil
	}
	var user medication.User
	if err := json.Unmarshal(m.data, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (m *Memory) SaveUser(ctx context.Context, user *medication.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail != nil {
		return m.fail
	}
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	m.data = data
	return nil
}

func (m *Memory) DeleteUser(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail != nil {
		return m.fail
	}
	m.data = nil
	return nil
}

func (m *Memory) Close() error { return nil }
