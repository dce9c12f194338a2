package history

import (
	"context"
	"slices"
	"sync"

	"github.com/germanamz/assistant/pkg/chats/message"
)

// MemoryBackend keeps logs in process memory. The zero value is ready to use.
type MemoryBackend struct {
	mu   sync.RWMutex
	logs map[string][]message.Message
}

// NewMemory creates an empty MemoryBackend.
func NewMemory() *MemoryBackend {
	return &MemoryBackend{}
}

// Append implements Backend.
func (b *MemoryBackend) Append(ctx context.Context, key string, msg message.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.logs == nil {
		b.logs = make(map[string][]message.Message)
	}
	b.logs[key] = append(b.logs[key], msg)
	return nil
}

// Read implements Backend. The returned slice is a copy.
func (b *MemoryBackend) Read(ctx context.Context, key string) ([]message.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	return slices.Clone(b.logs[key]), nil
}
