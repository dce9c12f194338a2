package history

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/germanamz/assistant/pkg/chats/message"
)

// FileBackend stores each log as a JSON-lines file in a directory. The
// directory is created on first write.
type FileBackend struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

// NewFile creates a FileBackend rooted at dir.
func NewFile(dir string) *FileBackend {
	return &FileBackend{dir: dir, locks: make(map[string]*sync.RWMutex)}
}

func (b *FileBackend) lock(key string) *sync.RWMutex {
	b.mu.Lock()
	defer b.mu.Unlock()

	l, ok := b.locks[key]
	if !ok {
		l = &sync.RWMutex{}
		b.locks[key] = l
	}
	return l
}

func (b *FileBackend) path(key string) string {
	return filepath.Join(b.dir, url.PathEscape(key)+".jsonl")
}

// Append implements Backend.
func (b *FileBackend) Append(ctx context.Context, key string, msg message.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	line, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	l := b.lock(key)
	l.Lock()
	defer l.Unlock()

	if err := os.MkdirAll(b.dir, 0o750); err != nil {
		return err
	}

	f, err := os.OpenFile(b.path(key), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}

	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Read implements Backend.
func (b *FileBackend) Read(ctx context.Context, key string) ([]message.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l := b.lock(key)
	l.RLock()
	defer l.RUnlock()

	f, err := os.Open(b.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var msgs []message.Message
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64<<10), 16<<20)
	for n := 1; sc.Scan(); n++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var m message.Message
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", b.path(key), n, err)
		}
		msgs = append(msgs, m)
	}

	return msgs, sc.Err()
}
