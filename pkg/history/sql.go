package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/germanamz/assistant/pkg/chats/message"
	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQL drivers understood by OpenSQL.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// historyRow is one stored message. Sequence orders the rows of a log and is
// unique per key.
type historyRow struct {
	ID        uint           `gorm:"primaryKey"`
	ChatKey   string         `gorm:"size:512;not null;uniqueIndex:idx_history_key_seq,priority:1"`
	Sequence  int            `gorm:"not null;uniqueIndex:idx_history_key_seq,priority:2"`
	Message   datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time
}

func (historyRow) TableName() string { return "history_messages" }

// SQLBackend stores logs as rows in a SQL database through gorm.
type SQLBackend struct {
	db *gorm.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// OpenSQL connects to driver at dsn and migrates the schema. SQLite
// connections are limited to one so writers serialize.
func OpenSQL(driver, dsn string) (*SQLBackend, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite, "":
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("history: unknown sql driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Discard})
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", driver, err)
	}

	if driver != DriverPostgres {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return NewSQL(db)
}

// NewSQL wraps an open gorm handle and migrates the schema.
func NewSQL(db *gorm.DB) (*SQLBackend, error) {
	if err := db.AutoMigrate(&historyRow{}); err != nil {
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return &SQLBackend{db: db, locks: make(map[string]*sync.Mutex)}, nil
}

func (b *SQLBackend) lock(key string) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()

	l, ok := b.locks[key]
	if !ok {
		l = &sync.Mutex{}
		b.locks[key] = l
	}
	return l
}

// Append implements Backend.
func (b *SQLBackend) Append(ctx context.Context, key string, msg message.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	l := b.lock(key)
	l.Lock()
	defer l.Unlock()

	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last int
		err := tx.Model(&historyRow{}).
			Where("chat_key = ?", key).
			Select("COALESCE(MAX(sequence), 0)").
			Scan(&last).Error
		if err != nil {
			return err
		}

		return tx.Create(&historyRow{
			ChatKey:  key,
			Sequence: last + 1,
			Message:  datatypes.JSON(data),
		}).Error
	})
}

// Read implements Backend.
func (b *SQLBackend) Read(ctx context.Context, key string) ([]message.Message, error) {
	var rows []historyRow
	err := b.db.WithContext(ctx).
		Where("chat_key = ?", key).
		Order("sequence ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	msgs := make([]message.Message, 0, len(rows))
	for _, r := range rows {
		var m message.Message
		if err := json.Unmarshal(r.Message, &m); err != nil {
			return nil, fmt.Errorf("%s seq %d: %w", key, r.Sequence, err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// Close releases the database handle.
func (b *SQLBackend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
