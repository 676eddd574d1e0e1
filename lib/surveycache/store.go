// Package surveycache persists datasource metadata and data between runs
// in a badger database. Entries expire after a fixed time to live.
package surveycache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"datasmoothie-client/lib/surveymeta"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("surveycache")

var ErrNotFound = errors.New("survey cache entry not found")

type Entry struct {
	Meta      surveymeta.Meta `json:"meta"`
	Data      string          `json:"data"`
	FetchedAt time.Time       `json:"fetched_at"`
}

type Store struct {
	db  *badger.DB
	ttl time.Duration
}

// Open opens the cache in dir. An empty dir keeps the cache in memory.
func Open(dir string, ttl time.Duration) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open survey cache: %w", err)
	}
	return &Store{db: db, ttl: ttl}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func Key(baseUrl string, pk int64) string {
	return fmt.Sprintf("datasource:%s:%d", baseUrl, pk)
}

func (s *Store) Get(ctx context.Context, key string) (Entry, error) {
	_, span := tracer.Start(ctx, "cache:get")
	defer span.End()
	span.SetAttributes(attribute.String("custom.cache_key", key))

	var entry Entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read cache entry")
		return Entry{}, err
	}
	return entry, nil
}

func (s *Store) Set(ctx context.Context, key string, entry Entry) error {
	_, span := tracer.Start(ctx, "cache:set")
	defer span.End()
	span.SetAttributes(attribute.String("custom.cache_key", key))

	serialized, err := json.Marshal(entry)
	if err != nil {
		span.SetStatus(codes.Error, "failed to serialize cache entry")
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), serialized)
		if s.ttl > 0 {
			e = e.WithTTL(s.ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write cache entry")
		return err
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, span := tracer.Start(ctx, "cache:delete")
	defer span.End()

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}
