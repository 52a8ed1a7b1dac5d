package meta

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// ErrNotFound is returned when no document is cached under a URL.
var ErrNotFound = errors.New("document not found")

// Store provides a durable cache of archive metadata documents.
type Store interface {
	Get(ctx context.Context, url string) ([]byte, bool, error)
	Put(ctx context.Context, url string, body []byte) error
	Lookup(ctx context.Context, url string) (*DocumentEntry, error)
	List(ctx context.Context, prefix string) ([]DocumentEntry, error)
	Delete(ctx context.Context, url string) error
	PruneBefore(ctx context.Context, cutoff time.Time) (int, error)
	Count(ctx context.Context) (int, error)

	Ping() error
	Close() error
}

// BoltStore implements Store using bbolt (BoltDB).
type BoltStore struct {
	db     *bbolt.DB
	logger *zap.Logger
	now    func() time.Time
}

// Options tunes the underlying database.
type Options struct {
	NoSync bool
}

// NewBoltStore opens or creates a BoltDB document cache.
func NewBoltStore(path string, logger *zap.Logger) (*BoltStore, error) {
	return NewBoltStoreWithOptions(path, logger, Options{})
}

func NewBoltStoreWithOptions(path string, logger *zap.Logger, opts Options) (*BoltStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second, NoSync: opts.NoSync})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db: %w", err)
	}

	s := &BoltStore{db: db, logger: logger.Named("meta"), now: time.Now}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *BoltStore) initSchema() error {
	if err := s.db.Update(func(tx *bbolt.Tx) error {
		sys, err := tx.CreateBucketIfNotExists(bucketSystem)
		if err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketDocuments); err != nil {
			return err
		}
		v := sys.Get(keySchemaVersion)
		if v == nil {
			if _, err := tx.CreateBucketIfNotExists(bucketTimeIndex); err != nil {
				return err
			}
			return sys.Put(keySchemaVersion, uint64ToBytes(currentSchemaVersion))
		}
		return nil
	}); err != nil {
		return err
	}
	return s.Migrate()
}

func encodeDocument(entry *DocumentEntry) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeDocument(data []byte) (*DocumentEntry, error) {
	var entry DocumentEntry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Get returns the cached body for url.
func (s *BoltStore) Get(ctx context.Context, url string) ([]byte, bool, error) {
	entry, err := s.Lookup(ctx, url)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return entry.Body, true, nil
}

// Put stores body under url, replacing any earlier document.
func (s *BoltStore) Put(_ context.Context, url string, body []byte) error {
	entry := DocumentEntry{
		URL:         url,
		Body:        body,
		ContentType: "application/json",
		FetchedAt:   s.now(),
	}
	data, err := encodeDocument(&entry)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		docs := tx.Bucket(bucketDocuments)
		idx := tx.Bucket(bucketTimeIndex)

		if old := docs.Get([]byte(url)); old != nil {
			prev, err := decodeDocument(old)
			if err == nil {
				if err := idx.Delete(timeIndexKey(prev.FetchedAt, url)); err != nil {
					return err
				}
			}
		}

		if err := docs.Put([]byte(url), data); err != nil {
			return err
		}
		return idx.Put(timeIndexKey(entry.FetchedAt, url), nil)
	})
}

func (s *BoltStore) Lookup(_ context.Context, url string) (*DocumentEntry, error) {
	var entry *DocumentEntry
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDocuments).Get([]byte(url))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, url)
		}
		var err error
		entry, err = decodeDocument(data)
		return err
	})
	return entry, err
}

// List returns every document whose URL starts with prefix, in URL order.
func (s *BoltStore) List(_ context.Context, prefix string) ([]DocumentEntry, error) {
	var result []DocumentEntry
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketDocuments).Cursor()
		p := []byte(prefix)
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			entry, err := decodeDocument(v)
			if err != nil {
				return err
			}
			result = append(result, *entry)
		}
		return nil
	})
	return result, err
}

func (s *BoltStore) Delete(_ context.Context, url string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		docs := tx.Bucket(bucketDocuments)
		data := docs.Get([]byte(url))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, url)
		}
		entry, err := decodeDocument(data)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketTimeIndex).Delete(timeIndexKey(entry.FetchedAt, url)); err != nil {
			return err
		}
		return docs.Delete([]byte(url))
	})
}

// PruneBefore removes every document fetched before cutoff.
func (s *BoltStore) PruneBefore(_ context.Context, cutoff time.Time) (int, error) {
	var removed int
	err := s.db.Update(func(tx *bbolt.Tx) error {
		docs := tx.Bucket(bucketDocuments)
		idx := tx.Bucket(bucketTimeIndex)
		limit := int64ToBytes(cutoff.UnixNano())

		var stale [][]byte
		c := idx.Cursor()
		for k, _ := c.First(); k != nil && bytes.Compare(k[:8], limit) < 0; k, _ = c.Next() {
			stale = append(stale, append([]byte(nil), k...))
		}
		for _, k := range stale {
			if err := docs.Delete(k[8:]); err != nil {
				return err
			}
			if err := idx.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err == nil && removed > 0 {
		s.logger.Info("pruned cached documents", zap.Int("count", removed), zap.Time("cutoff", cutoff))
	}
	return removed, err
}

func (s *BoltStore) Count(_ context.Context) (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketDocuments).Stats().KeyN
		return nil
	})
	return n, err
}

func (s *BoltStore) Ping() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return nil
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
