package meta

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

func TestMigrateV1toV2(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v1.db")

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}

	fetched := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)

	// v1 schema: documents only, no time index
	err = db.Update(func(tx *bbolt.Tx) error {
		sys, err := tx.CreateBucketIfNotExists(bucketSystem)
		if err != nil {
			return err
		}
		if err := sys.Put(keySchemaVersion, uint64ToBytes(1)); err != nil {
			return err
		}
		docs, err := tx.CreateBucketIfNotExists(bucketDocuments)
		if err != nil {
			return err
		}
		data, err := encodeDocument(&DocumentEntry{URL: "u1", Body: []byte("{}"), FetchedAt: fetched})
		if err != nil {
			return err
		}
		return docs.Put([]byte("u1"), data)
	})
	if err != nil {
		t.Fatal(err)
	}
	db.Close()

	store, err := NewBoltStore(path, zap.NewNop())
	if err != nil {
		t.Fatalf("NewBoltStore after migration: %v", err)
	}
	defer store.Close()

	var version uint64
	store.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketSystem).Get(keySchemaVersion)
		if v != nil {
			version = bytesToUint64(v)
		}
		return nil
	})
	if version != 2 {
		t.Errorf("schema version = %d, want 2", version)
	}

	store.db.View(func(tx *bbolt.Tx) error {
		idx := tx.Bucket(bucketTimeIndex)
		if idx == nil {
			t.Fatal("time index not found after migration")
		}
		if idx.Get(timeIndexKey(fetched, "u1")) == nil {
			t.Error("existing document was not indexed")
		}
		return nil
	})

	n, err := store.PruneBefore(context.Background(), fetched.Add(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected migrated document to be prunable, pruned %d", n)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	store := newTestStore(t)

	if err := store.Migrate(); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	var version uint64
	store.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketSystem).Get(keySchemaVersion)
		if v != nil {
			version = bytesToUint64(v)
		}
		return nil
	})
	if version != 2 {
		t.Errorf("schema version = %d after idempotent migrate, want 2", version)
	}
}
