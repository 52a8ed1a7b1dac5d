package meta

import (
	"fmt"

	"go.etcd.io/bbolt"
)

// Migrate runs any pending schema migrations.
func (s *BoltStore) Migrate() error {
	var version uint64
	s.db.View(func(tx *bbolt.Tx) error {
		sys := tx.Bucket(bucketSystem)
		if sys == nil {
			return nil
		}
		v := sys.Get(keySchemaVersion)
		if v != nil {
			version = bytesToUint64(v)
		}
		return nil
	})

	if version < 2 {
		if err := s.migrateV1toV2(); err != nil {
			return fmt.Errorf("migration v1→v2: %w", err)
		}
	}

	return nil
}

// migrateV1toV2 builds the fetch-time index from the existing documents.
func (s *BoltStore) migrateV1toV2() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		idx, err := tx.CreateBucketIfNotExists(bucketTimeIndex)
		if err != nil {
			return err
		}

		docs := tx.Bucket(bucketDocuments)
		if docs != nil {
			err := docs.ForEach(func(k, v []byte) error {
				entry, err := decodeDocument(v)
				if err != nil {
					s.logger.Sugar().Warnf("skipping undecodable document %q during migration: %v", k, err)
					return nil
				}
				return idx.Put(timeIndexKey(entry.FetchedAt, entry.URL), nil)
			})
			if err != nil {
				return err
			}
		}

		sys := tx.Bucket(bucketSystem)
		if sys == nil {
			return fmt.Errorf("system bucket not found")
		}
		return sys.Put(keySchemaVersion, uint64ToBytes(2))
	})
}
