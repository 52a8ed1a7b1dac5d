package meta

import (
	"encoding/binary"
	"time"
)

// Bucket names in BoltDB.
var (
	bucketSystem     = []byte("system")
	bucketDocuments  = []byte("documents")
	keySchemaVersion = []byte("schema_version")

	// Schema v2: fetch-time index for pruning
	bucketTimeIndex = []byte("time_index")
)

const currentSchemaVersion = 2

// DocumentEntry is one cached archive response, keyed by its URL.
type DocumentEntry struct {
	URL         string
	Body        []byte
	ContentType string
	FetchedAt   time.Time
}

func uint64ToBytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func bytesToUint64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

func int64ToBytes(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

// timeIndexKey orders entries by fetch time, then URL.
func timeIndexKey(t time.Time, url string) []byte {
	k := int64ToBytes(t.UnixNano())
	return append(k, url...)
}
