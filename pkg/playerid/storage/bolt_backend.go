package storage

import (
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/nmichlo/playerid-go/pkg/playerid/model"
)

// bucketName is the single bucket used for every record kind; records are
// keyed by their logical path (e.g. "gallery", "anchor:/videos/a.mp4").
var bucketName = []byte("playerid")

// BoltBackend is an optional single-file alternative to the directory of
// JSON documents SaveJSON/LoadJSON produce, for embedders (e.g. an NVR
// service like the example pack's SentryShot) that prefer one persistent
// store file over many. It is not the format spec.md §6.1 describes —
// JSON-on-disk remains the default and the one other tools can read —
// but it implements the same atomicity guarantee (bbolt commits are
// transactional) and the same Load/Save contract.
type BoltBackend struct {
	db *bolt.DB
}

// OpenBoltBackend opens (creating if absent) a bbolt-backed store at path.
func OpenBoltBackend(path string) (*BoltBackend, error) {
	db, err := bolt.Open(path, 0o644, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open bolt db: %v", model.ErrWriteFailed, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: create bucket: %v", model.ErrWriteFailed, err)
	}
	return &BoltBackend{db: db}, nil
}

// Close closes the underlying bbolt database.
func (b *BoltBackend) Close() error {
	return b.db.Close()
}

// Save writes raw bytes under key inside a single bbolt transaction.
func (b *BoltBackend) Save(key string, data []byte) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		return bucket.Put([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrWriteFailed, err)
	}
	return nil
}

// Load reads raw bytes stored under key. Returns model.ErrNotFound if the
// key is absent.
func (b *BoltBackend) Load(key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		v := bucket.Get([]byte(key))
		if v == nil {
			return model.ErrNotFound
		}
		out = append(out, v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
