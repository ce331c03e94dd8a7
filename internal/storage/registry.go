package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	verrors "github.com/illarion/dirvault/internal/errors"
)

// Bucket names
var (
	MetaBucket   = []byte("meta")   // schema version, timestamps
	VaultsBucket = []byte("vaults") // canonical path -> JSON Record
)

// Meta keys
var (
	MetaVersion  = []byte("version")
	MetaCreated  = []byte("created")
	MetaModified = []byte("modified")
)

const schemaVersion = "1"

// Registry provides BBolt-based storage for vault records
type Registry struct {
	db *bolt.DB
}

// Open opens or creates a registry database and makes sure its buckets exist
func Open(path string) (*Registry, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}

	r := &Registry{db: db}
	if err := r.Initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// Close closes the database
func (r *Registry) Close() error {
	return r.db.Close()
}

// Path returns the database file path
func (r *Registry) Path() string {
	return r.db.Path()
}

// Initialize creates the bucket structure if it is missing
func (r *Registry) Initialize() error {
	return r.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{MetaBucket, VaultsBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		meta := tx.Bucket(MetaBucket)
		if v := meta.Get(MetaVersion); v != nil {
			if string(v) != schemaVersion {
				return fmt.Errorf("unsupported registry version %s", v)
			}
			return nil
		}

		if err := meta.Put(MetaVersion, []byte(schemaVersion)); err != nil {
			return err
		}
		created, _ := time.Now().MarshalBinary()
		if err := meta.Put(MetaCreated, created); err != nil {
			return err
		}
		return meta.Put(MetaModified, created)
	})
}

func touch(tx *bolt.Tx) error {
	modified, _ := time.Now().MarshalBinary()
	return tx.Bucket(MetaBucket).Put(MetaModified, modified)
}

// Modified returns the time of the last registry write
func (r *Registry) Modified() (time.Time, error) {
	var modified time.Time
	err := r.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(MetaBucket).Get(MetaModified)
		if data == nil {
			return fmt.Errorf("modified time not found")
		}
		return modified.UnmarshalBinary(data)
	})
	return modified, err
}

// Add stores a new record. The record's path is canonicalised and an ID is
// assigned when missing.
func (r *Registry) Add(rec *Record) error {
	path, err := CanonicalPath(rec.Path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", rec.Path, err)
	}
	rec.Path = path
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now()
	if rec.Created.IsZero() {
		rec.Created = now
	}
	rec.Modified = now

	return r.db.Update(func(tx *bolt.Tx) error {
		vaults := tx.Bucket(VaultsBucket)
		if vaults.Get([]byte(path)) != nil {
			return fmt.Errorf("%w: %s", verrors.ErrVaultExists, path)
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := vaults.Put([]byte(path), data); err != nil {
			return err
		}
		return touch(tx)
	})
}

// Get returns the record registered for path
func (r *Registry) Get(path string) (*Record, error) {
	key, err := CanonicalPath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	var rec *Record
	err = r.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(VaultsBucket).Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%w: %s", verrors.ErrVaultNotFound, key)
		}
		rec = &Record{}
		return json.Unmarshal(data, rec)
	})
	return rec, err
}

// Update applies fn to the record for path inside a single transaction
func (r *Registry) Update(path string, fn func(*Record) error) error {
	key, err := CanonicalPath(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	return r.db.Update(func(tx *bolt.Tx) error {
		vaults := tx.Bucket(VaultsBucket)
		data := vaults.Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%w: %s", verrors.ErrVaultNotFound, key)
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		if err := fn(&rec); err != nil {
			return err
		}
		rec.Modified = time.Now()
		updated, err := json.Marshal(&rec)
		if err != nil {
			return err
		}
		if err := vaults.Put([]byte(key), updated); err != nil {
			return err
		}
		return touch(tx)
	})
}

// SetLocked flips the lock state of the vault at path
func (r *Registry) SetLocked(path string, locked bool) error {
	return r.Update(path, func(rec *Record) error {
		rec.Locked = locked
		return nil
	})
}

// Delete removes the record for path
func (r *Registry) Delete(path string) error {
	key, err := CanonicalPath(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	return r.db.Update(func(tx *bolt.Tx) error {
		vaults := tx.Bucket(VaultsBucket)
		if vaults.Get([]byte(key)) == nil {
			return fmt.Errorf("%w: %s", verrors.ErrVaultNotFound, key)
		}
		if err := vaults.Delete([]byte(key)); err != nil {
			return err
		}
		return touch(tx)
	})
}

// List returns all records sorted by path
func (r *Registry) List() ([]Record, error) {
	var records []Record
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(VaultsBucket).ForEach(func(k, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("corrupt record %s: %w", k, err)
			}
			records = append(records, rec)
			return nil
		})
	})
	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })
	return records, err
}

// Compact creates a compacted copy of the database, removing unused space.
// This is useful after removing vaults to reclaim disk space.
func (r *Registry) Compact() error {
	srcPath := r.db.Path()
	tmpPath := srcPath + ".compact"

	dst, err := bolt.Open(tmpPath, 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to create compact database: %w", err)
	}

	err = r.db.View(func(srcTx *bolt.Tx) error {
		return dst.Update(func(dstTx *bolt.Tx) error {
			return srcTx.ForEach(func(name []byte, srcBucket *bolt.Bucket) error {
				dstBucket, err := dstTx.CreateBucketIfNotExists(name)
				if err != nil {
					return err
				}
				return srcBucket.ForEach(func(k, v []byte) error {
					return dstBucket.Put(k, v)
				})
			})
		})
	})

	if err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to copy data: %w", err)
	}

	if err := dst.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close compact database: %w", err)
	}

	if err := r.db.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close source database: %w", err)
	}

	// Atomic replace
	backupPath := srcPath + ".backup"
	if err := os.Rename(srcPath, backupPath); err != nil {
		return fmt.Errorf("failed to backup original: %w", err)
	}
	if err := os.Rename(tmpPath, srcPath); err != nil {
		os.Rename(backupPath, srcPath) // rollback
		return fmt.Errorf("failed to replace database: %w", err)
	}
	os.Remove(backupPath)

	r.db, err = bolt.Open(srcPath, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return fmt.Errorf("failed to reopen database: %w", err)
	}

	return nil
}
