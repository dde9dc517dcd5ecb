// Package cache is the local store of remote file metadata. Items are
// persisted per account in bbolt, indexed both by identifier and by
// remote path. The reconciliation dispatcher is the only writer; worker
// goroutines read it to decide whether an event is still relevant.
package cache

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/alexjbarnes/drivesync/internal/models"
	bolt "go.etcd.io/bbolt"
)

const (
	// cacheDirPerm is the permission mode for the cache directory.
	cacheDirPerm = fs.FileMode(0o700)

	// cacheFilePerm is the permission mode for the cache database file.
	cacheFilePerm = fs.FileMode(0o600)

	// cacheOpenTimeout is the maximum time to wait for the bolt database lock.
	cacheOpenTimeout = 5 * time.Second
)

func itemsBucket(account string) []byte {
	return []byte("acct:" + account + ":items")
}

func pathsBucket(account string) []byte {
	return []byte("acct:" + account + ":paths")
}

// Cache wraps a bbolt database holding the cached view of the remote
// hierarchy for all known accounts.
type Cache struct {
	db *bolt.DB
}

// Open opens the cache database at the given path, creating it if it
// does not exist. Tests pass a path inside t.TempDir().
func Open(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), cacheDirPerm); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	db, err := bolt.Open(path, cacheFilePerm, &bolt.Options{Timeout: cacheOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// InitAccount ensures the item and path buckets exist for an account.
// Call this once when a session becomes active.
func (c *Cache) InitAccount(account string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(itemsBucket(account)); err != nil {
			return err
		}

		_, err := tx.CreateBucketIfNotExists(pathsBucket(account))

		return err
	})
}

// ItemByID returns the item for an identifier, or nil if not cached.
func (c *Cache) ItemByID(account, id string) (*models.Item, error) {
	var it *models.Item

	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(itemsBucket(account))
		if b == nil {
			return nil
		}

		v := b.Get([]byte(id))
		if v == nil {
			return nil
		}

		it = &models.Item{}

		return json.Unmarshal(v, it)
	})

	return it, err
}

// ItemByPath returns the item at a remote path, or nil if not cached.
// The path is normalized before lookup.
func (c *Cache) ItemByPath(account, path string) (*models.Item, error) {
	path = models.NormalizePath(path)

	var it *models.Item

	err := c.db.View(func(tx *bolt.Tx) error {
		pb := tx.Bucket(pathsBucket(account))
		ib := tx.Bucket(itemsBucket(account))

		if pb == nil || ib == nil {
			return nil
		}

		id := pb.Get([]byte(path))
		if id == nil {
			return nil
		}

		v := ib.Get(id)
		if v == nil {
			return nil
		}

		it = &models.Item{}

		return json.Unmarshal(v, it)
	})

	return it, err
}

// Exists reports whether an identifier resolves to an item whose
// existence flag is still set.
func (c *Cache) Exists(account, id string) bool {
	it, err := c.ItemByID(account, id)

	return err == nil && it != nil && it.Exists
}

// Children returns the existing items whose parent is the given
// identifier.
func (c *Cache) Children(account, parentID string) ([]models.Item, error) {
	var children []models.Item

	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(itemsBucket(account))
		if b == nil {
			return nil
		}

		return b.ForEach(func(_, v []byte) error {
			var it models.Item
			if err := json.Unmarshal(v, &it); err != nil {
				return err
			}

			if it.ParentID == parentID && it.Exists {
				children = append(children, it)
			}

			return nil
		})
	})

	return children, err
}

// Replace writes the item record in place, keeping the path index
// consistent: when the item's path changed (rename/move), the old path
// entry is removed so path uniqueness per account holds.
func (c *Cache) Replace(account string, it models.Item) error {
	it.Path = models.NormalizePath(it.Path)

	return c.db.Update(func(tx *bolt.Tx) error {
		ib := tx.Bucket(itemsBucket(account))
		pb := tx.Bucket(pathsBucket(account))

		if ib == nil || pb == nil {
			return fmt.Errorf("buckets not initialized for account %s", account)
		}

		if prev := ib.Get([]byte(it.ID)); prev != nil {
			var old models.Item
			if err := json.Unmarshal(prev, &old); err == nil && old.Path != it.Path {
				if err := pb.Delete([]byte(old.Path)); err != nil {
					return err
				}
			}
		}

		data, err := json.Marshal(it)
		if err != nil {
			return err
		}

		if err := ib.Put([]byte(it.ID), data); err != nil {
			return err
		}

		return pb.Put([]byte(it.Path), []byte(it.ID))
	})
}

// MarkMissing clears the existence flag on an item without deleting the
// record. A later refresh either restores it or removes it for good.
// Unknown identifiers are a no-op.
func (c *Cache) MarkMissing(account, id string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		ib := tx.Bucket(itemsBucket(account))
		pb := tx.Bucket(pathsBucket(account))

		if ib == nil || pb == nil {
			return nil
		}

		v := ib.Get([]byte(id))
		if v == nil {
			return nil
		}

		var it models.Item
		if err := json.Unmarshal(v, &it); err != nil {
			return err
		}

		it.Exists = false

		data, err := json.Marshal(it)
		if err != nil {
			return err
		}

		if err := ib.Put([]byte(id), data); err != nil {
			return err
		}

		// A missing item no longer owns its path.
		return pb.Delete([]byte(it.Path))
	})
}

// Remove deletes the item record and its path index entry.
func (c *Cache) Remove(account, id string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		ib := tx.Bucket(itemsBucket(account))
		pb := tx.Bucket(pathsBucket(account))

		if ib == nil || pb == nil {
			return nil
		}

		v := ib.Get([]byte(id))
		if v == nil {
			return nil
		}

		var it models.Item
		if err := json.Unmarshal(v, &it); err == nil {
			if err := pb.Delete([]byte(it.Path)); err != nil {
				return err
			}
		}

		return ib.Delete([]byte(id))
	})
}

// All returns every cached item for an account, keyed by identifier.
func (c *Cache) All(account string) (map[string]models.Item, error) {
	result := make(map[string]models.Item)

	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(itemsBucket(account))
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			var it models.Item
			if err := json.Unmarshal(v, &it); err != nil {
				return err
			}

			result[string(k)] = it

			return nil
		})
	})

	return result, err
}
