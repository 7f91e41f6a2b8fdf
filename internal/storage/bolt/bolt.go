// Package bolt implements storage.Storage on top of a bbolt file.
//
// LAYOUT:
// ───────
// Each collection is a top-level bucket and each document is a
// msgpack-encoded value under its key:
//
//	alunos/        bucket
//	  "111"  →     msgpack {"id":"111","name":"Ana","status":"ativo"}
//
// bbolt allows one write transaction at a time, so Update's
// read-merge-write never races with another writer.
package bolt

import (
	"context"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"

	"github.com/aanand-mishra/alunos-api/internal/storage"
	"github.com/aanand-mishra/alunos-api/internal/types"
)

// Bolt is a bbolt-backed document store.
type Bolt struct {
	bdb *bbolt.DB
}

// Options tunes the underlying bbolt file.
type Options struct {
	// IsTesting disables fsync; only for throwaway files.
	IsTesting bool
}

// New opens (or creates) the bbolt file at path. Opening blocks while
// another process holds the file, up to a 10-second timeout.
func New(path string, opt Options) (*Bolt, error) {
	bopt := *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
	} else {
		bopt.FreelistType = bbolt.FreelistMapType
	}

	bdb, err := bbolt.Open(path, 0666, &bopt)
	if err != nil {
		return nil, fmt.Errorf("bolt.New: open %s: %w", path, err)
	}
	return &Bolt{bdb: bdb}, nil
}

// Get returns the document under key, or storage.ErrNotFound. A
// collection that was never written to has no bucket yet and behaves
// as empty.
func (b *Bolt) Get(_ context.Context, collection, key string) (types.Document, error) {
	if err := storage.CheckKey(key); err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	var doc types.Document
	err := b.bdb.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(collection))
		if bucket == nil {
			return storage.ErrNotFound
		}
		var err error
		doc, err = decode(bucket.Get([]byte(key)))
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Set stores doc under key, creating the collection bucket on first use.
func (b *Bolt) Set(_ context.Context, collection, key string, doc types.Document) error {
	if err := storage.CheckKey(key); err != nil {
		return fmt.Errorf("Set: %w", err)
	}
	if err := storage.CheckFields(doc); err != nil {
		return fmt.Errorf("Set: %w", err)
	}

	data, err := msgpack.Marshal(doc)
	if err != nil {
		return fmt.Errorf("Set: encode: %w", err)
	}

	return b.bdb.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(collection))
		if err != nil {
			return fmt.Errorf("Set: bucket %s: %w", collection, err)
		}
		if err := bucket.Put([]byte(key), data); err != nil {
			return fmt.Errorf("Set: put: %w", err)
		}
		return nil
	})
}

// Update merges fields into the stored document inside one write
// transaction.
func (b *Bolt) Update(_ context.Context, collection, key string, fields types.Document) error {
	if err := storage.CheckKey(key); err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	if err := storage.CheckFields(fields); err != nil {
		return fmt.Errorf("Update: %w", err)
	}

	return b.bdb.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(collection))
		if bucket == nil {
			return storage.ErrNotFound
		}

		doc, err := decode(bucket.Get([]byte(key)))
		if err != nil {
			return err
		}
		doc.Merge(fields)

		data, err := msgpack.Marshal(doc)
		if err != nil {
			return fmt.Errorf("Update: encode: %w", err)
		}
		if err := bucket.Put([]byte(key), data); err != nil {
			return fmt.Errorf("Update: put: %w", err)
		}
		return nil
	})
}

// Delete removes key. A missing bucket or key is not an error.
func (b *Bolt) Delete(_ context.Context, collection, key string) error {
	if err := storage.CheckKey(key); err != nil {
		return fmt.Errorf("Delete: %w", err)
	}

	return b.bdb.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(collection))
		if bucket == nil {
			return nil
		}
		if err := bucket.Delete([]byte(key)); err != nil {
			return fmt.Errorf("Delete: %w", err)
		}
		return nil
	})
}

// List decodes every value in the collection bucket. The slice is
// pre-allocated so an empty collection encodes as [] not null.
func (b *Bolt) List(_ context.Context, collection string) ([]types.Document, error) {
	docs := make([]types.Document, 0)
	err := b.bdb.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(collection))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			doc, err := decode(v)
			if err != nil {
				return fmt.Errorf("List: key %s: %w", k, err)
			}
			docs = append(docs, doc)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// Close releases the file lock.
func (b *Bolt) Close() error {
	return b.bdb.Close()
}

// decode unpacks a stored value. The bytes returned by bbolt are only
// valid inside the transaction, which msgpack copies out of.
func decode(data []byte) (types.Document, error) {
	if data == nil {
		return nil, storage.ErrNotFound
	}
	doc := types.Document{}
	if err := msgpack.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return doc, nil
}
