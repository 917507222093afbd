/*
   Copyright 2018-2019 Banco Bilbao Vizcaya Argentaria, S.A.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package bolt implements a storage.Store on a single bolt file, one bucket
// per table.
package bolt

import (
	"bytes"
	"fmt"
	"time"

	b "github.com/coreos/bbolt"

	"github.com/bbva/imtree/log"
	"github.com/bbva/imtree/storage"
)

type BoltStore struct {
	db *b.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := b.Open(path, 0600, &b.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	// create buckets
	err = db.Update(func(tx *b.Tx) error {
		for _, table := range storage.Tables {
			if _, err := tx.CreateBucketIfNotExists(bucketName(table)); err != nil {
				return fmt.Errorf("create bucket %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	log.Debugf("Opened bolt store at %s", path)
	return &BoltStore{db}, nil
}

func bucketName(table storage.Table) []byte {
	if name := table.String(); name != "" {
		return []byte(name)
	}
	return []byte(fmt.Sprintf("table_%d", table))
}

func (s *BoltStore) Mutate(mutations []*storage.Mutation) error {
	return s.db.Update(func(tx *b.Tx) error {
		for _, m := range mutations {
			bucket, err := tx.CreateBucketIfNotExists(bucketName(m.Table))
			if err != nil {
				return err
			}
			if m.Remove {
				err = bucket.Delete(m.Key)
			} else {
				err = bucket.Put(m.Key, m.Value)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) GetRange(table storage.Table, start, end []byte) (storage.KVRange, error) {
	result := make(storage.KVRange, 0)
	err := s.db.View(func(tx *b.Tx) error {
		bucket := tx.Bucket(bucketName(table))
		if bucket == nil {
			return nil
		}
		cursor := bucket.Cursor()
		for k, v := cursor.Seek(start); k != nil && bytes.Compare(k, end) <= 0; k, v = cursor.Next() {
			result = append(result, storage.NewKVPair(copyBytes(k), copyBytes(v)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *BoltStore) Get(table storage.Table, key []byte) (*storage.KVPair, error) {
	var value []byte
	err := s.db.View(func(tx *b.Tx) error {
		bucket := tx.Bucket(bucketName(table))
		if bucket == nil {
			return storage.ErrKeyNotFound
		}
		v := bucket.Get(key)
		if v == nil {
			return storage.ErrKeyNotFound
		}
		value = copyBytes(v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &storage.KVPair{Key: key, Value: value}, nil
}

func (s *BoltStore) GetAll(table storage.Table) storage.KVPairReader {
	tx, err := s.db.Begin(false)
	if err != nil {
		return &BoltKVPairReader{err: err}
	}
	return &BoltKVPairReader{tx: tx, bucket: bucketName(table)}
}

func (s *BoltStore) Delete(table storage.Table, key []byte) error {
	return s.db.Update(func(tx *b.Tx) error {
		bucket := tx.Bucket(bucketName(table))
		if bucket == nil {
			return nil
		}
		return bucket.Delete(key)
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// BoltKVPairReader iterates a bucket inside a read-only transaction that is
// kept open until Close.
type BoltKVPairReader struct {
	tx     *b.Tx
	bucket []byte
	cursor *b.Cursor
	done   bool
	err    error
}

func (r *BoltKVPairReader) Read(buffer []*storage.KVPair) (n int, err error) {
	if r.err != nil || r.done {
		return 0, r.err
	}

	var k, v []byte
	if r.cursor == nil {
		bucket := r.tx.Bucket(r.bucket)
		if bucket == nil {
			r.done = true
			return 0, nil
		}
		r.cursor = bucket.Cursor()
		k, v = r.cursor.First()
	} else {
		k, v = r.cursor.Next()
	}

	for ; k != nil; k, v = r.cursor.Next() {
		buffer[n] = &storage.KVPair{Key: copyBytes(k), Value: copyBytes(v)}
		n++
		if n >= len(buffer) {
			return n, nil
		}
	}
	r.done = true
	return n, nil
}

func (r *BoltKVPairReader) Close() {
	if r.tx != nil {
		_ = r.tx.Rollback()
		r.tx = nil
	}
}

func copyBytes(src []byte) []byte {
	if src == nil {
		return nil
	}
	dst := make([]byte, len(src))
	copy(dst, src)
	return dst
}
