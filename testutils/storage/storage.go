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

package storage

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/bbva/imtree/storage/badger"
	"github.com/bbva/imtree/storage/bolt"
	"github.com/bbva/imtree/storage/bplus"
	"github.com/stretchr/testify/require"
)

func OpenBPlusTreeStore() (*bplus.BPlusTreeStore, func()) {
	store := bplus.NewBPlusTreeStore()
	return store, func() {
		store.Close()
	}
}

func OpenBadgerStore(t testing.TB) (*badger.BadgerStore, func()) {
	path, err := ioutil.TempDir("", "imtree-badger")
	require.NoError(t, err)
	store, err := badger.NewBadgerStore(path)
	require.NoError(t, err)
	return store, func() {
		store.Close()
		deleteFile(path)
	}
}

func OpenBoltStore(t testing.TB) (*bolt.BoltStore, func()) {
	dir, err := ioutil.TempDir("", "imtree-bolt")
	require.NoError(t, err)
	store, err := bolt.NewBoltStore(filepath.Join(dir, "imtree.db"))
	require.NoError(t, err)
	return store, func() {
		store.Close()
		deleteFile(dir)
	}
}

func deleteFile(path string) {
	err := os.RemoveAll(path)
	if err != nil {
		fmt.Printf("Unable to remove db file %s", err)
	}
}
