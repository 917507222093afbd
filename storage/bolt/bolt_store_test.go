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

package bolt

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/bbva/imtree/storage"
	"github.com/bbva/imtree/storage/storetest"
	"github.com/stretchr/testify/require"
)

func openBoltStore(t *testing.T) (storage.Store, func()) {
	dir, err := ioutil.TempDir("", "bolt-store-test")
	require.NoError(t, err)
	store, err := NewBoltStore(filepath.Join(dir, "imtree.db"))
	require.NoError(t, err)
	return store, func() {
		store.Close()
		os.RemoveAll(dir)
	}
}

func TestBoltStore(t *testing.T) {
	storetest.Run(t, openBoltStore)
}

func TestEmptyBatchReader(t *testing.T) {
	store, closeF := openBoltStore(t)
	defer closeF()

	reader := store.GetAll(storage.LeafTable)
	defer reader.Close()
	n, err := reader.Read(make([]*storage.KVPair, 10))
	require.NoError(t, err)
	require.Equal(t, 0, n)
}
