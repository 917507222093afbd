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

// Package storetest holds the behaviour every storage.Store backend must
// share. Backend packages run it from their own tests.
package storetest

import (
	"testing"

	"github.com/bbva/imtree/storage"
	"github.com/bbva/imtree/util"
	"github.com/stretchr/testify/require"
)

// OpenFunc opens an empty store and returns a function that closes and
// removes it.
type OpenFunc func(t *testing.T) (storage.Store, func())

// Run executes the whole suite against the stores returned by open.
func Run(t *testing.T, open OpenFunc) {
	t.Run("Mutate", func(t *testing.T) { testMutate(t, open) })
	t.Run("GetExistentKey", func(t *testing.T) { testGetExistentKey(t, open) })
	t.Run("GetRange", func(t *testing.T) { testGetRange(t, open) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, open) })
	t.Run("GetAll", func(t *testing.T) { testGetAll(t, open) })
	t.Run("TablesAreIsolated", func(t *testing.T) { testTablesAreIsolated(t, open) })
}

func testMutate(t *testing.T, open OpenFunc) {
	store, closeF := open(t)
	defer closeF()

	tests := []struct {
		testname   string
		key, value []byte
	}{
		{"Mutate Key=Value", []byte("Key"), []byte("Value")},
		{"Mutate Key=Value2", []byte("Key"), []byte("Value2")},
	}

	for _, test := range tests {
		err := store.Mutate([]*storage.Mutation{
			storage.NewMutation(storage.DefaultTable, test.key, test.value),
		})
		require.NoErrorf(t, err, "Error mutating in test: %s", test.testname)
		stored, err := store.Get(storage.DefaultTable, test.key)
		require.NoErrorf(t, err, "Error getting key in test: %s", test.testname)
		require.Equalf(t, test.value, stored.Value, "Wrong value in test: %s", test.testname)
	}

	// removals and writes in the same batch
	err := store.Mutate([]*storage.Mutation{
		storage.NewDeletion(storage.DefaultTable, []byte("Key")),
		storage.NewMutation(storage.DefaultTable, []byte("Other"), []byte("Value")),
	})
	require.NoError(t, err)
	_, err = store.Get(storage.DefaultTable, []byte("Key"))
	require.Equal(t, storage.ErrKeyNotFound, err)
	_, err = store.Get(storage.DefaultTable, []byte("Other"))
	require.NoError(t, err)
}

func testGetExistentKey(t *testing.T, open OpenFunc) {
	store, closeF := open(t)
	defer closeF()

	testCases := []struct {
		table         storage.Table
		key, value    []byte
		expectedError error
	}{
		{storage.DefaultTable, []byte("Key1"), []byte("Value1"), nil},
		{storage.DefaultTable, []byte("Key2"), []byte("Value2"), nil},
		{storage.GroupTable, []byte("Key3"), []byte("Value3"), nil},
		{storage.GroupTable, []byte("Key4"), []byte("Value4"), storage.ErrKeyNotFound},
	}

	for i, test := range testCases {
		if test.expectedError == nil {
			err := store.Mutate([]*storage.Mutation{
				storage.NewMutation(test.table, test.key, test.value),
			})
			require.NoError(t, err)
		}

		stored, err := store.Get(test.table, test.key)
		if test.expectedError == nil {
			require.NoErrorf(t, err, "Unexpected error in test case %d", i)
			require.Equalf(t, test.key, stored.Key, "The stored key does not match the original in test case %d", i)
			require.Equalf(t, test.value, stored.Value, "The stored value does not match the original in test case %d", i)
		} else {
			require.Equalf(t, test.expectedError, err, "Wrong error in test case %d", i)
		}
	}
}

func testGetRange(t *testing.T, open OpenFunc) {
	store, closeF := open(t)
	defer closeF()

	var testCases = []struct {
		size       int
		start, end byte
	}{
		{40, 10, 50},
		{0, 1, 9},
		{11, 1, 20},
		{10, 40, 60},
		{0, 60, 100},
		{0, 20, 10},
	}

	for i := 10; i < 50; i++ {
		err := store.Mutate([]*storage.Mutation{
			storage.NewMutation(storage.LeafTable, []byte{byte(i)}, []byte("Value")),
		})
		require.NoError(t, err)
	}

	for i, test := range testCases {
		slice, err := store.GetRange(storage.LeafTable, []byte{test.start}, []byte{test.end})
		require.NoError(t, err)
		require.Equalf(t, test.size, len(slice), "Slice length invalid in test case %d", i)
		for j := 1; j < len(slice); j++ {
			require.Truef(t, string(slice[j-1].Key) < string(slice[j].Key), "Range not sorted in test case %d", i)
		}
	}
}

func testDelete(t *testing.T, open OpenFunc) {
	store, closeF := open(t)
	defer closeF()

	err := store.Mutate([]*storage.Mutation{
		storage.NewMutation(storage.AdminTable, []byte("Key"), []byte("Value")),
	})
	require.NoError(t, err)

	_, err = store.Get(storage.AdminTable, []byte("Key"))
	require.NoError(t, err)

	err = store.Delete(storage.AdminTable, []byte("Key"))
	require.NoError(t, err)

	_, err = store.Get(storage.AdminTable, []byte("Key"))
	require.Equal(t, storage.ErrKeyNotFound, err)
}

func testGetAll(t *testing.T, open OpenFunc) {

	numElems := uint64(1000)
	testCases := []struct {
		batchSize    int
		numBatches   int
		lastBatchLen int
	}{
		{10, 100, 10},
		{20, 50, 20},
		{17, 59, 14},
	}

	store, closeF := open(t)
	defer closeF()

	for i := uint64(0); i < numElems; i++ {
		key := util.Uint64AsBytes(i)
		err := store.Mutate([]*storage.Mutation{
			storage.NewMutation(storage.LeafTable, key, key),
		})
		require.NoError(t, err)
	}
	err := store.Mutate([]*storage.Mutation{
		storage.NewMutation(storage.GroupTable, []byte("other"), []byte("other")),
	})
	require.NoError(t, err)

	for i, c := range testCases {
		reader := store.GetAll(storage.LeafTable)
		numBatches := 0
		var lastBatchLen int
		for {
			entries := make([]*storage.KVPair, c.batchSize)
			n, err := reader.Read(entries)
			require.NoError(t, err)
			if n == 0 {
				break
			}
			numBatches++
			lastBatchLen = n
		}
		reader.Close()
		require.Equalf(t, c.numBatches, numBatches, "The number of batches should match for test case %d", i)
		require.Equalf(t, c.lastBatchLen, lastBatchLen, "The size of the last batch len should match for test case %d", i)
	}
}

func testTablesAreIsolated(t *testing.T, open OpenFunc) {
	store, closeF := open(t)
	defer closeF()

	key := []byte("shared")
	var mutations []*storage.Mutation
	for _, table := range storage.Tables {
		mutations = append(mutations, storage.NewMutation(table, key, []byte(table.String())))
	}
	require.NoError(t, store.Mutate(mutations))

	for _, table := range storage.Tables {
		stored, err := store.Get(table, key)
		require.NoError(t, err)
		require.Equalf(t, []byte(table.String()), stored.Value, "Wrong value for table %s", table)

		all, err := storage.ReadAll(store.GetAll(table), 4)
		require.NoError(t, err)
		require.Lenf(t, all, 1, "Table %s should hold a single key", table)
	}
}
