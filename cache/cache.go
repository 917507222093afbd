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

// Package cache implements the byte caches used to keep recently served
// membership proofs.
package cache

// Cache stores values by key. Implementations are safe for concurrent use
// and may evict entries at any time.
type Cache interface {
	Get(key []byte) ([]byte, bool)
	Put(key []byte, value []byte)
	Size() int
}

// Kinds of cache that can be selected through configuration.
const (
	Free = "freecache"
	Fast = "fastcache"
	Lru  = "lru"
)

// NewByName returns a cache of the given kind. maxBytes bounds the memory
// of the freecache and fastcache kinds, maxEntries the size of the lru one.
func NewByName(kind string, maxBytes, maxEntries int) (Cache, bool) {
	switch kind {
	case Free:
		return NewFreeCache(maxBytes), true
	case Fast:
		return NewFastCache(int64(maxBytes)), true
	case Lru:
		return NewLruCache(maxEntries), true
	}
	return nil, false
}
