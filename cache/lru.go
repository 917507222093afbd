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

package cache

import (
	"container/list"
	"sync"
)

type entry struct {
	key   string
	value []byte
}

// LruCache keeps the last size entries used.
type LruCache struct {
	sync.Mutex
	size      int
	items     map[string]*list.Element
	evictList *list.List
}

func NewLruCache(size int) *LruCache {
	if size < 1 {
		size = 1
	}
	return &LruCache{
		size:      size,
		items:     make(map[string]*list.Element),
		evictList: list.New(),
	}
}

func (c *LruCache) Get(key []byte) ([]byte, bool) {
	c.Lock()
	defer c.Unlock()
	e, ok := c.items[string(key)]
	if !ok {
		return nil, false
	}
	c.evictList.MoveToFront(e)
	return e.Value.(*entry).value, true
}

func (c *LruCache) Put(key []byte, value []byte) {
	c.Lock()
	defer c.Unlock()
	// check for existing item
	if e, ok := c.items[string(key)]; ok {
		// update value for specified key
		c.evictList.MoveToFront(e)
		e.Value.(*entry).value = value
		return
	}

	// Add new item
	e := &entry{string(key), value}
	c.items[e.key] = c.evictList.PushFront(e)

	// Verify if eviction is needed
	if c.evictList.Len() > c.size {
		c.removeOldest()
	}
}

func (c *LruCache) Size() int {
	c.Lock()
	defer c.Unlock()
	return c.evictList.Len()
}

func (c *LruCache) removeOldest() {
	e := c.evictList.Back()
	if e != nil {
		c.evictList.Remove(e)
		delete(c.items, e.Value.(*entry).key)
	}
}
