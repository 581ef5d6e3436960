package util

import "sync"

/*
LRU is a small thread-safe LRU cache. The snapshot resolver uses it to cache
resolved snapshots by version. Snapshots are immutable once committed, so
entries never need invalidation, only eviction.
*/

////////////////////////////////////////////////////////////////////////////////

// LRU is a simple LRU cache.
type LRU[K comparable, V any] struct {
	cache      map[K]*listNode[K, V]
	head, tail *listNode[K, V]
	count      int
	cap        int
	mtx        *sync.Mutex
}

type listNode[K comparable, V any] struct {
	key        K
	value      V
	prev, next *listNode[K, V]
}

// NewLRU returns a new LRU cache with the given capacity.
func NewLRU[K comparable, V any](capacity int) *LRU[K, V] {
	head, tail := &listNode[K, V]{}, &listNode[K, V]{}
	head.next = tail
	tail.prev = head
	return &LRU[K, V]{
		cache: make(map[K]*listNode[K, V]),
		head:  head,
		tail:  tail,
		cap:   capacity,
		mtx:   &sync.Mutex{},
	}
}

func (lru *LRU[K, V]) addToFront(node *listNode[K, V]) {
	node.next = lru.head.next
	node.prev = lru.head
	lru.head.next.prev = node
	lru.head.next = node
}

func (lru *LRU[K, V]) removeNode(node *listNode[K, V]) {
	node.prev.next = node.next
	node.next.prev = node.prev
}

func (lru *LRU[K, V]) evict() {
	node := lru.tail.prev
	if node == lru.head {
		return
	}
	lru.removeNode(node)
	delete(lru.cache, node.key)
	lru.count--
}

// Put adds a key-value pair to the cache, updating the value if the key is
// already present.
func (lru *LRU[K, V]) Put(key K, value V) {
	lru.mtx.Lock()
	defer lru.mtx.Unlock()
	if node, ok := lru.cache[key]; ok {
		node.value = value
		lru.removeNode(node)
		lru.addToFront(node)
		return
	}
	node := &listNode[K, V]{key: key, value: value}
	lru.cache[key] = node
	lru.addToFront(node)
	lru.count++
	for lru.count > lru.cap {
		lru.evict()
	}
}

// Get returns the value associated with the given key, and a boolean
// indicating presence.
func (lru *LRU[K, V]) Get(key K) (V, bool) {
	lru.mtx.Lock()
	defer lru.mtx.Unlock()
	node, ok := lru.cache[key]
	if !ok {
		return *new(V), false
	}
	lru.removeNode(node)
	lru.addToFront(node)
	return node.value, true
}

// Reset clears the cache.
func (lru *LRU[K, V]) Reset() {
	lru.mtx.Lock()
	defer lru.mtx.Unlock()
	lru.cache = make(map[K]*listNode[K, V])
	lru.head.next = lru.tail
	lru.tail.prev = lru.head
	lru.count = 0
}

// Size returns the number of entries in the cache.
func (lru *LRU[K, V]) Size() int {
	lru.mtx.Lock()
	defer lru.mtx.Unlock()
	return lru.count
}
