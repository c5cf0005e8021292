package kvstore

import "sync"

// KVStore is a mutex guarded map keeping track of insertion order,
// so that callers can report entries the way they were recorded.
type KVStore[K comparable, V any] struct {
	data  map[K]V
	order []K
	mu    sync.RWMutex
}

// New creates new KVStore instance.
func New[K comparable, V any]() *KVStore[K, V] {
	return &KVStore[K, V]{data: make(map[K]V)}
}

// Get returns value by key.
func (s *KVStore[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.data[key]
	return item, ok
}

// Set stores value in storage making it accessible by key.
// Overwriting an existing key keeps its original position.
func (s *KVStore[K, V]) Set(key K, data V) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[key]; !ok {
		s.order = append(s.order, key)
	}
	s.data[key] = data
}

// Remove entry by key.
func (s *KVStore[K, V]) Remove(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.data[key]
	if !ok {
		return false
	}

	delete(s.data, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Len returns number of stored entries.
func (s *KVStore[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.data)
}

// Range calls fn for every entry in insertion order until fn returns false.
func (s *KVStore[K, V]) Range(fn func(key K, value V) bool) {
	s.mu.RLock()
	keys := make([]K, len(s.order))
	copy(keys, s.order)
	s.mu.RUnlock()

	for _, k := range keys {
		v, ok := s.Get(k)
		if !ok {
			continue
		}
		if !fn(k, v) {
			return
		}
	}
}
