package store

import "sync"

// Safe wraps an LRU with a single mutex, giving every public operation
// exclusive access. LRU itself stays unsynchronized per its own doc
// comment; Safe is what the multi-threaded reactor and the admin
// introspection surface actually hold, since both touch the store from
// goroutines other than whichever reactor thread last called Get/Put.
type Safe struct {
	mu  sync.Mutex
	lru *LRU
}

// NewSafe wraps a fresh LRU bounded to maxSize bytes.
func NewSafe(maxSize int) *Safe {
	return &Safe{lru: New(maxSize)}
}

func (s *Safe) MaxSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.MaxSize()
}

func (s *Safe) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Size()
}

func (s *Safe) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

func (s *Safe) Put(key, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Put(key, value)
}

func (s *Safe) PutIfAbsent(key, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.PutIfAbsent(key, value)
}

func (s *Safe) Set(key, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Set(key, value)
}

func (s *Safe) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Get(key)
}

func (s *Safe) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Delete(key)
}
