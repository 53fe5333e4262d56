package store

import (
	"strconv"
	"sync"
	"testing"
)

func TestSafeConcurrentPutGet(t *testing.T) {
	s := NewSafe(1 << 20)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := "k" + strconv.Itoa(i)
			s.Put(key, "v")
			s.Get(key)
		}()
	}
	wg.Wait()

	if s.Len() != 50 {
		t.Errorf("Len() = %d, want 50", s.Len())
	}
}

func TestSafeDelegatesToUnderlyingLRU(t *testing.T) {
	s := NewSafe(100)

	if !s.Put("a", "1") {
		t.Fatal("Put failed")
	}
	if v, ok := s.Get("a"); !ok || v != "1" {
		t.Errorf("Get(a) = %q, %v, want 1, true", v, ok)
	}
	if !s.PutIfAbsent("b", "2") {
		t.Fatal("PutIfAbsent on absent key failed")
	}
	if s.PutIfAbsent("b", "3") {
		t.Error("PutIfAbsent on present key should fail")
	}
	if !s.Set("a", "4") {
		t.Fatal("Set on present key failed")
	}
	if s.Set("missing", "x") {
		t.Error("Set on absent key should fail")
	}
	if !s.Delete("a") {
		t.Error("Delete(a) should succeed")
	}
	if s.MaxSize() != 100 {
		t.Errorf("MaxSize() = %d, want 100", s.MaxSize())
	}
}
