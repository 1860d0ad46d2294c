package cache

import (
	"fmt"
	"testing"
	"time"
)

func accept(any) bool { return true }
func reject(any) bool { return false }

func TestPutGet(t *testing.T) {
	c := New(16)

	key := Fingerprint("lichess/alice", "result", "g1")
	c.Put(key, "lichess/alice", "artifact", time.Minute, accept)

	got, ok := c.Get(key)
	if !ok || got != "artifact" {
		t.Fatalf("Get = (%v, %v), want (artifact, true)", got, ok)
	}

	if _, ok := c.Get(Fingerprint("lichess/alice", "result", "g2")); ok {
		t.Fatal("Get of unknown key succeeded")
	}
}

func TestRejectedPutIsNoOp(t *testing.T) {
	c := New(16)
	key := Fingerprint("lichess/alice", "result", "g1")

	// Rejected write into an empty cache stores nothing.
	c.Put(key, "lichess/alice", "bad", time.Minute, reject)
	if _, ok := c.Get(key); ok {
		t.Fatal("rejected value was stored")
	}

	// Rejected write over an existing entry leaves it untouched.
	c.Put(key, "lichess/alice", "good", time.Minute, accept)
	c.Put(key, "lichess/alice", "bad", time.Minute, reject)
	got, ok := c.Get(key)
	if !ok || got != "good" {
		t.Fatalf("Get after rejected overwrite = (%v, %v), want (good, true)", got, ok)
	}

	if s := c.Stats(); s.Rejected != 2 {
		t.Errorf("Rejected = %d, want 2", s.Rejected)
	}
}

func TestExpiry(t *testing.T) {
	c := New(16)
	key := Fingerprint("lichess/alice", "stats")

	c.Put(key, "lichess/alice", 42, 10*time.Millisecond, accept)
	if _, ok := c.Get(key); !ok {
		t.Fatal("fresh entry missing")
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get(key); ok {
		t.Fatal("expired entry returned")
	}
	// Lazily purged on read.
	if s := c.Stats(); s.Entries != 0 {
		t.Errorf("Entries after expiry read = %d, want 0", s.Entries)
	}
}

func TestInvalidateOwner(t *testing.T) {
	c := New(32)

	aliceKeys := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		k := Fingerprint("lichess/alice", "result", fmt.Sprintf("g%d", i))
		c.Put(k, "lichess/alice", i, time.Minute, accept)
		aliceKeys = append(aliceKeys, k)
	}
	bobKeys := make([]string, 0, 2)
	for i := 0; i < 2; i++ {
		k := Fingerprint("chesscom/bob", "result", fmt.Sprintf("g%d", i))
		c.Put(k, "chesscom/bob", i, time.Minute, accept)
		bobKeys = append(bobKeys, k)
	}

	if n := c.InvalidateOwner("lichess/alice"); n != 3 {
		t.Fatalf("InvalidateOwner removed %d entries, want 3", n)
	}
	for _, k := range aliceKeys {
		if _, ok := c.Get(k); ok {
			t.Errorf("alice key %s survived invalidation", k)
		}
	}
	for _, k := range bobKeys {
		if _, ok := c.Get(k); !ok {
			t.Errorf("bob key %s was removed by alice's invalidation", k)
		}
	}
}

func TestEviction(t *testing.T) {
	c := New(4)
	for i := 0; i < 6; i++ {
		c.Put(fmt.Sprintf("k%d", i), "o", i, time.Minute, accept)
	}
	if s := c.Stats(); s.Entries != 4 {
		t.Fatalf("Entries = %d, want 4", s.Entries)
	}
	// Oldest two evicted.
	if _, ok := c.Get("k0"); ok {
		t.Error("k0 should have been evicted")
	}
	if _, ok := c.Get("k5"); !ok {
		t.Error("k5 should be present")
	}
}

func TestReinsertAfterInvalidateKeepsFIFO(t *testing.T) {
	c := New(2)

	c.Put("k1", "o1", 1, time.Minute, accept)
	c.InvalidateOwner("o1")
	c.Put("k2", "o2", 2, time.Minute, accept)
	// Re-insert of an invalidated key: it is the newest entry now, not a
	// second occupant of its old FIFO slot.
	c.Put("k1", "o1", 1, time.Minute, accept)

	c.Put("k3", "o3", 3, time.Minute, accept)
	if _, ok := c.Get("k2"); ok {
		t.Error("k2 is the oldest entry and should have been evicted")
	}
	if _, ok := c.Get("k1"); !ok {
		t.Error("freshly re-inserted k1 was evicted early")
	}
	if _, ok := c.Get("k3"); !ok {
		t.Error("k3 missing")
	}
}

func TestFingerprintDistinct(t *testing.T) {
	a := Fingerprint("lichess/alice", "result", "g1")
	b := Fingerprint("lichess/alice", "result", "g2")
	d := Fingerprint("lichess/bob", "result", "g1")
	if a == b || a == d {
		t.Fatalf("fingerprints collide: %s %s %s", a, b, d)
	}
	if a != Fingerprint("lichess/alice", "result", "g1") {
		t.Fatal("fingerprint not deterministic")
	}
}
