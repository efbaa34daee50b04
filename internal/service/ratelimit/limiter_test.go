package ratelimit

import (
    "testing"
    "time"
)

func TestAllowConsumesCapacity(t *testing.T) {
    l := New()
    if !l.Allow("k", 2, 0) {
        t.Fatal("first token should be granted")
    }
    if !l.Allow("k", 2, 0) {
        t.Fatal("second token should be granted")
    }
    if l.Allow("k", 2, 0) {
        t.Fatal("bucket should be empty")
    }
}

func TestAllowKeysAreIndependent(t *testing.T) {
    l := New()
    if !l.Allow("a", 1, 0) {
        t.Fatal("key a should start full")
    }
    if l.Allow("a", 1, 0) {
        t.Fatal("key a should be exhausted")
    }
    if !l.Allow("b", 1, 0) {
        t.Fatal("key b should be unaffected by key a")
    }
}

func TestAllowRefills(t *testing.T) {
    l := New()
    if !l.Allow("k", 1, 50) {
        t.Fatal("bucket should start full")
    }
    if l.Allow("k", 1, 50) {
        t.Fatal("bucket should be empty right after")
    }
    time.Sleep(100 * time.Millisecond)
    if !l.Allow("k", 1, 50) {
        t.Fatal("bucket should have refilled")
    }
}

func TestAllowCapsAtCapacity(t *testing.T) {
    l := New()
    l.Allow("k", 2, 5)
    l.Allow("k", 2, 5)
    time.Sleep(600 * time.Millisecond) // would refill 3 tokens uncapped
    if !l.Allow("k", 2, 5) {
        t.Fatal("first token after refill should be granted")
    }
    if !l.Allow("k", 2, 5) {
        t.Fatal("second token after refill should be granted")
    }
    if l.Allow("k", 2, 5) {
        t.Fatal("refill must cap at capacity")
    }
}
