package mofs

import "testing"

func TestBufferCacheLookupMiss(t *testing.T) {
	c := newBufferCache(4, 8)
	if slot := c.lookup(99); slot != emptySlot {
		t.Fatalf("lookup on empty cache = %d, want emptySlot", slot)
	}
}

func TestBufferCacheAllocThenLookupHits(t *testing.T) {
	c := newBufferCache(4, 8)
	slot, evicted := c.alloc(10)
	if evicted != emptySlot {
		t.Fatalf("first alloc evicted %d, want emptySlot", evicted)
	}
	if got := c.lookup(10); got != slot {
		t.Fatalf("lookup(10) = %d, want %d", got, slot)
	}
}

// Once every slot has been used, allocating one more id must evict
// something, and it must not be the id just looked up (touched most
// recently) if that id was re-touched after the others.
func TestBufferCacheEvictsOnFullCapacity(t *testing.T) {
	c := newBufferCache(3, 8)
	for id := uint32(1); id <= 3; id++ {
		if _, evicted := c.alloc(id); evicted != emptySlot {
			t.Fatalf("alloc(%d) evicted %d while cache had room", id, evicted)
		}
	}

	// touch id 1 again so it is the most-recently-used entry.
	if slot := c.lookup(1); slot == emptySlot {
		t.Fatalf("lookup(1) missed after alloc")
	}

	_, evicted := c.alloc(4)
	if evicted == emptySlot {
		t.Fatalf("alloc on a full cache evicted nothing")
	}
	if evicted == 1 {
		t.Fatalf("evicted the most-recently-touched id 1")
	}
}
