package mofs

// BlockCache is the write-back LRU cache for data blocks described in the
// buffer cache component: reads are served from the cache when present,
// writes are buffered and marked dirty, and eviction of a dirty slot
// flushes it to the image before the slot is reused.
type BlockCache struct {
	img *Image
	lru *bufferCache
}

func newBlockCache(img *Image) *BlockCache {
	return &BlockCache{img: img, lru: newBufferCache(bufferCacheCapacity, BlockSize)}
}

func (bc *BlockCache) flushSlot(slot int32) error {
	if !bc.lru.dirty[slot] {
		return nil
	}
	if err := bc.img.WriteBlock(uint32(bc.lru.number[slot]), bc.lru.data[slot]); err != nil {
		return err
	}
	bc.lru.dirty[slot] = false
	return nil
}

// Read copies block n into buf (exactly BlockSize bytes), serving the
// cache when possible. A successful device read caches the block; the
// prior occupant of the reused slot is flushed first if dirty.
func (bc *BlockCache) Read(n uint32, buf []byte) error {
	if slot := bc.lru.lookup(n); slot != emptySlot {
		copy(buf, bc.lru.data[slot])
		return nil
	}

	tmp := make([]byte, BlockSize)
	if err := bc.img.ReadBlock(n, tmp); err != nil {
		return err
	}

	slot, evicted := bc.lru.alloc(n)
	if evicted != emptySlot {
		if err := bc.flushSlotFor(slot, uint32(evicted)); err != nil {
			return err
		}
	}
	copy(bc.lru.data[slot], tmp)
	copy(buf, tmp)
	return nil
}

// flushSlotFor flushes slot while it still logically belongs to evictedID;
// alloc has already overwritten lru.number[slot] with the new id, so the
// write target is passed explicitly rather than read back from the slot.
func (bc *BlockCache) flushSlotFor(slot int32, evictedID uint32) error {
	if !bc.lru.dirty[slot] {
		return nil
	}
	if err := bc.img.WriteBlock(evictedID, bc.lru.data[slot]); err != nil {
		return err
	}
	bc.lru.dirty[slot] = false
	return nil
}

// Write stores buf (exactly BlockSize bytes) as block n's content and
// marks the slot dirty, allocating a cache slot (flushing a dirty evictee
// first) if n was not already cached.
func (bc *BlockCache) Write(n uint32, buf []byte) error {
	if slot := bc.lru.lookup(n); slot != emptySlot {
		copy(bc.lru.data[slot], buf)
		bc.lru.dirty[slot] = true
		return nil
	}

	slot, evicted := bc.lru.alloc(n)
	if evicted != emptySlot {
		if err := bc.flushSlotFor(slot, uint32(evicted)); err != nil {
			return err
		}
	}
	copy(bc.lru.data[slot], buf)
	bc.lru.dirty[slot] = true
	return nil
}

// Flush writes back every dirty slot, without evicting them. Called on
// session shutdown.
func (bc *BlockCache) Flush() error {
	for slot := range bc.lru.number {
		if bc.lru.number[slot] == emptySlot {
			continue
		}
		if err := bc.flushSlot(int32(slot)); err != nil {
			return err
		}
	}
	return nil
}
