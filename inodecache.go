package mofs

// InodeCache is the write-back LRU cache for on-disk inode records, built
// from the same bufferCache primitive as BlockCache; the buffer cache
// component is specified as two independent caches of identical structure.
type InodeCache struct {
	img *Image
	lru *bufferCache
}

func newInodeCache(img *Image) *InodeCache {
	return &InodeCache{img: img, lru: newBufferCache(bufferCacheCapacity, DiskInodeSize)}
}

func (ic *InodeCache) flushSlotFor(slot int32, evictedID uint32) error {
	if !ic.lru.dirty[slot] {
		return nil
	}
	var d DiskInode
	if err := d.UnmarshalBinary(ic.lru.data[slot]); err != nil {
		return err
	}
	if err := ic.img.WriteInode(evictedID, &d); err != nil {
		return err
	}
	ic.lru.dirty[slot] = false
	return nil
}

// Read fills dst with on-disk inode n, serving the cache when possible.
func (ic *InodeCache) Read(n uint32, dst *DiskInode) error {
	if slot := ic.lru.lookup(n); slot != emptySlot {
		return dst.UnmarshalBinary(ic.lru.data[slot])
	}

	if err := ic.img.ReadInode(n, dst); err != nil {
		return err
	}
	buf, err := dst.MarshalBinary()
	if err != nil {
		return err
	}

	slot, evicted := ic.lru.alloc(n)
	if evicted != emptySlot {
		if err := ic.flushSlotFor(slot, uint32(evicted)); err != nil {
			return err
		}
	}
	copy(ic.lru.data[slot], buf)
	return nil
}

// Write stores src as inode n's cached content and marks it dirty.
func (ic *InodeCache) Write(n uint32, src *DiskInode) error {
	buf, err := src.MarshalBinary()
	if err != nil {
		return err
	}

	if slot := ic.lru.lookup(n); slot != emptySlot {
		copy(ic.lru.data[slot], buf)
		ic.lru.dirty[slot] = true
		return nil
	}

	slot, evicted := ic.lru.alloc(n)
	if evicted != emptySlot {
		if err := ic.flushSlotFor(slot, uint32(evicted)); err != nil {
			return err
		}
	}
	copy(ic.lru.data[slot], buf)
	ic.lru.dirty[slot] = true
	return nil
}

// Flush writes back every dirty slot without evicting them.
func (ic *InodeCache) Flush() error {
	for slot := range ic.lru.number {
		if ic.lru.number[slot] == emptySlot {
			continue
		}
		if !ic.lru.dirty[slot] {
			continue
		}
		var d DiskInode
		if err := d.UnmarshalBinary(ic.lru.data[slot]); err != nil {
			return err
		}
		if err := ic.img.WriteInode(uint32(ic.lru.number[slot]), &d); err != nil {
			return err
		}
		ic.lru.dirty[slot] = false
	}
	return nil
}
