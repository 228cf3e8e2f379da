package mofs

// InodeHandle is a small integer handle plus a generation counter, used in
// place of a raw pointer into the in-memory inode pool. Open-file entries
// keep a handle rather than a *MemInode so that an evicted-and-reused slot
// can never be mistaken for the inode it used to hold: Resolve rejects a
// handle whose generation is stale.
type InodeHandle struct {
	slot int32
	gen  uint32
}

func (h InodeHandle) Valid() bool { return h.slot >= 0 }

// MemInode mirrors the on-disk inode fields plus the bookkeeping the
// reference implementation keeps only in memory: a pin count, dirty/used
// flags and the inode's own number.
type MemInode struct {
	Number uint32
	Mode   uint16
	Nlink  uint16
	Uid    int16
	Gid    int16
	Size   uint32
	Addr   [addrTableSize]uint32
	Atime  uint32
	Mtime  uint32

	count uint32 // i_count: number of open descriptors pinning this slot
	dirty bool
	used  bool
}

func (m *MemInode) kind() FileKind     { return kindFromDiskMode(m.Mode) }
func (m *MemInode) isDir() bool        { return m.kind() == KindDirectory }
func (m *MemInode) perm() uint16       { return m.Mode & modePermMask }
func (m *MemInode) markDirty()         { m.dirty = true }

func (m *MemInode) toDisk() *DiskInode {
	return &DiskInode{
		Mode: m.Mode, Nlink: m.Nlink, Uid: m.Uid, Gid: m.Gid,
		Size: m.Size, Addr: m.Addr, Atime: m.Atime, Mtime: m.Mtime,
	}
}

func (m *MemInode) fromDisk(number uint32, d *DiskInode) {
	m.Number = number
	m.Mode, m.Nlink, m.Uid, m.Gid = d.Mode, d.Nlink, d.Uid, d.Gid
	m.Size, m.Addr, m.Atime, m.Mtime = d.Size, d.Addr, d.Atime, d.Mtime
	m.used = true
}

// InodeTable is the bounded arena of memory inode slots. Eviction of a
// slot is only permitted while its pin count is zero, matching the
// reference pool's invariant.
type InodeTable struct {
	sb    *Superblock
	cache *InodeCache
	slots []MemInode
	gen   []uint32
}

func newInodeTable(sb *Superblock, cache *InodeCache, capacity int) *InodeTable {
	return &InodeTable{
		sb:    sb,
		cache: cache,
		slots: make([]MemInode, capacity),
		gen:   make([]uint32, capacity),
	}
}

func (t *InodeTable) handle(slot int) InodeHandle {
	return InodeHandle{slot: int32(slot), gen: t.gen[slot]}
}

// Resolve validates a handle and returns its slot, or ErrBadFd if the
// handle's generation is stale (the slot was evicted and reused since).
func (t *InodeTable) Resolve(h InodeHandle) (*MemInode, error) {
	if h.slot < 0 || int(h.slot) >= len(t.slots) {
		return nil, ErrBadFd
	}
	if t.gen[h.slot] != h.gen {
		return nil, ErrBadFd
	}
	return &t.slots[h.slot], nil
}

// Get returns a pinned handle to inode number, loading it from the cache
// if not already resident. Every successful Get must be matched with a
// Put.
func (t *InodeTable) Get(number uint32) (InodeHandle, *MemInode, error) {
	for i := range t.slots {
		if t.slots[i].used && t.slots[i].Number == number {
			t.slots[i].count++
			return t.handle(i), &t.slots[i], nil
		}
	}

	slot := -1
	for i := range t.slots {
		if !t.slots[i].used {
			slot = i
			break
		}
	}
	if slot == -1 {
		for i := range t.slots {
			if t.slots[i].count == 0 {
				slot = i
				break
			}
		}
	}
	if slot == -1 {
		return InodeHandle{slot: -1}, nil, ErrNoMem
	}

	if t.slots[slot].used && t.slots[slot].dirty {
		if err := t.cache.Write(t.slots[slot].Number, t.slots[slot].toDisk()); err != nil {
			return InodeHandle{slot: -1}, nil, err
		}
	}

	var d DiskInode
	if err := t.cache.Read(number, &d); err != nil {
		return InodeHandle{slot: -1}, nil, err
	}

	t.slots[slot] = MemInode{}
	t.slots[slot].fromDisk(number, &d)
	t.slots[slot].count = 1
	t.gen[slot]++

	return t.handle(slot), &t.slots[slot], nil
}

// Put releases one pin on the inode behind h. The slot stays cached (used
// stays true) until some future Get needs the slot and finds it unpinned;
// a caller that is actually releasing the inode (nlink dropped to zero)
// calls Free before its Put, as Unlink does.
func (t *InodeTable) Put(h InodeHandle) error {
	m, err := t.Resolve(h)
	if err != nil {
		return err
	}
	if m.count > 0 {
		m.count--
	}
	return nil
}

// WriteBack flushes m's fields to the inode cache if dirty, clearing the
// flag on success.
func (t *InodeTable) WriteBack(m *MemInode) error {
	if !m.dirty {
		return nil
	}
	if err := t.cache.Write(m.Number, m.toDisk()); err != nil {
		return err
	}
	m.dirty = false
	return nil
}

// Free marks the slot behind h as no longer holding a live inode, for use
// once nlink has reached zero and its blocks and inode number have already
// been returned to the allocator. The slot remains pinned by count until
// the caller's own Put.
func (t *InodeTable) Free(h InodeHandle) error {
	m, err := t.Resolve(h)
	if err != nil {
		return err
	}
	m.used = false
	m.dirty = false
	return nil
}
