package mofs

// bufferCache is a fixed-capacity LRU cache indexed by parallel arrays
// rather than pointer-linked nodes: prev/next hold the doubly-linked list
// structure, number holds the cached id for each slot. This is the same
// layout the original buffer cache used for both block and inode caches;
// it is reused here verbatim for both, since reference workloads have a
// small fanout and a contiguous-array scan beats a map for such sizes.
type bufferCache struct {
	prev, next, number []int32
	dirty              []bool
	data               [][]byte
	head, rear         int32
	slotSize           int
}

const emptySlot = -1

func newBufferCache(capacity, slotSize int) *bufferCache {
	c := &bufferCache{
		prev:     make([]int32, capacity),
		next:     make([]int32, capacity),
		number:   make([]int32, capacity),
		dirty:    make([]bool, capacity),
		data:     make([][]byte, capacity),
		slotSize: slotSize,
	}
	for i := range c.data {
		c.data[i] = make([]byte, slotSize)
	}
	c.init()
	return c
}

func (c *bufferCache) init() {
	n := len(c.number)
	c.prev[0] = emptySlot
	for i := 1; i < n; i++ {
		c.prev[i] = int32(i - 1)
	}
	for i := 0; i < n-1; i++ {
		c.next[i] = int32(i + 1)
	}
	c.next[n-1] = emptySlot
	for i := range c.number {
		c.number[i] = emptySlot
	}
	c.head = 0
	c.rear = emptySlot
}

// insertHead unlinks slot from wherever it sits in the list and reinserts
// it at the head, the same pointer surgery as the original InsertHead.
func (c *bufferCache) insertHead(slot int32) {
	nextIdx := c.next[slot]
	prevIdx := c.prev[slot]

	if prevIdx == emptySlot {
		c.rear = slot
	} else if slot == c.rear {
		c.rear = c.prev[c.rear]
	}

	if prevIdx >= 0 {
		c.next[prevIdx] = nextIdx
	} else {
		c.head = nextIdx
	}

	if nextIdx >= 0 {
		c.prev[nextIdx] = prevIdx
	}

	oldHead := c.head
	c.prev[oldHead] = slot
	c.next[slot] = oldHead
	c.prev[slot] = emptySlot
	c.head = slot
}

// lookup returns the slot holding id, or emptySlot if not cached. A hit
// moves the slot to the head.
func (c *bufferCache) lookup(id uint32) int32 {
	search := c.head
	for search >= 0 {
		if uint32(c.number[search]) == id && c.number[search] != emptySlot {
			if search != c.head {
				c.insertHead(search)
			}
			return search
		}
		search = c.next[search]
	}
	return emptySlot
}

// alloc reserves a slot for id, returning the slot and the id it evicted
// (or -1 if the slot was free). The evictee's dirty flag and data are left
// untouched so the caller can flush them against the evicted id; the
// caller's flush is responsible for clearing dirty once written back.
func (c *bufferCache) alloc(id uint32) (slot int32, evicted int32) {
	if c.rear == emptySlot {
		slot = c.head
	} else {
		slot = c.next[c.rear]
	}
	evicted = emptySlot
	if slot == emptySlot {
		slot = c.rear
		evicted = c.number[slot]
	}

	c.insertHead(slot)
	c.number[slot] = int32(id)
	return slot, evicted
}
