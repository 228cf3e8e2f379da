package mofs

// FileSystem is the explicit context threaded through every operation in
// place of the reference implementation's process-wide globals (the
// superblock, the two buffer caches, the memory inode table). Bundling
// them into one value makes every operation take its dependencies as an
// argument, which is what lets tests construct isolated instances.
type FileSystem struct {
	img    *Image
	sb     *Superblock
	blocks *BlockCache
	inodes *InodeCache
	itable *InodeTable
}

func ceilBlocks(size uint32) uint32 {
	return (size + BlockSize - 1) / BlockSize
}
