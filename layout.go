package mofs

// Fixed geometry constants for the on-disk image. These mirror the
// reference host format bit-for-bit: anything that changes them changes the
// wire format, not just an implementation detail.
const (
	// BlockSize is the fixed unit of device I/O.
	BlockSize = 512

	// HeaderSigSize is the reserved boot-signature region at the start of
	// the image, in bytes. Untouched by this package.
	HeaderSigSize = 200 * BlockSize

	// SuperblockSize is the padded on-disk size of the superblock record.
	SuperblockSize = 1024

	// DiskInodeSize is the packed on-disk size of one inode record.
	DiskInodeSize = 64

	// NameMaxLength is the maximum directory entry name length, including
	// the mandatory NUL terminator when the name is shorter than this.
	NameMaxLength = 28

	// DirEntrySize is the packed size of one directory entry: a 4-byte
	// signed inode index plus a NameMaxLength-byte name field.
	DirEntrySize = 4 + NameMaxLength

	// Direct, single-indirect and double-indirect addressing slot counts,
	// following the classic 6/2/2 split of a 10-entry addressing table.
	directBlocks       = 6
	singleIndirectSlot = 128 // block pointers per single-indirect block
	addrTableSize      = 10

	// MaxFileBlocks is the largest logical block count this addressing
	// scheme can reach: 6 direct + 2*128 single-indirect + 2*128*128
	// double-indirect blocks.
	MaxFileBlocks = directBlocks + 2*singleIndirectSlot + 2*singleIndirectSlot*singleIndirectSlot
	MaxFileSize   = int64(MaxFileBlocks) * BlockSize

	// freeListGroupSize is the width of one (count, ids[...]) group used by
	// both the free-block and free-inode chains.
	freeListGroupSize = 100

	// bufferCacheCapacity is the LRU slot count for the block and inode
	// caches alike.
	bufferCacheCapacity = 128

	// maxOpenFilesPerSession bounds a single session's open-file table.
	maxOpenFilesPerSession = 64
)

// inodeByteOffset resolves the byte offset of on-disk inode n. This package
// locks in the layout where the inode region begins immediately after the
// full padded superblock record (HeaderSigSize + SuperblockSize), rather
// than the alternate "header + 64 reserved bytes" convention also seen in
// reference sources; see the design ledger for the rationale.
func inodeByteOffset(n uint32) int64 {
	return HeaderSigSize + SuperblockSize + int64(n)*DiskInodeSize
}
