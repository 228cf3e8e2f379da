package mofs

// Format creates a brand-new image at path and writes a fresh superblock
// and root directory to it. totalBytes is the space available for the
// inode and data regions combined (the image's total size minus the
// reserved header and superblock record); inodeCount is the number of
// inodes to provision.
func Format(path string, totalBytes int64, inodeCount uint32) (*FileSystem, error) {
	img, err := OpenImage(path)
	if err != nil {
		return nil, err
	}
	sb, err := MakeFS(img, totalBytes, inodeCount)
	if err != nil {
		img.Close()
		return nil, err
	}
	return newFileSystem(img, sb), nil
}

// Open loads an existing image's superblock and returns a filesystem
// handle ready for sessions.
func Open(path string) (*FileSystem, error) {
	img, err := OpenImage(path)
	if err != nil {
		return nil, err
	}
	sb, err := LoadSuperblock(img)
	if err != nil {
		img.Close()
		return nil, err
	}
	return newFileSystem(img, sb), nil
}

func newFileSystem(img *Image, sb *Superblock) *FileSystem {
	inodes := newInodeCache(img)
	return &FileSystem{
		img:    img,
		sb:     sb,
		blocks: newBlockCache(img),
		inodes: inodes,
		itable: newInodeTable(sb, inodes, bufferCacheCapacity),
	}
}

// NewSession opens a new (uid, gid) session against fs, starting at the
// filesystem root.
func (fs *FileSystem) NewSession(uid, gid int32) (*Session, error) {
	return NewSession(fs, uid, gid)
}

// Close releases the underlying image file and its exclusive lock. Any
// session using fs must be shut down first.
func (fs *FileSystem) Close() error {
	return fs.img.Close()
}
