package mofs

// OpenFile is one entry in a session's open-file table: a seek pointer and
// the reduced access flags, pointing at a pinned memory inode by handle.
type OpenFile struct {
	handle     InodeHandle
	flags      descFlag
	offset     int64
	lastAccess int64
	lastModify int64
}

// CheckFlags selects the rwx triplet of mode relevant to (uid, gid) and
// tests it against the access requested by flags. READ asks for the read
// bit, WRITE asks for the write bit; both must be present when flags
// requests read/write.
func CheckFlags(mode uint16, fileUID, fileGID, uid, gid int32, flags OpenFlag) bool {
	have := permBits(mode, fileUID, fileGID, uid, gid)
	var want uint16
	if flags.wantRead() {
		want |= permR
	}
	if flags.wantWrite() {
		want |= permW
	}
	return have&want == want
}

// openDescriptor runs CheckFlags against the inode behind h and, on
// success, returns a freshly initialized descriptor for it.
func openDescriptor(fs *FileSystem, h InodeHandle, flags OpenFlag, uid, gid int32) (*OpenFile, error) {
	m, err := fs.itable.Resolve(h)
	if err != nil {
		return nil, err
	}
	if !CheckFlags(m.Mode, int32(m.Uid), int32(m.Gid), uid, gid, flags) {
		return nil, ErrPerm
	}
	now := nowUnix()
	return &OpenFile{
		handle:     h,
		flags:      descFlagsFromOpen(flags),
		lastAccess: now,
		lastModify: now,
	}, nil
}

// IsDirFile reports whether the descriptor's inode is a directory.
func (of *OpenFile) IsDirFile(fs *FileSystem) (bool, error) {
	m, err := fs.itable.Resolve(of.handle)
	if err != nil {
		return false, err
	}
	return m.isDir(), nil
}

// HaveFilesInDir reports whether the descriptor's directory has any live
// entry. Callers must have already checked IsDirFile.
func (of *OpenFile) HaveFilesInDir(fs *FileSystem) (bool, error) {
	m, err := fs.itable.Resolve(of.handle)
	if err != nil {
		return false, err
	}
	return haveFilesInDir(fs, m)
}

// Seek updates the descriptor's offset per whence, rejecting negative
// results and offsets beyond the maximum file size.
func (of *OpenFile) Seek(fs *FileSystem, offset int64, whence Whence) (int64, error) {
	m, err := fs.itable.Resolve(of.handle)
	if err != nil {
		return 0, err
	}

	var newOff int64
	switch whence {
	case SeekSet:
		newOff = offset
	case SeekCur:
		newOff = of.offset + offset
	case SeekEnd:
		newOff = int64(m.Size) + offset
	default:
		return 0, ErrBadFd
	}
	if newOff < 0 || newOff > MaxFileSize {
		return 0, ErrSPipe
	}
	of.offset = newOff
	return newOff, nil
}

// Read reads up to len(buf) bytes from the descriptor's current offset,
// advancing it by the number of bytes actually read.
func (of *OpenFile) Read(fs *FileSystem, buf []byte) (int, error) {
	if !of.flags.Has(descRead) {
		return 0, ErrBadFd
	}
	m, err := fs.itable.Resolve(of.handle)
	if err != nil {
		return 0, err
	}
	n, err := Read(fs, m, of.offset, buf)
	of.offset += int64(n)
	of.lastAccess = nowUnix()
	return n, err
}

// Write writes buf at the descriptor's current offset (or at EOF, if the
// descriptor was opened with APPEND), advancing the offset by the number
// of bytes actually written.
func (of *OpenFile) Write(fs *FileSystem, buf []byte) (int, error) {
	if !of.flags.Has(descWrite) {
		return 0, ErrBadFd
	}
	m, err := fs.itable.Resolve(of.handle)
	if err != nil {
		return 0, err
	}
	off := of.offset
	if of.flags.Has(descAppend) {
		off = int64(m.Size)
	}
	n, err := Write(fs, m, off, buf)
	of.offset = off + int64(n)
	of.lastModify = nowUnix()
	return n, err
}

// Close decrements the pinned inode's reference count and, if updateTime
// is set, stamps the inode's atime/mtime from the descriptor's own before
// writing it back. The inode is written through the inode cache
// regardless of whether the pin count has reached zero, matching the
// buffer cache invariant that no dirty state survives a descriptor close
// unflushed.
func (of *OpenFile) Close(fs *FileSystem, updateTime bool) error {
	m, err := fs.itable.Resolve(of.handle)
	if err != nil {
		return err
	}
	if updateTime {
		m.Atime = uint32(of.lastAccess)
		m.Mtime = uint32(of.lastModify)
		m.markDirty()
	}
	if err := fs.itable.WriteBack(m); err != nil {
		return err
	}
	return fs.itable.Put(of.handle)
}
