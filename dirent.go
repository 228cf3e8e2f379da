package mofs

import "encoding/binary"

// DirEntry is one fixed-size record inside a directory file: a signed
// inode index followed by a NUL-padded name. An index <= 0 marks a free
// slot; entries are otherwise unordered.
type DirEntry struct {
	Ino  int32
	Name [NameMaxLength]byte
}

func (e *DirEntry) nameString() string {
	n := 0
	for n < len(e.Name) && e.Name[n] != 0 {
		n++
	}
	return string(e.Name[:n])
}

func newDirEntry(name string, ino int32) (*DirEntry, error) {
	if len(name) >= NameMaxLength {
		return nil, ErrNameTooLong
	}
	e := &DirEntry{Ino: ino}
	copy(e.Name[:], name)
	return e, nil
}

func (e *DirEntry) marshal() []byte {
	buf := make([]byte, DirEntrySize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(e.Ino))
	copy(buf[4:], e.Name[:])
	return buf
}

func (e *DirEntry) unmarshal(buf []byte) {
	e.Ino = int32(binary.LittleEndian.Uint32(buf[0:4]))
	copy(e.Name[:], buf[4:4+NameMaxLength])
}

// readDirEntry reads the idx-th directory entry of dirIno. Slots beyond
// the current content length read back as a free (Ino == 0) entry.
func readDirEntry(fs *FileSystem, dirIno *MemInode, idx int) (*DirEntry, error) {
	off := int64(idx) * DirEntrySize
	if off >= int64(dirIno.Size) {
		return &DirEntry{}, nil
	}
	buf := make([]byte, DirEntrySize)
	n, err := Read(fs, dirIno, off, buf)
	if err != nil {
		return nil, err
	}
	e := &DirEntry{}
	if n == DirEntrySize {
		e.unmarshal(buf)
	}
	return e, nil
}

func writeDirEntry(fs *FileSystem, dirIno *MemInode, idx int, e *DirEntry) error {
	off := int64(idx) * DirEntrySize
	_, err := Write(fs, dirIno, off, e.marshal())
	return err
}

func dirEntryCount(dirIno *MemInode) int {
	return int(dirIno.Size) / DirEntrySize
}

// searchDir linearly scans dirIno for an entry named name, returning its
// inode number and true on a match.
func searchDir(fs *FileSystem, dirIno *MemInode, name string) (uint32, bool, error) {
	count := dirEntryCount(dirIno)
	for i := 0; i < count; i++ {
		e, err := readDirEntry(fs, dirIno, i)
		if err != nil {
			return 0, false, err
		}
		if e.Ino > 0 && e.nameString() == name {
			return uint32(e.Ino), true, nil
		}
	}
	return 0, false, nil
}

// insertDir adds a (name, ino) entry to dirIno, reusing the first free
// slot if one exists, else appending at EOF. Every structural mutation
// re-stamps the directory's mtime.
func insertDir(fs *FileSystem, dirIno *MemInode, name string, ino uint32) error {
	entry, err := newDirEntry(name, int32(ino))
	if err != nil {
		return err
	}

	count := dirEntryCount(dirIno)
	for i := 0; i < count; i++ {
		e, err := readDirEntry(fs, dirIno, i)
		if err != nil {
			return err
		}
		if e.Ino <= 0 {
			if err := writeDirEntry(fs, dirIno, i, entry); err != nil {
				return err
			}
			dirIno.Mtime = uint32(nowUnix())
			dirIno.markDirty()
			return nil
		}
	}

	if err := writeDirEntry(fs, dirIno, count, entry); err != nil {
		return err
	}
	dirIno.Mtime = uint32(nowUnix())
	dirIno.markDirty()
	return nil
}

// removeDir marks the entry named name as free. Returns ErrNoEnt if absent.
func removeDir(fs *FileSystem, dirIno *MemInode, name string) error {
	count := dirEntryCount(dirIno)
	for i := 0; i < count; i++ {
		e, err := readDirEntry(fs, dirIno, i)
		if err != nil {
			return err
		}
		if e.Ino > 0 && e.nameString() == name {
			e.Ino = -1
			if err := writeDirEntry(fs, dirIno, i, e); err != nil {
				return err
			}
			dirIno.Mtime = uint32(nowUnix())
			dirIno.markDirty()
			return nil
		}
	}
	return ErrNoEnt
}

// haveFilesInDir reports whether dirIno contains any live entry.
func haveFilesInDir(fs *FileSystem, dirIno *MemInode) (bool, error) {
	count := dirEntryCount(dirIno)
	for i := 0; i < count; i++ {
		e, err := readDirEntry(fs, dirIno, i)
		if err != nil {
			return false, err
		}
		if e.Ino > 0 {
			return true, nil
		}
	}
	return false, nil
}
