package mofs

// Stat is the metadata primitives such as Stat and InodeStat report back.
type Stat struct {
	Ino   uint32
	Mode  uint16
	Nlink uint16
	Uid   int16
	Gid   int16
	Size  uint32
	Atime uint32
	Mtime uint32
}

// Creat creates a fresh regular file at path and opens it for writing,
// failing with ErrExist if the leaf already exists.
func (s *Session) Creat(path string, perm uint16) (int, error) {
	parent, leaf, err := resolve(s.fs, s, path)
	if err != nil {
		return -1, err
	}
	pm, err := s.fs.itable.Resolve(parent.handle)
	if err != nil {
		parent.Close(s.fs, false)
		return -1, err
	}
	if !pm.isDir() {
		parent.Close(s.fs, false)
		return -1, ErrNotDir
	}
	if leaf == "" {
		parent.Close(s.fs, false)
		return -1, ErrIsDir
	}
	if _, found, err := searchDir(s.fs, pm, leaf); err != nil {
		parent.Close(s.fs, false)
		return -1, err
	} else if found {
		parent.Close(s.fs, false)
		return -1, ErrExist
	}

	ino, err := s.fs.sb.AllocDiskInode(s.fs.img)
	if err != nil {
		parent.Close(s.fs, false)
		return -1, err
	}

	h, m, err := s.fs.itable.Get(ino)
	if err != nil {
		parent.Close(s.fs, false)
		return -1, err
	}
	s.initFreshInode(m, ino, KindRegular, perm)

	if err := insertDir(s.fs, pm, leaf, ino); err != nil {
		s.fs.itable.Put(h)
		parent.Close(s.fs, false)
		return -1, err
	}
	parent.Close(s.fs, false)

	of, err := openDescriptor(s.fs, h, OWRONLY, s.Uid, s.Gid)
	if err != nil {
		s.fs.itable.Put(h)
		return -1, err
	}
	return s.finishOpen(of, OWRONLY)
}

func (s *Session) initFreshInode(m *MemInode, ino uint32, kind FileKind, perm uint16) {
	*m = MemInode{}
	m.Number = ino
	m.Mode = diskModeBits(kind, perm, true)
	m.Nlink = 1
	m.Uid = int16(s.Uid)
	m.Gid = int16(s.Gid)
	m.count = 1
	m.used = true
	m.markDirty()
}

// Mkdir creates a fresh, empty directory at path. Unlike Creat, it does
// not leave a descriptor open on success.
func (s *Session) Mkdir(path string, perm uint16) error {
	parent, leaf, err := resolve(s.fs, s, path)
	if err != nil {
		return err
	}
	pm, err := s.fs.itable.Resolve(parent.handle)
	if err != nil {
		parent.Close(s.fs, false)
		return err
	}
	if !pm.isDir() {
		parent.Close(s.fs, false)
		return ErrNotDir
	}
	if leaf == "" {
		parent.Close(s.fs, false)
		return ErrExist
	}
	if _, found, err := searchDir(s.fs, pm, leaf); err != nil {
		parent.Close(s.fs, false)
		return err
	} else if found {
		parent.Close(s.fs, false)
		return ErrExist
	}

	ino, err := s.fs.sb.AllocDiskInode(s.fs.img)
	if err != nil {
		parent.Close(s.fs, false)
		return err
	}
	h, m, err := s.fs.itable.Get(ino)
	if err != nil {
		parent.Close(s.fs, false)
		return err
	}
	s.initFreshInode(m, ino, KindDirectory, perm)

	if err := insertDir(s.fs, pm, leaf, ino); err != nil {
		s.fs.itable.Put(h)
		parent.Close(s.fs, false)
		return err
	}
	parent.Close(s.fs, false)

	if err := s.fs.itable.WriteBack(m); err != nil {
		s.fs.itable.Put(h)
		return err
	}
	return s.fs.itable.Put(h)
}

// Open resolves path and opens it with flags, falling back to a Creat-like
// allocation when the leaf is absent and flags requests OCREAT.
func (s *Session) Open(path string, flags OpenFlag, perm uint16) (int, error) {
	parent, leaf, err := resolve(s.fs, s, path)
	if err != nil {
		return -1, err
	}
	pm, err := s.fs.itable.Resolve(parent.handle)
	if err != nil {
		parent.Close(s.fs, false)
		return -1, err
	}

	var targetIno uint32
	if leaf == "" {
		targetIno = pm.Number
	} else {
		ino, found, err := searchDir(s.fs, pm, leaf)
		if err != nil {
			parent.Close(s.fs, false)
			return -1, err
		}
		if !found {
			if !flags.Has(OCREAT) {
				parent.Close(s.fs, false)
				return -1, ErrNoEnt
			}
			if !pm.isDir() {
				parent.Close(s.fs, false)
				return -1, ErrNotDir
			}
			newIno, err := s.fs.sb.AllocDiskInode(s.fs.img)
			if err != nil {
				parent.Close(s.fs, false)
				return -1, err
			}
			h, m, err := s.fs.itable.Get(newIno)
			if err != nil {
				parent.Close(s.fs, false)
				return -1, err
			}
			s.initFreshInode(m, newIno, KindRegular, perm)
			if err := insertDir(s.fs, pm, leaf, newIno); err != nil {
				s.fs.itable.Put(h)
				parent.Close(s.fs, false)
				return -1, err
			}
			parent.Close(s.fs, false)
			of, err := openDescriptor(s.fs, h, flags, s.Uid, s.Gid)
			if err != nil {
				s.fs.itable.Put(h)
				return -1, err
			}
			return s.finishOpen(of, flags)
		}
		targetIno = ino
	}

	h, m, err := s.fs.itable.Get(targetIno)
	if err != nil {
		parent.Close(s.fs, false)
		return -1, err
	}
	parent.Close(s.fs, false)

	if flags.Has(ODIRECTORY) && !m.isDir() {
		s.fs.itable.Put(h)
		return -1, ErrNotDir
	}
	of, err := openDescriptor(s.fs, h, flags, s.Uid, s.Gid)
	if err != nil {
		s.fs.itable.Put(h)
		return -1, err
	}
	return s.finishOpen(of, flags)
}

func (s *Session) finishOpen(of *OpenFile, flags OpenFlag) (int, error) {
	if flags.Has(OAPPEND) {
		if _, err := of.Seek(s.fs, 0, SeekEnd); err != nil {
			of.Close(s.fs, false)
			return -1, err
		}
	}
	fd, err := s.installFd(of)
	if err != nil {
		of.Close(s.fs, false)
		return -1, err
	}
	return fd, nil
}

// Read reads from fd into buf, validating the descriptor first.
func (s *Session) Read(fd int, buf []byte) (int, error) {
	of, err := s.Descriptor(fd)
	if err != nil {
		return -1, err
	}
	return of.Read(s.fs, buf)
}

// Write writes buf to fd, validating the descriptor first.
func (s *Session) Write(fd int, buf []byte) (int, error) {
	of, err := s.Descriptor(fd)
	if err != nil {
		return -1, err
	}
	return of.Write(s.fs, buf)
}

// Lseek repositions fd's offset.
func (s *Session) Lseek(fd int, offset int64, whence Whence) (int64, error) {
	of, err := s.Descriptor(fd)
	if err != nil {
		return -1, err
	}
	return of.Seek(s.fs, offset, whence)
}

// Link creates dst as a second name for the same inode src resolves to.
func (s *Session) Link(src, dst string) error {
	srcParent, srcLeaf, err := resolve(s.fs, s, src)
	if err != nil {
		return err
	}
	spm, err := s.fs.itable.Resolve(srcParent.handle)
	if err != nil {
		srcParent.Close(s.fs, false)
		return err
	}
	if srcLeaf == "" {
		srcParent.Close(s.fs, false)
		return ErrIsDir
	}
	srcIno, found, err := searchDir(s.fs, spm, srcLeaf)
	srcParent.Close(s.fs, false)
	if err != nil {
		return err
	}
	if !found {
		return ErrNoEnt
	}

	dstParent, dstLeaf, err := resolve(s.fs, s, dst)
	if err != nil {
		return err
	}
	dpm, err := s.fs.itable.Resolve(dstParent.handle)
	if err != nil {
		dstParent.Close(s.fs, false)
		return err
	}
	if dstLeaf == "" {
		dstParent.Close(s.fs, false)
		return ErrExist
	}
	if _, found, err := searchDir(s.fs, dpm, dstLeaf); err != nil {
		dstParent.Close(s.fs, false)
		return err
	} else if found {
		dstParent.Close(s.fs, false)
		return ErrExist
	}
	if err := insertDir(s.fs, dpm, dstLeaf, srcIno); err != nil {
		dstParent.Close(s.fs, false)
		return err
	}
	dstParent.Close(s.fs, false)

	h, m, err := s.fs.itable.Get(srcIno)
	if err != nil {
		return err
	}
	m.Nlink++
	m.markDirty()
	if err := s.fs.itable.WriteBack(m); err != nil {
		s.fs.itable.Put(h)
		return err
	}
	return s.fs.itable.Put(h)
}

// Unlink removes path's directory entry, decrementing the target's link
// count and releasing its blocks and inode number once both nlink and the
// open-descriptor count reach zero. A target still held open by some
// descriptor fails with ErrBusy; a non-empty directory fails with
// ErrNotEmpty.
func (s *Session) Unlink(path string) error {
	parent, leaf, err := resolve(s.fs, s, path)
	if err != nil {
		return err
	}
	pm, err := s.fs.itable.Resolve(parent.handle)
	if err != nil {
		parent.Close(s.fs, false)
		return err
	}
	if leaf == "" {
		parent.Close(s.fs, false)
		return ErrPerm
	}
	ino, found, err := searchDir(s.fs, pm, leaf)
	if err != nil {
		parent.Close(s.fs, false)
		return err
	}
	if !found {
		parent.Close(s.fs, false)
		return ErrNoEnt
	}

	h, m, err := s.fs.itable.Get(ino)
	if err != nil {
		parent.Close(s.fs, false)
		return err
	}
	if m.count > 1 {
		s.fs.itable.Put(h)
		parent.Close(s.fs, false)
		return ErrBusy
	}
	if m.isDir() {
		has, err := haveFilesInDir(s.fs, m)
		if err != nil {
			s.fs.itable.Put(h)
			parent.Close(s.fs, false)
			return err
		}
		if has {
			s.fs.itable.Put(h)
			parent.Close(s.fs, false)
			return ErrNotEmpty
		}
	}

	if err := removeDir(s.fs, pm, leaf); err != nil {
		s.fs.itable.Put(h)
		parent.Close(s.fs, false)
		return err
	}
	parent.Close(s.fs, false)

	if m.Nlink > 0 {
		m.Nlink--
	}
	if m.Nlink == 0 {
		if err := ReleaseBlocks(s.fs, m); err != nil {
			s.fs.itable.Put(h)
			return err
		}
		m.Mode = 0
		m.markDirty()
		if err := s.fs.itable.WriteBack(m); err != nil {
			s.fs.itable.Put(h)
			return err
		}
		if err := s.fs.sb.ReleaseInode(s.fs.img, m.Number); err != nil {
			s.fs.itable.Put(h)
			return err
		}
		s.fs.itable.Free(h)
		return s.fs.itable.Put(h)
	}

	m.markDirty()
	if err := s.fs.itable.WriteBack(m); err != nil {
		s.fs.itable.Put(h)
		return err
	}
	return s.fs.itable.Put(h)
}

// Stat resolves path and fills in its metadata.
func (s *Session) Stat(path string) (*Stat, error) {
	parent, leaf, err := resolve(s.fs, s, path)
	if err != nil {
		return nil, err
	}
	pm, err := s.fs.itable.Resolve(parent.handle)
	if err != nil {
		parent.Close(s.fs, false)
		return nil, err
	}
	ino := pm.Number
	if leaf != "" {
		found, ok, err := searchDir(s.fs, pm, leaf)
		if err != nil {
			parent.Close(s.fs, false)
			return nil, err
		}
		if !ok {
			parent.Close(s.fs, false)
			return nil, ErrNoEnt
		}
		ino = found
	}
	parent.Close(s.fs, false)
	return s.InodeStat(ino)
}

// InodeStat fills in metadata for inode number ino directly.
func (s *Session) InodeStat(ino uint32) (*Stat, error) {
	h, m, err := s.fs.itable.Get(ino)
	if err != nil {
		return nil, err
	}
	st := &Stat{
		Ino: ino, Mode: m.Mode, Nlink: m.Nlink,
		Uid: m.Uid, Gid: m.Gid, Size: m.Size,
		Atime: m.Atime, Mtime: m.Mtime,
	}
	if err := s.fs.itable.Put(h); err != nil {
		return nil, err
	}
	return st, nil
}
