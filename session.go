package mofs

// Session binds a (uid, gid) pair to a bounded table of open descriptors
// and a current working directory, held as an ordinary entry in that same
// table so "." resolves uniformly through the same code path as any other
// directory. The cwd slot cannot be closed by Close; only Chdir or
// Shutdown replaces it.
type Session struct {
	fs     *FileSystem
	Uid    int32
	Gid    int32
	files  [maxOpenFilesPerSession]*OpenFile
	cwdFd  int
}

// NewSession opens the filesystem root as the initial working directory
// and returns a ready-to-use session.
func NewSession(fs *FileSystem, uid, gid int32) (*Session, error) {
	h, _, err := fs.itable.Get(fs.sb.RootInode)
	if err != nil {
		return nil, err
	}
	sess := &Session{fs: fs, Uid: uid, Gid: gid, cwdFd: 0}
	sess.files[0] = &OpenFile{handle: h, flags: descRead | descWrite}
	return sess, nil
}

func (s *Session) cwd() *OpenFile { return s.files[s.cwdFd] }

func (s *Session) allocFd() (int, error) {
	for i, f := range s.files {
		if f == nil {
			return i, nil
		}
	}
	return -1, ErrMFile
}

func (s *Session) installFd(of *OpenFile) (int, error) {
	fd, err := s.allocFd()
	if err != nil {
		return -1, err
	}
	s.files[fd] = of
	return fd, nil
}

// Descriptor returns the open file at fd, or ErrBadFd if fd is unbound.
func (s *Session) Descriptor(fd int) (*OpenFile, error) {
	if fd < 0 || fd >= len(s.files) || s.files[fd] == nil {
		return nil, ErrBadFd
	}
	return s.files[fd], nil
}

// Close closes fd, rejecting an attempt to close the current working
// directory.
func (s *Session) Close(fd int) error {
	if fd == s.cwdFd {
		return ErrPerm
	}
	of, err := s.Descriptor(fd)
	if err != nil {
		return err
	}
	if err := of.Close(s.fs, true); err != nil {
		return err
	}
	s.files[fd] = nil
	return nil
}

// Chdir opens path as the new current working directory, replacing the
// old one. The old cwd descriptor is closed without stamping its access
// time, matching the reference's distinction between an ordinary close and
// a directory-change handoff.
func (s *Session) Chdir(path string) error {
	parent, leaf, err := resolve(s.fs, s, path)
	if err != nil {
		return err
	}

	pm, err := s.fs.itable.Resolve(parent.handle)
	if err != nil {
		parent.Close(s.fs, false)
		return err
	}

	targetIno := pm.Number
	if leaf != "" {
		ino, found, err := searchDir(s.fs, pm, leaf)
		if err != nil {
			parent.Close(s.fs, false)
			return err
		}
		if !found {
			parent.Close(s.fs, false)
			return ErrNoEnt
		}
		targetIno = ino
	}

	h, m, err := s.fs.itable.Get(targetIno)
	if err != nil {
		parent.Close(s.fs, false)
		return err
	}
	if !m.isDir() {
		s.fs.itable.Put(h)
		parent.Close(s.fs, false)
		return ErrNotDir
	}
	if !CheckFlags(m.Mode, int32(m.Uid), int32(m.Gid), s.Uid, s.Gid, ORDWR) {
		s.fs.itable.Put(h)
		parent.Close(s.fs, false)
		return ErrPerm
	}

	newCwd := &OpenFile{handle: h, flags: descRead | descWrite}
	parent.Close(s.fs, false)

	old := s.files[s.cwdFd]
	s.files[s.cwdFd] = newCwd
	if old != nil {
		old.Close(s.fs, false)
	}
	return nil
}

// Shutdown closes every open descriptor, flushes both buffer caches and
// writes the superblock back, per the session teardown state machine.
func (s *Session) Shutdown() error {
	for fd := range s.files {
		if fd == s.cwdFd || s.files[fd] == nil {
			continue
		}
		if err := s.files[fd].Close(s.fs, true); err != nil {
			return err
		}
		s.files[fd] = nil
	}
	if s.files[s.cwdFd] != nil {
		if err := s.files[s.cwdFd].Close(s.fs, false); err != nil {
			return err
		}
		s.files[s.cwdFd] = nil
	}
	if err := s.fs.inodes.Flush(); err != nil {
		return err
	}
	if err := s.fs.blocks.Flush(); err != nil {
		return err
	}
	return s.fs.img.StoreSuperblock(s.fs.sb)
}
