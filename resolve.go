package mofs

// resolve walks path to its parent directory, returning a pinned
// descriptor for that directory plus the leaf name still held in the
// accumulator. The caller owns the returned descriptor and must Close it
// on every exit path, success or failure.
//
// An absolute path starts from the root inode; a relative path starts
// from the session's current working directory. Consecutive slashes
// collapse, a "." component followed by a slash is a no-op (a final "." is
// returned as the leaf name), and a component longer than
// NameMaxLength-1 bytes fails with ErrNameTooLong.
func resolve(fs *FileSystem, sess *Session, path string) (*OpenFile, string, error) {
	var startIno uint32
	if len(path) > 0 && path[0] == '/' {
		startIno = fs.sb.RootInode
	} else {
		m, err := fs.itable.Resolve(sess.cwd().handle)
		if err != nil {
			return nil, "", err
		}
		startIno = m.Number
	}

	h, m, err := fs.itable.Get(startIno)
	if err != nil {
		return nil, "", err
	}
	cur := &OpenFile{handle: h}

	accum := make([]byte, 0, NameMaxLength)
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c != '/' {
			accum = append(accum, c)
			if len(accum) >= NameMaxLength {
				cur.Close(fs, false)
				return nil, "", ErrNameTooLong
			}
			continue
		}

		if len(accum) == 0 {
			continue // collapse consecutive slashes
		}
		name := string(accum)
		accum = accum[:0]
		if name == "." {
			continue
		}

		if !m.isDir() {
			cur.Close(fs, false)
			return nil, "", ErrNotDir
		}
		childIno, found, err := searchDir(fs, m, name)
		if err != nil {
			cur.Close(fs, false)
			return nil, "", err
		}
		if !found {
			cur.Close(fs, false)
			return nil, "", ErrNoEnt
		}
		nh, nm, err := fs.itable.Get(childIno)
		if err != nil {
			cur.Close(fs, false)
			return nil, "", err
		}
		cur.Close(fs, false)
		cur = &OpenFile{handle: nh}
		m = nm
	}

	return cur, string(accum), nil
}
