package mofs

import (
	"io"
	"io/fs"
	"strings"
	"time"
)

// ReadOnlyFS adapts a FileSystem to io/fs.FS, so callers get fs.ReadFile,
// fs.Stat, fs.WalkDir and friends for free, the same reason the teacher
// archive format exposes one over its own read-only inode tree. It runs
// its own session internally (uid/gid 0) and never mutates the image.
type ReadOnlyFS struct {
	fs   *FileSystem
	sess *Session
}

// NewReadOnlyFS opens an internal uid=0/gid=0 session against fs for
// read-only traversal.
func NewReadOnlyFS(fsys *FileSystem) (*ReadOnlyFS, error) {
	sess, err := fsys.NewSession(0, 0)
	if err != nil {
		return nil, err
	}
	return &ReadOnlyFS{fs: fsys, sess: sess}, nil
}

// Close shuts down the internal session.
func (r *ReadOnlyFS) Close() error {
	return r.sess.Shutdown()
}

func toFSPath(name string) string {
	if name == "." {
		return "/"
	}
	return "/" + name
}

func baseName(name string) string {
	if idx := strings.LastIndexByte(name, '/'); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

// Open implements io/fs.FS.
func (r *ReadOnlyFS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	fd, err := r.sess.Open(toFSPath(name), ORDONLY, 0)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	of, err := r.sess.Descriptor(fd)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	m, err := r.fs.itable.Resolve(of.handle)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}

	base := roFile{sess: r.sess, of: of, fsys: r.fs, name: baseName(name)}
	if m.isDir() {
		return &roDir{roFile: base}, nil
	}
	return &base, nil
}

type roFile struct {
	sess *Session
	of   *OpenFile
	fsys *FileSystem
	name string
}

func (f *roFile) Stat() (fs.FileInfo, error) {
	m, err := f.fsys.itable.Resolve(f.of.handle)
	if err != nil {
		return nil, err
	}
	return &fileInfo{
		name: f.name, size: int64(m.Size),
		mode: ModeToFS(m.Mode), mtime: int64(m.Mtime),
	}, nil
}

func (f *roFile) Read(p []byte) (int, error) {
	n, err := f.of.Read(f.fsys, p)
	if err == nil && n == 0 && len(p) > 0 {
		err = io.EOF
	}
	return n, err
}

func (f *roFile) Close() error {
	return f.of.Close(f.fsys, false)
}

// roDir additionally implements fs.ReadDirFile.
type roDir struct {
	roFile
	idx int
}

func (d *roDir) ReadDir(n int) ([]fs.DirEntry, error) {
	m, err := d.fsys.itable.Resolve(d.of.handle)
	if err != nil {
		return nil, err
	}
	count := dirEntryCount(m)

	var out []fs.DirEntry
	for d.idx < count {
		if n > 0 && len(out) >= n {
			break
		}
		e, err := readDirEntry(d.fsys, m, d.idx)
		d.idx++
		if err != nil {
			return out, err
		}
		if e.Ino <= 0 {
			continue
		}
		st, err := d.sess.InodeStat(uint32(e.Ino))
		if err != nil {
			return out, err
		}
		out = append(out, &mofsDirEntry{name: e.nameString(), stat: st})
	}
	if n > 0 && len(out) == 0 {
		return out, io.EOF
	}
	return out, nil
}

type mofsDirEntry struct {
	name string
	stat *Stat
}

func (e *mofsDirEntry) Name() string { return e.name }
func (e *mofsDirEntry) IsDir() bool  { return kindFromDiskMode(e.stat.Mode) == KindDirectory }
func (e *mofsDirEntry) Type() fs.FileMode {
	return ModeToFS(e.stat.Mode).Type()
}
func (e *mofsDirEntry) Info() (fs.FileInfo, error) {
	return &fileInfo{name: e.name, size: int64(e.stat.Size), mode: ModeToFS(e.stat.Mode), mtime: int64(e.stat.Mtime)}, nil
}

type fileInfo struct {
	name  string
	size  int64
	mode  fs.FileMode
	mtime int64
}

func (fi *fileInfo) Name() string       { return fi.name }
func (fi *fileInfo) Size() int64        { return fi.size }
func (fi *fileInfo) Mode() fs.FileMode  { return fi.mode }
func (fi *fileInfo) ModTime() time.Time { return time.Unix(fi.mtime, 0) }
func (fi *fileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *fileInfo) Sys() any           { return nil }
