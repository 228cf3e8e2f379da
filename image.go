package mofs

import (
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// Image is the block device: a single host file holding the reserved
// header, the superblock, the inode region and the data region. All access
// goes through ReadAt/WriteAt at byte offsets computed by the caller, the
// same random-access style the teacher archive format uses for its own
// backing file, rather than a Seek+Read/Write pair.
type Image struct {
	f          *os.File
	dataOffset int64
}

// OpenImage opens path for read/write, creating it if absent, and takes an
// exclusive advisory lock that is held until Close. The single-actor
// concurrency model has exactly one session touching an image at a time;
// the lock turns an accidental second process into an immediate, legible
// failure instead of silent corruption.
func OpenImage(path string) (*Image, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, newFSError(KindUnknown, "open", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, ErrImageLocked
	}

	return &Image{f: f}, nil
}

// Close releases the advisory lock (implicitly, on fd close) and the
// underlying host file handle.
func (img *Image) Close() error {
	return img.f.Close()
}

// SetDataOffset records where the data region begins, once the superblock
// has been loaded and s_isize is known.
func (img *Image) SetDataOffset(offset int64) {
	img.dataOffset = offset
}

func (img *Image) readExact(off int64, buf []byte) error {
	n, err := img.f.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return newFSError(KindIO, "read", "", err)
	}
	if n != len(buf) {
		return ErrIO
	}
	return nil
}

func (img *Image) writeExact(off int64, buf []byte) error {
	n, err := img.f.WriteAt(buf, off)
	if err != nil {
		return newFSError(KindIO, "write", "", err)
	}
	if n != len(buf) {
		return ErrIO
	}
	return nil
}

// ReadBlock reads data block n (0-based, relative to the data region) into
// buf, which must be exactly BlockSize long.
func (img *Image) ReadBlock(n uint32, buf []byte) error {
	return img.readExact(img.dataOffset+int64(n)*BlockSize, buf)
}

// WriteBlock writes buf (exactly BlockSize bytes) to data block n.
func (img *Image) WriteBlock(n uint32, buf []byte) error {
	return img.writeExact(img.dataOffset+int64(n)*BlockSize, buf)
}

// ReadInode reads on-disk inode n into dst.
func (img *Image) ReadInode(n uint32, dst *DiskInode) error {
	buf := make([]byte, DiskInodeSize)
	if err := img.readExact(inodeByteOffset(n), buf); err != nil {
		return err
	}
	return dst.UnmarshalBinary(buf)
}

// WriteInode serializes src and writes it to on-disk inode slot n.
func (img *Image) WriteInode(n uint32, src *DiskInode) error {
	buf, err := src.MarshalBinary()
	if err != nil {
		return err
	}
	return img.writeExact(inodeByteOffset(n), buf)
}

// LoadSuperblock reads the superblock record into dst.
func (img *Image) LoadSuperblock(dst *Superblock) error {
	buf := make([]byte, SuperblockSize)
	if err := img.readExact(HeaderSigSize, buf); err != nil {
		return err
	}
	return dst.UnmarshalBinary(buf)
}

// StoreSuperblock serializes src and writes it to its fixed offset.
func (img *Image) StoreSuperblock(src *Superblock) error {
	buf, err := src.MarshalBinary()
	if err != nil {
		return err
	}
	return img.writeExact(HeaderSigSize, buf)
}
