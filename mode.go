package mofs

import "io/fs"

// On-disk mode bit layout, little-endian word as stored in DiskInode.Mode.
// Kept exactly as the reference host format expects; every other part of
// this package works with the FileKind variant below instead.
const (
	modeIAlloc = 0x8000 // slot is in use
	modeIFmt   = 0x6000 // type mask
	modeIFDir  = 0x4000
	modeIFReg  = 0x6000

	modeISUID = 0x0800
	modeISGID = 0x0400
	modeISVTX = 0x0200

	modePermMask = 0x01FF // rwxrwxrwx

	permR = 0x4
	permW = 0x2
	permX = 0x1
)

// FileKind is the tagged variant the Design Notes call for in place of
// testing raw bits on d_mode everywhere. Regular and Directory are the only
// kinds this filesystem creates or decodes; Device and Pipe are declared but
// never produced: kindFromDiskMode reports every non-directory mode as
// KindRegular, and diskModeBits encodes every non-directory kind as a
// regular file.
type FileKind uint8

const (
	KindRegular FileKind = iota
	KindDirectory
	KindDevice
	KindPipe
)

func (k FileKind) String() string {
	switch k {
	case KindRegular:
		return "regular"
	case KindDirectory:
		return "directory"
	case KindDevice:
		return "device"
	case KindPipe:
		return "pipe"
	default:
		return "unknown"
	}
}

// kindFromDiskMode extracts the FileKind encoded in an on-disk mode word.
func kindFromDiskMode(mode uint16) FileKind {
	switch mode & modeIFmt {
	case modeIFDir:
		return KindDirectory
	case modeIFReg:
		return KindRegular
	default:
		return KindRegular
	}
}

// diskModeBits composes the on-disk mode word from a kind, perm bits and the
// allocated flag. perm is the low 9 rwxrwxrwx bits plus optional setuid/
// setgid/sticky bits.
func diskModeBits(kind FileKind, perm uint16, allocated bool) uint16 {
	var m uint16
	switch kind {
	case KindDirectory:
		m = modeIFDir
	default:
		m = modeIFReg
	}
	if allocated {
		m |= modeIAlloc
	}
	m |= perm & (modePermMask | modeISUID | modeISGID | modeISVTX)
	return m
}

func isAllocated(mode uint16) bool {
	return mode&modeIAlloc != 0
}

// ModeToFS converts an on-disk mode word to a Go fs.FileMode, for the
// read-only io/fs facade.
func ModeToFS(mode uint16) fs.FileMode {
	res := fs.FileMode(mode & modePermMask)
	if kindFromDiskMode(mode) == KindDirectory {
		res |= fs.ModeDir
	}
	if mode&modeISUID != 0 {
		res |= fs.ModeSetuid
	}
	if mode&modeISGID != 0 {
		res |= fs.ModeSetgid
	}
	if mode&modeISVTX != 0 {
		res |= fs.ModeSticky
	}
	return res
}

// permBits selects the rwx triplet of mode relevant to the given
// uid/gid pair: owner bits if uid matches, group bits if gid matches,
// else the "other" bits. Matches CheckFlags in §4.5.
func permBits(mode uint16, fileUID, fileGID, uid, gid int32) uint16 {
	switch {
	case uid == fileUID:
		return (mode >> 6) & 0x7
	case gid == fileGID:
		return (mode >> 3) & 0x7
	default:
		return mode & 0x7
	}
}
