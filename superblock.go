package mofs

import (
	"bytes"
	"encoding/binary"
	"reflect"
)

// Superblock is one image's allocator state: free-block and
// free-inode chains plus the geometry of the image it governs. Marshalling
// walks exported fields with reflection, mirroring the teacher archive
// format's own superblock codec.
type Superblock struct {
	ISize        uint32
	FSize        uint32
	NFree        uint32
	Free         [freeListGroupSize]uint32
	NInode       uint32
	Inode        [freeListGroupSize]uint32
	NextInodeBlk uint32
	RootInode    uint32
	Time         uint32
}

func (sb *Superblock) MarshalBinary() ([]byte, error) {
	buf := &bytes.Buffer{}
	v := reflect.ValueOf(sb).Elem()
	for i := 0; i < v.NumField(); i++ {
		name := v.Type().Field(i).Name
		if name[0] < 'A' || name[0] > 'Z' {
			continue
		}
		if err := binary.Write(buf, binary.LittleEndian, v.Field(i).Interface()); err != nil {
			return nil, err
		}
	}
	out := make([]byte, SuperblockSize)
	copy(out, buf.Bytes())
	return out, nil
}

func (sb *Superblock) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)
	v := reflect.ValueOf(sb).Elem()
	for i := 0; i < v.NumField(); i++ {
		name := v.Type().Field(i).Name
		if name[0] < 'A' || name[0] > 'Z' {
			continue
		}
		if err := binary.Read(r, binary.LittleEndian, v.Field(i).Addr().Interface()); err != nil {
			return err
		}
	}
	return nil
}

// LoadSuperblock reads the superblock of an already opened image, wiring
// the data-region offset derived from ISize.
func LoadSuperblock(img *Image) (*Superblock, error) {
	sb := &Superblock{}
	if err := img.LoadSuperblock(sb); err != nil {
		return nil, err
	}
	img.SetDataOffset(HeaderSigSize + SuperblockSize + int64(sb.ISize)*BlockSize)
	return sb, nil
}

// groupBlock is the 101-word (nfree-or-pointer, ids[100]) layout shared by
// the free-block and free-inode overflow chains.
type groupBlock struct {
	head uint32
	ids  [freeListGroupSize]uint32
}

func (g *groupBlock) marshal() []byte {
	buf := make([]byte, BlockSize)
	binary.LittleEndian.PutUint32(buf[0:4], g.head)
	for i, id := range g.ids {
		binary.LittleEndian.PutUint32(buf[4+4*i:8+4*i], id)
	}
	return buf
}

func (g *groupBlock) unmarshal(buf []byte) {
	g.head = binary.LittleEndian.Uint32(buf[0:4])
	for i := range g.ids {
		g.ids[i] = binary.LittleEndian.Uint32(buf[4+4*i : 8+4*i])
	}
}

// AllocBlock pops one free data block, extending the chain from disk if
// the direct cache is about to run dry.
func (sb *Superblock) AllocBlock(img *Image) (uint32, error) {
	if sb.NFree == 0 {
		return 0, ErrNoSpc
	}
	sb.NFree--
	bno := sb.Free[sb.NFree]
	if bno == 0 {
		return 0, ErrNoSpc
	}
	if sb.NFree == 0 {
		buf := make([]byte, BlockSize)
		if err := img.ReadBlock(bno, buf); err != nil {
			return 0, err
		}
		var g groupBlock
		g.unmarshal(buf)
		sb.NFree = g.head
		sb.Free = g.ids
	}
	return bno, nil
}

// ReleaseBlock returns block b to the free chain, spilling the current
// direct cache to disk first if it is full.
func (sb *Superblock) ReleaseBlock(img *Image, b uint32) error {
	if sb.NFree == freeListGroupSize {
		g := groupBlock{head: sb.NFree, ids: sb.Free}
		if err := img.WriteBlock(b, g.marshal()); err != nil {
			return err
		}
		sb.NFree = 1
		sb.Free[0] = b
		return nil
	}
	sb.Free[sb.NFree] = b
	sb.NFree++
	return nil
}

// AllocDiskInode pops one free inode number, refilling from the overflow
// chain if necessary.
func (sb *Superblock) AllocDiskInode(img *Image) (uint32, error) {
	if sb.NInode == 0 {
		if sb.NextInodeBlk == 0 {
			return 0, ErrNoIno
		}
		buf := make([]byte, BlockSize)
		if err := img.ReadBlock(sb.NextInodeBlk, buf); err != nil {
			return 0, err
		}
		var g groupBlock
		g.unmarshal(buf)
		sb.NextInodeBlk = g.head
		sb.Inode = g.ids
		sb.NInode = freeListGroupSize
	}
	sb.NInode--
	return sb.Inode[sb.NInode], nil
}

// ReleaseInode returns inode number i to the free-inode cache, spilling to
// an overflow block when the direct cache is full.
func (sb *Superblock) ReleaseInode(img *Image, i uint32) error {
	if sb.NInode == freeListGroupSize {
		blk, err := sb.AllocBlock(img)
		if err != nil {
			return err
		}
		g := groupBlock{head: sb.NextInodeBlk, ids: sb.Inode}
		if err := img.WriteBlock(blk, g.marshal()); err != nil {
			return err
		}
		sb.NextInodeBlk = blk
		sb.NInode = 1
		sb.Inode[0] = i
		return nil
	}
	sb.Inode[sb.NInode] = i
	sb.NInode++
	return nil
}

// MakeFS formats a fresh image: totalBytes is the space available for the
// inode and data regions combined (i.e. image size minus the reserved
// header and the superblock record), inodeCount is the number of inodes to
// provision. It allocates inode 0 as the root directory.
func MakeFS(img *Image, totalBytes int64, inodeCount uint32) (*Superblock, error) {
	isize := (inodeCount*DiskInodeSize + BlockSize - 1) / BlockSize
	dataBytes := totalBytes - int64(isize)*BlockSize
	if dataBytes < BlockSize {
		return nil, newFSError(KindNoSpc, "mkfs", "", nil)
	}
	fsize := uint32(dataBytes / BlockSize)

	sb := &Superblock{ISize: isize, FSize: fsize, RootInode: 0}
	img.SetDataOffset(HeaderSigSize + SuperblockSize + int64(isize)*BlockSize)

	// Block 0 never enters the free chain: 0 is the empty-slot sentinel in
	// addressing tables and the chain terminator. The remaining blocks
	// seed the free chain via the same Release path a
	// running filesystem uses, so formatting and steady-state operation
	// share one code path instead of duplicating the chaining logic.
	for b := fsize - 1; b >= 1; b-- {
		if err := sb.ReleaseBlock(img, b); err != nil {
			return nil, err
		}
	}

	for i := inodeCount - 1; i >= 1; i-- {
		if err := sb.ReleaseInode(img, i); err != nil {
			return nil, err
		}
	}

	root := &DiskInode{
		Mode:  diskModeBits(KindDirectory, 0777, true),
		Nlink: 1,
	}
	if err := img.WriteInode(0, root); err != nil {
		return nil, err
	}

	if err := img.StoreSuperblock(sb); err != nil {
		return nil, err
	}
	return sb, nil
}
