package mofs_test

import (
	"path/filepath"
	"testing"

	"github.com/MaxMorning/mofs"
	"github.com/kylelemons/godebug/pretty"
)

func openTestImage(t *testing.T) *mofs.Image {
	t.Helper()
	img, err := mofs.OpenImage(filepath.Join(t.TempDir(), "raw.img"))
	if err != nil {
		t.Fatalf("OpenImage: %v", err)
	}
	img.SetDataOffset(0)
	t.Cleanup(func() { img.Close() })
	return img
}

func TestSuperblockMarshalRoundTrip(t *testing.T) {
	sb := &mofs.Superblock{
		ISize: 12, FSize: 4096, NFree: 3,
		NInode: 2, NextInodeBlk: 7, RootInode: 0, Time: 1700000000,
	}
	sb.Free[0], sb.Free[1], sb.Free[2] = 10, 11, 12
	sb.Inode[0], sb.Inode[1] = 5, 6

	buf, err := sb.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	if len(buf) != mofs.SuperblockSize {
		t.Fatalf("marshaled length = %d, want %d", len(buf), mofs.SuperblockSize)
	}

	got := &mofs.Superblock{}
	if err := got.UnmarshalBinary(buf); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if diff := pretty.Compare(sb, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

// Allocating and releasing a block must be inverse operations as long as
// the direct cache never has to spill to or refill from an overflow block.
func TestBlockAllocReleaseWithinDirectCache(t *testing.T) {
	img := openTestImage(t)
	sb := &mofs.Superblock{}
	for i := uint32(1); i <= 5; i++ {
		if err := sb.ReleaseBlock(img, i); err != nil {
			t.Fatalf("ReleaseBlock(%d): %v", i, err)
		}
	}
	if sb.NFree != 5 {
		t.Fatalf("NFree = %d, want 5", sb.NFree)
	}

	seen := map[uint32]bool{}
	for i := 0; i < 5; i++ {
		b, err := sb.AllocBlock(img)
		if err != nil {
			t.Fatalf("AllocBlock: %v", err)
		}
		if seen[b] {
			t.Fatalf("block %d allocated twice", b)
		}
		seen[b] = true
	}
	if sb.NFree != 0 {
		t.Fatalf("NFree after draining = %d, want 0", sb.NFree)
	}
	if _, err := sb.AllocBlock(img); err == nil {
		t.Fatalf("AllocBlock on empty chain succeeded, want ErrNoSpc")
	}
}

// Releasing more than one group's worth of blocks must spill the direct
// cache to an overflow chain block and recover it correctly on a later
// refill, exercising the same Alloc/Release pair across a chain boundary.
func TestBlockChainSpillAndRefill(t *testing.T) {
	img := openTestImage(t)
	sb := &mofs.Superblock{}

	const total = 150
	for b := uint32(total); b >= 1; b-- {
		if err := sb.ReleaseBlock(img, b); err != nil {
			t.Fatalf("ReleaseBlock(%d): %v", b, err)
		}
	}

	seen := map[uint32]bool{}
	for i := 0; i < total; i++ {
		b, err := sb.AllocBlock(img)
		if err != nil {
			t.Fatalf("AllocBlock #%d: %v", i, err)
		}
		if seen[b] {
			t.Fatalf("block %d allocated twice", b)
		}
		seen[b] = true
	}
	for b := uint32(1); b <= total; b++ {
		if !seen[b] {
			t.Fatalf("block %d never allocated", b)
		}
	}
}

func TestInodeAllocReleaseChain(t *testing.T) {
	img := openTestImage(t)
	sb := &mofs.Superblock{}

	// Spilling a full free-inode cache takes a data block for the overflow
	// group, so the superblock needs free blocks to draw on.
	for b := uint32(1); b <= 5; b++ {
		if err := sb.ReleaseBlock(img, b); err != nil {
			t.Fatalf("ReleaseBlock(%d): %v", b, err)
		}
	}

	const total = 250
	for i := uint32(total); i >= 1; i-- {
		if err := sb.ReleaseInode(img, i); err != nil {
			t.Fatalf("ReleaseInode(%d): %v", i, err)
		}
	}

	seen := map[uint32]bool{}
	for i := 0; i < total; i++ {
		ino, err := sb.AllocDiskInode(img)
		if err != nil {
			t.Fatalf("AllocDiskInode #%d: %v", i, err)
		}
		if seen[ino] {
			t.Fatalf("inode %d allocated twice", ino)
		}
		seen[ino] = true
	}
	if _, err := sb.AllocDiskInode(img); err == nil {
		t.Fatalf("AllocDiskInode on empty chain succeeded, want ErrNoIno")
	}
}
