package mofs_test

import (
	"testing"

	"github.com/MaxMorning/mofs"
	"github.com/kylelemons/godebug/pretty"
)

func TestDiskInodeMarshalRoundTrip(t *testing.T) {
	d := &mofs.DiskInode{
		Mode: 0x41ED, Nlink: 2, Uid: 500, Gid: 100,
		Size: 123456, Atime: 1700000001, Mtime: 1700000002,
	}
	d.Addr[0], d.Addr[6] = 10, 20

	buf, err := d.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	if len(buf) != mofs.DiskInodeSize {
		t.Fatalf("marshaled length = %d, want %d", len(buf), mofs.DiskInodeSize)
	}

	got := &mofs.DiskInode{}
	if err := got.UnmarshalBinary(buf); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if diff := pretty.Compare(d, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}
