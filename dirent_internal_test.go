package mofs

import "testing"

func TestDirEntryMarshalRoundTrip(t *testing.T) {
	e, err := newDirEntry("hello.txt", 42)
	if err != nil {
		t.Fatalf("newDirEntry: %v", err)
	}
	buf := e.marshal()
	if len(buf) != DirEntrySize {
		t.Fatalf("marshaled length = %d, want %d", len(buf), DirEntrySize)
	}

	got := &DirEntry{}
	got.unmarshal(buf)
	if got.Ino != 42 {
		t.Fatalf("Ino = %d, want 42", got.Ino)
	}
	if got.nameString() != "hello.txt" {
		t.Fatalf("name = %q, want %q", got.nameString(), "hello.txt")
	}
}

func TestDirEntryNameTooLong(t *testing.T) {
	name := make([]byte, NameMaxLength)
	for i := range name {
		name[i] = 'a'
	}
	if _, err := newDirEntry(string(name), 1); err != ErrNameTooLong {
		t.Fatalf("newDirEntry with %d-byte name = %v, want ErrNameTooLong", len(name), err)
	}
}
