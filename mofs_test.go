package mofs_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/MaxMorning/mofs"
)

func mustFormat(t *testing.T) (*mofs.FileSystem, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "image.mofs")
	fsys, err := mofs.Format(path, 32<<20, 2048)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	t.Cleanup(func() { fsys.Close() })
	return fsys, path
}

// S1: create, write, close, reopen, read back.
func TestCreateWriteReadBack(t *testing.T) {
	fsys, _ := mustFormat(t)
	sess, err := fsys.NewSession(0, 0)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	if err := sess.Mkdir("/hello", 0777); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	fd, err := sess.Creat("/hello/2.txt", 0777)
	if err != nil {
		t.Fatalf("Creat: %v", err)
	}
	payload := append([]byte("Hello Morning!"), 0)
	n, err := sess.Write(fd, payload)
	if err != nil || n != len(payload) {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if err := sess.Close(fd); err != nil {
		t.Fatalf("Close: %v", err)
	}

	fd2, err := sess.Open("/hello/2.txt", mofs.ORDONLY, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	buf := make([]byte, len(payload))
	n, err = sess.Read(fd2, buf)
	if err != nil || n != len(payload) {
		t.Fatalf("Read = %d, %v", n, err)
	}
	if !bytes.Equal(buf, payload) {
		t.Fatalf("read back %q, want %q", buf, payload)
	}

	st, err := sess.Stat("/hello/2.txt")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if st.Mode&0777 != 0777 {
		t.Fatalf("Stat mode = %o, want 0777", st.Mode&0777)
	}
	if st.Size != uint32(len(payload)) {
		t.Fatalf("Stat size = %d, want %d", st.Size, len(payload))
	}
}

// S2: link, then unlink the link, original file unaffected.
func TestLinkUnlink(t *testing.T) {
	fsys, _ := mustFormat(t)
	sess, _ := fsys.NewSession(0, 0)

	fd, err := sess.Creat("/a.txt", 0644)
	if err != nil {
		t.Fatalf("Creat: %v", err)
	}
	sess.Close(fd)

	if err := sess.Link("/a.txt", "/b.txt"); err != nil {
		t.Fatalf("Link: %v", err)
	}

	st, err := sess.Stat("/a.txt")
	if err != nil {
		t.Fatalf("Stat a: %v", err)
	}
	if st.Nlink != 2 {
		t.Fatalf("nlink after link = %d, want 2", st.Nlink)
	}
	stB, err := sess.Stat("/b.txt")
	if err != nil || stB.Ino != st.Ino {
		t.Fatalf("Stat b: ino=%d err=%v, want ino=%d", stB.Ino, err, st.Ino)
	}

	if err := sess.Unlink("/b.txt"); err != nil {
		t.Fatalf("Unlink b: %v", err)
	}
	st2, err := sess.Stat("/a.txt")
	if err != nil {
		t.Fatalf("Stat a after unlink: %v", err)
	}
	if st2.Nlink != 1 {
		t.Fatalf("nlink after unlink = %d, want 1", st2.Nlink)
	}
	if st2.Ino != st.Ino {
		t.Fatalf("ino changed across unlink: %d != %d", st2.Ino, st.Ino)
	}
}

// S3: unlink a non-empty directory fails, then succeeds once emptied.
func TestUnlinkNonEmptyDir(t *testing.T) {
	fsys, _ := mustFormat(t)
	sess, _ := fsys.NewSession(0, 0)

	if err := sess.Mkdir("/d", 0777); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	fd, err := sess.Creat("/d/x", 0777)
	if err != nil {
		t.Fatalf("Creat: %v", err)
	}
	if err := sess.Close(fd); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := sess.Unlink("/d"); err == nil {
		t.Fatalf("Unlink non-empty dir succeeded, want ErrNotEmpty")
	}

	if err := sess.Unlink("/d/x"); err != nil {
		t.Fatalf("Unlink /d/x: %v", err)
	}
	if err := sess.Unlink("/d"); err != nil {
		t.Fatalf("Unlink now-empty /d: %v", err)
	}
}

// S4: write across the single-indirect addressing boundary.
func TestWriteAcrossIndirectBoundary(t *testing.T) {
	fsys, _ := mustFormat(t)
	sess, _ := fsys.NewSession(0, 0)

	fd, err := sess.Creat("/big.bin", 0644)
	if err != nil {
		t.Fatalf("Creat: %v", err)
	}

	const boundary = 6 * 512
	if _, err := sess.Lseek(fd, boundary-1, mofs.SeekSet); err != nil {
		t.Fatalf("Lseek: %v", err)
	}
	if _, err := sess.Write(fd, []byte{0xAA}); err != nil {
		t.Fatalf("Write low byte: %v", err)
	}
	if _, err := sess.Lseek(fd, boundary, mofs.SeekSet); err != nil {
		t.Fatalf("Lseek: %v", err)
	}
	if _, err := sess.Write(fd, []byte{0xBB}); err != nil {
		t.Fatalf("Write high byte: %v", err)
	}
	if err := sess.Close(fd); err != nil {
		t.Fatalf("Close: %v", err)
	}

	fd2, err := sess.Open("/big.bin", mofs.ORDONLY, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	buf := make([]byte, 2)
	if _, err := sess.Lseek(fd2, boundary-1, mofs.SeekSet); err != nil {
		t.Fatalf("Lseek: %v", err)
	}
	n, err := sess.Read(fd2, buf)
	if err != nil || n != 2 {
		t.Fatalf("Read = %d, %v", n, err)
	}
	if buf[0] != 0xAA || buf[1] != 0xBB {
		t.Fatalf("read back %x, want aa bb", buf)
	}

	st, err := sess.Stat("/big.bin")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if st.Size != boundary+1 {
		t.Fatalf("size = %d, want %d", st.Size, boundary+1)
	}
}

// S6: permission denial across a session switch.
func TestPermissionDenied(t *testing.T) {
	fsys, _ := mustFormat(t)
	owner, _ := fsys.NewSession(0, 0)

	fd, err := owner.Creat("/a", 0700)
	if err != nil {
		t.Fatalf("Creat: %v", err)
	}
	owner.Close(fd)

	other, err := fsys.NewSession(2, 2)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if _, err := other.Open("/a", mofs.ORDONLY, 0); err == nil {
		t.Fatalf("Open by non-owner succeeded, want ErrPerm")
	}
}

// Durability across shutdown and reopen.
func TestShutdownAndReopen(t *testing.T) {
	fsys, path := mustFormat(t)
	sess, _ := fsys.NewSession(0, 0)

	fd, err := sess.Creat("/x", 0644)
	if err != nil {
		t.Fatalf("Creat: %v", err)
	}
	if _, err := sess.Write(fd, []byte("durable")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := sess.Close(fd); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sess.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := fsys.Close(); err != nil {
		t.Fatalf("Close image: %v", err)
	}

	fsys2, err := mofs.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer fsys2.Close()
	sess2, err := fsys2.NewSession(0, 0)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	fd2, err := sess2.Open("/x", mofs.ORDONLY, 0)
	if err != nil {
		t.Fatalf("Open after reopen: %v", err)
	}
	buf := make([]byte, len("durable"))
	n, err := sess2.Read(fd2, buf)
	if err != nil || string(buf[:n]) != "durable" {
		t.Fatalf("read back %q, %v", buf[:n], err)
	}
}
