// Command mofsutil inspects and formats mofs image files. It is an
// external collaborator of the core library, not part of it: argument
// parsing and output formatting live here, the filesystem logic lives in
// the mofs package.
package main

import (
	"flag"
	"fmt"
	"io/fs"
	"os"

	"github.com/MaxMorning/mofs"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "mkfs":
		err = runMkfs(os.Args[2:])
	case "ls":
		err = runLs(os.Args[2:])
	case "cat":
		err = runCat(os.Args[2:])
	case "info":
		err = runInfo(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		return
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "mofsutil:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: mofsutil <mkfs|ls|cat|info> [args...]")
}

func runMkfs(args []string) error {
	fset := flag.NewFlagSet("mkfs", flag.ExitOnError)
	size := fset.Int64("size", 32<<20, "image data+inode region size in bytes")
	inodes := fset.Uint("inodes", 2048, "inode count")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if fset.NArg() != 1 {
		return fmt.Errorf("mkfs requires exactly one image path")
	}

	fsys, err := mofs.Format(fset.Arg(0), *size, uint32(*inodes))
	if err != nil {
		return err
	}
	defer fsys.Close()

	sess, err := fsys.NewSession(0, 0)
	if err != nil {
		return err
	}
	return sess.Shutdown()
}

func runLs(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("ls requires an image path")
	}
	path := "."
	if len(args) > 1 {
		path = args[1]
	}

	fsys, err := mofs.Open(args[0])
	if err != nil {
		return err
	}
	defer fsys.Close()

	ro, err := mofs.NewReadOnlyFS(fsys)
	if err != nil {
		return err
	}
	defer ro.Close()

	entries, err := fs.ReadDir(ro, path)
	if err != nil {
		return err
	}
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%8d\t%s\n", info.Mode(), info.Size(), e.Name())
	}
	return nil
}

func runCat(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("cat requires an image path and a file path")
	}
	fsys, err := mofs.Open(args[0])
	if err != nil {
		return err
	}
	defer fsys.Close()

	ro, err := mofs.NewReadOnlyFS(fsys)
	if err != nil {
		return err
	}
	defer ro.Close()

	data, err := fs.ReadFile(ro, args[1])
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func runInfo(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("info requires an image path")
	}
	fsys, err := mofs.Open(args[0])
	if err != nil {
		return err
	}
	defer fsys.Close()

	ro, err := mofs.NewReadOnlyFS(fsys)
	if err != nil {
		return err
	}
	defer ro.Close()

	st, err := fs.Stat(ro, ".")
	if err != nil {
		return err
	}
	fmt.Printf("root mode: %s\n", st.Mode())
	return nil
}
