package fatnav

import (
	"io"
	"io/fs"
)

// GoDirEntry is a directory listing element as returned by GoFile.ReadDir.
type GoDirEntry struct {
	info fs.FileInfo
}

func (e GoDirEntry) Name() string {
	return e.info.Name()
}

func (e GoDirEntry) IsDir() bool {
	return e.info.IsDir()
}

func (e GoDirEntry) Type() fs.FileMode {
	return e.info.Mode().Type()
}

// Info never fails, entries of a read-only volume cannot change after they were listed.
func (e GoDirEntry) Info() (fs.FileInfo, error) {
	return e.info, nil
}

// GoFile is a File which also implements fs.ReadDirFile.
type GoFile struct {
	*File
}

// ReadDir lists the directory with the paging rules of fs.ReadDirFile:
// with n > 0 an exhausted directory yields io.EOF, with n <= 0 all remaining entries are returned.
func (g GoFile) ReadDir(n int) ([]fs.DirEntry, error) {
	infos, err := g.File.Readdir(n)
	if err == io.EOF {
		return []fs.DirEntry{}, io.EOF
	}
	if err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: g.path, Err: err}
	}

	entries := make([]fs.DirEntry, len(infos))
	for i, info := range infos {
		entries[i] = GoDirEntry{info}
	}
	return entries, nil
}

// GoFs is the volume as fs.FS. Stat comes from the embedded Fs.
type GoFs struct {
	*Fs
}

// NewGoFS opens a FAT32 volume as fs.FS.
func NewGoFS(reader io.ReadSeeker) (*GoFs, error) {
	volume, err := New(reader)
	if err != nil {
		return nil, err
	}
	return &GoFs{volume}, nil
}

// NewGoFSSkipChecks is NewGoFS without the boot sector signature checks.
func NewGoFSSkipChecks(reader io.ReadSeeker) (*GoFs, error) {
	volume, err := NewSkipChecks(reader)
	if err != nil {
		return nil, err
	}
	return &GoFs{volume}, nil
}

// Open only accepts names which are valid for fs.FS, so "/" and ".." elements are rejected.
func (g GoFs) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	file, err := g.Fs.openFile(name)
	if err != nil {
		return nil, err
	}
	return GoFile{file}, nil
}
