package shell

import (
	"fmt"
	"strings"

	"github.com/aligator/fatnav"
	"github.com/aligator/fatnav/checkpoint"
)

// MaxOpenFiles is the amount of files which can be open at the same time.
const MaxOpenFiles = 10

// OpenFile is a file opened by the open command. Offset is the position used by read.
type OpenFile struct {
	// Path is the absolute path using the long names. It identifies the file.
	Path   string
	Entry  fatnav.DirEntry
	Offset int64
}

// OpenFiles keeps the opened files in the order they were opened.
// Paths are compared case-insensitively, as FAT does.
type OpenFiles struct {
	files []*OpenFile
}

func NewOpenFiles() *OpenFiles {
	return &OpenFiles{}
}

func (o *OpenFiles) index(path string) int {
	for i, f := range o.files {
		if strings.EqualFold(f.Path, path) {
			return i
		}
	}
	return -1
}

// Open adds the file at path.
// It fails with ErrAlreadyOpen or, if MaxOpenFiles are already open, with ErrTooManyOpen.
func (o *OpenFiles) Open(path string, entry fatnav.DirEntry) (*OpenFile, error) {
	if o.index(path) >= 0 {
		return nil, checkpoint.Wrap(fmt.Errorf("%q", path), ErrAlreadyOpen)
	}
	if len(o.files) >= MaxOpenFiles {
		return nil, checkpoint.Wrap(fmt.Errorf("at most %d files can be open", MaxOpenFiles), ErrTooManyOpen)
	}

	file := &OpenFile{Path: path, Entry: entry}
	o.files = append(o.files, file)
	return file, nil
}

// Get returns the open file at path. Changes to it are kept.
func (o *OpenFiles) Get(path string) (*OpenFile, error) {
	i := o.index(path)
	if i < 0 {
		return nil, checkpoint.Wrap(fmt.Errorf("%q", path), ErrNotOpen)
	}
	return o.files[i], nil
}

// Close removes the file at path.
func (o *OpenFiles) Close(path string) error {
	i := o.index(path)
	if i < 0 {
		return checkpoint.Wrap(fmt.Errorf("%q", path), ErrNotOpen)
	}

	o.files = append(o.files[:i], o.files[i+1:]...)
	return nil
}

// CloseAll removes all files.
func (o *OpenFiles) CloseAll() {
	o.files = nil
}

// List returns copies of all open files.
func (o *OpenFiles) List() []OpenFile {
	result := make([]OpenFile, len(o.files))
	for i, f := range o.files {
		result[i] = *f
	}
	return result
}

func (o *OpenFiles) Len() int {
	return len(o.files)
}
