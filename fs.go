// Package fatnav reads FAT32 volume images: it decodes the boot sector, follows cluster chains
// through the File Allocation Table and decodes directories including long file names.
// The volume is also available as read-only afero.Fs and io/fs.FS.
package fatnav

//go:generate go run ./cmd/generate

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/aligator/fatnav/checkpoint"
)

// These errors may occur while reading the volume.
var (
	ErrInvalidVolume  = errors.New("invalid FAT32 volume")
	ErrInvalidCluster = errors.New("invalid cluster number")
	ErrCorruptChain   = errors.New("FAT chain is corrupt")
	ErrReadSector     = errors.New("could not read sector")
)

// Sector caches the sector which was read last.
type Sector struct {
	current uint32
	buffer  []uint8
}

// noSector is never a valid sector number, so the first fetch always reads.
const noSector = 0xFFFFFFFF

// Fs is a read-only FAT32 volume.
type Fs struct {
	lock        sync.Mutex
	reader      io.ReadSeeker
	info        Info
	sectorCache Sector
}

// New opens a FAT32 volume from the given reader. The volume has to start at offset 0.
func New(reader io.ReadSeeker) (*Fs, error) {
	return newFs(reader, false)
}

// NewSkipChecks opens a FAT32 volume just like New but it skips the signature validations,
// which may allow you to open not perfectly standard FAT32 images.
// Use with caution!
func NewSkipChecks(reader io.ReadSeeker) (*Fs, error) {
	return newFs(reader, true)
}

func newFs(reader io.ReadSeeker, skipChecks bool) (*Fs, error) {
	fs := &Fs{
		reader: reader,
	}

	err := fs.initialize(skipChecks)
	if err != nil {
		return nil, err
	}

	return fs, nil
}

func (fs *Fs) initialize(skipChecks bool) error {
	// The boot sector is always in the first 512 bytes, even if the sector size is larger.
	sector := make([]byte, bootSectorSize)
	if err := fs.readRange(0, sector); err != nil {
		return checkpoint.Wrap(err, ErrInvalidVolume)
	}

	info, err := DecodeInfo(sector, skipChecks)
	if err != nil {
		return err
	}
	fs.info = info

	// Load the sector size and use it for all following sector reads.
	fs.sectorCache.buffer = make([]uint8, info.BytesPerSector)
	fs.sectorCache.current = noSector

	log.WithFields(log.Fields{
		"bytesPerSector":    info.BytesPerSector,
		"sectorsPerCluster": info.SectorsPerCluster,
		"reservedSectors":   info.ReservedSectors,
		"fats":              info.NumFATs,
		"sectorsPerFAT":     info.SectorsPerFAT,
		"rootCluster":       info.RootCluster,
		"clusters":          info.TotalClusters,
	}).Debug("Opened FAT32 volume")

	return nil
}

// Info returns the geometry of the volume.
func (fs *Fs) Info() Info {
	return fs.info
}

// Label returns the volume label stored in the boot sector.
func (fs *Fs) Label() string {
	return fs.info.Label
}

// fetch loads a specific single sector of the filesystem into the cache.
// The caller has to hold fs.lock.
func (fs *Fs) fetch(sector uint32) error {
	// Only load it once.
	if sector == fs.sectorCache.current {
		return nil
	}

	// Invalidate first, a failed read leaves a partly overwritten buffer.
	fs.sectorCache.current = noSector
	if err := fs.seekAndRead(fs.info.ByteOffset(sector), fs.sectorCache.buffer); err != nil {
		return checkpoint.Wrap(err, fmt.Errorf("%w %d", ErrReadSector, sector))
	}

	fs.sectorCache.current = sector
	return nil
}

// seekAndRead fills p completely from offset. A short read results in io.ErrUnexpectedEOF.
// The caller has to hold fs.lock.
func (fs *Fs) seekAndRead(offset int64, p []byte) error {
	_, err := fs.reader.Seek(offset, io.SeekStart)
	if err != nil {
		return checkpoint.From(err)
	}

	_, err = io.ReadFull(fs.reader, p)
	if err == io.EOF {
		// Nothing at all could be read: the image ends before offset.
		err = io.ErrUnexpectedEOF
	}
	return err
}

// readRange reads len(p) bytes starting at offset, bypassing the sector cache.
func (fs *Fs) readRange(offset int64, p []byte) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	return fs.seekAndRead(offset, p)
}

// readCluster reads the whole data of a single cluster.
func (fs *Fs) readCluster(cluster uint32) ([]byte, error) {
	if !fs.info.ClusterInValidRange(cluster) {
		return nil, checkpoint.Wrap(fmt.Errorf("cluster %d", cluster), ErrInvalidCluster)
	}

	data := make([]byte, fs.info.ClusterSize())
	err := fs.readRange(fs.info.ClusterOffset(cluster), data)
	if err != nil {
		return nil, checkpoint.Wrap(err, fmt.Errorf("%w %d", ErrReadSector, fs.info.SectorOfCluster(cluster)))
	}
	return data, nil
}

// ReadFileAt reads up to readSize bytes of the file starting at cluster, beginning at offset.
// fileSize limits the read, so the slack of the last cluster is never returned.
// If less than readSize bytes are available, the available data is returned together with io.EOF.
func (fs *Fs) ReadFileAt(cluster uint32, fileSize int64, offset int64, readSize int64) ([]byte, error) {
	if offset < 0 || readSize < 0 {
		return nil, checkpoint.Wrap(syscall.EINVAL, ErrReadFile)
	}
	if offset >= fileSize {
		return nil, io.EOF
	}

	var eof error
	// offset < fileSize here, so the subtraction cannot overflow.
	if readSize > fileSize-offset {
		readSize = fileSize - offset
		eof = io.EOF
	}
	if readSize == 0 {
		return nil, eof
	}

	chain, err := fs.Walk(cluster)
	if err != nil {
		return nil, checkpoint.Wrap(err, ErrReadFile)
	}

	clusterSize := int64(fs.info.ClusterSize())
	if int64(len(chain))*clusterSize < fileSize {
		return nil, checkpoint.Wrap(fmt.Errorf("%d clusters cannot hold %d bytes", len(chain), fileSize), ErrCorruptChain)
	}

	data := make([]byte, 0, readSize)
	for index := offset / clusterSize; int64(len(data)) < readSize; index++ {
		inCluster := (offset + int64(len(data))) % clusterSize
		size := clusterSize - inCluster
		if rest := readSize - int64(len(data)); rest < size {
			size = rest
		}

		buffer := make([]byte, size)
		err := fs.readRange(fs.info.ClusterOffset(chain[index])+inCluster, buffer)
		if err != nil {
			return data, checkpoint.Wrap(err, ErrReadFile)
		}
		data = append(data, buffer...)
	}

	return data, eof
}

// rootEntry is the synthetic entry of the root directory, which has no record on disk.
func (fs *Fs) rootEntry() DirEntry {
	return DirEntry{
		Name:      "/",
		ShortName: "/",
		Attr:      AttrDirectory,
		Cluster:   fs.info.RootCluster,
	}
}

// resolve finds the entry of an absolute path. "/" separates the elements, a missing leading
// "/" is allowed. The names are compared case-insensitively.
func (fs *Fs) resolve(name string) (DirEntry, error) {
	cleaned := path.Clean("/" + name)

	entry := fs.rootEntry()
	if cleaned == "/" {
		return entry, nil
	}

	for _, element := range strings.Split(strings.TrimPrefix(cleaned, "/"), "/") {
		if !entry.IsDir() {
			return DirEntry{}, &os.PathError{Op: "open", Path: name, Err: syscall.ENOTDIR}
		}

		child, found, err := fs.Lookup(entry.Cluster, element)
		if err != nil {
			return DirEntry{}, &os.PathError{Op: "open", Path: name, Err: err}
		}
		if !found {
			return DirEntry{}, &os.PathError{Op: "open", Path: name, Err: os.ErrNotExist}
		}
		entry = child
	}

	return entry, nil
}

func readOnly(op, name string) error {
	return &os.PathError{Op: op, Path: name, Err: syscall.EROFS}
}

func (fs *Fs) Create(name string) (afero.File, error) {
	return nil, readOnly("create", name)
}

func (fs *Fs) Mkdir(name string, perm os.FileMode) error {
	return readOnly("mkdir", name)
}

func (fs *Fs) MkdirAll(path string, perm os.FileMode) error {
	return readOnly("mkdir", path)
}

// Open opens a file or directory for reading.
func (fs *Fs) Open(name string) (afero.File, error) {
	file, err := fs.openFile(name)
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (fs *Fs) openFile(name string) (*File, error) {
	entry, err := fs.resolve(name)
	if err != nil {
		return nil, err
	}

	return &File{
		fs:           fs,
		path:         path.Clean("/" + name),
		isDirectory:  entry.IsDir(),
		isReadOnly:   entry.Attr.Has(AttrReadOnly),
		isHidden:     entry.Attr.Has(AttrHidden),
		isSystem:     entry.Attr.Has(AttrSystem),
		firstCluster: entry.Cluster,
		stat:         entry.FileInfo(),
	}, nil
}

// OpenFile only supports os.O_RDONLY as the volume is read-only.
func (fs *Fs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_APPEND|os.O_CREATE|os.O_TRUNC) != 0 {
		return nil, readOnly("open", name)
	}
	return fs.Open(name)
}

func (fs *Fs) Remove(name string) error {
	return readOnly("remove", name)
}

func (fs *Fs) RemoveAll(path string) error {
	return readOnly("remove", path)
}

func (fs *Fs) Rename(oldname, newname string) error {
	return readOnly("rename", oldname)
}

func (fs *Fs) Stat(name string) (os.FileInfo, error) {
	entry, err := fs.resolve(name)
	if err != nil {
		return nil, err
	}
	return entry.FileInfo(), nil
}

func (fs *Fs) Name() string {
	return "FAT32"
}

func (fs *Fs) Chmod(name string, mode os.FileMode) error {
	return readOnly("chmod", name)
}

func (fs *Fs) Chown(name string, uid, gid int) error {
	return readOnly("chown", name)
}

func (fs *Fs) Chtimes(name string, atime time.Time, mtime time.Time) error {
	return readOnly("chtimes", name)
}
