// Package fattest builds small FAT32 images in memory, record by record.
// It allows tests to create exactly the on-disk situation they need, including broken ones.
package fattest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf16"
)

// Attribute bits of a directory record.
const (
	AttrReadOnly    = 0x01
	AttrHidden      = 0x02
	AttrSystem      = 0x04
	AttrVolumeLabel = 0x08
	AttrDirectory   = 0x10
	AttrArchive     = 0x20

	attrLongName = 0x0F
)

// FAT values.
const (
	EOC = 0x0FFFFFFF
	Bad = 0x0FFFFFF7
)

const entrySize = 32

// Geometry describes the layout of the image to build.
type Geometry struct {
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	SectorsPerFAT     uint32
	// Clusters is the amount of data clusters.
	Clusters    uint32
	RootCluster uint32
	Label       string
	VolumeID    uint32
}

// DefaultGeometry is a tiny volume of 256 clusters with 512 bytes each.
func DefaultGeometry() Geometry {
	return Geometry{
		BytesPerSector:    512,
		SectorsPerCluster: 1,
		ReservedSectors:   32,
		NumFATs:           2,
		SectorsPerFAT:     8,
		Clusters:          256,
		RootCluster:       2,
		Label:             "FATNAV",
		VolumeID:          0x1234ABCD,
	}
}

// Image is a FAT32 image under construction.
type Image struct {
	geometry Geometry
	data     []byte
}

// New creates an image with a valid boot sector, the reserved FAT entries and an empty root directory.
func New(g Geometry) *Image {
	totalSectors := uint32(g.ReservedSectors) + uint32(g.NumFATs)*g.SectorsPerFAT + g.Clusters*uint32(g.SectorsPerCluster)

	i := &Image{
		geometry: g,
		data:     make([]byte, int(totalSectors)*int(g.BytesPerSector)),
	}

	b := i.data
	copy(b[0:], []byte{0xEB, 0x58, 0x90})
	copy(b[3:], "MSWIN4.1")
	binary.LittleEndian.PutUint16(b[11:], g.BytesPerSector)
	b[13] = g.SectorsPerCluster
	binary.LittleEndian.PutUint16(b[14:], g.ReservedSectors)
	b[16] = g.NumFATs
	b[21] = 0xF8
	binary.LittleEndian.PutUint16(b[24:], 32)
	binary.LittleEndian.PutUint16(b[26:], 64)
	binary.LittleEndian.PutUint32(b[32:], totalSectors)
	binary.LittleEndian.PutUint32(b[36:], g.SectorsPerFAT)
	binary.LittleEndian.PutUint32(b[44:], g.RootCluster)
	binary.LittleEndian.PutUint16(b[48:], 1)
	binary.LittleEndian.PutUint16(b[50:], 6)
	b[64] = 0x80
	b[66] = 0x29
	binary.LittleEndian.PutUint32(b[67:], g.VolumeID)
	copy(b[71:82], pad(g.Label, 11))
	copy(b[82:90], "FAT32   ")
	b[510] = 0x55
	b[511] = 0xAA

	i.SetFAT(0, 0x0FFFFFF8)
	i.SetFAT(1, EOC)
	i.SetFAT(g.RootCluster, EOC)

	return i
}

// NewDefault is New(DefaultGeometry()).
func NewDefault() *Image {
	return New(DefaultGeometry())
}

func pad(s string, size int) []byte {
	result := bytes.Repeat([]byte{' '}, size)
	copy(result, s)
	return result
}

// Geometry returns the layout the image was created with.
func (i *Image) Geometry() Geometry {
	return i.geometry
}

// SetFAT sets the entry of cluster in all FAT copies.
func (i *Image) SetFAT(cluster uint32, value uint32) *Image {
	g := i.geometry
	for fat := 0; fat < int(g.NumFATs); fat++ {
		offset := (int(g.ReservedSectors) + fat*int(g.SectorsPerFAT)) * int(g.BytesPerSector)
		binary.LittleEndian.PutUint32(i.data[offset+int(cluster)*4:], value)
	}
	return i
}

// Chain links the clusters in the given order and terminates the chain with EOC.
func (i *Image) Chain(clusters ...uint32) *Image {
	for n, cluster := range clusters {
		next := uint32(EOC)
		if n+1 < len(clusters) {
			next = clusters[n+1]
		}
		i.SetFAT(cluster, next)
	}
	return i
}

// ClusterOffset returns the position of the data of cluster inside the image.
func (i *Image) ClusterOffset(cluster uint32) int {
	g := i.geometry
	firstDataSector := int(g.ReservedSectors) + int(g.NumFATs)*int(g.SectorsPerFAT)
	return (firstDataSector + int(cluster-2)*int(g.SectorsPerCluster)) * int(g.BytesPerSector)
}

// ClusterSize returns the size of a single cluster in bytes.
func (i *Image) ClusterSize() int {
	return int(i.geometry.BytesPerSector) * int(i.geometry.SectorsPerCluster)
}

// File chains the clusters and fills them with data. Data which does not fit is dropped.
func (i *Image) File(data []byte, clusters ...uint32) *Image {
	i.Chain(clusters...)
	for n, cluster := range clusters {
		start := n * i.ClusterSize()
		if start >= len(data) {
			break
		}
		end := start + i.ClusterSize()
		if end > len(data) {
			end = len(data)
		}
		copy(i.data[i.ClusterOffset(cluster):], data[start:end])
	}
	return i
}

// Directory chains the clusters and returns a writer for the records stored in them.
// The clusters are not cleared, so a directory written on the root cluster extends the root.
func (i *Image) Directory(clusters ...uint32) *Dir {
	i.Chain(clusters...)
	return &Dir{image: i, clusters: clusters}
}

// Root returns a writer for the root directory, which consists of the root cluster only.
func (i *Image) Root() *Dir {
	return &Dir{image: i, clusters: []uint32{i.geometry.RootCluster}}
}

// Patch overwrites the image at offset.
func (i *Image) Patch(offset int, data ...byte) *Image {
	copy(i.data[offset:], data)
	return i
}

// Bytes returns the image data. It is not copied.
func (i *Image) Bytes() []byte {
	return i.data
}

// Reader returns a new reader over the image.
func (i *Image) Reader() *bytes.Reader {
	return bytes.NewReader(i.data)
}

// Entry describes a single short record.
type Entry struct {
	// Name is the short name like "README.TXT", ".", ".." or the volume label.
	Name    string
	Attr    byte
	Cluster uint32
	Size    uint32

	NTReserved byte
	WriteTime  uint16
	WriteDate  uint16
}

// Dir writes consecutive records into the clusters of a directory.
type Dir struct {
	image    *Image
	clusters []uint32
	slot     int
}

func (d *Dir) next() []byte {
	perCluster := d.image.ClusterSize() / entrySize
	index := d.slot / perCluster
	if index >= len(d.clusters) {
		panic(fmt.Sprintf("fattest: directory with %d clusters is full", len(d.clusters)))
	}

	offset := d.image.ClusterOffset(d.clusters[index]) + d.slot%perCluster*entrySize
	d.slot++
	return d.image.data[offset : offset+entrySize]
}

// ShortName converts a name like "README.TXT" into the padded 11 byte form.
func ShortName(name string) [11]byte {
	var result [11]byte
	if name == "." || name == ".." {
		copy(result[:], pad(name, 11))
		return result
	}

	base, ext := name, ""
	if dot := strings.LastIndex(name, "."); dot > 0 {
		base, ext = name[:dot], name[dot+1:]
	}
	copy(result[:8], pad(base, 8))
	copy(result[8:], pad(ext, 3))
	return result
}

// Checksum is the checksum a long name fragment stores of its short name.
func Checksum(name [11]byte) byte {
	var sum byte
	for _, c := range name {
		sum = (sum&1)<<7 + sum>>1 + c
	}
	return sum
}

// Entry adds a short record.
func (d *Dir) Entry(e Entry) *Dir {
	var name [11]byte
	if e.Attr&AttrVolumeLabel != 0 {
		copy(name[:], pad(e.Name, 11))
	} else {
		name = ShortName(e.Name)
	}
	d.raw(name, e)
	return d
}

func (d *Dir) raw(name [11]byte, e Entry) {
	record := d.next()
	copy(record[0:11], name[:])
	record[11] = e.Attr
	record[12] = e.NTReserved
	binary.LittleEndian.PutUint16(record[20:], uint16(e.Cluster>>16))
	binary.LittleEndian.PutUint16(record[22:], e.WriteTime)
	binary.LittleEndian.PutUint16(record[24:], e.WriteDate)
	binary.LittleEndian.PutUint16(record[26:], uint16(e.Cluster))
	binary.LittleEndian.PutUint32(record[28:], e.Size)
}

// File adds a short record of a file.
func (d *Dir) File(name string, cluster uint32, size uint32) *Dir {
	return d.Entry(Entry{Name: name, Attr: AttrArchive, Cluster: cluster, Size: size})
}

// Subdir adds a short record of a directory.
func (d *Dir) Subdir(name string, cluster uint32) *Dir {
	return d.Entry(Entry{Name: name, Attr: AttrDirectory, Cluster: cluster})
}

// Dots adds the "." and ".." records. parent is 0 for the root directory.
func (d *Dir) Dots(self uint32, parent uint32) *Dir {
	return d.Subdir(".", self).Subdir("..", parent)
}

// Label adds the volume label record.
func (d *Dir) Label(label string) *Dir {
	return d.Entry(Entry{Name: label, Attr: AttrVolumeLabel})
}

// Long adds the long name fragments for long followed by the short record e.
func (d *Dir) Long(long string, e Entry) *Dir {
	return d.LongWithChecksum(long, Checksum(ShortName(e.Name)), e)
}

// LongWithChecksum is Long but stores checksum in the fragments, which allows to write orphans.
func (d *Dir) LongWithChecksum(long string, checksum byte, e Entry) *Dir {
	d.Fragments(long, checksum)
	return d.Entry(e)
}

// Fragments adds only the long name fragments of long.
func (d *Dir) Fragments(long string, checksum byte) *Dir {
	chars := utf16.Encode([]rune(long))
	if len(chars)%13 != 0 {
		chars = append(chars, 0x0000)
	}
	for len(chars)%13 != 0 {
		chars = append(chars, 0xFFFF)
	}

	count := len(chars) / 13
	for ordinal := count; ordinal >= 1; ordinal-- {
		part := chars[(ordinal-1)*13 : ordinal*13]
		d.Fragment(byte(ordinal), ordinal == count, checksum, part)
	}
	return d
}

// Fragment adds a single long name record with the 13 characters in part.
func (d *Dir) Fragment(ordinal byte, last bool, checksum byte, part []uint16) *Dir {
	chars := make([]uint16, 13)
	for n := range chars {
		chars[n] = 0xFFFF
	}
	copy(chars, part)

	record := d.next()
	record[0] = ordinal
	if last {
		record[0] |= 0x40
	}
	record[11] = attrLongName
	record[13] = checksum

	put := func(offset int, c []uint16) {
		for n, char := range c {
			binary.LittleEndian.PutUint16(record[offset+n*2:], char)
		}
	}
	put(1, chars[0:5])
	put(14, chars[5:11])
	put(28, chars[11:13])
	return d
}

// Deleted adds a short record which is marked as deleted.
func (d *Dir) Deleted(name string) *Dir {
	shortName := ShortName(name)
	shortName[0] = 0xE5
	d.raw(shortName, Entry{Attr: AttrArchive})
	return d
}

// Raw adds a record with exactly the given bytes.
func (d *Dir) Raw(record []byte) *Dir {
	copy(d.next(), record)
	return d
}

// Skip leaves count records untouched. Unused records are 0x00, which marks the end.
func (d *Dir) Skip(count int) *Dir {
	for n := 0; n < count; n++ {
		d.next()
	}
	return d
}

// SkipCluster continues with the first record of the next cluster.
func (d *Dir) SkipCluster() *Dir {
	perCluster := d.image.ClusterSize() / entrySize
	if rest := d.slot % perCluster; rest != 0 {
		d.slot += perCluster - rest
	}
	return d
}
