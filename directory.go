package fatnav

import (
	"bytes"
	"encoding/binary"
	"strings"
	"time"
	"unicode/utf16"

	log "github.com/sirupsen/logrus"

	"github.com/aligator/fatnav/checkpoint"
)

// Attr is the attribute byte of a directory entry. It is a set of flags.
type Attr uint8

const (
	AttrReadOnly    Attr = 0x01
	AttrHidden      Attr = 0x02
	AttrSystem      Attr = 0x04
	AttrVolumeLabel Attr = 0x08
	AttrDirectory   Attr = 0x10
	AttrArchive     Attr = 0x20

	// attrLongName marks a long name fragment. It is only valid as exact value.
	attrLongName = AttrReadOnly | AttrHidden | AttrSystem | AttrVolumeLabel
)

// Has reports whether all flags of flag are set.
func (a Attr) Has(flag Attr) bool {
	return a&flag == flag
}

// String renders the flags like "d----a": directory, read-only, hidden, system, volume label, archive.
func (a Attr) String() string {
	flags := []struct {
		flag Attr
		char byte
	}{
		{AttrDirectory, 'd'},
		{AttrReadOnly, 'r'},
		{AttrHidden, 'h'},
		{AttrSystem, 's'},
		{AttrVolumeLabel, 'v'},
		{AttrArchive, 'a'},
	}

	result := make([]byte, len(flags))
	for i, f := range flags {
		result[i] = '-'
		if a.Has(f.flag) {
			result[i] = f.char
		}
	}
	return string(result)
}

// DirEntry is a single logical entry of a directory, with its long name already merged.
type DirEntry struct {
	// Name is the long name if one is present, else the 8.3 name with the implied dot.
	Name      string
	ShortName string
	Attr      Attr
	// Cluster is the first cluster of the content. It is 0 for empty files and for ".."
	// entries pointing to the root directory.
	Cluster uint32
	// Size is only meaningful for files.
	Size    uint32
	ModTime time.Time

	Header EntryHeader
}

// IsDir reports a subdirectory, including "." and "..".
func (e DirEntry) IsDir() bool {
	return e.Attr.Has(AttrDirectory) && !e.IsVolumeLabel()
}

// IsVolumeLabel reports the entry which only stores the name of the volume.
func (e DirEntry) IsVolumeLabel() bool {
	return e.Attr.Has(AttrVolumeLabel)
}

// IsDot reports the "." entry, which points to the directory itself.
func (e DirEntry) IsDot() bool {
	return e.ShortName == "."
}

// IsDotDot reports the ".." entry, which points to the parent directory.
func (e DirEntry) IsDotDot() bool {
	return e.ShortName == ".."
}

// IsSpecial reports entries which are no real children of the directory.
func (e DirEntry) IsSpecial() bool {
	return e.IsDot() || e.IsDotDot() || e.IsVolumeLabel()
}

// Matches compares name case-insensitively against the long and the short name, as FAT does.
func (e DirEntry) Matches(name string) bool {
	return strings.EqualFold(e.Name, name) || strings.EqualFold(e.ShortName, name)
}

// shortNameChecksum is the checksum each long name fragment stores of its 8.3 anchor.
func shortNameChecksum(name [11]byte) byte {
	var sum byte
	for _, c := range name {
		sum = (sum&1)<<7 + sum>>1 + c
	}
	return sum
}

// shortName reconstructs "NAME.EXT" from the padded on-disk form.
func shortName(h EntryHeader) string {
	raw := h.Name
	if raw[0] == entryKanji {
		raw[0] = entryDeleted
	}

	// Short names are stored in an OEM code page. Mapping each byte to the rune
	// of the same value keeps ASCII intact and never produces invalid UTF-8.
	decode := func(b []byte) string {
		runes := make([]rune, len(b))
		for i, c := range b {
			runes[i] = rune(c)
		}
		return strings.TrimRight(string(runes), " ")
	}

	if Attr(h.Attribute).Has(AttrVolumeLabel) {
		return decode(raw[:])
	}

	name := decode(raw[:8])
	ext := decode(raw[8:])
	if h.NTReserved&ntLowercaseName != 0 {
		name = strings.ToLower(name)
	}
	if h.NTReserved&ntLowercaseExt != 0 {
		ext = strings.ToLower(ext)
	}

	if ext != "" {
		name += "." + ext
	}
	return name
}

// longNameFragment decodes the UTF-16 characters of one fragment.
// The name ends at the first 0x0000, the rest is padded with 0xFFFF.
func longNameFragment(l LongFilenameEntry) []uint16 {
	chars := make([]uint16, 0, lfnCharsPerEntry)
	chars = append(chars, l.First[:]...)
	chars = append(chars, l.Second[:]...)
	chars = append(chars, l.Third[:]...)

	for i, c := range chars {
		if c == 0x0000 {
			return chars[:i]
		}
	}
	return chars
}

// dirDecoder collects the entries of one directory. A long name may span a cluster boundary,
// so the state survives between decodeCluster calls.
type dirDecoder struct {
	entries []DirEntry

	// Pending long name fragments, in on-disk order (highest ordinal first).
	fragments [][]uint16
	checksum  byte
	// nextOrdinal is the ordinal the following fragment must have. 0 means none is pending.
	nextOrdinal byte
}

func (d *dirDecoder) resetLongName() {
	d.fragments = nil
	d.nextOrdinal = 0
}

// longName returns the buffered long name if it is complete and belongs to header.
func (d *dirDecoder) longName(header EntryHeader) string {
	if len(d.fragments) == 0 || d.nextOrdinal != 1 {
		return ""
	}

	if d.checksum != shortNameChecksum(header.Name) {
		log.Debugf("Dropping long name for %q: checksum mismatch", header.Name)
		return ""
	}

	// The fragment with the highest ordinal is stored first but holds the end of the name.
	var chars []uint16
	for i := len(d.fragments) - 1; i >= 0; i-- {
		chars = append(chars, d.fragments[i]...)
	}

	// Padding 0xFFFF characters are never part of the name.
	for i, c := range chars {
		if c == 0xFFFF {
			chars = chars[:i]
			break
		}
	}
	return string(utf16.Decode(chars))
}

func (d *dirDecoder) addFragment(record []byte) {
	l := LongFilenameEntry{}
	// Reading 32 bytes into a 32 byte struct cannot fail.
	_ = binary.Read(bytes.NewReader(record), binary.LittleEndian, &l)

	ordinal := l.Sequence & lfnOrdinalMask
	switch {
	case l.Sequence&lfnLast != 0:
		d.fragments = nil
		d.checksum = l.Checksum
	case d.nextOrdinal == 0 || ordinal != d.nextOrdinal-1 || l.Checksum != d.checksum:
		// An orphaned or out of order fragment invalidates the whole name.
		d.resetLongName()
		return
	}

	if ordinal == 0 {
		d.resetLongName()
		return
	}

	d.fragments = append(d.fragments, longNameFragment(l))
	d.nextOrdinal = ordinal
}

// decodeCluster parses the 32 byte records of one cluster.
//
// A record starting with 0x00 ends the scan of this cluster only. Later clusters of the chain
// are still scanned, as some tools leave entries behind a free slot.
func (d *dirDecoder) decodeCluster(data []byte) {
	for offset := 0; offset+entrySize <= len(data); offset += entrySize {
		record := data[offset : offset+entrySize]

		switch record[0] {
		case entryEnd:
			d.resetLongName()
			return
		case entryDeleted:
			d.resetLongName()
			continue
		}

		if Attr(record[11]) == attrLongName {
			d.addFragment(record)
			continue
		}

		header := EntryHeader{}
		_ = binary.Read(bytes.NewReader(record), binary.LittleEndian, &header)

		entry := DirEntry{
			ShortName: shortName(header),
			Attr:      Attr(header.Attribute),
			Cluster:   header.FirstCluster(),
			Size:      header.FileSize,
			ModTime:   DOSTimestamp(header.WriteDate, header.WriteTime),
			Header:    header,
		}
		entry.Name = entry.ShortName
		if long := d.longName(header); long != "" && !entry.IsVolumeLabel() {
			entry.Name = long
		}
		if entry.IsDir() {
			entry.Size = 0
		}

		d.resetLongName()
		d.entries = append(d.entries, entry)
	}
}

// ReadDir lists all entries of the directory starting at cluster, including ".", ".." and
// volume labels. Deleted records are never returned.
func (fs *Fs) ReadDir(cluster uint32) ([]DirEntry, error) {
	chain, err := fs.Walk(cluster)
	if err != nil {
		return nil, checkpoint.Wrap(err, ErrReadDir)
	}

	decoder := dirDecoder{}
	for _, c := range chain {
		data, err := fs.readCluster(c)
		if err != nil {
			return nil, checkpoint.Wrap(err, ErrReadDir)
		}
		decoder.decodeCluster(data)
	}

	log.Debugf("Directory at cluster %d has %d entries", cluster, len(decoder.entries))
	return decoder.entries, nil
}

// Lookup searches the directory at cluster for a child named name. "." and ".." as well as the
// volume label are no children and never match.
func (fs *Fs) Lookup(cluster uint32, name string) (DirEntry, bool, error) {
	entries, err := fs.ReadDir(cluster)
	if err != nil {
		return DirEntry{}, false, err
	}

	for _, entry := range entries {
		if !entry.IsSpecial() && entry.Matches(name) {
			return entry, true, nil
		}
	}
	return DirEntry{}, false, nil
}
