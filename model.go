// File model contains the structs which match the direct structures of a FAT32 volume.
// They are decoded field by field with encoding/binary in little endian order.

package fatnav

const (
	// bootSectorSize is the part of the first sector which holds the BPB, independent of the sector size.
	bootSectorSize = 512

	// entrySize is the size of a single directory record, short or long.
	entrySize = 32

	// fatEntrySize is the size of a single FAT32 entry.
	fatEntrySize = 4

	// lfnCharsPerEntry is the amount of UTF-16 code units a single long name record holds.
	lfnCharsPerEntry = 13
)

// BPB is the BIOS parameter block at the start of the boot sector.
type BPB struct {
	BSJumpBoot          [3]byte
	BSOEMName           [8]byte
	BytesPerSector      uint16
	SectorsPerCluster   byte
	ReservedSectorCount uint16
	NumFATs             byte
	RootEntryCount      uint16
	TotalSectors16      uint16
	Media               byte
	FATSize16           uint16
	SectorsPerTrack     uint16
	NumberOfHeads       uint16
	HiddenSectors       uint32
	TotalSectors32      uint32
	FATSpecificData     [54]byte
}

// FAT32SpecificData is the extended BPB which FAT32 stores in BPB.FATSpecificData.
type FAT32SpecificData struct {
	FatSize          uint32
	ExtFlags         uint16
	FSVersion        uint16
	RootCluster      uint32
	FSInfo           uint16
	BkBootSector     uint16
	Reserved         [12]byte
	BSDriveNumber    byte
	BSReserved1      byte
	BSBootSignature  byte
	BSVolumeID       uint32
	BSVolumeLabel    [11]byte
	BSFileSystemType [8]byte
}

// EntryHeader is a short (8.3) directory record.
type EntryHeader struct {
	Name            [11]byte
	Attribute       byte
	NTReserved      byte
	CreateTimeTenth byte
	CreateTime      uint16
	CreateDate      uint16
	LastAccessDate  uint16
	FirstClusterHI  uint16
	WriteTime       uint16
	WriteDate       uint16
	FirstClusterLO  uint16
	FileSize        uint32
}

// FirstCluster joins both halves of the start cluster.
func (h EntryHeader) FirstCluster() uint32 {
	return uint32(h.FirstClusterHI)<<16 | uint32(h.FirstClusterLO)
}

// LongFilenameEntry is a single fragment of a long (VFAT) file name.
type LongFilenameEntry struct {
	Sequence  byte
	First     [5]uint16
	Attribute byte
	EntryType byte
	Checksum  byte
	Second    [6]uint16
	Zero      [2]byte
	Third     [2]uint16
}

const (
	// lfnLast marks the fragment with the highest ordinal, which is stored first.
	lfnLast = 0x40
	// lfnOrdinalMask extracts the ordinal of a fragment.
	lfnOrdinalMask = 0x1F
)

// Marker values of the first name byte of a short record.
const (
	entryEnd     = 0x00
	entryDeleted = 0xE5
	// entryKanji is stored instead of a real leading 0xE5 character.
	entryKanji = 0x05
)

// Bits of EntryHeader.NTReserved which Windows uses to keep all-lowercase 8.3 names.
const (
	ntLowercaseName = 0x08
	ntLowercaseExt  = 0x10
)
