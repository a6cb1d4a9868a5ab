package fatnav

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/bits"
	"strings"

	"github.com/aligator/fatnav/checkpoint"
)

// Info contains all information about the whole filesystem.
// It is decoded once from the boot sector and never changes afterwards.
type Info struct {
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	SectorsPerFAT     uint32
	RootCluster       uint32

	// FirstDataSector is ReservedSectors + NumFATs * SectorsPerFAT.
	FirstDataSector uint32
	TotalSectors    uint32
	// TotalClusters is the amount of data clusters, starting at cluster 2.
	TotalClusters uint32

	Label    string
	VolumeID uint32
}

// SectorOfCluster returns the first sector of a data cluster.
// Only valid for cluster >= 2, as clusters 0 and 1 do not exist in the data region.
func (i Info) SectorOfCluster(cluster uint32) uint32 {
	return i.FirstDataSector + (cluster-2)*uint32(i.SectorsPerCluster)
}

// ByteOffset returns the position of a sector inside the image.
func (i Info) ByteOffset(sector uint32) int64 {
	return int64(sector) * int64(i.BytesPerSector)
}

// FATEntryOffset returns the position of the entry of cluster inside the first FAT.
func (i Info) FATEntryOffset(cluster uint32) int64 {
	return int64(i.ReservedSectors)*int64(i.BytesPerSector) + int64(cluster)*fatEntrySize
}

// ClusterOffset returns the position of the data of cluster inside the image.
func (i Info) ClusterOffset(cluster uint32) int64 {
	return i.ByteOffset(i.SectorOfCluster(cluster))
}

// ClusterSize returns the size of a single cluster in bytes.
func (i Info) ClusterSize() uint32 {
	return uint32(i.BytesPerSector) * uint32(i.SectorsPerCluster)
}

// ClusterInValidRange checks that cluster addresses the data region.
// It does not access the FAT.
func (i Info) ClusterInValidRange(cluster uint32) bool {
	return cluster >= 2 && cluster-2 < i.TotalClusters
}

// FATEntries returns how many entries fit into one FAT.
func (i Info) FATEntries() uint32 {
	return i.SectorsPerFAT * uint32(i.BytesPerSector) / fatEntrySize
}

// VolumeSize returns the size of all sectors of the volume.
func (i Info) VolumeSize() int64 {
	return i.ByteOffset(i.TotalSectors)
}

func invalidVolume(format string, args ...interface{}) error {
	return checkpoint.Wrap(fmt.Errorf(format, args...), ErrInvalidVolume)
}

// DecodeInfo validates the boot sector and returns the volume geometry it describes.
// With skipChecks the jump instruction, media byte and 0x55AA signature are not checked,
// which allows opening images written by sloppy tools.
func DecodeInfo(sector []byte, skipChecks bool) (Info, error) {
	if len(sector) < bootSectorSize {
		return Info{}, invalidVolume("boot sector has only %d bytes", len(sector))
	}

	bpb := BPB{}
	err := binary.Read(bytes.NewReader(sector), binary.LittleEndian, &bpb)
	if err != nil {
		return Info{}, checkpoint.Wrap(err, ErrInvalidVolume)
	}

	ext := FAT32SpecificData{}
	err = binary.Read(bytes.NewReader(bpb.FATSpecificData[:]), binary.LittleEndian, &ext)
	if err != nil {
		return Info{}, checkpoint.Wrap(err, ErrInvalidVolume)
	}

	if !skipChecks {
		// Check for valid jump instructions
		if !(bpb.BSJumpBoot[0] == 0xEB && bpb.BSJumpBoot[2] == 0x90) && bpb.BSJumpBoot[0] != 0xE9 {
			return Info{}, invalidVolume("no valid jump instructions at the beginning")
		}

		if sector[510] != 0x55 || sector[511] != 0xAA {
			return Info{}, invalidVolume("missing boot sector signature 0x55AA")
		}

		if bpb.Media != 0xF0 && bpb.Media < 0xF8 {
			return Info{}, invalidVolume("invalid media value 0x%02X", bpb.Media)
		}
	}

	// FAT only supports 512, 1024, 2048 and 4096.
	switch bpb.BytesPerSector {
	case 512, 1024, 2048, 4096:
	default:
		return Info{}, invalidVolume("invalid sector size %d", bpb.BytesPerSector)
	}

	// Sectors per cluster has to be a power of two and greater than 0.
	// Also the whole cluster size should not be more than 32K.
	if bits.OnesCount8(bpb.SectorsPerCluster) != 1 ||
		uint32(bpb.BytesPerSector)*uint32(bpb.SectorsPerCluster) > 32*1024 {
		return Info{}, invalidVolume("invalid sectors per cluster %d", bpb.SectorsPerCluster)
	}

	if bpb.ReservedSectorCount == 0 {
		return Info{}, invalidVolume("invalid reserved sector count")
	}

	if bpb.NumFATs == 0 {
		return Info{}, invalidVolume("no FAT present")
	}

	// FAT12 and FAT16 keep a fixed root directory and a 16 bit FAT size.
	if bpb.RootEntryCount != 0 || bpb.FATSize16 != 0 || ext.FatSize == 0 {
		return Info{}, invalidVolume("not a FAT32 volume")
	}

	info := Info{
		BytesPerSector:    bpb.BytesPerSector,
		SectorsPerCluster: bpb.SectorsPerCluster,
		ReservedSectors:   bpb.ReservedSectorCount,
		NumFATs:           bpb.NumFATs,
		SectorsPerFAT:     ext.FatSize,
		RootCluster:       ext.RootCluster,
		TotalSectors:      bpb.TotalSectors32,
	}

	if bpb.TotalSectors16 != 0 {
		info.TotalSectors = uint32(bpb.TotalSectors16)
	}
	if info.TotalSectors == 0 {
		return Info{}, invalidVolume("total sector count is 0")
	}

	fatSectors := uint64(info.NumFATs) * uint64(info.SectorsPerFAT)
	firstDataSector := uint64(info.ReservedSectors) + fatSectors
	if firstDataSector >= uint64(info.TotalSectors) {
		return Info{}, invalidVolume("data region starts at sector %d behind the end of the volume", firstDataSector)
	}
	info.FirstDataSector = uint32(firstDataSector)
	info.TotalClusters = (info.TotalSectors - info.FirstDataSector) / uint32(info.SectorsPerCluster)

	// The FAT has to be able to address every data cluster.
	if uint64(info.TotalClusters)+2 > uint64(info.FATEntries()) {
		info.TotalClusters = info.FATEntries() - 2
	}

	if !info.ClusterInValidRange(info.RootCluster) {
		return Info{}, invalidVolume("invalid root cluster %d", info.RootCluster)
	}

	// The volume id and label are only valid if the extended boot signature is present.
	if ext.BSBootSignature == 0x29 {
		info.VolumeID = ext.BSVolumeID
		info.Label = strings.TrimRight(string(ext.BSVolumeLabel[:]), " \x00")
	}

	return info, nil
}
