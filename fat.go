package fatnav

import (
	"encoding/binary"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/aligator/fatnav/checkpoint"
)

const (
	// maskFAT32 keeps the 28 significant bits of an entry. The upper 4 bits are reserved.
	maskFAT32 = 0x0FFFFFFF

	maxNextFAT32 = 0x0FFFFFEF
	badFAT32     = 0x0FFFFFF7
	eofFAT32     = 0x0FFFFFF8
)

// fatEntry is a single value of the File Allocation Table.
type fatEntry uint32

// Value returns the significant 28 bits of the entry.
func (e fatEntry) Value() uint32 {
	return uint32(e) & maskFAT32
}

// IsFree reports an unallocated cluster.
func (e fatEntry) IsFree() bool {
	return e.Value() == 0
}

// IsReservedTemp reports the value 1, which is never used in a chain.
func (e fatEntry) IsReservedTemp() bool {
	return e.Value() == 1
}

// IsNextCluster reports whether the entry points to the next cluster of a chain.
func (e fatEntry) IsNextCluster() bool {
	return e.Value() >= 2 && e.Value() <= maxNextFAT32
}

// IsReservedSometimes reports the range 0x0FFFFFF0 - 0x0FFFFFF6 which some implementations
// use as additional markers.
func (e fatEntry) IsReservedSometimes() bool {
	return e.Value() > maxNextFAT32 && e.Value() < badFAT32
}

// IsReserved reports every value which is neither free, a link, bad or end of chain.
func (e fatEntry) IsReserved() bool {
	return e.IsReservedTemp() || e.IsReservedSometimes()
}

// IsBad reports a cluster which is marked as defect.
func (e fatEntry) IsBad() bool {
	return e.Value() == badFAT32
}

// IsEOF reports the end of a chain. Any value from 0x0FFFFFF8 on is valid.
func (e fatEntry) IsEOF() bool {
	return e.Value() >= eofFAT32
}

// readFATEntry reads the entry of cluster from the first FAT. Other FAT copies are ignored.
// The caller has to hold fs.lock.
func (fs *Fs) readFATEntry(cluster uint32) (fatEntry, error) {
	offset := fs.info.FATEntryOffset(cluster)
	sectorSize := int64(fs.info.BytesPerSector)

	err := fs.fetch(uint32(offset / sectorSize))
	if err != nil {
		return 0, checkpoint.From(err)
	}

	// Entries are 4 byte aligned, so they never cross a sector boundary.
	inSector := offset % sectorSize
	value := binary.LittleEndian.Uint32(fs.sectorCache.buffer[inSector : inSector+fatEntrySize])
	return fatEntry(value & maskFAT32), nil
}

func corruptChain(format string, args ...interface{}) error {
	return checkpoint.Wrap(fmt.Errorf(format, args...), ErrCorruptChain)
}

// Walk follows the cluster chain which starts at start and returns all of its clusters in order.
// The chain is read again on every call.
//
// It fails with ErrInvalidCluster if start is not a data cluster and with ErrCorruptChain if
// the chain contains a bad cluster, an unallocated or out of range link, or a loop.
func (fs *Fs) Walk(start uint32) ([]uint32, error) {
	if !fs.info.ClusterInValidRange(start) {
		return nil, checkpoint.Wrap(fmt.Errorf("cluster %d", start), ErrInvalidCluster)
	}

	fs.lock.Lock()
	defer fs.lock.Unlock()

	chain := []uint32{start}
	visited := map[uint32]struct{}{start: {}}
	// No chain can be longer than the amount of data clusters.
	maxLength := int(fs.info.TotalClusters)

	for current := start; ; {
		entry, err := fs.readFATEntry(current)
		if err != nil {
			return nil, checkpoint.From(err)
		}

		switch {
		case entry.IsEOF():
			log.Debugf("Chain of cluster %d has %d clusters", start, len(chain))
			return chain, nil
		case entry.IsBad():
			return nil, corruptChain("cluster %d is marked bad", current)
		case !entry.IsNextCluster():
			return nil, corruptChain("cluster %d links to reserved value 0x%07X", current, entry.Value())
		}

		next := entry.Value()
		if !fs.info.ClusterInValidRange(next) {
			return nil, corruptChain("cluster %d links to cluster %d outside of the volume", current, next)
		}
		if _, ok := visited[next]; ok {
			return nil, corruptChain("cluster %d links back to cluster %d", current, next)
		}
		if len(chain) >= maxLength {
			return nil, corruptChain("chain of cluster %d is longer than %d clusters", start, maxLength)
		}

		visited[next] = struct{}{}
		chain = append(chain, next)
		current = next
	}
}
