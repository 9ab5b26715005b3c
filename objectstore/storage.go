package objectstore

import (
	"syscall"

	"github.com/pkg/errors"

	"github.com/nasa-jpl/ptpgadget/ptpwire"
)

// StorageDescriptor is the responder's sole storage volume: fixed
// identifier, removable-RAM type, DCF filesystem, read/write access.
// Capacity and free space are refreshed from the backing directory's
// filesystem statistics on every read.
type StorageDescriptor struct {
	StorageID        uint32
	StorageType      ptpwire.StorageType
	FilesystemType   ptpwire.FilesystemType
	AccessCapability ptpwire.AccessCapability
	MaxCapacity      uint64
	FreeSpaceInBytes uint64
}

// NewStorageDescriptor returns the fixed descriptor with zeroed capacity
// fields; call Refresh before serving GetStorageInfo.
func NewStorageDescriptor() StorageDescriptor {
	return StorageDescriptor{
		StorageID:        ptpwire.StoreID,
		StorageType:      ptpwire.StorageRemovableRAM,
		FilesystemType:   ptpwire.FilesystemDCF,
		AccessCapability: ptpwire.AccessReadWrite,
	}
}

// Refresh re-reads MaxCapacity and FreeSpaceInBytes from root's filesystem.
func (s *StorageDescriptor) Refresh(root string) error {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(root, &stat); err != nil {
		return errors.Wrapf(err, "statfs %s", root)
	}
	blockSize := uint64(stat.Bsize)
	s.MaxCapacity = stat.Blocks * blockSize
	s.FreeSpaceInBytes = stat.Bavail * blockSize
	return nil
}

// RefreshFreeSpace is a convenience for the post-delete free-space refresh
// the dispatcher performs after DeleteObject.
func (t *ObjectTable) RefreshFreeSpace(s *StorageDescriptor) error {
	return s.Refresh(t.Root)
}
