package objectstore

import (
	"os"
	"syscall"

	"github.com/pkg/errors"

	"github.com/nasa-jpl/ptpgadget/util"
)

// ErrWriteProtected is returned when the caller's effective uid/gid/other
// permission tier lacks write access to the backing file.
var ErrWriteProtected = errors.New("objectstore: object is write protected")

// DeleteResult records the outcome of deleting a single handle, for
// aggregation across a handle=ANY batch delete.
type DeleteResult struct {
	Handle uint32
	Err    error
}

// DeleteOne deletes the image with the given handle: it re-stats the
// backing file, applies the euid/egid/other write-permission chain, then
// unlinks the file and best-effort removes its thumbnail. The table entry
// is dropped only on success.
func (t *ObjectTable) DeleteOne(handle uint32) error {
	idx := -1
	for i, img := range t.images {
		if img.Handle == handle {
			idx = i
			break
		}
	}
	if idx < 0 {
		return os.ErrNotExist
	}
	img := t.images[idx]

	if err := checkWritable(img.path); err != nil {
		return err
	}
	if err := os.Remove(img.path); err != nil {
		return errors.Wrap(err, "unlink object")
	}
	removeThumbnail(img.thumbPath)

	t.images = append(t.images[:idx], t.images[idx+1:]...)
	return nil
}

// DeleteAll attempts to delete every image in the table, in table order,
// and returns one DeleteResult per attempted handle. A table with no
// images returns an empty slice; deleting everything from an empty table
// is a success.
func (t *ObjectTable) DeleteAll() []DeleteResult {
	handles := make([]uint32, len(t.images))
	for i, img := range t.images {
		handles[i] = img.Handle
	}
	results := make([]DeleteResult, 0, len(handles))
	for _, h := range handles {
		results = append(results, DeleteResult{Handle: h, Err: t.DeleteOne(h)})
	}
	return results
}

// checkWritable applies the delete permission chain:
// if the caller's effective uid owns the file, require the owner-write
// bit; else if the caller's effective gid matches, require group-write;
// otherwise require other-write.
func checkWritable(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return errors.Wrap(err, "stat object for delete")
	}
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return errors.New("objectstore: platform does not expose file ownership")
	}
	mode := byte(fi.Mode().Perm())
	euid := uint32(syscall.Geteuid())
	egid := uint32(syscall.Getegid())

	var writable bool
	switch {
	case euid == st.Uid:
		writable = util.GetBit(mode, 7) // owner write, 0o200
	case egid == st.Gid:
		writable = util.GetBit(mode, 4) // group write, 0o020
	default:
		writable = util.GetBit(mode, 1) // other write, 0o002
	}
	if !writable {
		return ErrWriteProtected
	}
	return nil
}
