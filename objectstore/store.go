// Package objectstore projects a directory of image files onto the PTP
// logical object graph: a fixed storage descriptor, two synthetic
// association nodes (DCIM, 100LINUX), and one ImageObject per admitted
// image file.
package objectstore

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/nasa-jpl/ptpgadget/ptpwire"
	"github.com/nasa-jpl/ptpgadget/thumbnail"
	"github.com/nasa-jpl/ptpgadget/util"
)

// AssociationNode is one of the two fixed, read-only directory-like objects
// synthesized on demand: the DCIM root (handle 1) and the 100LINUX model
// directory (handle 2).
type AssociationNode struct {
	Handle       uint32
	ParentHandle uint32
	Name         string
}

// ImageObject is one admitted image file projected into the object table.
type ImageObject struct {
	Handle         uint32
	Filename       string // basename within Root
	Format         ptpwire.FormatCode
	Protected      bool
	CompressedSize uint32
	ThumbSize      uint32
	ParentHandle   uint32
	CaptureDate    string

	path      string // Root/Filename
	thumbPath string
}

// Path returns the absolute path of the backing image file.
func (i *ImageObject) Path() string { return i.path }

// ThumbPath returns the absolute path of the cached thumbnail file.
func (i *ImageObject) ThumbPath() string { return i.thumbPath }

var (
	rootAssoc = AssociationNode{Handle: ptpwire.HandleRootAssoc, ParentHandle: 0, Name: "DCIM"}
	modelDir  = AssociationNode{Handle: ptpwire.HandleModelDirAssoc, ParentHandle: ptpwire.HandleRootAssoc, Name: "100LINUX"}
)

// admittedSuffixes are the case-insensitive file extensions Enumerate
// scans for.
var admittedSuffixes = []string{".jpg", ".jpeg", ".tif", ".tiff"}

// ObjectTable is the in-memory projection of Root. It is owned exclusively
// by the bulk worker goroutine; nothing else may read or mutate it, so no
// internal locking is used.
type ObjectTable struct {
	Root          string
	ThumbCacheDir string

	// ProgressSink, if non-nil, is called once per candidate file during
	// Enumerate. It is purely observational (the CLI's startup spinner)
	// and has no effect on object table semantics.
	ProgressSink func(EnumerationProgress)

	maker  thumbnail.Maker
	logger *log.Logger

	images     []*ImageObject
	nextHandle uint32
}

// EnumerationProgress reports Enumerate's progress through the candidate
// image files in Root.
type EnumerationProgress struct {
	Total   int
	Done    int
	Current string
}

// New returns an empty ObjectTable. Call Enumerate to populate it.
func New(root, thumbCacheDir string, maker thumbnail.Maker, logger *log.Logger) *ObjectTable {
	return &ObjectTable{
		Root:          root,
		ThumbCacheDir: thumbCacheDir,
		maker:         maker,
		logger:        logger,
		nextHandle:    3,
	}
}

// Enumerate (re)scans Root and rebuilds the table from scratch, with
// entries sorted by filename. Table iteration order must stay stable for
// the life of the process, so repeated Enumerate calls without an
// intervening filesystem change reproduce the same handle assignment.
func (t *ObjectTable) Enumerate(ctx context.Context) error {
	entries, err := os.ReadDir(t.Root)
	if err != nil {
		return errors.Wrapf(err, "read root directory %s", t.Root)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	total := 0
	for _, ent := range entries {
		if !ent.IsDir() {
			if _, ok := formatForSuffix(ent.Name()); ok {
				total++
			}
		}
	}

	images := make([]*ImageObject, 0, len(entries))
	handle := uint32(3)
	done := 0
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		name := ent.Name()
		format, ok := formatForSuffix(name)
		if !ok {
			continue
		}
		done++
		if t.ProgressSink != nil {
			t.ProgressSink(EnumerationProgress{Total: total, Done: done, Current: name})
		}
		info, err := ent.Info()
		if err != nil {
			t.logger.Warnf("stat %s: %v", name, err)
			continue
		}
		srcPath := filepath.Join(t.Root, name)
		thumbPath, thumbSize, err := t.ensureThumbnail(ctx, name, srcPath, info.ModTime())
		if err != nil {
			t.logger.Warnf("no thumbnail for %s, skipping: %v", name, err)
			continue
		}
		images = append(images, &ImageObject{
			Handle:         handle,
			Filename:       name,
			Format:         format,
			Protected:      !util.GetBit(byte(info.Mode().Perm()), 7), // owner write, 0o200
			CompressedSize: uint32(info.Size()),
			ThumbSize:      thumbSize,
			ParentHandle:   ptpwire.HandleModelDirAssoc,
			CaptureDate:    captureDate(info.ModTime()),
			path:           srcPath,
			thumbPath:      thumbPath,
		})
		handle++
	}
	t.images = images
	t.nextHandle = handle
	return nil
}

func formatForSuffix(name string) (ptpwire.FormatCode, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".jpg", ".jpeg":
		return ptpwire.FormatEXIFJPEG, true
	case ".tif", ".tiff":
		return ptpwire.FormatTIFF, true
	default:
		return 0, false
	}
}

// captureDate formats t as a UTC timestamp with a literal ".0Z" suffix,
// not a fractional-seconds specifier; hosts parse this field
// positionally.
func captureDate(t time.Time) string {
	u := t.UTC()
	return u.Format("20060102T150405") + ".0Z"
}

// ObjectNumber is the PTP object_number: the two associations plus every
// admitted image.
func (t *ObjectTable) ObjectNumber() int {
	return 2 + len(t.images)
}

// Associations returns the two fixed association nodes, root then model
// directory.
func (t *ObjectTable) Associations() [2]AssociationNode {
	return [2]AssociationNode{rootAssoc, modelDir}
}

// Images returns the table's image entries in stable enumeration order.
// Callers must not mutate the returned slice.
func (t *ObjectTable) Images() []*ImageObject {
	return t.images
}

// LookupImage returns the ImageObject with the given handle, or nil if none
// exists.
func (t *ObjectTable) LookupImage(handle uint32) *ImageObject {
	for _, img := range t.images {
		if img.Handle == handle {
			return img
		}
	}
	return nil
}

// IsValidHandle reports whether handle identifies a live object: one of the
// two association nodes, or an admitted image.
func (t *ObjectTable) IsValidHandle(handle uint32) bool {
	if handle == ptpwire.HandleRootAssoc || handle == ptpwire.HandleModelDirAssoc {
		return true
	}
	return t.LookupImage(handle) != nil
}
