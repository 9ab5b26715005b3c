package objectstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/nasa-jpl/ptpgadget/objectstore"
	"github.com/nasa-jpl/ptpgadget/ptpwire"
)

type fakeMaker struct{}

func (fakeMaker) Make(ctx context.Context, srcPath, dstPath string) error {
	return os.WriteFile(dstPath, []byte("thumb-bytes"), 0o644)
}

func newTestTable(t *testing.T, files ...string) *objectstore.ObjectTable {
	t.Helper()
	root := t.TempDir()
	cache := t.TempDir()
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(root, f), []byte("image-bytes"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	table := objectstore.New(root, cache, fakeMaker{}, log.New(os.Stderr))
	if err := table.Enumerate(context.Background()); err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	return table
}

func TestEnumerateAdmitsOnlyImageSuffixes(t *testing.T) {
	table := newTestTable(t, "a.jpg", "b.JPEG", "c.tiff", "notes.txt", "d.png")
	images := table.Images()
	if len(images) != 3 {
		t.Fatalf("expected 3 admitted images, got %d: %+v", len(images), images)
	}
	if table.ObjectNumber() != 5 {
		t.Errorf("ObjectNumber = %d, want 5", table.ObjectNumber())
	}
}

func TestEnumerateHandlesStartAtThree(t *testing.T) {
	table := newTestTable(t, "a.jpg", "b.jpg")
	for i, img := range table.Images() {
		want := uint32(3 + i)
		if img.Handle != want {
			t.Errorf("image %d handle = %d, want %d", i, img.Handle, want)
		}
	}
}

func TestIsValidHandle(t *testing.T) {
	table := newTestTable(t, "a.jpg")
	if !table.IsValidHandle(ptpwire.HandleRootAssoc) {
		t.Error("expected handle 1 (root) to be valid")
	}
	if !table.IsValidHandle(ptpwire.HandleModelDirAssoc) {
		t.Error("expected handle 2 (model dir) to be valid")
	}
	if !table.IsValidHandle(3) {
		t.Error("expected handle 3 to be valid")
	}
	if table.IsValidHandle(999) {
		t.Error("expected handle 999 to be invalid")
	}
}

func TestCountAndHandlesAssociationFilters(t *testing.T) {
	table := newTestTable(t, "a.jpg", "b.jpg", "c.jpg")

	n, err := table.Count(objectstore.Filter{Storage: ptpwire.ParamAny})
	if err != nil || n != 5 {
		t.Errorf("Count(no assoc) = %d, %v; want 5, nil", n, err)
	}

	n, err = table.Count(objectstore.Filter{Storage: ptpwire.ParamAny, HasAssociation: true, Association: ptpwire.HandleModelDirAssoc})
	if err != nil || n != 3 {
		t.Errorf("Count(assoc=2) = %d, %v; want 3, nil", n, err)
	}

	handles, err := table.Handles(objectstore.Filter{Storage: ptpwire.ParamAny, HasAssociation: true, Association: ptpwire.HandleModelDirAssoc})
	if err != nil {
		t.Fatalf("Handles: %v", err)
	}
	if len(handles) != 3 {
		t.Errorf("expected 3 handles, got %v", handles)
	}
}

func TestAssociationZeroMeansUnspecified(t *testing.T) {
	table := newTestTable(t, "a.jpg")

	n, err := table.Count(objectstore.Filter{Storage: ptpwire.ParamAny, HasAssociation: true})
	if err != nil || n != 3 {
		t.Errorf("Count(assoc=0) = %d, %v; want 3, nil", n, err)
	}

	handles, err := table.Handles(objectstore.Filter{Storage: ptpwire.StoreID, HasAssociation: true})
	if err != nil {
		t.Fatalf("Handles: %v", err)
	}
	if len(handles) != 3 || handles[0] != 1 || handles[1] != 2 {
		t.Errorf("Handles(assoc=0) = %v, want [1 2 3]", handles)
	}
}

func TestCountInvalidStorageID(t *testing.T) {
	table := newTestTable(t)
	_, err := table.Count(objectstore.Filter{Storage: 0xDEAD})
	if err != objectstore.ErrInvalidStorageID {
		t.Errorf("got %v, want ErrInvalidStorageID", err)
	}
}

func TestDeleteOneRemovesEntry(t *testing.T) {
	table := newTestTable(t, "a.jpg", "b.jpg")
	handle := table.Images()[0].Handle
	if err := table.DeleteOne(handle); err != nil {
		t.Fatalf("DeleteOne: %v", err)
	}
	if table.LookupImage(handle) != nil {
		t.Error("expected deleted handle to be gone from the table")
	}
	if len(table.Images()) != 1 {
		t.Errorf("expected 1 remaining image, got %d", len(table.Images()))
	}
}

func TestDeleteAllEmptyTable(t *testing.T) {
	table := newTestTable(t)
	results := table.DeleteAll()
	if len(results) != 0 {
		t.Errorf("expected no delete results for an empty table, got %v", results)
	}
}

func TestObjectInfoForAssociationAndImage(t *testing.T) {
	table := newTestTable(t, "a.jpg")
	info, ok := table.ObjectInfoFor(ptpwire.HandleRootAssoc)
	if !ok || info.Filename != "DCIM" {
		t.Errorf("ObjectInfoFor(1) = %+v, %v", info, ok)
	}
	handle := table.Images()[0].Handle
	info, ok = table.ObjectInfoFor(handle)
	if !ok || info.Filename != "a.jpg" {
		t.Errorf("ObjectInfoFor(%d) = %+v, %v", handle, info, ok)
	}
	_, ok = table.ObjectInfoFor(999)
	if ok {
		t.Error("expected ObjectInfoFor(999) to report not found")
	}
}

func TestObjectInfoSerializeRoundTripLength(t *testing.T) {
	table := newTestTable(t, "a.jpg")
	handle := table.Images()[0].Handle
	info, _ := table.ObjectInfoFor(handle)
	buf, err := info.Serialize(ptpwire.Latin1Encoder{})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if len(buf) == 0 {
		t.Error("expected non-empty serialized object info")
	}
}
