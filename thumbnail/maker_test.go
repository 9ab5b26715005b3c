package thumbnail_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nasa-jpl/ptpgadget/thumbnail"
)

func TestSubprocessMakeMissingBinary(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.jpg")
	if err := os.WriteFile(src, []byte("not really a jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(dir, "a.thumb.jpeg")

	m := thumbnail.NewSubprocess("ptpgadget-thumbnail-binary-that-does-not-exist", 15, 15)
	if err := m.Make(context.Background(), src, dst); err == nil {
		t.Fatal("expected error invoking a nonexistent converter binary")
	}
}

type fakeMaker struct {
	calls int
}

func (f *fakeMaker) Make(ctx context.Context, srcPath, dstPath string) error {
	f.calls++
	return os.WriteFile(dstPath, []byte("thumb"), 0o644)
}

func TestFakeMakerWritesDest(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "out.jpeg")
	f := &fakeMaker{}
	if err := f.Make(context.Background(), "in.jpg", dst); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.calls != 1 {
		t.Errorf("expected 1 call, got %d", f.calls)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Errorf("expected dst to exist: %v", err)
	}
}
