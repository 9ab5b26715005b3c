package objectstore

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/snksoft/crc"
)

var crcTable = crc.NewTable(crc.CRC32)

// ensureThumbnail returns the cache path and byte size of a fresh thumbnail
// for srcPath, regenerating it via t.maker if the cached file is absent,
// older than srcModTime, or its CRC sidecar doesn't match.
//
// A thumbnail that cannot be produced is not a fatal error, it just means
// this image is skipped for this enumeration pass.
func (t *ObjectTable) ensureThumbnail(ctx context.Context, srcName, srcPath string, srcModTime time.Time) (string, uint32, error) {
	base := strings.TrimSuffix(srcName, filepath.Ext(srcName))
	thumbPath := filepath.Join(t.ThumbCacheDir, base+".thumb.jpeg")

	if fresh, size := thumbnailFresh(thumbPath, srcModTime); fresh {
		return thumbPath, size, nil
	}

	if err := t.maker.Make(ctx, srcPath, thumbPath); err != nil {
		return "", 0, errors.Wrap(err, "generate thumbnail")
	}
	info, err := os.Stat(thumbPath)
	if err != nil {
		return "", 0, errors.Wrap(err, "stat generated thumbnail")
	}
	if err := writeCRCSidecar(thumbPath); err != nil {
		return "", 0, errors.Wrap(err, "write thumbnail CRC sidecar")
	}
	return thumbPath, uint32(info.Size()), nil
}

// thumbnailFresh reports whether the cached thumbnail at thumbPath exists,
// is no older than srcModTime, and matches its CRC-32 sidecar.
func thumbnailFresh(thumbPath string, srcModTime time.Time) (bool, uint32) {
	tstat, err := os.Stat(thumbPath)
	if err != nil || tstat.ModTime().Before(srcModTime) {
		return false, 0
	}
	if err := verifyCRCSidecar(thumbPath); err != nil {
		return false, 0
	}
	return true, uint32(tstat.Size())
}

func sidecarPath(thumbPath string) string {
	return thumbPath + ".crc"
}

func writeCRCSidecar(thumbPath string) error {
	data, err := os.ReadFile(thumbPath)
	if err != nil {
		return err
	}
	sum := checksum(data)
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], sum)
	return os.WriteFile(sidecarPath(thumbPath), buf[:], 0o644)
}

func verifyCRCSidecar(thumbPath string) error {
	want, err := os.ReadFile(sidecarPath(thumbPath))
	if err != nil {
		return err
	}
	if len(want) != 4 {
		return errors.New("malformed thumbnail CRC sidecar")
	}
	data, err := os.ReadFile(thumbPath)
	if err != nil {
		return err
	}
	if binary.LittleEndian.Uint32(want) != checksum(data) {
		return errors.New("thumbnail CRC sidecar mismatch")
	}
	return nil
}

func checksum(data []byte) uint32 {
	crcUint := crcTable.InitCrc()
	crcUint = crcTable.UpdateCrc(crcUint, data)
	return crcTable.CRC32(crcUint)
}

// removeThumbnail deletes a thumbnail and its CRC sidecar, best-effort: a
// cache entry that is already absent is not an error.
func removeThumbnail(thumbPath string) {
	_ = os.Remove(thumbPath)
	_ = os.Remove(sidecarPath(thumbPath))
}
