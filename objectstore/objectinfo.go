package objectstore

import (
	"bytes"
	"os"

	"github.com/nasa-jpl/ptpgadget/ptpwire"
	"github.com/nasa-jpl/ptpgadget/thumbnail"
)

// ObjectInfo is the decoded form of a PTP ObjectInfo dataset. Serialize
// writes it in the exact field order PIMA 15740 defines.
type ObjectInfo struct {
	StorageID            uint32
	ObjectFormat         ptpwire.FormatCode
	ProtectionStatus     uint16
	ObjectCompressedSize uint32
	ThumbFormat          uint16
	ThumbCompressedSize  uint32
	ThumbPixWidth        uint32
	ThumbPixHeight       uint32
	ImagePixWidth        uint32
	ImagePixHeight       uint32
	ImageBitDepth        uint32
	ParentObject         uint32
	AssociationType      uint16
	AssociationDesc      uint32
	SequenceNumber       uint32
	Filename             string
	CaptureDate          string
	ModificationDate     string
	Keywords             string
}

// Serialize writes the object-info dataset as a Data container payload:
// the fixed-width fields followed by four length-prefixed UCS-2LE strings
// (filename, capture date, modification date, keywords).
func (o ObjectInfo) Serialize(enc ptpwire.Encoder) ([]byte, error) {
	var buf bytes.Buffer
	if err := ptpwire.EncodeLE32(&buf, o.StorageID); err != nil {
		return nil, err
	}
	if err := ptpwire.EncodeLE16(&buf, uint16(o.ObjectFormat)); err != nil {
		return nil, err
	}
	if err := ptpwire.EncodeLE16(&buf, o.ProtectionStatus); err != nil {
		return nil, err
	}
	if err := ptpwire.EncodeLE32(&buf, o.ObjectCompressedSize); err != nil {
		return nil, err
	}
	if err := ptpwire.EncodeLE16(&buf, o.ThumbFormat); err != nil {
		return nil, err
	}
	if err := ptpwire.EncodeLE32(&buf, o.ThumbCompressedSize); err != nil {
		return nil, err
	}
	if err := ptpwire.EncodeLE32(&buf, o.ThumbPixWidth); err != nil {
		return nil, err
	}
	if err := ptpwire.EncodeLE32(&buf, o.ThumbPixHeight); err != nil {
		return nil, err
	}
	if err := ptpwire.EncodeLE32(&buf, o.ImagePixWidth); err != nil {
		return nil, err
	}
	if err := ptpwire.EncodeLE32(&buf, o.ImagePixHeight); err != nil {
		return nil, err
	}
	if err := ptpwire.EncodeLE32(&buf, o.ImageBitDepth); err != nil {
		return nil, err
	}
	if err := ptpwire.EncodeLE32(&buf, o.ParentObject); err != nil {
		return nil, err
	}
	if err := ptpwire.EncodeLE16(&buf, o.AssociationType); err != nil {
		return nil, err
	}
	if err := ptpwire.EncodeLE32(&buf, o.AssociationDesc); err != nil {
		return nil, err
	}
	if err := ptpwire.EncodeLE32(&buf, o.SequenceNumber); err != nil {
		return nil, err
	}
	for _, s := range []string{o.Filename, o.CaptureDate, o.ModificationDate, o.Keywords} {
		if _, err := ptpwire.EncodeString(&buf, s, enc); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// ObjectInfoFor returns the ObjectInfo dataset for handle: one of the two
// synthetic associations, or a real image. ok is false if handle names
// nothing in the table.
func (t *ObjectTable) ObjectInfoFor(handle uint32) (ObjectInfo, bool) {
	switch handle {
	case ptpwire.HandleRootAssoc:
		return t.associationInfo(rootAssoc, dirSize(t.Root)), true
	case ptpwire.HandleModelDirAssoc:
		return t.associationInfo(modelDir, dirSize(t.Root)), true
	}
	img := t.LookupImage(handle)
	if img == nil {
		return ObjectInfo{}, false
	}
	return ObjectInfo{
		StorageID:            ptpwire.StoreID,
		ObjectFormat:         img.Format,
		ProtectionStatus:     protectionStatus(img.Protected),
		ObjectCompressedSize: img.CompressedSize,
		ThumbFormat:          uint16(ptpwire.FormatJFIF),
		ThumbCompressedSize:  img.ThumbSize,
		ThumbPixWidth:        thumbnail.Width,
		ThumbPixHeight:       thumbnail.Height,
		ParentObject:         img.ParentHandle,
		Filename:             img.Filename,
		CaptureDate:          img.CaptureDate,
	}, true
}

// associationInfo synthesizes the object-info record for a fixed
// association node. The 100LINUX directory is sized from a real stat of
// the backing directory; DCIM itself always reports 4096.
func (t *ObjectTable) associationInfo(node AssociationNode, size uint32) ObjectInfo {
	compressedSize := uint32(4096)
	if node.Handle == ptpwire.HandleModelDirAssoc {
		compressedSize = size
	}
	return ObjectInfo{
		StorageID:            ptpwire.StoreID,
		ObjectFormat:         ptpwire.FormatAssociation,
		ProtectionStatus:     0,
		ObjectCompressedSize: compressedSize,
		ParentObject:         node.ParentHandle,
		AssociationType:      1,
		Filename:             node.Name,
	}
}

func protectionStatus(protected bool) uint16 {
	if protected {
		return 1
	}
	return 0
}

func dirSize(root string) uint32 {
	info, err := os.Stat(root)
	if err != nil {
		return 4096
	}
	return uint32(info.Size())
}
