package ptpproto

import (
	"bytes"

	"github.com/nasa-jpl/ptpgadget/objectstore"
	"github.com/nasa-jpl/ptpgadget/ptpwire"
)

// supportedOperations is the fixed set of 11 opcodes this responder
// implements, in GetDeviceInfo advertisement order.
var supportedOperations = []ptpwire.OpCode{
	ptpwire.OpGetDeviceInfo,
	ptpwire.OpOpenSession,
	ptpwire.OpCloseSession,
	ptpwire.OpGetStorageIDs,
	ptpwire.OpGetStorageInfo,
	ptpwire.OpGetNumObjects,
	ptpwire.OpGetObjectHandles,
	ptpwire.OpGetObjectInfo,
	ptpwire.OpGetObject,
	ptpwire.OpGetThumb,
	ptpwire.OpDeleteObject,
}

// supportedImageFormats is the fixed set of image format codes this
// responder advertises as acceptable for captured/stored objects.
var supportedImageFormats = []ptpwire.FormatCode{
	ptpwire.FormatEXIFJPEG,
	ptpwire.FormatTIFFEP,
	ptpwire.FormatPNG,
	ptpwire.FormatTIFF,
	ptpwire.FormatTIFFIT,
	ptpwire.FormatJFIF,
}

// DeviceInfo holds the identity strings the GetDeviceInfo dataset reports.
type DeviceInfo struct {
	Manufacturer string
	Model        string
}

// Serialize writes the GetDeviceInfo dataset: standard version 100, no
// vendor extension, function mode 0, the supported-operations array, zero
// counts for events/device-properties/capture-formats, the supported image
// formats array, manufacturer/model strings, and empty device-version and
// serial-number strings.
func (d DeviceInfo) Serialize(enc ptpwire.Encoder) ([]byte, error) {
	var buf bytes.Buffer
	if err := ptpwire.EncodeLE16(&buf, 100); err != nil {
		return nil, err
	}
	if err := ptpwire.EncodeLE32(&buf, 0); err != nil { // vendor_ext_id
		return nil, err
	}
	if err := ptpwire.EncodeLE16(&buf, 0); err != nil { // vendor_ext_ver
		return nil, err
	}
	if _, err := ptpwire.EncodeString(&buf, "", enc); err != nil { // vendor_ext_desc
		return nil, err
	}
	if err := ptpwire.EncodeLE16(&buf, 0); err != nil { // func_mode
		return nil, err
	}
	if err := ptpwire.EncodeLE32(&buf, uint32(len(supportedOperations))); err != nil {
		return nil, err
	}
	for _, op := range supportedOperations {
		if err := ptpwire.EncodeLE16(&buf, uint16(op)); err != nil {
			return nil, err
		}
	}
	if err := ptpwire.EncodeLE32(&buf, 0); err != nil { // events_n
		return nil, err
	}
	if err := ptpwire.EncodeLE32(&buf, 0); err != nil { // device_properties_n
		return nil, err
	}
	if err := ptpwire.EncodeLE32(&buf, 0); err != nil { // capture_formats_n
		return nil, err
	}
	if err := ptpwire.EncodeLE32(&buf, uint32(len(supportedImageFormats))); err != nil {
		return nil, err
	}
	for _, f := range supportedImageFormats {
		if err := ptpwire.EncodeLE16(&buf, uint16(f)); err != nil {
			return nil, err
		}
	}
	if _, err := ptpwire.EncodeString(&buf, d.Manufacturer, enc); err != nil {
		return nil, err
	}
	if _, err := ptpwire.EncodeString(&buf, d.Model, enc); err != nil {
		return nil, err
	}
	if _, err := ptpwire.EncodeString(&buf, "", enc); err != nil { // device version
		return nil, err
	}
	if _, err := ptpwire.EncodeString(&buf, "", enc); err != nil { // serial number
		return nil, err
	}
	return buf.Bytes(), nil
}

// StorageInfo is the serialized StorageInfo dataset for GetStorageInfo.
type StorageInfo struct {
	Description string
	VolumeLabel string
}

// Serialize writes the descriptor's current capacity fields plus the
// fixed description/volume-label strings.
func (s StorageInfo) Serialize(desc objectstore.StorageDescriptor, enc ptpwire.Encoder) ([]byte, error) {
	var buf bytes.Buffer
	if err := ptpwire.EncodeLE16(&buf, uint16(desc.StorageType)); err != nil {
		return nil, err
	}
	if err := ptpwire.EncodeLE16(&buf, uint16(desc.FilesystemType)); err != nil {
		return nil, err
	}
	if err := ptpwire.EncodeLE16(&buf, uint16(desc.AccessCapability)); err != nil {
		return nil, err
	}
	if err := ptpwire.EncodeLE64(&buf, desc.MaxCapacity); err != nil {
		return nil, err
	}
	if err := ptpwire.EncodeLE64(&buf, desc.FreeSpaceInBytes); err != nil {
		return nil, err
	}
	if err := ptpwire.EncodeLE32(&buf, 0xFFFFFFFF); err != nil { // free_space_in_images: not tracked
		return nil, err
	}
	if _, err := ptpwire.EncodeString(&buf, s.Description, enc); err != nil {
		return nil, err
	}
	if _, err := ptpwire.EncodeString(&buf, s.VolumeLabel, enc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
