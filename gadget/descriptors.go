package gadget

import (
	"bytes"
	"encoding/binary"
)

// Fixed lengths of each standard descriptor, USB Specification Revision 2.0.
const (
	deviceDescLength    = 18
	configDescLength    = 9
	interfaceDescLength = 9
	endpointDescLength  = 7
)

// Standard descriptor type codes (USB 2.0 table 9-5).
const (
	descTypeDevice    uint8 = 1
	descTypeConfig    uint8 = 2
	descTypeString    uint8 = 3
	descTypeInterface uint8 = 4
	descTypeEndpoint  uint8 = 5
)

// Still Image class codes (PIMA 15740 / USB Still Image Capture Device
// Definition).
const (
	classStillImage    uint8 = 0x06
	subclassImgCapture uint8 = 0x01
	protoControlBulk   uint8 = 0x01
)

// Endpoint transfer types and directions, Attributes/EndpointAddress
// fields of EndpointDescriptor.
const (
	epDirIn  uint8 = 0x80
	epDirOut uint8 = 0x00

	epAttrBulk uint8 = 0x02
	epAttrIntr uint8 = 0x03
)

// DeviceDescriptor is the standard USB device descriptor (USB 2.0 table
// 9-8). String indices are filled in once the device's string table is
// built; index 0 means "no string".
type DeviceDescriptor struct {
	bcdUSB            uint16
	DeviceClass       uint8
	DeviceSubClass    uint8
	DeviceProtocol    uint8
	MaxPacketSize0    uint8
	VendorID          uint16
	ProductID         uint16
	bcdDevice         uint16
	ManufacturerIdx   uint8
	ProductIdx        uint8
	SerialNumberIdx   uint8
	NumConfigurations uint8
}

// Bytes serializes the descriptor in wire order.
func (d DeviceDescriptor) Bytes() []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(deviceDescLength)
	buf.WriteByte(descTypeDevice)
	binary.Write(buf, binary.LittleEndian, d.bcdUSB)
	buf.WriteByte(d.DeviceClass)
	buf.WriteByte(d.DeviceSubClass)
	buf.WriteByte(d.DeviceProtocol)
	buf.WriteByte(d.MaxPacketSize0)
	binary.Write(buf, binary.LittleEndian, d.VendorID)
	binary.Write(buf, binary.LittleEndian, d.ProductID)
	binary.Write(buf, binary.LittleEndian, d.bcdDevice)
	buf.WriteByte(d.ManufacturerIdx)
	buf.WriteByte(d.ProductIdx)
	buf.WriteByte(d.SerialNumberIdx)
	buf.WriteByte(d.NumConfigurations)
	return buf.Bytes()
}

// EndpointDescriptor is the standard USB endpoint descriptor (USB 2.0
// table 9-13).
type EndpointDescriptor struct {
	EndpointAddress uint8
	Attributes      uint8
	MaxPacketSize   uint16
	Interval        uint8
}

func (e EndpointDescriptor) Bytes() []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(endpointDescLength)
	buf.WriteByte(descTypeEndpoint)
	buf.WriteByte(e.EndpointAddress)
	buf.WriteByte(e.Attributes)
	binary.Write(buf, binary.LittleEndian, e.MaxPacketSize)
	buf.WriteByte(e.Interval)
	return buf.Bytes()
}

// InterfaceDescriptor is the standard USB interface descriptor (USB 2.0
// table 9-12), carrying its endpoints inline for Bytes.
type InterfaceDescriptor struct {
	InterfaceNumber   uint8
	AlternateSetting  uint8
	InterfaceClass    uint8
	InterfaceSubClass uint8
	InterfaceProtocol uint8
	InterfaceIdx      uint8
	Endpoints         []EndpointDescriptor
}

func (i InterfaceDescriptor) Bytes() []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(interfaceDescLength)
	buf.WriteByte(descTypeInterface)
	buf.WriteByte(i.InterfaceNumber)
	buf.WriteByte(i.AlternateSetting)
	buf.WriteByte(uint8(len(i.Endpoints)))
	buf.WriteByte(i.InterfaceClass)
	buf.WriteByte(i.InterfaceSubClass)
	buf.WriteByte(i.InterfaceProtocol)
	buf.WriteByte(i.InterfaceIdx)
	for _, ep := range i.Endpoints {
		buf.Write(ep.Bytes())
	}
	return buf.Bytes()
}

// ConfigDescriptor is the standard USB configuration descriptor (USB 2.0
// table 9-10), carrying its interface inline for Bytes. totalLength is
// computed, not stored, since it depends on the nested descriptors.
type ConfigDescriptor struct {
	ConfigurationValue uint8
	ConfigurationIdx   uint8
	Attributes         uint8
	MaxPower           uint8
	Interfaces         []InterfaceDescriptor
}

func (c ConfigDescriptor) Bytes() []byte {
	var tail bytes.Buffer
	for _, iface := range c.Interfaces {
		tail.Write(iface.Bytes())
	}

	buf := new(bytes.Buffer)
	buf.WriteByte(configDescLength)
	buf.WriteByte(descTypeConfig)
	binary.Write(buf, binary.LittleEndian, uint16(configDescLength+tail.Len()))
	buf.WriteByte(uint8(len(c.Interfaces)))
	buf.WriteByte(c.ConfigurationValue)
	buf.WriteByte(c.ConfigurationIdx)
	buf.WriteByte(c.Attributes)
	buf.WriteByte(c.MaxPower)
	buf.Write(tail.Bytes())
	return buf.Bytes()
}

// Strings holds the device's UTF-16LE string descriptors, index 0 being
// the language-code list (always 0x0409, US English).
// Index 1..N are filled in by AddString in the order they are added.
type Strings struct {
	entries [][]byte
}

// NewStrings returns a string table seeded with the single supported
// language code.
func NewStrings() *Strings {
	s := &Strings{}
	s.entries = append(s.entries, encodeLangIDs(0x0409))
	return s
}

// AddString appends s as a UTF-16LE string descriptor and returns its
// 1-based index for use in ManufacturerIdx/ProductIdx/etc fields.
func (s *Strings) AddString(str string) uint8 {
	s.entries = append(s.entries, encodeUTF16String(str))
	return uint8(len(s.entries) - 1)
}

// Descriptor returns the raw bytes of the string descriptor at index, or
// nil if out of range. Index 0 is the language-code descriptor.
func (s *Strings) Descriptor(index uint8) []byte {
	if int(index) >= len(s.entries) {
		return nil
	}
	return s.entries[index]
}

func encodeLangIDs(ids ...uint16) []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(0) // length patched below
	buf.WriteByte(descTypeString)
	for _, id := range ids {
		binary.Write(buf, binary.LittleEndian, id)
	}
	out := buf.Bytes()
	out[0] = uint8(len(out))
	return out
}

func encodeUTF16String(s string) []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(0) // length patched below
	buf.WriteByte(descTypeString)
	for _, r := range s {
		if r > 0xFFFF {
			r = '?'
		}
		binary.Write(buf, binary.LittleEndian, uint16(r))
	}
	out := buf.Bytes()
	out[0] = uint8(len(out))
	return out
}

// Bulk endpoint max packet sizes per USB speed; the rest of the topology
// is speed-independent.
const (
	fullSpeedBulkMaxPacket uint16 = 64
	highSpeedBulkMaxPacket uint16 = 512
)

// StandardDescriptors is the fixed still-image gadget topology:
// one configuration, one interface, three endpoints (bulk-IN,
// bulk-OUT, interrupt-IN). It returns the device descriptor plus the
// full-speed and high-speed configuration descriptors, which share one set
// of string indices, so strs is populated exactly once.
func StandardDescriptors(strs *Strings, manufacturer, product, configName, ifaceName string) (DeviceDescriptor, ConfigDescriptor, ConfigDescriptor) {
	dev := DeviceDescriptor{
		bcdUSB:            0x0200,
		MaxPacketSize0:    64,
		VendorID:          0x1D6B,
		ProductID:         0x0100,
		bcdDevice:         0x0100,
		NumConfigurations: 1,
		ManufacturerIdx:   strs.AddString(manufacturer),
		ProductIdx:        strs.AddString(product),
	}

	configIdx := strs.AddString(configName)
	ifaceIdx := strs.AddString(ifaceName)
	config := func(bulkMaxPacket uint16) ConfigDescriptor {
		return ConfigDescriptor{
			ConfigurationValue: 1,
			ConfigurationIdx:   configIdx,
			Attributes:         0x80, // bus-powered
			MaxPower:           250,
			Interfaces: []InterfaceDescriptor{{
				InterfaceNumber:   0,
				InterfaceClass:    classStillImage,
				InterfaceSubClass: subclassImgCapture,
				InterfaceProtocol: protoControlBulk,
				InterfaceIdx:      ifaceIdx,
				Endpoints: []EndpointDescriptor{
					{EndpointAddress: 1 | epDirIn, Attributes: epAttrBulk, MaxPacketSize: bulkMaxPacket},
					{EndpointAddress: 2 | epDirOut, Attributes: epAttrBulk, MaxPacketSize: bulkMaxPacket},
					{EndpointAddress: 3 | epDirIn, Attributes: epAttrIntr, MaxPacketSize: 8, Interval: 10},
				},
			}},
		}
	}
	return dev, config(fullSpeedBulkMaxPacket), config(highSpeedBulkMaxPacket)
}
