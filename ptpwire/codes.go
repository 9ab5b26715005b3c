// Package ptpwire implements the PTP (PIMA 15740) container wire format:
// 12-byte little-endian headers, the four container types, and the
// length-prefixed UCS-2LE string layout used inside data payloads.
package ptpwire

// ContainerType is the 16-bit container type field (offset 4 of the header).
type ContainerType uint16

// Container types, PIMA 15740 section 3.
const (
	ContainerTypeUndefined ContainerType = 0
	ContainerTypeCommand   ContainerType = 1
	ContainerTypeData      ContainerType = 2
	ContainerTypeResponse  ContainerType = 3
	ContainerTypeEvent     ContainerType = 4
)

func (t ContainerType) String() string {
	switch t {
	case ContainerTypeCommand:
		return "Command"
	case ContainerTypeData:
		return "Data"
	case ContainerTypeResponse:
		return "Response"
	case ContainerTypeEvent:
		return "Event"
	default:
		return "Undefined"
	}
}

// OpCode identifies a PTP operation carried in a Command container.
type OpCode uint16

// The 11 supported operation codes.
const (
	OpGetDeviceInfo    OpCode = 0x1001
	OpOpenSession      OpCode = 0x1002
	OpCloseSession     OpCode = 0x1003
	OpGetStorageIDs    OpCode = 0x1004
	OpGetStorageInfo   OpCode = 0x1005
	OpGetNumObjects    OpCode = 0x1006
	OpGetObjectHandles OpCode = 0x1007
	OpGetObjectInfo    OpCode = 0x1008
	OpGetObject        OpCode = 0x1009
	OpGetThumb         OpCode = 0x100A
	OpDeleteObject     OpCode = 0x100B
)

// ResponseCode identifies the outcome of a transaction in a Response container.
type ResponseCode uint16

// PIMA 15740 response codes.
const (
	RespUndefined                    ResponseCode = 0x2000
	RespOK                           ResponseCode = 0x2001
	RespGeneralError                 ResponseCode = 0x2002
	RespSessionNotOpen               ResponseCode = 0x2003
	RespInvalidTransactionID         ResponseCode = 0x2004
	RespOperationNotSupported        ResponseCode = 0x2005
	RespParameterNotSupported        ResponseCode = 0x2006
	RespIncompleteTransfer           ResponseCode = 0x2007
	RespInvalidStorageID             ResponseCode = 0x2008
	RespInvalidObjectHandle          ResponseCode = 0x2009
	RespDevicePropNotSupported       ResponseCode = 0x200A
	RespInvalidObjectFormatCode      ResponseCode = 0x200B
	RespStoreFull                    ResponseCode = 0x200C
	RespObjectWriteProtected         ResponseCode = 0x200D
	RespStoreReadOnly                ResponseCode = 0x200E
	RespAccessDenied                 ResponseCode = 0x200F
	RespNoThumbnailPresent           ResponseCode = 0x2010
	RespSelfTestFailed               ResponseCode = 0x2011
	RespPartialDeletion              ResponseCode = 0x2012
	RespStoreNotAvailable            ResponseCode = 0x2013
	RespSpecByFormatNotSupported     ResponseCode = 0x2014
	RespNoValidObjectInfo            ResponseCode = 0x2015
	RespInvalidCodeFormat            ResponseCode = 0x2016
	RespUnknownVendorCode            ResponseCode = 0x2017
	RespCaptureAlreadyTerminated     ResponseCode = 0x2018
	RespDeviceBusy                   ResponseCode = 0x2019
	RespInvalidParentObject          ResponseCode = 0x201A
	RespInvalidDevicePropFormat      ResponseCode = 0x201B
	RespInvalidDevicePropValue       ResponseCode = 0x201C
	RespInvalidParameter             ResponseCode = 0x201D
	RespSessionAlreadyOpen           ResponseCode = 0x201E
	RespTransactionCancelled         ResponseCode = 0x201F
	RespSpecOfDestinationUnsupported ResponseCode = 0x2020
)

// FormatCode identifies an object's data format (PIMA 15740 section 3, image formats).
type FormatCode uint16

const (
	FormatAssociation    FormatCode = 0x3001
	FormatUndefinedImage FormatCode = 0x3800
	FormatEXIFJPEG       FormatCode = 0x3801
	FormatTIFFEP         FormatCode = 0x3802
	FormatJFIF           FormatCode = 0x3808
	FormatPNG            FormatCode = 0x380B
	FormatTIFF           FormatCode = 0x380D
	FormatTIFFIT         FormatCode = 0x380E
)

// StorageType values for StorageInfo.StorageType.
type StorageType uint16

const (
	StorageUndefined    StorageType = 0
	StorageFixedROM     StorageType = 0x0001
	StorageRemovableROM StorageType = 0x0002
	StorageFixedRAM     StorageType = 0x0003
	StorageRemovableRAM StorageType = 0x0004
)

// FilesystemType values for StorageInfo.FilesystemType.
type FilesystemType uint16

const (
	FilesystemUndefined        FilesystemType = 0
	FilesystemGenericFlat      FilesystemType = 0x0001
	FilesystemGenericHierarchy FilesystemType = 0x0002
	FilesystemDCF              FilesystemType = 0x0003
)

// AccessCapability values for StorageInfo.AccessCapability.
type AccessCapability uint16

const (
	AccessReadWrite          AccessCapability = 0
	AccessReadOnlyWithoutDel AccessCapability = 0x0001
	AccessReadOnlyWithDel    AccessCapability = 0x0002
)

// StoreID is the fixed identifier of the responder's sole storage volume.
const StoreID uint32 = 0x00010001

// Reserved parameter values.
const (
	ParamUnused uint32 = 0
	ParamAny    uint32 = 0xFFFFFFFF
)

// Reserved object handles.
const (
	HandleUnused        uint32 = 0
	HandleAny           uint32 = 0xFFFFFFFF
	HandleRootAssoc     uint32 = 1
	HandleModelDirAssoc uint32 = 2
)
