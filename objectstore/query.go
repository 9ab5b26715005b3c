package objectstore

import (
	"github.com/pkg/errors"

	"github.com/nasa-jpl/ptpgadget/ptpwire"
)

// Query-time errors, mapped by the dispatcher onto specific PTP response
// codes. These are sentinels, not opaque strings, so the dispatcher can
// switch on them with errors.Is.
var (
	ErrInvalidStorageID    = errors.New("objectstore: invalid storage id")
	ErrFormatNotSupported  = errors.New("objectstore: specification by format not supported")
	ErrInvalidObjectHandle = errors.New("objectstore: invalid object handle")
	ErrInvalidParentObject = errors.New("objectstore: invalid parent object")
)

// Filter holds the three optional GetNumObjects/GetObjectHandles
// parameters. HasFormat/HasAssociation distinguish "parameter omitted"
// from "parameter present with value 0", since the wire length, not the
// value, signals presence.
type Filter struct {
	Storage        uint32
	HasFormat      bool
	Format         uint32
	HasAssociation bool
	Association    uint32
}

// validate applies the storage -> format -> association validation order
// shared by GetNumObjects and GetObjectHandles.
func (t *ObjectTable) validate(f Filter) error {
	if f.Storage != ptpwire.ParamAny && f.Storage != ptpwire.StoreID {
		return ErrInvalidStorageID
	}
	if f.HasFormat && f.Format != ptpwire.ParamUnused && f.Format != ptpwire.ParamAny {
		return ErrFormatNotSupported
	}
	if f.HasAssociation {
		switch f.Association {
		case ptpwire.ParamUnused, ptpwire.ParamAny, ptpwire.HandleRootAssoc, ptpwire.HandleModelDirAssoc:
		default:
			if !t.IsValidHandle(f.Association) {
				return ErrInvalidObjectHandle
			}
			return ErrInvalidParentObject
		}
	}
	return nil
}

// Count implements GetNumObjects: validates f, then returns the object
// count the association filter selects.
func (t *ObjectTable) Count(f Filter) (uint32, error) {
	if err := t.validate(f); err != nil {
		return 0, err
	}
	// Association 0 means "not specified", same as an absent parameter.
	if !f.HasAssociation || f.Association == ptpwire.ParamUnused {
		return uint32(t.ObjectNumber()), nil
	}
	switch f.Association {
	case ptpwire.ParamAny, ptpwire.HandleRootAssoc:
		return 1, nil
	case ptpwire.HandleModelDirAssoc:
		return uint32(t.ObjectNumber() - 2), nil
	default:
		return 0, ErrInvalidParentObject
	}
}

// Handles implements GetObjectHandles: validates f, then returns the
// handle list the association filter selects, in table order.
func (t *ObjectTable) Handles(f Filter) ([]uint32, error) {
	if err := t.validate(f); err != nil {
		return nil, err
	}
	if !f.HasAssociation || f.Association == ptpwire.ParamUnused {
		out := make([]uint32, 0, t.ObjectNumber())
		out = append(out, ptpwire.HandleRootAssoc, ptpwire.HandleModelDirAssoc)
		for _, img := range t.images {
			out = append(out, img.Handle)
		}
		return out, nil
	}
	switch f.Association {
	case ptpwire.ParamAny:
		return []uint32{ptpwire.HandleRootAssoc}, nil
	case ptpwire.HandleRootAssoc:
		return []uint32{ptpwire.HandleModelDirAssoc}, nil
	case ptpwire.HandleModelDirAssoc:
		out := make([]uint32, 0, len(t.images))
		for _, img := range t.images {
			out = append(out, img.Handle)
		}
		return out, nil
	default:
		return nil, ErrInvalidParentObject
	}
}
