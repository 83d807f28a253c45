package s7

import "fmt"

// sizeTable maps a DataType to the number of bytes each of its Length
// elements occupies, and sizeOverhead to the fixed bytes a tag adds on top of
// them: a tag's size is sizeTable[dt]*Length + sizeOverhead[dt]. A BIT tag is
// always one byte, STRING adds its 2-byte header and WSTRING its 4-byte
// header. Both are direct array lookups, not a comparison chain.
var sizeTable = [numDataTypes]int{
	Bit:     0, // one byte regardless of Length, see sizeOverhead
	Byte:    1,
	Char:    1,
	Int:     2,
	Word:    2,
	DInt:    4,
	DWord:   4,
	Real:    4,
	LReal:   8,
	String:  1,
	WString: 2,
}

var sizeOverhead = [numDataTypes]int{
	Bit:     1,
	String:  2,
	WString: 4,
}

// Tag is an immutable descriptor of a single PLC memory address. Tags are
// created by NewTag or by the address parser and are never mutated after
// construction.
type Tag struct {
	Area      Area
	DBNumber  int
	DataType  DataType
	Start     int
	BitOffset int
	Length    int

	byteSize int // cached at construction; opaque to equality
}

// NewTag validates and constructs a Tag descriptor.
func NewTag(area Area, db int, dataType DataType, start, bitOffset, length int) (Tag, error) {
	t := Tag{Area: area, DBNumber: db, DataType: dataType, Start: start, BitOffset: bitOffset, Length: length}
	if err := t.validate(); err != nil {
		return Tag{}, err
	}
	t.byteSize = t.computeSize()
	return t, nil
}

// MustTag is like NewTag but panics on validation failure. Intended for
// tests and compile-time-constant addresses.
func MustTag(area Area, db int, dataType DataType, start, bitOffset, length int) Tag {
	t, err := NewTag(area, db, dataType, start, bitOffset, length)
	if err != nil {
		panic(err)
	}
	return t
}

func (t Tag) validate() error {
	switch t.Area {
	case AreaDB, AreaMerker, AreaInput, AreaOutput, AreaTimer, AreaCounter:
	default:
		return &AddressError{Address: t.String(), Reason: "unknown memory area"}
	}
	if t.DBNumber < 0 {
		return &AddressError{Address: t.String(), Reason: "db_number must be non-negative"}
	}
	if t.Area == AreaDB && t.DBNumber <= 0 {
		return &AddressError{Address: t.String(), Reason: "db_number must be > 0 for DB area"}
	}
	if t.Area != AreaDB && t.DBNumber != 0 {
		return &AddressError{Address: t.String(), Reason: "db_number must be 0 for non-DB area"}
	}
	if t.Start < 0 {
		return &AddressError{Address: t.String(), Reason: "start must be non-negative"}
	}
	if t.BitOffset < 0 || t.BitOffset > 7 {
		return &AddressError{Address: t.String(), Reason: "bit_offset must be in [0,7]"}
	}
	if t.BitOffset != 0 && t.DataType != Bit {
		return &AddressError{Address: t.String(), Reason: "bit_offset must be 0 for non-BIT types"}
	}
	if t.Length <= 0 {
		return &AddressError{Address: t.String(), Reason: "length must be positive"}
	}
	if t.DataType >= numDataTypes {
		return &AddressError{Address: t.String(), Reason: "unknown data type"}
	}
	return nil
}

func (t Tag) computeSize() int {
	return sizeTable[t.DataType]*t.Length + sizeOverhead[t.DataType]
}

// Size returns the total byte footprint of the tag: the cached value filled
// in at construction.
func (t Tag) Size() int {
	return t.byteSize
}

// byteRange returns the inclusive-exclusive [start, end) byte range the tag
// occupies in its memory area, ignoring sub-byte BIT addressing (a BIT tag
// occupies the single byte that contains it).
func (t Tag) byteRange() (start, end int) {
	return t.Start, t.Start + t.Size()
}

// family reports the coalescing family a tag belongs to: same area, DB
// number, and data type. Tags in different families are never merged by the
// planner's optimize pass.
type family struct {
	area     Area
	db       int
	dataType DataType
}

func (t Tag) family() family {
	return family{area: t.Area, db: t.DBNumber, dataType: t.DataType}
}

// Contains reports whether other refers to the same area/db/type family and
// its byte range lies wholly inside this tag's byte range.
func (t Tag) Contains(other Tag) bool {
	if t.family() != other.family() {
		return false
	}
	ts, te := t.byteRange()
	os, oe := other.byteRange()
	return os >= ts && oe <= te
}

// String renders the tag in the canonical comma-form address syntax
// accepted by ParseAddress, e.g. "DB1,I30", "MX0.6", "DB10,S20.254".
func (t Tag) String() string {
	if t.Area == AreaTimer || t.Area == AreaCounter {
		return fmt.Sprintf("%s%d", t.Area.String(), t.Start)
	}

	letter := typeLetter(t.DataType)
	var loc string
	switch t.DataType {
	case Bit:
		loc = fmt.Sprintf("%s%d.%d", letter, t.Start, t.BitOffset)
	case String, WString:
		loc = fmt.Sprintf("%s%d.%d", letter, t.Start, t.Length)
	default:
		if t.Length > 1 {
			loc = fmt.Sprintf("%s%d.%d", letter, t.Start, t.Length)
		} else {
			loc = fmt.Sprintf("%s%d", letter, t.Start)
		}
	}

	if t.Area == AreaDB {
		return fmt.Sprintf("DB%d,%s", t.DBNumber, loc)
	}
	return fmt.Sprintf("%s%s", t.Area.String(), loc)
}

func typeLetter(d DataType) string {
	switch d {
	case Bit:
		return "X"
	case Byte:
		return "B"
	case Char:
		return "C"
	case Int:
		return "I"
	case Word:
		return "W"
	case DInt:
		return "DI"
	case DWord:
		return "DW"
	case Real:
		return "R"
	case LReal:
		return "LR"
	case String:
		return "S"
	case WString:
		return "WS"
	default:
		return "?"
	}
}
