package s7

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf16"
)

// Kind identifies which field of a Value is populated.
type Kind int

const (
	KindBool Kind = iota
	KindInt
	KindReal
	KindText
	KindBytes
	KindArray
)

// Value is the tagged union returned by reads and accepted by writes:
// exactly one accessor is meaningful, selected by Kind.
type Value struct {
	Kind  Kind
	bool_ bool
	int_  int64
	real_ float64
	text_ string
	bytes_ []byte
	array_ []Value
}

func BoolValue(v bool) Value          { return Value{Kind: KindBool, bool_: v} }
func IntValue(v int64) Value          { return Value{Kind: KindInt, int_: v} }
func RealValue(v float64) Value       { return Value{Kind: KindReal, real_: v} }
func TextValue(v string) Value        { return Value{Kind: KindText, text_: v} }
func BytesValue(v []byte) Value       { return Value{Kind: KindBytes, bytes_: v} }
func ArrayValue(v []Value) Value      { return Value{Kind: KindArray, array_: v} }

// Bool returns the boolean payload; ok is false if Kind != KindBool.
func (v Value) Bool() (bool, bool) { return v.bool_, v.Kind == KindBool }

// Int returns the integer payload; ok is false if Kind != KindInt.
func (v Value) Int() (int64, bool) { return v.int_, v.Kind == KindInt }

// Real returns the floating-point payload; ok is false if Kind != KindReal.
func (v Value) Real() (float64, bool) { return v.real_, v.Kind == KindReal }

// Text returns the string payload; ok is false if Kind != KindText.
func (v Value) Text() (string, bool) { return v.text_, v.Kind == KindText }

// Bytes returns the raw byte payload; ok is false if Kind != KindBytes.
func (v Value) Bytes() ([]byte, bool) { return v.bytes_, v.Kind == KindBytes }

// Array returns the element payload; ok is false if Kind != KindArray.
func (v Value) Array() ([]Value, bool) { return v.array_, v.Kind == KindArray }

// Interface returns the Value's payload as a plain Go value, for callers
// who would rather type-switch than call the Kind-specific accessors.
func (v Value) Interface() any {
	switch v.Kind {
	case KindBool:
		return v.bool_
	case KindInt:
		return v.int_
	case KindReal:
		return v.real_
	case KindText:
		return v.text_
	case KindBytes:
		return v.bytes_
	case KindArray:
		out := make([]any, len(v.array_))
		for i, e := range v.array_ {
			out[i] = e.Interface()
		}
		return out
	default:
		return nil
	}
}

// encodeScalar converts a Value into the raw big-endian payload bytes for a
// single instance of data type dt (length=1 semantics); callers handling
// arrays call this once per element.
func encodeScalar(dt DataType, v Value) ([]byte, error) {
	switch dt {
	case Bit:
		b, ok := v.Bool()
		if !ok {
			return nil, &ValueError{Reason: "expected bool for BIT"}
		}
		if b {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case Byte:
		n, ok := v.Int()
		if !ok {
			return nil, &ValueError{Reason: "expected int for BYTE"}
		}
		return []byte{byte(n)}, nil
	case Char:
		s, ok := v.Text()
		if ok {
			if len(s) != 1 {
				return nil, &ValueError{Reason: "CHAR requires a single-character string"}
			}
			return []byte{s[0]}, nil
		}
		n, ok := v.Int()
		if !ok {
			return nil, &ValueError{Reason: "expected char or int for CHAR"}
		}
		return []byte{byte(n)}, nil
	case Int:
		n, ok := v.Int()
		if !ok {
			return nil, &ValueError{Reason: "expected int for INT"}
		}
		buf := make([]byte, 2)
		binary.BigEndian.PutUint16(buf, uint16(int16(n)))
		return buf, nil
	case Word:
		n, ok := v.Int()
		if !ok {
			return nil, &ValueError{Reason: "expected int for WORD"}
		}
		buf := make([]byte, 2)
		binary.BigEndian.PutUint16(buf, uint16(n))
		return buf, nil
	case DInt:
		n, ok := v.Int()
		if !ok {
			return nil, &ValueError{Reason: "expected int for DINT"}
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(int32(n)))
		return buf, nil
	case DWord:
		n, ok := v.Int()
		if !ok {
			return nil, &ValueError{Reason: "expected int for DWORD"}
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(n))
		return buf, nil
	case Real:
		f, ok := v.Real()
		if !ok {
			return nil, &ValueError{Reason: "expected float for REAL"}
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, math.Float32bits(float32(f)))
		return buf, nil
	case LReal:
		f, ok := v.Real()
		if !ok {
			return nil, &ValueError{Reason: "expected float for LREAL"}
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, math.Float64bits(f))
		return buf, nil
	default:
		return nil, &ValueError{Reason: fmt.Sprintf("encodeScalar: unsupported type %s", dt)}
	}
}

// decodeScalar is the inverse of encodeScalar for a single element's bytes.
func decodeScalar(dt DataType, bitOffset int, raw []byte) (Value, error) {
	switch dt {
	case Bit:
		if len(raw) < 1 {
			return Value{}, &ValueError{Reason: "insufficient data for BIT"}
		}
		return BoolValue(raw[0]&(1<<uint(bitOffset)) != 0), nil
	case Byte:
		if len(raw) < 1 {
			return Value{}, &ValueError{Reason: "insufficient data for BYTE"}
		}
		return IntValue(int64(raw[0])), nil
	case Char:
		if len(raw) < 1 {
			return Value{}, &ValueError{Reason: "insufficient data for CHAR"}
		}
		return TextValue(string(raw[0])), nil
	case Int:
		if len(raw) < 2 {
			return Value{}, &ValueError{Reason: "insufficient data for INT"}
		}
		return IntValue(int64(int16(binary.BigEndian.Uint16(raw)))), nil
	case Word:
		if len(raw) < 2 {
			return Value{}, &ValueError{Reason: "insufficient data for WORD"}
		}
		return IntValue(int64(binary.BigEndian.Uint16(raw))), nil
	case DInt:
		if len(raw) < 4 {
			return Value{}, &ValueError{Reason: "insufficient data for DINT"}
		}
		return IntValue(int64(int32(binary.BigEndian.Uint32(raw)))), nil
	case DWord:
		if len(raw) < 4 {
			return Value{}, &ValueError{Reason: "insufficient data for DWORD"}
		}
		return IntValue(int64(binary.BigEndian.Uint32(raw))), nil
	case Real:
		if len(raw) < 4 {
			return Value{}, &ValueError{Reason: "insufficient data for REAL"}
		}
		return RealValue(float64(math.Float32frombits(binary.BigEndian.Uint32(raw)))), nil
	case LReal:
		if len(raw) < 8 {
			return Value{}, &ValueError{Reason: "insufficient data for LREAL"}
		}
		return RealValue(math.Float64frombits(binary.BigEndian.Uint64(raw))), nil
	default:
		return Value{}, &ValueError{Reason: fmt.Sprintf("decodeScalar: unsupported type %s", dt)}
	}
}

// encodeString lays out an S7 STRING payload: max_len, cur_len, ASCII bytes,
// sized to maxLen+2 total.
func encodeString(maxLen int, text string) ([]byte, error) {
	if len(text) > maxLen {
		return nil, &ValueError{Reason: fmt.Sprintf("string of length %d exceeds declared max %d", len(text), maxLen)}
	}
	buf := make([]byte, maxLen+2)
	buf[0] = byte(maxLen)
	buf[1] = byte(len(text))
	copy(buf[2:], text)
	return buf, nil
}

// decodeString is the inverse of encodeString.
func decodeString(raw []byte) (string, error) {
	if len(raw) < 2 {
		return "", &ValueError{Reason: "insufficient data for STRING header"}
	}
	curLen := int(raw[1])
	if curLen > len(raw)-2 {
		curLen = len(raw) - 2
	}
	return string(raw[2 : 2+curLen]), nil
}

// encodeWString lays out an S7 WSTRING payload: max_len (u16), cur_len
// (u16), UTF-16BE code units, sized to maxLen*2+4 total.
func encodeWString(maxLen int, text string) ([]byte, error) {
	units := utf16.Encode([]rune(text))
	if len(units) > maxLen {
		return nil, &ValueError{Reason: fmt.Sprintf("wstring of length %d exceeds declared max %d", len(units), maxLen)}
	}
	buf := make([]byte, maxLen*2+4)
	binary.BigEndian.PutUint16(buf[0:2], uint16(maxLen))
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(units)))
	for i, u := range units {
		binary.BigEndian.PutUint16(buf[4+2*i:], u)
	}
	return buf, nil
}

// decodeWString is the inverse of encodeWString.
func decodeWString(raw []byte) (string, error) {
	if len(raw) < 4 {
		return "", &ValueError{Reason: "insufficient data for WSTRING header"}
	}
	curLen := int(binary.BigEndian.Uint16(raw[2:4]))
	maxUnits := (len(raw) - 4) / 2
	if curLen > maxUnits {
		curLen = maxUnits
	}
	units := make([]uint16, curLen)
	for i := 0; i < curLen; i++ {
		units[i] = binary.BigEndian.Uint16(raw[4+2*i:])
	}
	return string(utf16.Decode(units)), nil
}

// decodeTagValue converts the raw bytes returned for tag into a Value,
// applying array/bit/string conversion rules per spec §4.H.
func decodeTagValue(t Tag, raw []byte) (Value, error) {
	switch t.DataType {
	case String:
		s, err := decodeString(raw)
		if err != nil {
			return Value{}, err
		}
		return TextValue(s), nil
	case WString:
		s, err := decodeWString(raw)
		if err != nil {
			return Value{}, err
		}
		return TextValue(s), nil
	case Bit:
		if t.Length == 1 {
			return decodeScalar(Bit, t.BitOffset, raw)
		}
		elems := make([]Value, t.Length)
		for i := 0; i < t.Length; i++ {
			byteIdx := i / 8
			bitIdx := i % 8
			if byteIdx >= len(raw) {
				return Value{}, &ValueError{Reason: "insufficient data for BIT array"}
			}
			elems[i] = BoolValue(raw[byteIdx]&(1<<uint(bitIdx)) != 0)
		}
		return ArrayValue(elems), nil
	default:
		elemSize := sizeTable[t.DataType]
		if t.Length == 1 {
			return decodeScalar(t.DataType, 0, raw)
		}
		elems := make([]Value, t.Length)
		for i := 0; i < t.Length; i++ {
			off := i * elemSize
			if off+elemSize > len(raw) {
				return Value{}, &ValueError{Reason: "insufficient data for array element"}
			}
			v, err := decodeScalar(t.DataType, 0, raw[off:off+elemSize])
			if err != nil {
				return Value{}, err
			}
			elems[i] = v
		}
		return ArrayValue(elems), nil
	}
}

// encodeTagValue is the inverse of decodeTagValue: it builds the raw
// big-endian payload bytes to send in a WRITE_VAR data section for tag.
func encodeTagValue(t Tag, v Value) ([]byte, error) {
	switch t.DataType {
	case String:
		s, ok := v.Text()
		if !ok {
			return nil, &ValueError{Reason: "expected string value for STRING tag"}
		}
		return encodeString(t.Length, s)
	case WString:
		s, ok := v.Text()
		if !ok {
			return nil, &ValueError{Reason: "expected string value for WSTRING tag"}
		}
		return encodeWString(t.Length, s)
	case Bit:
		if t.Length == 1 {
			return encodeScalar(Bit, v)
		}
		elems, ok := v.Array()
		if !ok || len(elems) != t.Length {
			return nil, &ValueError{Reason: "expected array of matching length for BIT array tag"}
		}
		buf := make([]byte, (t.Length+7)/8)
		for i, e := range elems {
			b, ok := e.Bool()
			if !ok {
				return nil, &ValueError{Reason: "expected bool elements in BIT array"}
			}
			if b {
				buf[i/8] |= 1 << uint(i%8)
			}
		}
		return buf, nil
	default:
		if t.Length == 1 {
			return encodeScalar(t.DataType, v)
		}
		elems, ok := v.Array()
		if !ok || len(elems) != t.Length {
			return nil, &ValueError{Reason: "expected array of matching length"}
		}
		out := make([]byte, 0, t.Size())
		for _, e := range elems {
			b, err := encodeScalar(t.DataType, e)
			if err != nil {
				return nil, err
			}
			out = append(out, b...)
		}
		return out, nil
	}
}
