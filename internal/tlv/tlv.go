// Package tlv implements the minimal subset of Matter's Tag-Length-Value
// encoding this driver needs to move decoded attribute/event/command
// payloads between the wire and the scripted string-mapping layer. Every
// element is written with an anonymous tag (no tag bytes) within whatever
// container the caller has opened, since SbmdScript only ever deals with
// one value at a time per call.
package tlv

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// Type enumerates the element kinds this codec understands, matching the
// Barton type-string taxonomy the script engine maps JSON onto.
type Type uint8

const (
	TypeBool Type = iota
	TypeUint
	TypeInt
	TypeFloat
	TypeDouble
	TypeString
	TypeBytes
	TypeStruct
	TypeArray
	TypeNull
)

const (
	ctrlBool0    = 0x08
	ctrlBool1    = 0x09
	ctrlUint1    = 0x04
	ctrlUint2    = 0x05
	ctrlUint4    = 0x06
	ctrlUint8    = 0x07
	ctrlInt1     = 0x00
	ctrlInt2     = 0x01
	ctrlInt4     = 0x02
	ctrlInt8     = 0x03
	ctrlFloat    = 0x0a
	ctrlDouble   = 0x0b
	ctrlUTF8Str1 = 0x0c
	ctrlUTF8Str2 = 0x0d
	ctrlUTF8Str4 = 0x0e
	ctrlByteStr1 = 0x10
	ctrlByteStr2 = 0x11
	ctrlByteStr4 = 0x12
	ctrlNull     = 0x14
	ctrlStruct   = 0x15
	ctrlArray    = 0x16
	ctrlEndOfCtr = 0x18
)

// Writer serializes a single TLV value tree. It is not safe for concurrent
// use; callers hold the owning MatterDevice's single-threaded dispatch
// discipline instead.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns a Writer ready to accept one top-level element.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the serialized form written so far.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

func (w *Writer) putLengthPrefixed(ctrl1, ctrl2, ctrl4 byte, data []byte) {
	switch {
	case len(data) <= 0xff:
		w.buf.WriteByte(ctrl1)
		w.buf.WriteByte(byte(len(data)))
	case len(data) <= 0xffff:
		w.buf.WriteByte(ctrl2)
		var lenBuf [2]byte
		binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(data)))
		w.buf.Write(lenBuf[:])
	default:
		w.buf.WriteByte(ctrl4)
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(data)))
		w.buf.Write(lenBuf[:])
	}
	w.buf.Write(data)
}

// PutBool writes a boolean element.
func (w *Writer) PutBool(v bool) {
	if v {
		w.buf.WriteByte(ctrlBool1)
	} else {
		w.buf.WriteByte(ctrlBool0)
	}
}

// PutUint writes an unsigned integer element in the smallest width that
// holds it.
func (w *Writer) PutUint(v uint64) {
	switch {
	case v <= math.MaxUint8:
		w.buf.WriteByte(ctrlUint1)
		w.buf.WriteByte(byte(v))
	case v <= math.MaxUint16:
		w.buf.WriteByte(ctrlUint2)
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(v))
		w.buf.Write(b[:])
	case v <= math.MaxUint32:
		w.buf.WriteByte(ctrlUint4)
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(v))
		w.buf.Write(b[:])
	default:
		w.buf.WriteByte(ctrlUint8)
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], v)
		w.buf.Write(b[:])
	}
}

// PutInt writes a signed integer element in the smallest width that holds
// it.
func (w *Writer) PutInt(v int64) {
	switch {
	case v >= math.MinInt8 && v <= math.MaxInt8:
		w.buf.WriteByte(ctrlInt1)
		w.buf.WriteByte(byte(int8(v)))
	case v >= math.MinInt16 && v <= math.MaxInt16:
		w.buf.WriteByte(ctrlInt2)
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(int16(v)))
		w.buf.Write(b[:])
	case v >= math.MinInt32 && v <= math.MaxInt32:
		w.buf.WriteByte(ctrlInt4)
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(int32(v)))
		w.buf.Write(b[:])
	default:
		w.buf.WriteByte(ctrlInt8)
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(v))
		w.buf.Write(b[:])
	}
}

// PutFloat32 writes a single-precision float element.
func (w *Writer) PutFloat32(v float32) {
	w.buf.WriteByte(ctrlFloat)
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
	w.buf.Write(b[:])
}

// PutFloat64 writes a double-precision float element.
func (w *Writer) PutFloat64(v float64) {
	w.buf.WriteByte(ctrlDouble)
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	w.buf.Write(b[:])
}

// PutString writes a UTF-8 string element.
func (w *Writer) PutString(v string) {
	w.putLengthPrefixed(ctrlUTF8Str1, ctrlUTF8Str2, ctrlUTF8Str4, []byte(v))
}

// PutBytes writes an octet string element. Matter caps TLV length fields
// it actually allocates in this codec at 16 bits; callers that need the
// rare 32-bit form still get one, but the script engine never emits
// payloads anywhere near that size.
func (w *Writer) PutBytes(v []byte) {
	w.putLengthPrefixed(ctrlByteStr1, ctrlByteStr2, ctrlByteStr4, v)
}

// PutNull writes a null element.
func (w *Writer) PutNull() { w.buf.WriteByte(ctrlNull) }

// StartStruct opens a structure container. Every element written before
// the matching EndContainer becomes a (anonymously-tagged) member.
func (w *Writer) StartStruct() { w.buf.WriteByte(ctrlStruct) }

// StartArray opens an array container.
func (w *Writer) StartArray() { w.buf.WriteByte(ctrlArray) }

// EndContainer closes the most recently opened struct or array.
func (w *Writer) EndContainer() { w.buf.WriteByte(ctrlEndOfCtr) }

// Reader deserializes a TLV byte stream produced by Writer (or by the
// Matter stack on the wire).
type Reader struct {
	data []byte
	pos  int
	cur  byte
}

// NewReader wraps a TLV-encoded buffer for sequential reading.
func NewReader(data []byte) *Reader { return &Reader{data: data} }

// Next advances to the next element and reports its control byte, or
// io.EOF-shaped behavior via ok=false when the buffer is exhausted.
func (r *Reader) Next() (ok bool, err error) {
	if r.pos >= len(r.data) {
		return false, nil
	}
	r.cur = r.data[r.pos]
	r.pos++
	return true, nil
}

// Type reports the element kind of the current position.
func (r *Reader) Type() Type {
	switch r.cur {
	case ctrlBool0, ctrlBool1:
		return TypeBool
	case ctrlUint1, ctrlUint2, ctrlUint4, ctrlUint8:
		return TypeUint
	case ctrlInt1, ctrlInt2, ctrlInt4, ctrlInt8:
		return TypeInt
	case ctrlFloat:
		return TypeFloat
	case ctrlDouble:
		return TypeDouble
	case ctrlUTF8Str1, ctrlUTF8Str2, ctrlUTF8Str4:
		return TypeString
	case ctrlByteStr1, ctrlByteStr2, ctrlByteStr4:
		return TypeBytes
	case ctrlStruct:
		return TypeStruct
	case ctrlArray:
		return TypeArray
	default:
		return TypeNull
	}
}

func (r *Reader) readN(n int) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, errors.New("tlv: truncated element")
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// GetBool reads a boolean element at the current position.
func (r *Reader) GetBool() (bool, error) {
	switch r.cur {
	case ctrlBool0:
		return false, nil
	case ctrlBool1:
		return true, nil
	default:
		return false, errors.New("tlv: not a bool element")
	}
}

// GetUint reads an unsigned integer element at the current position.
func (r *Reader) GetUint() (uint64, error) {
	switch r.cur {
	case ctrlUint1:
		b, err := r.readN(1)
		if err != nil {
			return 0, err
		}
		return uint64(b[0]), nil
	case ctrlUint2:
		b, err := r.readN(2)
		if err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint16(b)), nil
	case ctrlUint4:
		b, err := r.readN(4)
		if err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint32(b)), nil
	case ctrlUint8:
		b, err := r.readN(8)
		if err != nil {
			return 0, err
		}
		return binary.LittleEndian.Uint64(b), nil
	default:
		return 0, errors.New("tlv: not a uint element")
	}
}

// GetInt reads a signed integer element at the current position.
func (r *Reader) GetInt() (int64, error) {
	switch r.cur {
	case ctrlInt1:
		b, err := r.readN(1)
		if err != nil {
			return 0, err
		}
		return int64(int8(b[0])), nil
	case ctrlInt2:
		b, err := r.readN(2)
		if err != nil {
			return 0, err
		}
		return int64(int16(binary.LittleEndian.Uint16(b))), nil
	case ctrlInt4:
		b, err := r.readN(4)
		if err != nil {
			return 0, err
		}
		return int64(int32(binary.LittleEndian.Uint32(b))), nil
	case ctrlInt8:
		b, err := r.readN(8)
		if err != nil {
			return 0, err
		}
		return int64(binary.LittleEndian.Uint64(b)), nil
	default:
		return 0, errors.New("tlv: not an int element")
	}
}

// GetFloat32 reads a single-precision float element.
func (r *Reader) GetFloat32() (float32, error) {
	if r.cur != ctrlFloat {
		return 0, errors.New("tlv: not a float element")
	}
	b, err := r.readN(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
}

// GetFloat64 reads a double-precision float element.
func (r *Reader) GetFloat64() (float64, error) {
	if r.cur != ctrlDouble {
		return 0, errors.New("tlv: not a double element")
	}
	b, err := r.readN(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

func (r *Reader) readLengthPrefixed(ctrl1, ctrl2, ctrl4 byte) ([]byte, error) {
	var n int
	switch r.cur {
	case ctrl1:
		b, err := r.readN(1)
		if err != nil {
			return nil, err
		}
		n = int(b[0])
	case ctrl2:
		b, err := r.readN(2)
		if err != nil {
			return nil, err
		}
		n = int(binary.LittleEndian.Uint16(b))
	case ctrl4:
		b, err := r.readN(4)
		if err != nil {
			return nil, err
		}
		n = int(binary.LittleEndian.Uint32(b))
	default:
		return nil, errors.New("tlv: unexpected length-prefixed control byte")
	}
	return r.readN(n)
}

// GetString reads a UTF-8 string element.
func (r *Reader) GetString() (string, error) {
	b, err := r.readLengthPrefixed(ctrlUTF8Str1, ctrlUTF8Str2, ctrlUTF8Str4)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// GetBytes reads an octet string element.
func (r *Reader) GetBytes() ([]byte, error) {
	return r.readLengthPrefixed(ctrlByteStr1, ctrlByteStr2, ctrlByteStr4)
}

// EnterContainer positions the reader to begin reading a struct or array's
// members; the caller calls Next repeatedly until it reads the matching
// end-of-container control byte, then calls ExitContainer.
func (r *Reader) EnterContainer() error {
	if r.cur != ctrlStruct && r.cur != ctrlArray {
		return errors.New("tlv: not a container element")
	}
	return nil
}

// AtEndOfContainer reports whether the current position is the
// end-of-container marker.
func (r *Reader) AtEndOfContainer() bool { return r.cur == ctrlEndOfCtr }

// ExitContainer is a no-op placeholder kept for symmetry with
// EnterContainer; containers in this codec carry no length prefix to
// skip past, so there is nothing additional to consume.
func (r *Reader) ExitContainer() {}
