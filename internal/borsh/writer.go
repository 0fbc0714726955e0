package borsh

import (
	"encoding/binary"
	"math"
)

// Writer appends fields in the same little-endian, length-prefixed layout
// that Reader consumes. There is no fallible path on encode: every record
// the program holds in memory is already valid, so writes never fail.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 128)}
}

func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) WriteU8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteU8(1)
	} else {
		w.WriteU8(0)
	}
}

func (w *Writer) WriteU16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteU64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteU128(v [16]byte) { w.buf = append(w.buf, v[:]...) }

func (w *Writer) WriteF64(v float64) { w.WriteU64(math.Float64bits(v)) }

func (w *Writer) WritePubkey(v [32]byte) { w.buf = append(w.buf, v[:]...) }

func (w *Writer) WriteIPv4(v [4]byte) { w.buf = append(w.buf, v[:]...) }

func (w *Writer) WriteNetworkV4(v [5]byte) { w.buf = append(w.buf, v[:]...) }

func (w *Writer) WriteString(v string) {
	w.WriteU32(uint32(len(v)))
	w.buf = append(w.buf, v...)
}

func (w *Writer) WriteBytes(v []byte) { w.buf = append(w.buf, v...) }

func (w *Writer) WritePubkeySlice(v [][32]byte) {
	w.WriteU32(uint32(len(v)))
	for _, p := range v {
		w.WritePubkey(p)
	}
}

func (w *Writer) WriteNetworkV4Slice(v [][5]byte) {
	w.WriteU32(uint32(len(v)))
	for _, n := range v {
		w.WriteNetworkV4(n)
	}
}

func (w *Writer) WriteOptionU8(v *uint8) {
	if v == nil {
		w.WriteBool(false)
		return
	}
	w.WriteBool(true)
	w.WriteU8(*v)
}
