package persistence

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"math"
)

// maxSliceLen guards against allocating from corrupt length prefixes.
const maxSliceLen = 1 << 30

// Writer writes length-prefixed primitives in little-endian order while
// maintaining a running checksum of everything written.
type Writer struct {
	cw  *crcWriter
	buf [8]byte
}

// NewWriter creates a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{cw: &crcWriter{w: w, hash: crc32.NewIEEE()}}
}

// Sum returns the checksum of all bytes written so far.
func (w *Writer) Sum() uint32 { return w.cw.hash.Sum32() }

// WriteUint8 writes a single byte.
func (w *Writer) WriteUint8(v uint8) error {
	w.buf[0] = v
	_, err := w.cw.Write(w.buf[:1])
	return err
}

// WriteUint32 writes a little-endian uint32.
func (w *Writer) WriteUint32(v uint32) error {
	binary.LittleEndian.PutUint32(w.buf[:4], v)
	_, err := w.cw.Write(w.buf[:4])
	return err
}

// WriteUint64 writes a little-endian uint64.
func (w *Writer) WriteUint64(v uint64) error {
	binary.LittleEndian.PutUint64(w.buf[:8], v)
	_, err := w.cw.Write(w.buf[:8])
	return err
}

// WriteInt64 writes a little-endian int64.
func (w *Writer) WriteInt64(v int64) error {
	return w.WriteUint64(uint64(v))
}

// WriteFloat64 writes a little-endian float64.
func (w *Writer) WriteFloat64(v float64) error {
	return w.WriteUint64(math.Float64bits(v))
}

// WriteBool writes a boolean as one byte.
func (w *Writer) WriteBool(v bool) error {
	if v {
		return w.WriteUint8(1)
	}
	return w.WriteUint8(0)
}

// WriteString writes a length-prefixed string.
func (w *Writer) WriteString(s string) error {
	if err := w.WriteUint32(uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w.cw, s)
	return err
}

// WriteFloat32Slice writes a length-prefixed []float32.
func (w *Writer) WriteFloat32Slice(v []float32) error {
	if err := w.WriteUint32(uint32(len(v))); err != nil {
		return err
	}

	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	_, err := w.cw.Write(buf)
	return err
}

// Reader reads the format produced by Writer, maintaining the matching
// checksum.
type Reader struct {
	cr  *crcReader
	buf [8]byte
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{cr: &crcReader{r: r, hash: crc32.NewIEEE()}}
}

// Sum returns the checksum of all bytes read so far.
func (r *Reader) Sum() uint32 { return r.cr.hash.Sum32() }

// ReadUint8 reads a single byte.
func (r *Reader) ReadUint8() (uint8, error) {
	if _, err := io.ReadFull(r.cr, r.buf[:1]); err != nil {
		return 0, err
	}
	return r.buf[0], nil
}

// ReadUint32 reads a little-endian uint32.
func (r *Reader) ReadUint32() (uint32, error) {
	if _, err := io.ReadFull(r.cr, r.buf[:4]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(r.buf[:4]), nil
}

// ReadUint64 reads a little-endian uint64.
func (r *Reader) ReadUint64() (uint64, error) {
	if _, err := io.ReadFull(r.cr, r.buf[:8]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(r.buf[:8]), nil
}

// ReadInt64 reads a little-endian int64.
func (r *Reader) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()
	return int64(v), err
}

// ReadFloat64 reads a little-endian float64.
func (r *Reader) ReadFloat64() (float64, error) {
	v, err := r.ReadUint64()
	return math.Float64frombits(v), err
}

// ReadBool reads a boolean.
func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadUint8()
	return v != 0, err
}

// ReadString reads a length-prefixed string.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return "", err
	}
	if n > maxSliceLen {
		return "", fmt.Errorf("corrupt string length: %d", n)
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r.cr, buf); err != nil {
		return "", err
	}

	return string(buf), nil
}

// ReadFloat32Slice reads a length-prefixed []float32.
func (r *Reader) ReadFloat32Slice() ([]float32, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if n > maxSliceLen/4 {
		return nil, fmt.Errorf("corrupt slice length: %d", n)
	}

	buf := make([]byte, 4*n)
	if _, err := io.ReadFull(r.cr, buf); err != nil {
		return nil, err
	}

	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}

	return out, nil
}
