// Package persistence implements the checksummed binary snapshot format used
// to save and load the semantic index state.
//
// Layout:
//
//	magic "SIDX" | format version (u16) | codec (u8) | compressed payload
//
// The payload carries length-prefixed sections written through Writer and ends
// with a CRC32 (IEEE) of everything before it, computed over the uncompressed
// bytes. CRC32 detects accidental corruption only; it is not tamper-proof.
package persistence

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

var (
	// Magic identifies a semidx snapshot.
	Magic = [4]byte{'S', 'I', 'D', 'X'}

	// FormatVersion is the current snapshot format version.
	FormatVersion uint16 = 1

	// ErrBadMagic is returned when a stream is not a semidx snapshot.
	ErrBadMagic = errors.New("bad snapshot magic")

	// ErrChecksumMismatch is returned when the payload checksum fails.
	ErrChecksumMismatch = errors.New("snapshot checksum mismatch")
)

// Codec selects the payload compression.
type Codec uint8

const (
	// CodecNone stores the payload uncompressed.
	CodecNone Codec = iota
	// CodecLZ4 compresses with LZ4 (fast, moderate ratio).
	CodecLZ4
	// CodecZstd compresses with Zstandard (slower, better ratio).
	CodecZstd
)

// String returns a string representation of the Codec.
func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecLZ4:
		return "lz4"
	case CodecZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// Save writes a snapshot: header, then the payload produced by fn, then the
// payload checksum, all through the chosen codec.
func Save(w io.Writer, codec Codec, fn func(pw *Writer) error) error {
	header := make([]byte, 0, 7)
	header = append(header, Magic[:]...)
	header = binary.LittleEndian.AppendUint16(header, FormatVersion)
	header = append(header, byte(codec))
	if _, err := w.Write(header); err != nil {
		return err
	}

	payload, closeCodec, err := wrapWriter(w, codec)
	if err != nil {
		return err
	}

	pw := NewWriter(payload)
	if err := fn(pw); err != nil {
		return err
	}

	// Checksum trails the payload inside the compressed stream.
	var sum [4]byte
	binary.LittleEndian.PutUint32(sum[:], pw.Sum())
	if _, err := payload.Write(sum[:]); err != nil {
		return err
	}

	return closeCodec()
}

// Load reads a snapshot written by Save, handing the payload reader to fn and
// verifying the trailing checksum afterwards.
func Load(r io.Reader, fn func(pr *Reader) error) error {
	header := make([]byte, 7)
	if _, err := io.ReadFull(r, header); err != nil {
		return err
	}

	if [4]byte(header[:4]) != Magic {
		return ErrBadMagic
	}
	if v := binary.LittleEndian.Uint16(header[4:6]); v != FormatVersion {
		return fmt.Errorf("unsupported snapshot format version %d", v)
	}

	payload, err := wrapReader(r, Codec(header[6]))
	if err != nil {
		return err
	}

	pr := NewReader(payload)
	if err := fn(pr); err != nil {
		return err
	}

	want := pr.Sum()

	var sum [4]byte
	if _, err := io.ReadFull(payload, sum[:]); err != nil {
		return err
	}
	if binary.LittleEndian.Uint32(sum[:]) != want {
		return ErrChecksumMismatch
	}

	return nil
}

func wrapWriter(w io.Writer, codec Codec) (io.Writer, func() error, error) {
	switch codec {
	case CodecNone:
		return w, func() error { return nil }, nil
	case CodecLZ4:
		zw := lz4.NewWriter(w)
		return zw, zw.Close, nil
	case CodecZstd:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, nil, err
		}
		return zw, zw.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported codec: %d", codec)
	}
}

func wrapReader(r io.Reader, codec Codec) (io.Reader, error) {
	switch codec {
	case CodecNone:
		return r, nil
	case CodecLZ4:
		return lz4.NewReader(r), nil
	case CodecZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("unsupported codec: %d", codec)
	}
}

// crcWriter wraps an io.Writer and computes a running CRC32 checksum.
type crcWriter struct {
	w    io.Writer
	hash hash.Hash32
}

func (cw *crcWriter) Write(p []byte) (int, error) {
	cw.hash.Write(p) // never fails
	return cw.w.Write(p)
}

// crcReader wraps an io.Reader and computes a running CRC32 checksum.
type crcReader struct {
	r    io.Reader
	hash hash.Hash32
}

func (cr *crcReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.hash.Write(p[:n])
	}
	return n, err
}
