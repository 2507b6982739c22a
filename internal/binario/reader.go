package binario

import (
	"encoding/binary"
	"io"
)

// Reader decodes fixed-width integers and raw byte runs from a stream.
// A zero-byte read at an integer boundary surfaces as io.EOF and a partial
// one as io.ErrUnexpectedEOF, so callers can tell a clean disconnect from
// a truncated stream.
type Reader struct {
	byteOrder binary.ByteOrder
	reader    io.Reader
	scratch   [8]byte
}

func NewReader(reader io.Reader, byteOrder binary.ByteOrder) *Reader {
	return &Reader{
		reader:    reader,
		byteOrder: byteOrder,
	}
}

func (r *Reader) ReadUint64() (uint64, error) {
	bs := r.scratch[:8]
	if _, err := io.ReadFull(r.reader, bs); err != nil {
		return 0, err
	}

	return r.byteOrder.Uint64(bs), nil
}

// ReadFull fills bs entirely or fails.
func (r *Reader) ReadFull(bs []byte) error {
	_, err := io.ReadFull(r.reader, bs)
	return err
}
