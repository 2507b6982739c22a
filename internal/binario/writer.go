package binario

import (
	"encoding/binary"
	"io"
)

type Writer struct {
	writer    io.Writer
	byteOrder binary.ByteOrder
	scratch   [8]byte
}

func NewWriter(writer io.Writer, byteOrder binary.ByteOrder) *Writer {
	return &Writer{
		writer:    writer,
		byteOrder: byteOrder,
	}
}

func (w *Writer) WriteUint64(value uint64) error {
	bs := w.scratch[:8]
	w.byteOrder.PutUint64(bs, value)
	_, err := w.writer.Write(bs)

	return err
}

// WriteRaw writes the bytes as-is, without a length prefix.
func (w *Writer) WriteRaw(bs []byte) error {
	_, err := w.writer.Write(bs)
	return err
}
