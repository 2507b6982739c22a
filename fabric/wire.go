package fabric

import (
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/teachware/siblings/internal/binario"
)

// Wire format: a stream is a plain concatenation of frames, each being
//
//	[8-byte big-endian tag length][tag bytes, UTF-8]
//	[8-byte big-endian payload length][payload bytes, opaque]
//
// There is no other delimiter. End-of-stream right where a length field
// begins is a clean disconnect (io.EOF); truncation anywhere else is
// io.ErrUnexpectedEOF.

// Length caps keep a corrupt or hostile stream from forcing huge
// allocations. Well-formed traffic never gets near them.
const (
	maxTagLen     = 64 << 10
	maxPayloadLen = 256 << 20
)

// ErrBadTag reports a frame whose source tag is not valid UTF-8. The frame
// has been consumed in full, so the stream remains aligned and the caller
// may keep reading.
var ErrBadTag = errors.New("source tag is not valid utf-8")

type frame struct {
	tag     string
	payload []byte
}

// truncated upgrades an end-of-stream inside a frame body to
// io.ErrUnexpectedEOF, so only an EOF at a length boundary reads as a
// clean disconnect.
func truncated(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}

	return err
}

func writeFrame(w *binario.Writer, tag string, payload []byte) error {
	if err := w.WriteUint64(uint64(len(tag))); err != nil {
		return err
	}

	if err := w.WriteRaw([]byte(tag)); err != nil {
		return err
	}

	if err := w.WriteUint64(uint64(len(payload))); err != nil {
		return err
	}

	return w.WriteRaw(payload)
}

func readFrame(r *binario.Reader) (frame, error) {
	tagLen, err := r.ReadUint64()
	if err != nil {
		return frame{}, err
	}

	if tagLen > maxTagLen {
		return frame{}, fmt.Errorf("tag length %d exceeds limit", tagLen)
	}

	tag := make([]byte, tagLen)
	if err := r.ReadFull(tag); err != nil {
		return frame{}, truncated(err)
	}

	payloadLen, err := r.ReadUint64()
	if err != nil {
		return frame{}, err
	}

	if payloadLen > maxPayloadLen {
		return frame{}, fmt.Errorf("payload length %d exceeds limit", payloadLen)
	}

	payload := make([]byte, payloadLen)
	if err := r.ReadFull(payload); err != nil {
		return frame{}, truncated(err)
	}

	// Validated only after the whole frame is consumed, so a bad tag does
	// not knock the stream out of alignment.
	if !utf8.Valid(tag) {
		return frame{}, ErrBadTag
	}

	return frame{tag: string(tag), payload: payload}, nil
}
