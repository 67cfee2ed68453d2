package record

import (
	"github.com/sara-star-quant/tlsclient/internal/constants"
	tlserrors "github.com/sara-star-quant/tlsclient/internal/errors"
)

// Writer appends big-endian integers, enums, and length-prefixed vectors
// into a fixed-capacity buffer. It uses a sticky-error style: once an
// append overflows the buffer, every subsequent call is a no-op and the
// first error is returned by Err. Construction code can therefore chain a
// whole ClientHello and check the error once at the end.
type Writer struct {
	buf []byte
	cap int
	err error
}

// NewWriter allocates a Writer with the given fixed capacity.
func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity), cap: capacity}
}

// Err returns the first overflow error encountered, if any.
func (w *Writer) Err() error { return w.err }

// Bytes returns the buffer written so far. The slice is only valid to keep
// using the Writer further if no more growth will invalidate it; callers
// that need a stable copy should clone it.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// Reset empties the writer for reuse, keeping the underlying array.
func (w *Writer) Reset() {
	w.buf = w.buf[:0]
	w.err = nil
}

func (w *Writer) fail() bool {
	if w.err == nil {
		w.err = tlserrors.ErrBufferOverflow
	}
	return false
}

func (w *Writer) reserve(n int) bool {
	if w.err != nil {
		return false
	}
	if len(w.buf)+n > w.cap {
		return w.fail()
	}
	return true
}

// PutBytes appends raw bytes.
func (w *Writer) PutBytes(b []byte) {
	if !w.reserve(len(b)) {
		return
	}
	w.buf = append(w.buf, b...)
}

// PutUint8 appends a single byte.
func (w *Writer) PutUint8(v uint8) {
	if !w.reserve(1) {
		return
	}
	w.buf = append(w.buf, v)
}

// PutUint16 appends a big-endian u16.
func (w *Writer) PutUint16(v uint16) {
	if !w.reserve(2) {
		return
	}
	w.buf = append(w.buf, byte(v>>8), byte(v))
}

// PutUint24 appends a big-endian 24-bit integer (the handshake message
// length field).
func (w *Writer) PutUint24(v uint32) {
	if !w.reserve(3) {
		return
	}
	w.buf = append(w.buf, byte(v>>16), byte(v>>8), byte(v))
}

// PutVector8 appends a 1-byte length prefix followed by b.
func (w *Writer) PutVector8(b []byte) {
	if len(b) > 0xff {
		w.fail()
		return
	}
	w.PutUint8(uint8(len(b)))
	w.PutBytes(b)
}

// PutVector16 appends a 2-byte length prefix followed by b.
func (w *Writer) PutVector16(b []byte) {
	if len(b) > 0xffff {
		w.fail()
		return
	}
	w.PutUint16(uint16(len(b)))
	w.PutBytes(b)
}

// PutVector24 appends a 3-byte length prefix followed by b, used for
// handshake message bodies and certificate lists.
func (w *Writer) PutVector24(b []byte) {
	if len(b) > 0xffffff {
		w.fail()
		return
	}
	w.PutUint24(uint32(len(b)))
	w.PutBytes(b)
}

// PutExtension appends a TLS extension: type(2) || length(2) || body.
func (w *Writer) PutExtension(typ constants.ExtensionType, body []byte) {
	w.PutUint16(uint16(typ))
	w.PutVector16(body)
}

// PutRecordHeader appends a record header: content_type(1) || version(2) ||
// length(2). The payload itself is appended separately by the caller.
func (w *Writer) PutRecordHeader(ct constants.ContentType, version constants.ProtocolVersion, payloadLen int) {
	if payloadLen > constants.MaxCiphertextLength {
		w.fail()
		return
	}
	w.PutUint8(uint8(ct))
	w.PutUint16(uint16(version))
	w.PutUint16(uint16(payloadLen))
}

// PutHandshakeHeader appends a handshake message header: msg_type(1) ||
// length(3).
func (w *Writer) PutHandshakeHeader(typ constants.HandshakeType, bodyLen int) {
	w.PutUint8(uint8(typ))
	w.PutUint24(uint32(bodyLen))
}
