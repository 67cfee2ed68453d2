package record

import (
	"io"

	"github.com/sara-star-quant/tlsclient/internal/constants"
	tlserrors "github.com/sara-star-quant/tlsclient/internal/errors"
	"github.com/sara-star-quant/tlsclient/pkg/transport"
)

// Reader reads framed records off a Transport (C2). It maintains an
// internal buffer, compacting consumed bytes to the head before each read
// so growth is bounded by the largest record seen. It does not interpret
// record payloads.
type Reader struct {
	t        transport.Transport
	buf      []byte
	consumed int

	// versionPinned/pinnedVersion freeze the outer legacy_version seen on
	// the first record (the ServerHello): every later record claiming a
	// different outer version is a fatal BadVersion, not just a decode
	// nuisance.
	versionPinned bool
	pinnedVersion constants.ProtocolVersion
}

// NewReader creates a Reader over t.
func NewReader(t transport.Transport) *Reader {
	return &Reader{t: t, buf: make([]byte, 0, constants.MaxRecordLength)}
}

// fill ensures at least n unconsumed bytes are buffered, reading from the
// transport (and compacting/growing the buffer) as needed.
func (r *Reader) fill(n int) error {
	for len(r.buf)-r.consumed < n {
		if r.consumed > 0 {
			copy(r.buf, r.buf[r.consumed:])
			r.buf = r.buf[:len(r.buf)-r.consumed]
			r.consumed = 0
		}
		if len(r.buf) == cap(r.buf) {
			grown := make([]byte, len(r.buf), cap(r.buf)*2)
			copy(grown, r.buf)
			r.buf = grown
		}

		readable := r.buf[len(r.buf):cap(r.buf)]
		read, err := r.t.Read(readable)
		if read > 0 {
			r.buf = r.buf[:len(r.buf)+read]
		}
		if err != nil {
			if err == io.EOF {
				return tlserrors.ErrEndOfStream
			}
			return err
		}
		if read == 0 {
			return tlserrors.ErrEndOfStream
		}
	}
	return nil
}

// Next reads and returns the next complete record, or an end-of-stream /
// overflow error. The returned Record's Payload aliases the Reader's
// internal buffer and is only valid until the next call to Next.
func (r *Reader) Next() (*Record, error) {
	if err := r.fill(constants.RecordHeaderSize); err != nil {
		return nil, err
	}

	header := r.buf[r.consumed : r.consumed+constants.RecordHeaderSize]
	ct := constants.ContentType(header[0])
	ver := constants.ProtocolVersion(uint16(header[1])<<8 | uint16(header[2]))
	length := int(uint16(header[3])<<8 | uint16(header[4]))

	// The first record a Reader ever sees is the ServerHello (or, on a
	// fragmented ServerHello, its first fragment): nothing to freeze
	// against yet, so its legacy_version becomes the pin. Every later
	// record claiming a different outer version is fatal.
	if !r.versionPinned {
		r.pinnedVersion = ver
		r.versionPinned = true
	} else if ver != r.pinnedVersion {
		return nil, tlserrors.NewProtocolError(tlserrors.BadVersion, "record_reader", nil)
	}

	if length > constants.MaxCiphertextLength {
		return nil, tlserrors.NewProtocolError(tlserrors.RecordOverflow, "record_reader", nil)
	}

	total := constants.RecordHeaderSize + length
	if err := r.fill(total); err != nil {
		return nil, err
	}

	payload := r.buf[r.consumed+constants.RecordHeaderSize : r.consumed+total]
	r.consumed += total

	return &Record{ContentType: ct, Version: ver, Payload: payload}, nil
}
