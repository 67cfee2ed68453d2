package record

import (
	tlserrors "github.com/sara-star-quant/tlsclient/internal/errors"
)

// Decoder wraps a record (or handshake message) payload with a read
// cursor. It never copies; every accessor returns a subslice of the
// original buffer.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder creates a Decoder over buf.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Remaining returns the number of unconsumed bytes.
func (d *Decoder) Remaining() int { return len(d.buf) - d.pos }

func (d *Decoder) need(n int) error {
	if d.Remaining() < n {
		return tlserrors.NewProtocolError(tlserrors.DecodeError, "decoder", nil)
	}
	return nil
}

// Uint8 decodes one byte.
func (d *Decoder) Uint8() (uint8, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	v := d.buf[d.pos]
	d.pos++
	return v, nil
}

// Uint16 decodes a big-endian u16.
func (d *Decoder) Uint16() (uint16, error) {
	if err := d.need(2); err != nil {
		return 0, err
	}
	v := uint16(d.buf[d.pos])<<8 | uint16(d.buf[d.pos+1])
	d.pos += 2
	return v, nil
}

// Uint24 decodes a big-endian 24-bit integer.
func (d *Decoder) Uint24() (uint32, error) {
	if err := d.need(3); err != nil {
		return 0, err
	}
	v := uint32(d.buf[d.pos])<<16 | uint32(d.buf[d.pos+1])<<8 | uint32(d.buf[d.pos+2])
	d.pos += 3
	return v, nil
}

// Bytes returns a fixed-length subslice reference of n bytes and advances
// the cursor past it.
func (d *Decoder) Bytes(n int) ([]byte, error) {
	if err := d.need(n); err != nil {
		return nil, err
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// Vector8 decodes a 1-byte length prefix followed by that many bytes.
func (d *Decoder) Vector8() ([]byte, error) {
	n, err := d.Uint8()
	if err != nil {
		return nil, err
	}
	return d.Bytes(int(n))
}

// Vector16 decodes a 2-byte length prefix followed by that many bytes.
func (d *Decoder) Vector16() ([]byte, error) {
	n, err := d.Uint16()
	if err != nil {
		return nil, err
	}
	return d.Bytes(int(n))
}

// Vector24 decodes a 3-byte length prefix followed by that many bytes.
func (d *Decoder) Vector24() ([]byte, error) {
	n, err := d.Uint24()
	if err != nil {
		return nil, err
	}
	return d.Bytes(int(n))
}

// Skip advances the cursor by n bytes without returning them.
func (d *Decoder) Skip(n int) error {
	if err := d.need(n); err != nil {
		return err
	}
	d.pos += n
	return nil
}

// ExpectEOF fails unless the cursor has consumed the entire buffer. Used
// after decoding a length-delimited structure (e.g. a handshake message
// body) to reject trailing garbage.
func (d *Decoder) ExpectEOF() error {
	if d.Remaining() != 0 {
		return tlserrors.NewProtocolError(tlserrors.DecodeError, "decoder", nil)
	}
	return nil
}

var alertNames = map[uint8]string{
	0:   "close_notify",
	10:  "unexpected_message",
	20:  "bad_record_mac",
	21:  "decryption_failed",
	22:  "record_overflow",
	40:  "handshake_failure",
	42:  "bad_certificate",
	43:  "unsupported_certificate",
	45:  "certificate_expired",
	46:  "certificate_unknown",
	47:  "illegal_parameter",
	48:  "unknown_ca",
	50:  "decode_error",
	51:  "decrypt_error",
	70:  "protocol_version",
	80:  "internal_error",
	112: "unrecognized_name",
}

// DecodeAlert parses a 2-byte alert payload (level, description) into a
// typed AlertError.
func DecodeAlert(payload []byte) (*tlserrors.AlertError, error) {
	if len(payload) != 2 {
		return nil, tlserrors.NewProtocolError(tlserrors.DecodeError, "alert", nil)
	}
	name, ok := alertNames[payload[1]]
	if !ok {
		name = "unknown"
	}
	return &tlserrors.AlertError{Level: payload[0], Description: payload[1], Name: name}, nil
}
