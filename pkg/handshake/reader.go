package handshake

import (
	"github.com/sara-star-quant/tlsclient/internal/constants"
	tlserrors "github.com/sara-star-quant/tlsclient/internal/errors"
	"github.com/sara-star-quant/tlsclient/pkg/cipher"
	"github.com/sara-star-quant/tlsclient/pkg/record"
)

// flightReader accumulates handshake message bytes across record
// boundaries, for both the plaintext TLS 1.2 server flight and the
// encrypted TLS 1.3 one.
type flightReader struct {
	r      *record.Reader
	suite  *cipher.Suite // nil for TLS 1.2 (records are plaintext)
	buf    []byte
}

func newFlightReader12(r *record.Reader) *flightReader {
	return &flightReader{r: r}
}

// enableDecryption switches a flightReader from the plaintext TLS 1.2 mode
// it is always constructed in to decrypting under suite. TLS 1.3 negotiates
// its handshake traffic keys only after ServerHello has already been read
// through the same flightReader/record.Reader pair, so the reader is
// upgraded in place rather than replaced.
func (f *flightReader) enableDecryption(suite *cipher.Suite) {
	f.suite = suite
}

// expectRecord reads exactly one record. For TLS 1.2 it must already be of
// the expected content type. For TLS 1.3 (suite set) it decrypts first and
// checks the recovered inner type instead. An alert of any kind, at either
// layer, is decoded and returned as an *errors.AlertError.
func (f *flightReader) expectRecord(want constants.ContentType) ([]byte, error) {
	typ, payload, err := f.readOne()
	if err != nil {
		return nil, err
	}
	if typ == constants.ContentTypeAlert {
		alert, aerr := record.DecodeAlert(payload)
		if aerr != nil {
			return nil, aerr
		}
		return nil, alert
	}
	if typ != want {
		return nil, tlserrors.NewProtocolError(tlserrors.UnexpectedMessage, "handshake.expectRecord", nil)
	}
	return payload, nil
}

// readOne reads and, for TLS 1.3, decrypts exactly one record, returning
// its real content type and payload. TLS 1.3 change_cipher_spec records
// arrive unencrypted (middlebox compatibility) and are skipped here.
func (f *flightReader) readOne() (constants.ContentType, []byte, error) {
	for {
		rec, err := f.r.Next()
		if err != nil {
			return 0, nil, err
		}
		if f.suite == nil {
			return rec.ContentType, append([]byte{}, rec.Payload...), nil
		}
		if rec.ContentType == constants.ContentTypeChangeCipherSpec {
			continue
		}
		if rec.ContentType != constants.ContentTypeApplicationData {
			return 0, nil, tlserrors.NewProtocolError(tlserrors.UnexpectedMessage, "handshake.readOne", nil)
		}
		innerType, plaintext, err := f.suite.Open(rec.ContentType, rec.Payload)
		if err != nil {
			return 0, nil, err
		}
		return innerType, plaintext, nil
	}
}

// nextHandshakeMessage accumulates handshake-record bytes until a full
// message header(4)+body is available, defragmenting across records as
// necessary, and returns the message type, body, and raw wire bytes
// (header included, for the transcript).
func (f *flightReader) nextHandshakeMessage() (constants.HandshakeType, []byte, []byte, error) {
	for {
		if len(f.buf) >= 4 {
			bodyLen := int(f.buf[1])<<16 | int(f.buf[2])<<8 | int(f.buf[3])
			if len(f.buf) >= 4+bodyLen {
				raw := append([]byte{}, f.buf[:4+bodyLen]...)
				f.buf = f.buf[4+bodyLen:]
				return constants.HandshakeType(raw[0]), raw[4:], raw, nil
			}
		}

		typ, payload, err := f.readOne()
		if err != nil {
			return 0, nil, nil, err
		}
		switch typ {
		case constants.ContentTypeHandshake:
			f.buf = append(f.buf, payload...)
		case constants.ContentTypeAlert:
			alert, aerr := record.DecodeAlert(payload)
			if aerr != nil {
				return 0, nil, nil, aerr
			}
			return 0, nil, nil, alert
		case constants.ContentTypeChangeCipherSpec:
			// already filtered in readOne for 1.3; a plaintext 1.2 CCS
			// arriving where a handshake message is expected is an error.
			return 0, nil, nil, tlserrors.NewProtocolError(tlserrors.UnexpectedMessage, "handshake.nextHandshakeMessage", nil)
		default:
			return 0, nil, nil, tlserrors.NewProtocolError(tlserrors.UnexpectedMessage, "handshake.nextHandshakeMessage", nil)
		}
	}
}
