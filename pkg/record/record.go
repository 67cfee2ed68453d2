// Package record implements the buffered writer and decoder (C1) and the
// record reader (C2): big-endian framing of TLS records and handshake
// sub-structures over a fixed buffer, with no interpretation of payload
// semantics beyond the record header.
package record

import "github.com/sara-star-quant/tlsclient/internal/constants"

// Record is one TLS record: a content type, the legacy wire version, and
// the payload bytes (ciphertext once a cipher is active, plaintext
// handshake bytes before it). The header itself is not retained.
type Record struct {
	ContentType constants.ContentType
	Version     constants.ProtocolVersion
	Payload     []byte
}

// MaxPayload is the largest payload this implementation accepts in a single
// record, matching RFC 8446 §5.1's ciphertext bound.
const MaxPayload = constants.MaxCiphertextLength
