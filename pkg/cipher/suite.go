// Package cipher implements record protection (C5): the TLS 1.2 AEAD and
// CBC-HMAC cipher constructions (RFC 5246 §6.2, RFC 5288, RFC 7905) and the
// TLS 1.3 AEAD construction (RFC 8446 §5.2-5.3), behind one tagged Suite
// type so the record layer does not need to know which variant is active.
package cipher

import (
	"github.com/sara-star-quant/tlsclient/internal/constants"
	tlserrors "github.com/sara-star-quant/tlsclient/internal/errors"
)

// Direction distinguishes the client's write keys from the server's
// (= the client's read keys).
type Direction int

const (
	Client Direction = iota
	Server
)

// Suite is a record-protection instance bound to one direction (a
// connection needs one Suite for outgoing records and one for incoming).
// It is the tagged union over the three wire constructions.
type Suite struct {
	kind     suiteKind
	aead     *aeadCipher
	cbc      *cbcCipher
	seq      uint64
	cs       constants.CipherSuite
}

type suiteKind int

const (
	kindTLS12AEAD suiteKind = iota
	kindTLS12CBC
	kindTLS13AEAD
)

// keySizeFor returns the symmetric key length for suite's bulk cipher.
func keySizeFor(cs constants.CipherSuite) (int, error) {
	switch cs {
	case constants.TLSRSAWithAES128CBCSHA,
		constants.TLSECDHERSAWithAES128CBCSHA,
		constants.TLSECDHEECDSAWithAES128GCMSHA256,
		constants.TLSECDHERSAWithAES128GCMSHA256,
		constants.TLSAES128GCMSHA256:
		return 16, nil
	case constants.TLSECDHERSAWithAES256CBCSHA384,
		constants.TLSAES256GCMSHA384:
		return 32, nil
	case constants.TLSECDHERSAWithChaCha20Poly1305,
		constants.TLSECDHEECDSAWithChaCha20Poly1305,
		constants.TLSChaCha20Poly1305SHA256:
		return 32, nil
	default:
		return 0, tlserrors.NewProtocolError(tlserrors.IllegalParameter, "cipher.keySizeFor", nil)
	}
}

// Init12 builds a TLS 1.2 Suite for one direction from that direction's
// slice of the RFC 5246 §6.3 key_block.
func Init12(cs constants.CipherSuite, macKey, key, iv []byte) (*Suite, error) {
	switch cs {
	case constants.TLSRSAWithAES128CBCSHA,
		constants.TLSECDHERSAWithAES128CBCSHA,
		constants.TLSECDHERSAWithAES256CBCSHA384:
		c, err := newCBCCipher(cs, macKey, key)
		if err != nil {
			return nil, err
		}
		return &Suite{kind: kindTLS12CBC, cbc: c, cs: cs}, nil

	case constants.TLSECDHEECDSAWithAES128GCMSHA256,
		constants.TLSECDHERSAWithAES128GCMSHA256,
		constants.TLSECDHERSAWithChaCha20Poly1305,
		constants.TLSECDHEECDSAWithChaCha20Poly1305:
		a, err := newAEADCipher12(cs, key, iv)
		if err != nil {
			return nil, err
		}
		return &Suite{kind: kindTLS12AEAD, aead: a, cs: cs}, nil

	default:
		return nil, tlserrors.NewProtocolError(tlserrors.IllegalParameter, "cipher.Init12", nil)
	}
}

// Init13 builds a TLS 1.3 Suite (handshake or application, the construction
// is identical — only the traffic secret that produced key/iv differs).
func Init13(cs constants.CipherSuite, key, iv []byte) (*Suite, error) {
	a, err := newAEADCipher13(cs, key, iv)
	if err != nil {
		return nil, err
	}
	return &Suite{kind: kindTLS13AEAD, aead: a, cs: cs}, nil
}

// KeyMaterialSizes returns the (macKeyLen, keyLen, ivLen) a direction of cs
// needs out of the TLS 1.2 key_block, or out of a TLS 1.3 traffic secret
// (macKeyLen is always 0 there; the AEAD tag supplies integrity).
func KeyMaterialSizes(cs constants.CipherSuite) (macKeyLen, keyLen, ivLen int, err error) {
	keyLen, err = keySizeFor(cs)
	if err != nil {
		return 0, 0, 0, err
	}
	switch cs {
	case constants.TLSRSAWithAES128CBCSHA, constants.TLSECDHERSAWithAES128CBCSHA:
		return 20, keyLen, 16, nil // HMAC-SHA1 MAC key, AES CBC explicit IV
	case constants.TLSECDHERSAWithAES256CBCSHA384:
		return 48, keyLen, 16, nil // HMAC-SHA384 MAC key
	case constants.TLSECDHEECDSAWithAES128GCMSHA256, constants.TLSECDHERSAWithAES128GCMSHA256:
		return 0, keyLen, 4, nil // GCM salt, explicit nonce sent per record
	case constants.TLSECDHERSAWithChaCha20Poly1305, constants.TLSECDHEECDSAWithChaCha20Poly1305:
		return 0, keyLen, 12, nil // implicit nonce, RFC 7905
	case constants.TLSAES128GCMSHA256, constants.TLSAES256GCMSHA384, constants.TLSChaCha20Poly1305SHA256:
		return 0, keyLen, 12, nil // TLS 1.3 implicit nonce
	default:
		return 0, 0, 0, tlserrors.NewProtocolError(tlserrors.IllegalParameter, "cipher.KeyMaterialSizes", nil)
	}
}

// Seal protects one record's plaintext. contentType is the record's real
// content type: for TLS 1.2 it feeds the MAC/AAD and travels unencrypted in
// the outer header too; for TLS 1.3 it is folded into the encrypted inner
// payload instead, and the outer header always reads application_data.
func (s *Suite) Seal(contentType constants.ContentType, plaintext []byte) ([]byte, error) {
	defer func() { s.seq++ }()
	switch s.kind {
	case kindTLS12AEAD:
		return s.aead.seal12(s.seq, contentType, plaintext)
	case kindTLS12CBC:
		return s.cbc.seal(s.seq, contentType, plaintext)
	case kindTLS13AEAD:
		return s.aead.seal13(s.seq, contentType, plaintext)
	default:
		return nil, tlserrors.NewCryptoError(tlserrors.InvalidEncoding, "cipher.Seal", nil)
	}
}

// Open removes record protection. outerContentType is the type read from
// the record's clear-text header. For TLS 1.3 the real type is recovered
// from the decrypted payload instead and returned; for TLS 1.2 outerType is
// echoed back since it was already authentic (authenticated by the
// MAC/AAD, not hidden).
func (s *Suite) Open(outerContentType constants.ContentType, ciphertext []byte) (constants.ContentType, []byte, error) {
	defer func() { s.seq++ }()
	switch s.kind {
	case kindTLS12AEAD:
		pt, err := s.aead.open12(s.seq, outerContentType, ciphertext)
		return outerContentType, pt, err
	case kindTLS12CBC:
		pt, err := s.cbc.open(s.seq, outerContentType, ciphertext)
		return outerContentType, pt, err
	case kindTLS13AEAD:
		return s.aead.open13(s.seq, ciphertext)
	default:
		return 0, nil, tlserrors.NewCryptoError(tlserrors.InvalidEncoding, "cipher.Open", nil)
	}
}

// CipherSuite returns the negotiated cipher suite this instance protects records
// under.
func (s *Suite) CipherSuite() constants.CipherSuite { return s.cs }
