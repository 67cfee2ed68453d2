package cipher

import (
	"crypto/aes"
	stdcipher "crypto/cipher"
	"encoding/binary"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/sara-star-quant/tlsclient/internal/constants"
	tlserrors "github.com/sara-star-quant/tlsclient/internal/errors"
)

// aeadCipher wraps a stdlib/x-crypto AEAD with the nonce construction and
// additional-data framing for either TLS 1.2 (RFC 5288 / RFC 7905) or
// TLS 1.3 (RFC 8446 §5.2-5.3).
type aeadCipher struct {
	aead stdcipher.AEAD
	// fixedIV is the per-direction salt: 4 bytes for TLS 1.2 GCM (explicit
	// nonce sent on the wire), 12 bytes for TLS 1.2 ChaCha20-Poly1305 and
	// all of TLS 1.3 (implicit nonce, iv XOR seq_num).
	fixedIV []byte
	cs      constants.CipherSuite
}

func newAEAD(cs constants.CipherSuite, key []byte) (stdcipher.AEAD, error) {
	switch cs {
	case constants.TLSECDHEECDSAWithAES128GCMSHA256, constants.TLSECDHERSAWithAES128GCMSHA256,
		constants.TLSAES128GCMSHA256, constants.TLSAES256GCMSHA384:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, tlserrors.NewCryptoError(tlserrors.InvalidEncoding, "cipher.newAEAD.aes", err)
		}
		return stdcipher.NewGCM(block)
	case constants.TLSECDHERSAWithChaCha20Poly1305, constants.TLSECDHEECDSAWithChaCha20Poly1305,
		constants.TLSChaCha20Poly1305SHA256:
		return chacha20poly1305.New(key)
	default:
		return nil, tlserrors.NewProtocolError(tlserrors.IllegalParameter, "cipher.newAEAD", nil)
	}
}

func newAEADCipher12(cs constants.CipherSuite, key, iv []byte) (*aeadCipher, error) {
	a, err := newAEAD(cs, key)
	if err != nil {
		return nil, err
	}
	return &aeadCipher{aead: a, fixedIV: iv, cs: cs}, nil
}

func newAEADCipher13(cs constants.CipherSuite, key, iv []byte) (*aeadCipher, error) {
	a, err := newAEAD(cs, key)
	if err != nil {
		return nil, err
	}
	return &aeadCipher{aead: a, fixedIV: iv, cs: cs}, nil
}

// usesExplicitNonce is true only for the TLS 1.2 GCM suites (RFC 5288),
// which send an 8-byte explicit nonce with every record.
func (a *aeadCipher) usesExplicitNonce() bool {
	return len(a.fixedIV) == 4
}

func sequenceBytes(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}

// implicitNonce XORs the 8-byte big-endian sequence number into the
// low-order bytes of the fixed IV (RFC 8446 §5.3, shared by RFC 7905).
func implicitNonce(fixedIV []byte, seq uint64) []byte {
	nonce := make([]byte, len(fixedIV))
	copy(nonce, fixedIV)
	seqB := sequenceBytes(seq)
	off := len(nonce) - len(seqB)
	for i, b := range seqB {
		nonce[off+i] ^= b
	}
	return nonce
}

// seal12 implements the TLS 1.2 AEAD record protection of RFC 5246 §6.2.3.3.
func (a *aeadCipher) seal12(seq uint64, contentType constants.ContentType, plaintext []byte) ([]byte, error) {
	aad := make([]byte, 0, 13)
	aad = append(aad, sequenceBytes(seq)...)
	aad = append(aad, byte(contentType))
	aad = append(aad, byte(constants.LegacyRecordVersion>>8), byte(constants.LegacyRecordVersion&0xff))
	aad = append(aad, byte(len(plaintext)>>8), byte(len(plaintext)))

	if a.usesExplicitNonce() {
		explicit := sequenceBytes(seq) // deterministic, unique per record within the connection
		nonce := append(append([]byte{}, a.fixedIV...), explicit...)
		sealed := a.aead.Seal(nil, nonce, plaintext, aad)
		return append(explicit, sealed...), nil
	}

	nonce := implicitNonce(a.fixedIV, seq)
	return a.aead.Seal(nil, nonce, plaintext, aad), nil
}

// open12 reverses seal12.
func (a *aeadCipher) open12(seq uint64, contentType constants.ContentType, ciphertext []byte) ([]byte, error) {
	var nonce, sealed []byte
	if a.usesExplicitNonce() {
		if len(ciphertext) < 8 {
			return nil, tlserrors.NewCryptoError(tlserrors.BadRecordMAC, "cipher.open12", nil)
		}
		explicit := ciphertext[:8]
		sealed = ciphertext[8:]
		nonce = append(append([]byte{}, a.fixedIV...), explicit...)
	} else {
		nonce = implicitNonce(a.fixedIV, seq)
		sealed = ciphertext
	}

	plainLen := len(sealed) - a.aead.Overhead()
	if plainLen < 0 {
		return nil, tlserrors.NewCryptoError(tlserrors.BadRecordMAC, "cipher.open12", nil)
	}
	aad := make([]byte, 0, 13)
	aad = append(aad, sequenceBytes(seq)...)
	aad = append(aad, byte(contentType))
	aad = append(aad, byte(constants.LegacyRecordVersion>>8), byte(constants.LegacyRecordVersion&0xff))
	aad = append(aad, byte(plainLen>>8), byte(plainLen))

	pt, err := a.aead.Open(nil, nonce, sealed, aad)
	if err != nil {
		return nil, tlserrors.NewCryptoError(tlserrors.BadRecordMAC, "cipher.open12", err)
	}
	return pt, nil
}

// seal13 implements TLS 1.3 record protection (RFC 8446 §5.2): the inner
// plaintext is content || real_content_type, AAD is the outer record
// header as it will appear on the wire.
func (a *aeadCipher) seal13(seq uint64, innerType constants.ContentType, plaintext []byte) ([]byte, error) {
	inner := append(append([]byte{}, plaintext...), byte(innerType))
	nonce := implicitNonce(a.fixedIV, seq)

	ciphertextLen := len(inner) + a.aead.Overhead()
	aad := []byte{
		byte(constants.ContentTypeApplicationData),
		byte(constants.LegacyRecordVersion >> 8), byte(constants.LegacyRecordVersion & 0xff),
		byte(ciphertextLen >> 8), byte(ciphertextLen),
	}

	return a.aead.Seal(nil, nonce, inner, aad), nil
}

// open13 reverses seal13, recovering both the plaintext and the real
// (inner) content type. recordPayload is the full ciphertext as read off
// the wire, used here to compute the AAD length field exactly as the sender
// did.
func (a *aeadCipher) open13(seq uint64, recordPayload []byte) (constants.ContentType, []byte, error) {
	nonce := implicitNonce(a.fixedIV, seq)
	aad := []byte{
		byte(constants.ContentTypeApplicationData),
		byte(constants.LegacyRecordVersion >> 8), byte(constants.LegacyRecordVersion & 0xff),
		byte(len(recordPayload) >> 8), byte(len(recordPayload)),
	}

	inner, err := a.aead.Open(nil, nonce, recordPayload, aad)
	if err != nil {
		return 0, nil, tlserrors.NewCryptoError(tlserrors.BadRecordMAC, "cipher.open13", err)
	}
	if len(inner) == 0 {
		return 0, nil, tlserrors.NewProtocolError(tlserrors.UnexpectedMessage, "cipher.open13", nil)
	}

	// Strip zero-padding bytes to find the real content type (RFC 8446
	// §5.4): scan backward from the end for the first non-zero byte.
	i := len(inner) - 1
	for i > 0 && inner[i] == 0 {
		i--
	}
	return constants.ContentType(inner[i]), inner[:i], nil
}
