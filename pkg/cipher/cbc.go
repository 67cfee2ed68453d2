package cipher

import (
	"crypto/aes"
	stdcipher "crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha512"
	"hash"

	"github.com/sara-star-quant/tlsclient/internal/constants"
	tlserrors "github.com/sara-star-quant/tlsclient/internal/errors"
)

// cbcCipher implements the legacy TLS 1.2 CBC-HMAC construction
// (RFC 5246 §6.2.3.2): MAC-then-pad-then-encrypt, with a fresh explicit IV
// prepended to every record.
type cbcCipher struct {
	block   stdcipher.Block
	macKey  []byte
	hashFn  func() hash.Hash
	macSize int
}

func hmacParamsFor(cs constants.CipherSuite) (func() hash.Hash, int, error) {
	switch cs {
	case constants.TLSRSAWithAES128CBCSHA, constants.TLSECDHERSAWithAES128CBCSHA:
		return sha1.New, 20, nil
	case constants.TLSECDHERSAWithAES256CBCSHA384:
		return sha512.New384, 48, nil
	default:
		return nil, 0, tlserrors.NewProtocolError(tlserrors.IllegalParameter, "cipher.hmacParamsFor", nil)
	}
}

func newCBCCipher(cs constants.CipherSuite, macKey, key []byte) (*cbcCipher, error) {
	hashFn, macSize, err := hmacParamsFor(cs)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, tlserrors.NewCryptoError(tlserrors.InvalidEncoding, "cipher.newCBCCipher", err)
	}
	return &cbcCipher{block: block, macKey: macKey, hashFn: hashFn, macSize: macSize}, nil
}

func (c *cbcCipher) mac(seq uint64, contentType constants.ContentType, plaintext []byte) []byte {
	h := hmac.New(c.hashFn, c.macKey)
	h.Write(sequenceBytes(seq))
	h.Write([]byte{byte(contentType)})
	h.Write([]byte{byte(constants.LegacyRecordVersion >> 8), byte(constants.LegacyRecordVersion & 0xff)})
	h.Write([]byte{byte(len(plaintext) >> 8), byte(len(plaintext))})
	h.Write(plaintext)
	return h.Sum(nil)
}

// seal MACs, pads to the cipher's block size, and CBC-encrypts with a fresh
// random IV prepended in the clear (RFC 5246 §6.2.3.2, explicit IV variant).
func (c *cbcCipher) seal(seq uint64, contentType constants.ContentType, plaintext []byte) ([]byte, error) {
	mac := c.mac(seq, contentType, plaintext)

	blockSize := c.block.BlockSize()
	body := append(append([]byte{}, plaintext...), mac...)
	padLen := blockSize - (len(body)+1)%blockSize
	if padLen == blockSize {
		padLen = 0
	}
	for i := 0; i <= padLen; i++ {
		body = append(body, byte(padLen))
	}

	iv := make([]byte, blockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, tlserrors.NewCryptoError(tlserrors.InvalidEncoding, "cipher.cbcCipher.seal", err)
	}

	ciphertext := make([]byte, len(body))
	stdcipher.NewCBCEncrypter(c.block, iv).CryptBlocks(ciphertext, body)

	return append(iv, ciphertext...), nil
}

// open reverses seal: split the IV, CBC-decrypt, strip and validate
// padding, then verify the MAC.
func (c *cbcCipher) open(seq uint64, contentType constants.ContentType, record []byte) ([]byte, error) {
	blockSize := c.block.BlockSize()
	if len(record) < blockSize+c.macSize+1 || (len(record)-blockSize)%blockSize != 0 {
		return nil, tlserrors.NewCryptoError(tlserrors.BadRecordMAC, "cipher.cbcCipher.open", nil)
	}

	iv := record[:blockSize]
	body := append([]byte{}, record[blockSize:]...)
	stdcipher.NewCBCDecrypter(c.block, iv).CryptBlocks(body, body)

	padLen := int(body[len(body)-1])
	if padLen+1 > len(body) {
		return nil, tlserrors.NewCryptoError(tlserrors.BadRecordMAC, "cipher.cbcCipher.open", nil)
	}
	for _, b := range body[len(body)-padLen-1:] {
		if int(b) != padLen {
			return nil, tlserrors.NewCryptoError(tlserrors.BadRecordMAC, "cipher.cbcCipher.open", nil)
		}
	}
	unpadded := body[:len(body)-padLen-1]
	if len(unpadded) < c.macSize {
		return nil, tlserrors.NewCryptoError(tlserrors.BadRecordMAC, "cipher.cbcCipher.open", nil)
	}

	plaintext := unpadded[:len(unpadded)-c.macSize]
	gotMAC := unpadded[len(unpadded)-c.macSize:]
	wantMAC := c.mac(seq, contentType, plaintext)

	if !hmac.Equal(gotMAC, wantMAC) {
		return nil, tlserrors.NewCryptoError(tlserrors.BadRecordMAC, "cipher.cbcCipher.open", nil)
	}
	return plaintext, nil
}
