package kex

import (
	"crypto/rand"
	"crypto/rsa"

	"github.com/sara-star-quant/tlsclient/internal/constants"
	tlserrors "github.com/sara-star-quant/tlsclient/internal/errors"
	"github.com/sara-star-quant/tlsclient/pkg/transport"
)

// NewRSAPreMaster builds the 48-byte RSA pre-master secret:
// protocol_version(2)=0x0303 || random(46). The leading version field lets
// the server detect a version-rollback attack once it decrypts.
func NewRSAPreMaster(rnd transport.Random) ([]byte, error) {
	preMaster := make([]byte, constants.RSAPreMasterSize)
	preMaster[0] = byte(constants.VersionTLS12 >> 8)
	preMaster[1] = byte(constants.VersionTLS12 & 0xff)
	if err := rnd.Fill(preMaster[2:]); err != nil {
		return nil, tlserrors.NewCryptoError(tlserrors.InvalidEncoding, "kex.NewRSAPreMaster", err)
	}
	return preMaster, nil
}

// EncryptRSAPreMaster PKCS#1 v1.5-encrypts preMaster under the server
// certificate's RSA public key, producing the wire ClientKeyExchange value.
func EncryptRSAPreMaster(pub *rsa.PublicKey, preMaster []byte) ([]byte, error) {
	ciphertext, err := rsa.EncryptPKCS1v15(rand.Reader, pub, preMaster)
	if err != nil {
		return nil, tlserrors.NewCryptoError(tlserrors.InvalidEncoding, "kex.EncryptRSAPreMaster", err)
	}
	return ciphertext, nil
}
