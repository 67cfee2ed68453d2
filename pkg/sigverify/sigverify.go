// Package sigverify dispatches signature verification (C6) across the four
// families a ClientHello offers in signature_algorithms: ECDSA, Ed25519,
// RSA-PSS, and RSA-PKCS1v1.5. No third-party library in the reference
// corpus implements TLS signature verification; every sighting
// (reclaimprotocol-reclaim-tee's ServerKeyExchange verifier) dispatches to
// crypto/ecdsa, crypto/ed25519, and crypto/rsa directly, so this package
// does the same rather than inventing a dependency with no home.
package sigverify

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	_ "crypto/sha256" // registers crypto.SHA256
	_ "crypto/sha512" // registers crypto.SHA384, crypto.SHA512

	"github.com/sara-star-quant/tlsclient/internal/constants"
	tlserrors "github.com/sara-star-quant/tlsclient/internal/errors"
)

type schemeInfo struct {
	family schemeFamily
	hash   crypto.Hash
	rsaPSS bool
}

type schemeFamily int

const (
	familyECDSA schemeFamily = iota
	familyRSA
	familyEd25519
)

var schemes = map[constants.SignatureScheme]schemeInfo{
	constants.SigSchemeECDSASecp256r1SHA256: {family: familyECDSA, hash: crypto.SHA256},
	constants.SigSchemeECDSASecp384r1SHA384: {family: familyECDSA, hash: crypto.SHA384},
	constants.SigSchemeEd25519:              {family: familyEd25519},
	constants.SigSchemeRSAPSSRSAESHA256:     {family: familyRSA, hash: crypto.SHA256, rsaPSS: true},
	constants.SigSchemeRSAPSSRSAESHA384:     {family: familyRSA, hash: crypto.SHA384, rsaPSS: true},
	constants.SigSchemeRSAPSSRSAESHA512:     {family: familyRSA, hash: crypto.SHA512, rsaPSS: true},
	constants.SigSchemeRSAPKCS1SHA1:         {family: familyRSA, hash: crypto.SHA1},
	constants.SigSchemeRSAPKCS1SHA256:       {family: familyRSA, hash: crypto.SHA256},
	constants.SigSchemeRSAPKCS1SHA384:       {family: familyRSA, hash: crypto.SHA384},
	constants.SigSchemeRSAPKCS1SHA512:       {family: familyRSA, hash: crypto.SHA512},
}

// allowedRSAModulusBytes lists the RSA modulus sizes this client accepts
// (1024/2048/3072/4096-bit keys). Any other size is rejected as
// BadRSASignatureBitCount before a verification is even attempted.
var allowedRSAModulusBytes = map[int]bool{128: true, 256: true, 384: true, 512: true}

// Verify checks signature over signedData under pub, as specified by
// scheme. pub must be the public key extracted from the leaf certificate.
func Verify(scheme constants.SignatureScheme, pub crypto.PublicKey, signedData, signature []byte) error {
	info, ok := schemes[scheme]
	if !ok {
		return tlserrors.NewCryptoError(tlserrors.UnknownSignatureScheme, "sigverify.Verify", nil)
	}

	switch info.family {
	case familyECDSA:
		return verifyECDSA(pub, info.hash, signedData, signature)
	case familyEd25519:
		return verifyEd25519(pub, signedData, signature)
	case familyRSA:
		return verifyRSA(pub, info, signedData, signature)
	default:
		return tlserrors.NewCryptoError(tlserrors.BadSignatureScheme, "sigverify.Verify", nil)
	}
}

func verifyECDSA(pub crypto.PublicKey, h crypto.Hash, signedData, signature []byte) error {
	ecdsaPub, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return tlserrors.NewCryptoError(tlserrors.BadSignatureScheme, "sigverify.verifyECDSA", nil)
	}

	hasher := h.New()
	hasher.Write(signedData)
	hashed := hasher.Sum(nil)

	if !ecdsa.VerifyASN1(ecdsaPub, hashed, signature) {
		return tlserrors.NewCryptoError(tlserrors.BadSignatureScheme, "sigverify.verifyECDSA", nil)
	}
	return nil
}

func verifyEd25519(pub crypto.PublicKey, signedData, signature []byte) error {
	edPub, ok := pub.(ed25519.PublicKey)
	if !ok {
		return tlserrors.NewCryptoError(tlserrors.BadSignatureScheme, "sigverify.verifyEd25519", nil)
	}
	if !ed25519.Verify(edPub, signedData, signature) {
		return tlserrors.NewCryptoError(tlserrors.BadSignatureScheme, "sigverify.verifyEd25519", nil)
	}
	return nil
}

func verifyRSA(pub crypto.PublicKey, info schemeInfo, signedData, signature []byte) error {
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return tlserrors.NewCryptoError(tlserrors.BadSignatureScheme, "sigverify.verifyRSA", nil)
	}
	if !allowedRSAModulusBytes[rsaPub.Size()] {
		return tlserrors.NewCryptoError(tlserrors.BadRSASignatureBitCount, "sigverify.verifyRSA", nil)
	}

	hasher := info.hash.New()
	hasher.Write(signedData)
	hashed := hasher.Sum(nil)

	if info.rsaPSS {
		opts := &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: info.hash}
		if err := rsa.VerifyPSS(rsaPub, info.hash, hashed, signature, opts); err != nil {
			return tlserrors.NewCryptoError(tlserrors.BadSignatureScheme, "sigverify.verifyRSA.pss", err)
		}
		return nil
	}

	if err := rsa.VerifyPKCS1v15(rsaPub, info.hash, hashed, signature); err != nil {
		return tlserrors.NewCryptoError(tlserrors.BadSignatureScheme, "sigverify.verifyRSA.pkcs1", err)
	}
	return nil
}

// ServerKeyExchangeSignedData builds the TLS 1.2 ServerKeyExchange
// verify_bytes (RFC 5246 §7.4.3): client_random || server_random ||
// curve_type(named_curve) || named_group(2) || pub_key_len(1) || pub_key.
func ServerKeyExchangeSignedData(clientRandom, serverRandom []byte, group constants.NamedGroup, serverPubKey []byte) []byte {
	const curveTypeNamedCurve = 0x03
	buf := make([]byte, 0, len(clientRandom)+len(serverRandom)+1+2+1+len(serverPubKey))
	buf = append(buf, clientRandom...)
	buf = append(buf, serverRandom...)
	buf = append(buf, curveTypeNamedCurve)
	buf = append(buf, byte(group>>8), byte(group))
	buf = append(buf, byte(len(serverPubKey)))
	buf = append(buf, serverPubKey...)
	return buf
}
