package sigverify

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"testing"

	"github.com/sara-star-quant/tlsclient/internal/constants"
)

func TestVerifyECDSA(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	data := []byte("server key exchange params")
	hashed := sha256.Sum256(data)
	sig, err := ecdsa.SignASN1(rand.Reader, priv, hashed[:])
	if err != nil {
		t.Fatalf("SignASN1: %v", err)
	}

	if err := Verify(constants.SigSchemeECDSASecp256r1SHA256, &priv.PublicKey, data, sig); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := Verify(constants.SigSchemeECDSASecp256r1SHA256, &priv.PublicKey, []byte("tampered"), sig); err == nil {
		t.Fatalf("expected verification failure on tampered data")
	}
}

func TestVerifyEd25519(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	data := []byte("certificate verify bytes")
	sig := ed25519.Sign(priv, data)

	if err := Verify(constants.SigSchemeEd25519, pub, data, sig); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	sig[0] ^= 0xff
	if err := Verify(constants.SigSchemeEd25519, pub, data, sig); err == nil {
		t.Fatalf("expected verification failure on corrupted signature")
	}
}

func TestVerifyRSAPSS(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	data := []byte("server key exchange params")
	hashed := sha256.Sum256(data)
	opts := &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: crypto.SHA256}
	sig, err := rsa.SignPSS(rand.Reader, priv, crypto.SHA256, hashed[:], opts)
	if err != nil {
		t.Fatalf("SignPSS: %v", err)
	}

	if err := Verify(constants.SigSchemeRSAPSSRSAESHA256, &priv.PublicKey, data, sig); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyRSAPKCS1(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	data := []byte("certificate verify bytes")
	hashed := sha256.Sum256(data)
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, hashed[:])
	if err != nil {
		t.Fatalf("SignPKCS1v15: %v", err)
	}

	if err := Verify(constants.SigSchemeRSAPKCS1SHA256, &priv.PublicKey, data, sig); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyRejectsUnsupportedRSAModulusSize(t *testing.T) {
	// 1536 bits is 192 bytes, outside the supported 128/256/384/512-byte set.
	priv, err := rsa.GenerateKey(rand.Reader, 1536)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	data := []byte("x")
	hashed := sha256.Sum256(data)
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, hashed[:])
	if err != nil {
		t.Fatalf("SignPKCS1v15: %v", err)
	}

	if err := Verify(constants.SigSchemeRSAPKCS1SHA256, &priv.PublicKey, data, sig); err == nil {
		t.Fatalf("expected rejection of 1536-bit RSA key")
	}
}

func TestVerifyUnknownSchemeRejected(t *testing.T) {
	if err := Verify(constants.SignatureScheme(0xffff), nil, nil, nil); err == nil {
		t.Fatalf("expected error for unknown signature scheme")
	}
}

func TestServerKeyExchangeSignedDataShape(t *testing.T) {
	cr := make([]byte, constants.ClientRandomSize)
	sr := make([]byte, constants.ServerRandomSize)
	pub := []byte{0x01, 0x02, 0x03}
	data := ServerKeyExchangeSignedData(cr, sr, constants.GroupX25519, pub)
	wantLen := len(cr) + len(sr) + 1 + 2 + 1 + len(pub)
	if len(data) != wantLen {
		t.Fatalf("expected %d bytes, got %d", wantLen, len(data))
	}
}
