package certchain

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	tlserrors "github.com/sara-star-quant/tlsclient/internal/errors"
)

func genCert(t *testing.T, subject string, isCA bool, parent *x509.Certificate, parentKey *ecdsa.PrivateKey) (*x509.Certificate, *ecdsa.PrivateKey) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: subject},
		DNSNames:     []string{subject},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		IsCA:         isCA,
		KeyUsage:     x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	// IsCA is only encoded when basic constraints are marked valid.
	tmpl.BasicConstraintsValid = true
	signer := parent
	signerKey := parentKey
	if signer == nil {
		signer = tmpl
		signerKey = priv
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, signer, &priv.PublicKey, signerKey)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("ParseCertificate: %v", err)
	}
	return cert, priv
}

func TestValidateFullChainToTrustedRoot(t *testing.T) {
	root, rootKey := genCert(t, "test-root", true, nil, nil)
	leaf, _ := genCert(t, "example.com", false, root, rootKey)

	store := NewBundle([]*x509.Certificate{root})
	result, err := Validate([]*x509.Certificate{leaf, root}, "example.com", store, time.Now())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !result.Trusted {
		t.Fatalf("expected chain to be trusted")
	}
}

func TestValidateWithoutBundleSkipsTrust(t *testing.T) {
	root, rootKey := genCert(t, "test-root", true, nil, nil)
	leaf, _ := genCert(t, "example.com", false, root, rootKey)

	result, err := Validate([]*x509.Certificate{leaf, root}, "example.com", nil, time.Now())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.Trusted {
		t.Fatalf("expected no trust without a bundle")
	}
}

func TestValidateRejectsHostnameMismatch(t *testing.T) {
	root, rootKey := genCert(t, "test-root", true, nil, nil)
	leaf, _ := genCert(t, "example.com", false, root, rootKey)

	_, err := Validate([]*x509.Certificate{leaf, root}, "other.example", nil, time.Now())
	kind, ok := tlserrors.KindOf(err)
	if !ok || kind != tlserrors.HostnameMismatch {
		t.Fatalf("expected HostnameMismatch, got %v", err)
	}
}

func TestValidateSkipsNonChainingIntermediate(t *testing.T) {
	root, rootKey := genCert(t, "test-root", true, nil, nil)
	leaf, leafParentKey := genCert(t, "example.com", false, root, rootKey)
	_ = leafParentKey
	unrelatedRoot, unrelatedKey := genCert(t, "unrelated-root", true, nil, nil)
	decoy, _ := genCert(t, "decoy-intermediate", true, unrelatedRoot, unrelatedKey)

	store := NewBundle([]*x509.Certificate{root})
	result, err := Validate([]*x509.Certificate{leaf, decoy, root}, "example.com", store, time.Now())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !result.Trusted {
		t.Fatalf("expected trust after skipping non-chaining intermediate")
	}
}

func TestValidateNoAnchorMatchesIsIssuerNotFound(t *testing.T) {
	root, rootKey := genCert(t, "test-root", true, nil, nil)
	leaf, _ := genCert(t, "example.com", false, root, rootKey)
	otherRoot, _ := genCert(t, "other-root", true, nil, nil)

	store := NewBundle([]*x509.Certificate{otherRoot})
	_, err := Validate([]*x509.Certificate{leaf, root}, "example.com", store, time.Now())
	kind, ok := tlserrors.KindOf(err)
	if !ok || kind != tlserrors.CertificateIssuerNotFound {
		t.Fatalf("expected CertificateIssuerNotFound, got %v", err)
	}
}
