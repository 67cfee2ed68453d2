// Package certchain implements client-side X.509 certificate chain
// validation for the handshake (shared between TLS 1.2 and TLS 1.3):
// hostname matching on the leaf, intra-chain signature walking with
// tolerance for out-of-order or extraneous intermediates, and a final
// check against an optional trust-anchor bundle. ASN.1/certificate parsing
// is delegated to crypto/x509, per the engine's assumption that parsing
// machinery this low-level is already available rather than hand-rolled.
package certchain

import (
	"crypto/x509"
	"time"

	tlserrors "github.com/sara-star-quant/tlsclient/internal/errors"
)

// TrustStore verifies a single certificate against a set of trust anchors
// at a given point in time. The default implementation, Bundle, wraps a
// fixed set of root certificates; callers may supply their own (e.g. an OS
// trust store adapter) as long as it satisfies this interface.
type TrustStore interface {
	// Verify reports whether cert chains to a trust anchor valid at now.
	// It returns a PKIError with Kind CertificateIssuerNotFound when no
	// anchor matches, or CertificateSignatureInvalid for any other
	// failure.
	Verify(cert *x509.Certificate, now time.Time) error
}

// Bundle is a TrustStore backed by a fixed list of root certificates,
// checked by direct issuer signature match rather than full RFC 5280 path
// building (the chain-walking above it already established the path; this
// only needs to confirm the tail is rooted in something trusted).
type Bundle struct {
	Roots []*x509.Certificate
}

// NewBundle wraps roots as a TrustStore.
func NewBundle(roots []*x509.Certificate) *Bundle {
	return &Bundle{Roots: roots}
}

func (b *Bundle) Verify(cert *x509.Certificate, now time.Time) error {
	for _, root := range b.Roots {
		if now.Before(root.NotBefore) || now.After(root.NotAfter) {
			continue
		}
		if err := cert.CheckSignatureFrom(root); err == nil {
			return nil
		}
	}
	return tlserrors.NewPKIError(tlserrors.CertificateIssuerNotFound, nil)
}

// Result is the outcome of a successful chain validation: the leaf's
// public key (for signature verification of the server's handshake
// signature) and whether a trust anchor was found.
type Result struct {
	LeafPublicKey interface{}
	Trusted       bool
}

// Validate implements the chain-walking algorithm: the leaf's hostname is
// checked first; each subsequent certificate is tested as the signer of
// the current chain tail, tolerating certificates that do not verify
// (treated as extraneous and skipped) while any other per-certificate
// failure is fatal; after each successful link, if store is non-nil the
// tail is checked against it, continuing past CertificateIssuerNotFound in
// case a later link completes the path to a trusted root.
//
// certs must be non-empty and in the order the server sent them (leaf
// first). store may be nil, in which case hostname and intra-chain
// signatures are still checked but no trust is established.
func Validate(certs []*x509.Certificate, host string, store TrustStore, now time.Time) (*Result, error) {
	if len(certs) == 0 {
		return nil, tlserrors.NewPKIError(tlserrors.CertificateSignatureInvalid, nil)
	}

	leaf := certs[0]
	if err := leaf.VerifyHostname(host); err != nil {
		return nil, tlserrors.NewPKIError(tlserrors.HostnameMismatch, err)
	}

	result := &Result{LeafPublicKey: leaf.PublicKey}

	tail := leaf
	for _, candidate := range certs[1:] {
		if err := tail.CheckSignatureFrom(candidate); err != nil {
			// Tolerate certificates that are not the tail's issuer; some
			// servers send extra or out-of-order intermediates.
			continue
		}
		tail = candidate

		if store == nil {
			continue
		}
		if err := store.Verify(tail, now); err != nil {
			if kind, ok := tlserrors.KindOf(err); ok && kind == tlserrors.CertificateIssuerNotFound {
				continue
			}
			return nil, err
		}
		result.Trusted = true
		break
	}

	if store != nil && !result.Trusted {
		return nil, tlserrors.NewPKIError(tlserrors.CertificateIssuerNotFound, nil)
	}
	return result, nil
}
