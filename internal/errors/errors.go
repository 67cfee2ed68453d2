// Package errors defines the typed error kinds surfaced by the handshake and
// record layer. Kinds group by where the fault lies (protocol, crypto, PKI,
// resource, remote-initiated) rather than by Go type, so callers match on
// Kind instead of asserting concrete types.
package errors

import (
	"errors"
	"fmt"
)

// Kind identifies the category of a failure, independent of which wrapper
// type carries it.
type Kind string

// Protocol-layer kinds.
const (
	BadVersion                            Kind = "bad_version"
	UnexpectedMessage                     Kind = "unexpected_message"
	IllegalParameter                      Kind = "illegal_parameter"
	UnsupportedFragmentedHandshakeMessage Kind = "unsupported_fragmented_handshake_message"
	RecordOverflow                        Kind = "record_overflow"
	DecodeError                           Kind = "decode_error"
	ServerHelloRetryRequest               Kind = "server_hello_retry_request"
)

// Crypto-layer kinds.
const (
	BadRecordMAC          Kind = "bad_record_mac"
	DecryptError           Kind = "decrypt_error"
	DecryptFailure         Kind = "decrypt_failure"
	BadSignatureScheme     Kind = "bad_signature_scheme"
	UnknownSignatureScheme Kind = "unknown_signature_scheme"
	BadRSASignatureBitCount Kind = "bad_rsa_signature_bit_count"
	InvalidEncoding        Kind = "invalid_encoding"
)

// PKI kinds.
const (
	CertificateIssuerNotFound   Kind = "certificate_issuer_not_found"
	CertificateIssuerMismatch   Kind = "certificate_issuer_mismatch" // internal, recoverable within chain walking
	CertificateSignatureInvalid Kind = "certificate_signature_invalid"
	HostnameMismatch            Kind = "hostname_mismatch"
)

// Resource kinds.
const (
	BufferOverflow Kind = "buffer_overflow"
	EndOfStream    Kind = "end_of_stream"
)

// ProtocolError reports a fault in handshake or record framing logic.
type ProtocolError struct {
	Kind  Kind
	Phase string // e.g. "client_hello", "server_hello", "record_reader"
	Err   error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol %s [%s]: %v", e.Phase, e.Kind, e.Err)
	}
	return fmt.Sprintf("protocol %s [%s]", e.Phase, e.Kind)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// NewProtocolError builds a ProtocolError. err may be nil when the kind
// alone is sufficient explanation.
func NewProtocolError(kind Kind, phase string, err error) *ProtocolError {
	return &ProtocolError{Kind: kind, Phase: phase, Err: err}
}

// CryptoError reports a fault in a cryptographic primitive or key schedule
// step.
type CryptoError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *CryptoError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("crypto %s [%s]: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("crypto %s [%s]", e.Op, e.Kind)
}

func (e *CryptoError) Unwrap() error { return e.Err }

// NewCryptoError builds a CryptoError.
func NewCryptoError(kind Kind, op string, err error) *CryptoError {
	return &CryptoError{Kind: kind, Op: op, Err: err}
}

// PKIError reports a fault while walking or trusting the peer's certificate
// chain.
type PKIError struct {
	Kind Kind
	Err  error
}

func (e *PKIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pki [%s]: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("pki [%s]", e.Kind)
}

func (e *PKIError) Unwrap() error { return e.Err }

// NewPKIError builds a PKIError.
func NewPKIError(kind Kind, err error) *PKIError {
	return &PKIError{Kind: kind, Err: err}
}

// ResourceError reports exhaustion of a caller-owned buffer or stream.
type ResourceError struct {
	Kind Kind
	Err  error
}

func (e *ResourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resource [%s]: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("resource [%s]", e.Kind)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// NewResourceError builds a ResourceError.
func NewResourceError(kind Kind, err error) *ResourceError {
	return &ResourceError{Kind: kind, Err: err}
}

// Sentinel resource errors for the common, argument-free cases.
var (
	ErrBufferOverflow = &ResourceError{Kind: BufferOverflow}
	ErrEndOfStream    = &ResourceError{Kind: EndOfStream}
)

// AlertError wraps an alert the peer sent. CloseNotify is the orderly-close
// case; every other description is a remote-initiated failure.
type AlertError struct {
	Level       uint8
	Description uint8
	Name        string // human-readable description, e.g. "handshake_failure"
}

func (e *AlertError) Error() string {
	return fmt.Sprintf("received alert level=%d description=%s(%d)", e.Level, e.Name, e.Description)
}

// IsCloseNotify reports whether the alert is the peer's orderly close_notify.
func (e *AlertError) IsCloseNotify() bool {
	return e.Description == 0
}

// Is reports whether any error in err's chain matches target. Convenience
// wrapper around the standard errors package.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target. Convenience
// wrapper around the standard errors package.
func As(err error, target interface{}) bool { return errors.As(err, target) }

// KindOf extracts the Kind carried by err, if any of the typed wrappers in
// this package appear in its chain.
func KindOf(err error) (Kind, bool) {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	var ce *CryptoError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	var ke *PKIError
	if errors.As(err, &ke) {
		return ke.Kind, true
	}
	var re *ResourceError
	if errors.As(err, &re) {
		return re.Kind, true
	}
	return "", false
}
