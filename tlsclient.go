// Package tlsclient is a from-scratch client-side implementation of the
// TLS 1.2 and TLS 1.3 handshake and record layer: ClientHello through
// application data, with no dependency on crypto/tls.
//
// # Quick Start
//
//	import "github.com/sara-star-quant/tlsclient"
//
//	conn, err := tlsclient.Dial("tcp", "example.com:443", &tlsclient.ClientConfig{
//		Host: "example.com",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer conn.Close()
//
//	conn.Write([]byte("GET / HTTP/1.0\r\n\r\n"))
//	buf, err := conn.Read()
//
// # Package Structure
//
//   - pkg/record: record-layer framing (writer, decoder, reader)
//   - pkg/kex: ephemeral key-pair generation and shared-secret derivation
//   - pkg/transcript: running transcript hash and TLS 1.2/1.3 key schedules
//   - pkg/cipher: record protection (AEAD and CBC-HMAC)
//   - pkg/sigverify: ServerKeyExchange / CertificateVerify signature checks
//   - pkg/certchain: certificate chain validation against a trust store
//   - pkg/handshake: the client handshake state machine
//   - pkg/clientconn: the post-handshake application record stream
//   - internal/constants: wire IDs and sizes
//   - internal/errors: typed error kinds
//   - internal/metrics: structured logging, stats, optional otel tracing
package tlsclient

import (
	"github.com/sara-star-quant/tlsclient/internal/constants"
	"github.com/sara-star-quant/tlsclient/internal/metrics"
	"github.com/sara-star-quant/tlsclient/pkg/certchain"
	"github.com/sara-star-quant/tlsclient/pkg/clientconn"
	"github.com/sara-star-quant/tlsclient/pkg/handshake"
	"github.com/sara-star-quant/tlsclient/pkg/transport"
)

// ClientConfig is the caller-supplied configuration for a Dial. The zero
// value offers every cipher suite this package implements and uses
// crypto/rand for all randomness; CABundle must be set explicitly for
// certificate trust verification (a nil CABundle is a caller opt-in to an
// insecure mode, not a default).
type ClientConfig struct {
	// Host is the server name for SNI and leaf hostname verification. If
	// empty, Dial fills it from the addr passed to Dial.
	Host string

	// CipherSuites is the ordered preference list offered in ClientHello.
	// Nil selects DefaultCipherSuites.
	CipherSuites []constants.CipherSuite

	// DisableHybridKEX removes the X25519+Kyber768 hybrid group from the
	// offered key-share groups, leaving X25519, P-256, and P-384.
	DisableHybridKEX bool

	// CABundle validates the server's certificate chain. Nil skips trust
	// verification.
	CABundle certchain.TrustStore

	// StatsSink, if set, is populated with the negotiated parameters on a
	// successful handshake.
	StatsSink metrics.StatsSink

	// Random supplies the client random, the key-pair seed and the RSA
	// pre-master random. Nil uses transport.CryptoRandom. CBC explicit IVs
	// and RSA encryption padding always come from crypto/rand.
	Random transport.Random

	// Tracer, if set, receives the one span the handshake opens.
	Tracer metrics.Tracer
}

// DefaultCipherSuites is the suite list offered when ClientConfig.CipherSuites
// is nil: every suite this package implements, strongest first.
var DefaultCipherSuites = []constants.CipherSuite{
	constants.TLSAES256GCMSHA384,
	constants.TLSAES128GCMSHA256,
	constants.TLSChaCha20Poly1305SHA256,
	constants.TLSECDHEECDSAWithAES128GCMSHA256,
	constants.TLSECDHERSAWithAES128GCMSHA256,
	constants.TLSECDHERSAWithAES256CBCSHA384,
	constants.TLSECDHERSAWithChaCha20Poly1305,
	constants.TLSECDHEECDSAWithChaCha20Poly1305,
	constants.TLSECDHERSAWithAES128CBCSHA,
	constants.TLSRSAWithAES128CBCSHA,
}

// Dial opens network, addr (e.g. "tcp", "example.com:443") and runs the
// client handshake over it. On success it returns an established Conn
// ready for application traffic; on failure the underlying connection is
// closed before returning.
func Dial(network, addr string, cfg *ClientConfig) (*clientconn.Conn, error) {
	t, conn, err := transport.Dial(network, addr)
	if err != nil {
		return nil, err
	}

	c, err := Handshake(t, addr, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

// Handshake runs the client handshake over an already-connected t and
// returns the resulting Conn. addr is used to fill ClientConfig.Host when
// it is empty; pass "" if cfg.Host is already set.
func Handshake(t transport.Transport, addr string, cfg *ClientConfig) (*clientconn.Conn, error) {
	if cfg == nil {
		cfg = &ClientConfig{}
	}

	host := cfg.Host
	if host == "" {
		host = hostOnly(addr)
	}

	suites := cfg.CipherSuites
	if len(suites) == 0 {
		suites = DefaultCipherSuites
	}

	result, err := handshake.Run(t, &handshake.Config{
		Host:             host,
		CipherSuites:     suites,
		DisableHybridKEX: cfg.DisableHybridKEX,
		CABundle:         cfg.CABundle,
		StatsSink:        cfg.StatsSink,
		Random:           cfg.Random,
		Tracer:           cfg.Tracer,
	})
	if err != nil {
		return nil, err
	}

	return clientconn.New(t, result.Version, result.WriteCipher, result.ReadCipher), nil
}

// hostOnly strips a trailing ":port" from addr, if present.
func hostOnly(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i]
		}
		if addr[i] == ']' { // IPv6 literal with no port
			return addr
		}
	}
	return addr
}
