// Package handshake implements the client-side TLS 1.2/1.3 handshake state
// machine (C7): it drives ClientHello construction, server-flight parsing,
// certificate and signature verification, and key derivation, handing the
// negotiated application cipher to the caller on success.
package handshake

import (
	"github.com/sara-star-quant/tlsclient/internal/constants"
	"github.com/sara-star-quant/tlsclient/internal/metrics"
	"github.com/sara-star-quant/tlsclient/pkg/certchain"
	"github.com/sara-star-quant/tlsclient/pkg/cipher"
	"github.com/sara-star-quant/tlsclient/pkg/transport"
)

// Config is the caller-supplied configuration for one handshake.
type Config struct {
	// Host is the server name: used for SNI and leaf hostname verification.
	Host string

	// CipherSuites is the ordered preference list offered in ClientHello.
	// Must be non-empty.
	CipherSuites []constants.CipherSuite

	// DisableHybridKEX removes the X25519+Kyber768 hybrid group from the
	// offered key-share groups.
	DisableHybridKEX bool

	// CABundle validates the server's certificate chain. Nil skips trust
	// verification (hostname and intra-chain signatures are still
	// checked) — a caller opt-in to an insecure mode, not a default.
	CABundle certchain.TrustStore

	// StatsSink, if set, is populated with negotiated parameters on
	// success.
	StatsSink metrics.StatsSink

	// Random supplies the client random, the key-pair seed and the RSA
	// pre-master random. Tests inject a fixed stream; nil uses
	// transport.CryptoRandom. CBC explicit IVs and RSA encryption padding
	// always come from crypto/rand.
	Random transport.Random

	// Tracer, if set, receives the one span Run opens for the handshake
	// (metrics.SpanClientHello).
	Tracer metrics.Tracer
}

func (c *Config) tracer() metrics.Tracer {
	if c.Tracer != nil {
		return c.Tracer
	}
	return metrics.GetTracer()
}

// Result is the outcome of a successful handshake: the negotiated
// parameters and the two directional ciphers ready for the client record
// stream.
type Result struct {
	Version         constants.ProtocolVersion
	CipherSuite     constants.CipherSuite
	NamedGroup      constants.NamedGroup
	SignatureScheme constants.SignatureScheme

	WriteCipher *cipher.Suite
	ReadCipher  *cipher.Suite
}
