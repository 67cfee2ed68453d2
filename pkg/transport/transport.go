// Package transport defines the narrow byte-stream and randomness
// abstractions the handshake and record layer are built against, plus
// adapters from the standard library's net.Conn and crypto/rand.
package transport

import (
	"crypto/rand"
	"io"
	"net"

	tlserrors "github.com/sara-star-quant/tlsclient/internal/errors"
)

// Transport is the byte-stream collaborator the handshake and client
// connection read from and write to. Errors from either method propagate
// unchanged; Read returning (0, nil) never happens, matching net.Conn
// semantics, and a clean close is reported as io.EOF.
type Transport interface {
	// Read behaves like io.Reader.Read: it returns the number of bytes
	// read and any error encountered.
	Read(buf []byte) (n int, err error)
	// WriteAll writes the entire buffer or returns an error; there is no
	// partial-write case visible to the caller.
	WriteAll(buf []byte) error
}

// connTransport adapts a net.Conn (or any io.ReadWriter) to Transport.
type connTransport struct {
	rw io.ReadWriter
}

// NewTransport wraps a net.Conn or other io.ReadWriter as a Transport.
func NewTransport(rw io.ReadWriter) Transport {
	return &connTransport{rw: rw}
}

func (c *connTransport) Read(buf []byte) (int, error) {
	return c.rw.Read(buf)
}

func (c *connTransport) WriteAll(buf []byte) error {
	for len(buf) > 0 {
		n, err := c.rw.Write(buf)
		if err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}

// Random is the randomness collaborator: a single fill_random(buf) call
// producing cryptographically strong bytes. Factored behind an interface so
// test vectors can fix the random source (RFC 8446 §8 test mode, and the
// ClientHello-fidelity scenario in particular).
type Random interface {
	Fill(buf []byte) error
}

// CryptoRandom is the production Random backed by crypto/rand.
type CryptoRandom struct{}

// Fill reads cryptographically secure random bytes into buf.
func (CryptoRandom) Fill(buf []byte) error {
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return tlserrors.NewCryptoError(tlserrors.InvalidEncoding, "random.fill", err)
	}
	return nil
}

// FixedRandom is a deterministic Random that serves bytes from a
// caller-supplied stream, for test vectors that fix the handshake's random
// inputs (e.g. "random source producing 00..1f").
type FixedRandom struct {
	Data   []byte
	offset int
}

// Fill copies the next len(buf) bytes from Data. It panics if Data is
// exhausted, since a test vector that runs out of fixed randomness is a
// test-authoring bug, not a runtime condition to recover from.
func (f *FixedRandom) Fill(buf []byte) error {
	n := copy(buf, f.Data[f.offset:])
	if n < len(buf) {
		panic("transport: FixedRandom exhausted")
	}
	f.offset += n
	return nil
}

// Dial opens a TCP connection to addr and wraps it as a Transport,
// returning the raw net.Conn too so the caller can set deadlines or close
// the socket directly.
func Dial(network, addr string) (Transport, net.Conn, error) {
	c, err := net.Dial(network, addr)
	if err != nil {
		return nil, nil, err
	}
	return NewTransport(c), c, nil
}
