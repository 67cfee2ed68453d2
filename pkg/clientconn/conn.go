// Package clientconn implements the post-handshake client record stream
// (C8): chunked encrypted writes, transparent read-side classification of
// application data versus NewSessionTicket and alert records, and an
// encrypted close_notify on Close. It is handed the two directional
// ciphers handshake.Run negotiates and knows nothing about negotiation
// itself.
package clientconn

import (
	"io"
	"sync"

	"github.com/sara-star-quant/tlsclient/internal/constants"
	tlserrors "github.com/sara-star-quant/tlsclient/internal/errors"
	"github.com/sara-star-quant/tlsclient/internal/metrics"
	"github.com/sara-star-quant/tlsclient/pkg/cipher"
	"github.com/sara-star-quant/tlsclient/pkg/record"
	"github.com/sara-star-quant/tlsclient/pkg/transport"
)

// Conn is one established TLS connection's record stream. A Conn is safe
// for one writer and one reader to use concurrently; concurrent writers
// (or concurrent readers) must synchronize themselves.
type Conn struct {
	t       transport.Transport
	reader  *record.Reader
	version constants.ProtocolVersion

	writeCipher *cipher.Suite
	readCipher  *cipher.Suite

	writeMu sync.Mutex

	closedMu sync.RWMutex
	closed   bool
	closeErr error // sticky: the error (or io.EOF) that poisoned the connection
}

// New wraps t as a client record stream, protected by writeCipher and
// readCipher (the two application ciphers handshake.Run produced for the
// negotiated version).
func New(t transport.Transport, version constants.ProtocolVersion, writeCipher, readCipher *cipher.Suite) *Conn {
	return &Conn{
		t:           t,
		reader:      record.NewReader(t),
		version:     version,
		writeCipher: writeCipher,
		readCipher:  readCipher,
	}
}

// Write encrypts plaintext and sends it as one or more application_data
// records, each at most MaxPlaintextLength bytes of inner content. A
// failed Write poisons the connection: the caller must not retry it, and
// should Close and discard the Conn.
func (c *Conn) Write(plaintext []byte) (int, error) {
	if err := c.poisoned(); err != nil {
		return 0, err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	sent := 0
	for sent < len(plaintext) {
		end := sent + constants.MaxPlaintextLength
		if end > len(plaintext) {
			end = len(plaintext)
		}
		if err := c.writeRecord(constants.ContentTypeApplicationData, plaintext[sent:end]); err != nil {
			c.poison(err)
			return sent, err
		}
		sent = end
	}
	return sent, nil
}

// writeRecord seals chunk under writeCipher and sends it as one record.
// The caller holds writeMu.
func (c *Conn) writeRecord(innerType constants.ContentType, chunk []byte) error {
	ciphertext, err := c.writeCipher.Seal(innerType, chunk)
	if err != nil {
		return err
	}

	outerType := innerType
	if c.version == constants.VersionTLS13 {
		outerType = constants.ContentTypeApplicationData
	}

	w := record.NewWriter(len(ciphertext) + constants.RecordHeaderSize)
	w.PutRecordHeader(outerType, constants.LegacyRecordVersion, len(ciphertext))
	w.PutBytes(ciphertext)
	if w.Err() != nil {
		return tlserrors.NewResourceError(tlserrors.BufferOverflow, w.Err())
	}
	return c.t.WriteAll(w.Bytes())
}

// Read returns the next application_data record's plaintext. It
// transparently skips post-handshake NewSessionTicket messages and
// translates a close_notify alert into io.EOF. The returned slice aliases
// the Conn's internal buffer and is valid only until the next call to
// Read.
//
// Once Read (or Write) returns a non-EOF error, the Conn is poisoned:
// every subsequent call returns that same error.
func (c *Conn) Read() ([]byte, error) {
	if err := c.poisoned(); err != nil {
		return nil, err
	}

	for {
		rec, err := c.reader.Next()
		if err != nil {
			c.poison(err)
			return nil, err
		}

		typ, plaintext, err := c.readCipher.Open(rec.ContentType, rec.Payload)
		if err != nil {
			c.poison(err)
			return nil, err
		}

		switch typ {
		case constants.ContentTypeApplicationData:
			return plaintext, nil
		case constants.ContentTypeHandshake:
			if !isNewSessionTicket(plaintext) {
				err := tlserrors.NewProtocolError(tlserrors.UnexpectedMessage, "clientconn.Read", nil)
				c.poison(err)
				return nil, err
			}
			continue
		case constants.ContentTypeAlert:
			alert, derr := record.DecodeAlert(plaintext)
			if derr != nil {
				c.poison(derr)
				return nil, derr
			}
			if alert.IsCloseNotify() {
				c.poison(io.EOF)
				return nil, io.EOF
			}
			c.poison(alert)
			return nil, alert
		default:
			err := tlserrors.NewProtocolError(tlserrors.UnexpectedMessage, "clientconn.Read", nil)
			c.poison(err)
			return nil, err
		}
	}
}

// isNewSessionTicket reports whether a decrypted handshake-record payload
// starts with the NewSessionTicket type byte. The rest of the message is
// not parsed, so a truncated ticket is skipped like a complete one.
func isNewSessionTicket(body []byte) bool {
	return len(body) >= 1 && constants.HandshakeType(body[0]) == constants.HandshakeTypeNewSessionTicket
}

// Close sends an encrypted close_notify alert, best-effort, and marks the
// Conn closed. It never blocks on a peer response. Close is idempotent.
func (c *Conn) Close() error {
	c.closedMu.Lock()
	if c.closed {
		c.closedMu.Unlock()
		return nil
	}
	c.closed = true
	c.closeErr = io.EOF
	c.closedMu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.writeRecord(constants.ContentTypeAlert, []byte{byte(constants.AlertLevelWarning), byte(constants.AlertCloseNotify)})
	return nil
}

// poisoned returns the sticky error recorded by a prior failed Read/Write,
// if any.
func (c *Conn) poisoned() error {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()
	if c.closed {
		return c.closeErr
	}
	return nil
}

// poison marks the Conn unusable after err, unless it is already poisoned
// (the first error wins).
func (c *Conn) poison(err error) {
	c.closedMu.Lock()
	defer c.closedMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.closeErr = err
	if err != io.EOF {
		metrics.Warn("connection poisoned", metrics.Fields{"error": err.Error()})
	}
}
