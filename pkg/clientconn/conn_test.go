package clientconn

import (
	"bytes"
	"io"
	"net"
	"testing"

	"github.com/sara-star-quant/tlsclient/internal/constants"
	tlserrors "github.com/sara-star-quant/tlsclient/internal/errors"
	"github.com/sara-star-quant/tlsclient/pkg/cipher"
	"github.com/sara-star-quant/tlsclient/pkg/record"
	"github.com/sara-star-quant/tlsclient/pkg/transport"
)

// newPipeConns returns a client Conn wired over an in-memory net.Pipe, and
// a raw transport.Transport for the peer end plus the peer's matching
// cipher pair (peerWrite protects what the peer sends, peerRead removes
// protection the client applied with clientWrite).
func newPipeConns(t *testing.T, version constants.ProtocolVersion) (*Conn, transport.Transport, *cipher.Suite, *cipher.Suite) {
	t.Helper()
	clientNetConn, serverNetConn := net.Pipe()
	t.Cleanup(func() { _ = clientNetConn.Close(); _ = serverNetConn.Close() })

	cs := constants.TLSAES128GCMSHA256
	clientKey := bytes.Repeat([]byte{0x01}, 16)
	clientIV := bytes.Repeat([]byte{0x02}, 12)
	serverKey := bytes.Repeat([]byte{0x03}, 16)
	serverIV := bytes.Repeat([]byte{0x04}, 12)

	clientWrite, err := cipher.Init13(cs, clientKey, clientIV)
	if err != nil {
		t.Fatalf("Init13 clientWrite: %v", err)
	}
	peerRead, err := cipher.Init13(cs, clientKey, clientIV)
	if err != nil {
		t.Fatalf("Init13 peerRead: %v", err)
	}
	peerWrite, err := cipher.Init13(cs, serverKey, serverIV)
	if err != nil {
		t.Fatalf("Init13 peerWrite: %v", err)
	}
	clientRead, err := cipher.Init13(cs, serverKey, serverIV)
	if err != nil {
		t.Fatalf("Init13 clientRead: %v", err)
	}

	clientTransport := transport.NewTransport(clientNetConn)
	serverTransport := transport.NewTransport(serverNetConn)

	conn := New(clientTransport, version, clientWrite, clientRead)
	return conn, serverTransport, peerWrite, peerRead
}

// sendFromPeer seals innerType/payload under peerWrite and writes one
// TLS 1.3-shaped record (outer type always application_data) to the peer
// transport.
func sendFromPeer(t *testing.T, peer transport.Transport, peerWrite *cipher.Suite, innerType constants.ContentType, payload []byte) {
	t.Helper()
	ciphertext, err := peerWrite.Seal(innerType, payload)
	if err != nil {
		t.Fatalf("peer Seal: %v", err)
	}
	w := record.NewWriter(len(ciphertext) + constants.RecordHeaderSize)
	w.PutRecordHeader(constants.ContentTypeApplicationData, constants.LegacyRecordVersion, len(ciphertext))
	w.PutBytes(ciphertext)
	if err := peer.WriteAll(w.Bytes()); err != nil {
		t.Fatalf("peer WriteAll: %v", err)
	}
}

func TestConnWriteChunksAtMaxPlaintextLength(t *testing.T) {
	conn, peer, _, peerRead := newPipeConns(t, constants.VersionTLS13)

	plaintext := bytes.Repeat([]byte{0xAB}, constants.MaxPlaintextLength+10)

	done := make(chan error, 1)
	go func() {
		_, err := conn.Write(plaintext)
		done <- err
	}()

	reader := record.NewReader(peer)
	var got []byte
	for len(got) < len(plaintext) {
		rec, err := reader.Next()
		if err != nil {
			t.Fatalf("peer Next: %v", err)
		}
		_, pt, err := peerRead.Open(rec.ContentType, rec.Payload)
		if err != nil {
			t.Fatalf("peer Open: %v", err)
		}
		got = append(got, pt...)
	}
	if err := <-done; err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatal("reassembled plaintext does not match original")
	}
}

func TestConnReadSkipsNewSessionTicket(t *testing.T) {
	conn, peer, peerWrite, _ := newPipeConns(t, constants.VersionTLS13)

	ticket := record.NewWriter(16)
	ticket.PutHandshakeHeader(constants.HandshakeTypeNewSessionTicket, 4)
	ticket.PutBytes([]byte{0, 0, 0, 0})
	sendFromPeer(t, peer, peerWrite, constants.ContentTypeHandshake, ticket.Bytes())
	sendFromPeer(t, peer, peerWrite, constants.ContentTypeApplicationData, []byte("hello"))

	got, err := conn.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestConnReadCloseNotifyIsEOF(t *testing.T) {
	conn, peer, peerWrite, _ := newPipeConns(t, constants.VersionTLS13)

	sendFromPeer(t, peer, peerWrite, constants.ContentTypeAlert,
		[]byte{byte(constants.AlertLevelWarning), byte(constants.AlertCloseNotify)})

	_, err := conn.Read()
	if err != io.EOF {
		t.Fatalf("Read err = %v, want io.EOF", err)
	}

	// The Conn is now poisoned; a second Read returns the same error.
	if _, err := conn.Read(); err != io.EOF {
		t.Fatalf("second Read err = %v, want io.EOF", err)
	}
}

func TestConnReadFatalAlertIsError(t *testing.T) {
	conn, peer, peerWrite, _ := newPipeConns(t, constants.VersionTLS13)

	sendFromPeer(t, peer, peerWrite, constants.ContentTypeAlert,
		[]byte{byte(constants.AlertLevelFatal), byte(constants.AlertHandshakeFailure)})

	_, err := conn.Read()
	var alertErr *tlserrors.AlertError
	if !tlserrors.As(err, &alertErr) {
		t.Fatalf("err = %v, want *tlserrors.AlertError", err)
	}
	if alertErr.IsCloseNotify() {
		t.Fatal("handshake_failure should not report as close_notify")
	}
}

func TestConnCloseSendsCloseNotify(t *testing.T) {
	conn, peer, _, peerRead := newPipeConns(t, constants.VersionTLS13)

	go func() { _ = conn.Close() }()

	reader := record.NewReader(peer)
	rec, err := reader.Next()
	if err != nil {
		t.Fatalf("peer Next: %v", err)
	}
	typ, pt, err := peerRead.Open(rec.ContentType, rec.Payload)
	if err != nil {
		t.Fatalf("peer Open: %v", err)
	}
	if typ != constants.ContentTypeAlert {
		t.Fatalf("typ = %v, want alert", typ)
	}
	if len(pt) != 2 || pt[1] != byte(constants.AlertCloseNotify) {
		t.Fatalf("alert payload = %x, want close_notify", pt)
	}
}
