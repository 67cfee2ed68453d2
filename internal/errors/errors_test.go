package errors

import (
	"errors"
	"testing"
)

func TestProtocolErrorUnwrap(t *testing.T) {
	underlying := errors.New("short read")
	err := NewProtocolError(DecodeError, "server_hello", underlying)
	if !Is(err, underlying) {
		t.Fatalf("expected Is to find underlying error through Unwrap")
	}
}

func TestKindOf(t *testing.T) {
	err := NewCryptoError(BadRecordMAC, "aead.open", nil)
	kind, ok := KindOf(err)
	if !ok || kind != BadRecordMAC {
		t.Fatalf("KindOf() = %v, %v; want %v, true", kind, ok, BadRecordMAC)
	}

	if _, ok := KindOf(errors.New("plain")); ok {
		t.Fatalf("KindOf() should not match a plain error")
	}
}

func TestSentinelResourceErrors(t *testing.T) {
	if !Is(ErrEndOfStream, ErrEndOfStream) {
		t.Fatalf("sentinel identity broken")
	}
	kind, ok := KindOf(ErrBufferOverflow)
	if !ok || kind != BufferOverflow {
		t.Fatalf("expected BufferOverflow kind from sentinel")
	}
}

func TestAlertErrorCloseNotify(t *testing.T) {
	closeNotify := &AlertError{Level: 1, Description: 0, Name: "close_notify"}
	if !closeNotify.IsCloseNotify() {
		t.Fatalf("description 0 must be close_notify")
	}
	fatal := &AlertError{Level: 2, Description: 40, Name: "handshake_failure"}
	if fatal.IsCloseNotify() {
		t.Fatalf("handshake_failure must not be treated as close_notify")
	}
}
