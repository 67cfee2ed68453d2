package transcript

import (
	"bytes"
	"testing"

	"github.com/sara-star-quant/tlsclient/internal/constants"
)

func TestNarrowPicksSHA256BySuiteDefault(t *testing.T) {
	tr := New()
	tr.Update([]byte("client_hello"))
	tr.Update([]byte("server_hello"))
	tr.Narrow(constants.TLSECDHERSAWithAES128GCMSHA256)
	if tr.HashSize() != 32 {
		t.Fatalf("expected SHA-256 (32 bytes), got %d", tr.HashSize())
	}
}

func TestNarrowPicksSHA384ForSHA384Suite(t *testing.T) {
	tr := New()
	tr.Update([]byte("client_hello"))
	tr.Narrow(constants.TLSECDHERSAWithAES256CBCSHA384)
	if tr.HashSize() != 48 {
		t.Fatalf("expected SHA-384 (48 bytes), got %d", tr.HashSize())
	}
}

func TestSumIsDeterministicAndNonDestructive(t *testing.T) {
	tr := New()
	tr.Update([]byte("hello"))
	tr.Narrow(constants.TLSAES128GCMSHA256)
	s1 := tr.Sum()
	s2 := tr.Sum()
	if !bytes.Equal(s1, s2) {
		t.Fatalf("Sum() not idempotent: %x vs %x", s1, s2)
	}
}

func TestPRF12MatchesKnownLength(t *testing.T) {
	tr := New()
	tr.Narrow(constants.TLSECDHERSAWithAES128GCMSHA256)
	out := tr.PRF12([]byte("secret"), []byte("label"), []byte("seed"), 40)
	if len(out) != 40 {
		t.Fatalf("expected 40 bytes, got %d", len(out))
	}
}

func TestMasterSecret12IsFixedLength(t *testing.T) {
	tr := New()
	tr.Narrow(constants.TLSECDHERSAWithAES128GCMSHA256)
	preMaster := bytes.Repeat([]byte{0x42}, 32)
	cr := bytes.Repeat([]byte{0x01}, constants.ClientRandomSize)
	sr := bytes.Repeat([]byte{0x02}, constants.ServerRandomSize)
	ms := tr.MasterSecret12(preMaster, cr, sr)
	if len(ms) != constants.MasterSecretSize {
		t.Fatalf("expected %d-byte master secret, got %d", constants.MasterSecretSize, len(ms))
	}
}

func TestClientServerFinished12Differ(t *testing.T) {
	tr := New()
	tr.Update([]byte("transcript-bytes"))
	tr.Narrow(constants.TLSECDHERSAWithAES128GCMSHA256)
	ms := bytes.Repeat([]byte{0x07}, constants.MasterSecretSize)
	cf := tr.ClientFinished12(ms)
	sf := tr.ServerFinished12(ms)
	if len(cf) != 12 || len(sf) != 12 {
		t.Fatalf("expected 12-byte verify_data, got %d/%d", len(cf), len(sf))
	}
	if bytes.Equal(cf, sf) {
		t.Fatalf("client and server finished must differ (different labels)")
	}
}

func TestHkdfExpandLabelRespectsLength(t *testing.T) {
	tr := New()
	tr.Narrow(constants.TLSAES128GCMSHA256)
	out := tr.HkdfExpandLabel(bytes.Repeat([]byte{0x01}, 32), "key", nil, 16)
	if len(out) != 16 {
		t.Fatalf("expected 16 bytes, got %d", len(out))
	}
}

func TestTLS13KeyScheduleChain(t *testing.T) {
	tr := New()
	tr.Update([]byte("client_hello||server_hello"))
	tr.Narrow(constants.TLSAES128GCMSHA256)

	early := tr.EarlySecret13()
	if len(early) != 32 {
		t.Fatalf("expected 32-byte early secret, got %d", len(early))
	}

	sharedSecret := bytes.Repeat([]byte{0x09}, 32)
	handshakeSecret := tr.HandshakeSecret13(early, sharedSecret)
	if len(handshakeSecret) != 32 {
		t.Fatalf("expected 32-byte handshake secret, got %d", len(handshakeSecret))
	}

	clientHSTraffic := tr.DeriveSecret(handshakeSecret, "c hs traffic")
	serverHSTraffic := tr.DeriveSecret(handshakeSecret, "s hs traffic")
	if bytes.Equal(clientHSTraffic, serverHSTraffic) {
		t.Fatalf("client/server handshake traffic secrets must differ")
	}

	masterSecret := tr.MasterSecret13(handshakeSecret)
	if len(masterSecret) != 32 {
		t.Fatalf("expected 32-byte master secret, got %d", len(masterSecret))
	}

	key, iv := tr.TrafficKeyIV(clientHSTraffic, 16, 12)
	if len(key) != 16 || len(iv) != 12 {
		t.Fatalf("unexpected key/iv lengths: %d/%d", len(key), len(iv))
	}

	finished := tr.Finished13(clientHSTraffic)
	if len(finished) != 32 {
		t.Fatalf("expected 32-byte SHA-256 Finished, got %d", len(finished))
	}
}

func TestCertificateVerifyContextShape(t *testing.T) {
	hash := bytes.Repeat([]byte{0xab}, 32)
	ctx := CertificateVerifyContext(hash)
	if len(ctx) != 64+len("TLS 1.3, server CertificateVerify")+1+32 {
		t.Fatalf("unexpected context length: %d", len(ctx))
	}
	for _, b := range ctx[:64] {
		if b != 0x20 {
			t.Fatalf("expected 64 leading spaces")
		}
	}
	if !bytes.HasSuffix(ctx, hash) {
		t.Fatalf("expected transcript hash suffix")
	}
}
