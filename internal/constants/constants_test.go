package constants

import "testing"

func TestCipherSuiteIsTLS13(t *testing.T) {
	cases := []struct {
		suite CipherSuite
		want  bool
	}{
		{TLSAES128GCMSHA256, true},
		{TLSAES256GCMSHA384, true},
		{TLSChaCha20Poly1305SHA256, true},
		{TLSECDHERSAWithAES128CBCSHA, false},
		{TLSRSAWithAES128CBCSHA, false},
	}
	for _, c := range cases {
		if got := c.suite.IsTLS13(); got != c.want {
			t.Errorf("%s.IsTLS13() = %v, want %v", c.suite, got, c.want)
		}
	}
}

func TestContentTypeString(t *testing.T) {
	if ContentTypeHandshake.String() != "handshake" {
		t.Fatalf("unexpected string for handshake content type: %s", ContentTypeHandshake)
	}
	if ContentType(0xff).String() != "unknown_content_type" {
		t.Fatalf("expected fallback string for unknown content type")
	}
}

func TestNamedGroupString(t *testing.T) {
	if GroupX25519Kyber768Draft.String() != "x25519_kyber768" {
		t.Fatalf("unexpected string for hybrid group: %s", GroupX25519Kyber768Draft)
	}
}

func TestLegacyRecordVersionIsTLS12(t *testing.T) {
	if LegacyRecordVersion != VersionTLS12 {
		t.Fatalf("legacy record version must stay 1.2 on the wire")
	}
}
