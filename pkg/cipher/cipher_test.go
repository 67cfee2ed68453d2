package cipher

import (
	"bytes"
	"testing"

	"github.com/sara-star-quant/tlsclient/internal/constants"
)

func TestAEAD12GCMRoundTrip(t *testing.T) {
	cs := constants.TLSECDHERSAWithAES128GCMSHA256
	key := bytes.Repeat([]byte{0x01}, 16)
	iv := bytes.Repeat([]byte{0x02}, 4)

	writer, err := Init12(cs, nil, key, iv)
	if err != nil {
		t.Fatalf("Init12 writer: %v", err)
	}
	reader, err := Init12(cs, nil, key, iv)
	if err != nil {
		t.Fatalf("Init12 reader: %v", err)
	}

	plaintext := []byte("application data payload")
	ct, err := writer.Seal(constants.ContentTypeApplicationData, plaintext)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	_, pt, err := reader.Open(constants.ContentTypeApplicationData, ct)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(pt, plaintext) {
		t.Fatalf("round trip mismatch: got %q want %q", pt, plaintext)
	}
}

func TestAEAD12ChaChaRoundTrip(t *testing.T) {
	cs := constants.TLSECDHERSAWithChaCha20Poly1305
	key := bytes.Repeat([]byte{0x03}, 32)
	iv := bytes.Repeat([]byte{0x04}, 12)

	writer, err := Init12(cs, nil, key, iv)
	if err != nil {
		t.Fatalf("Init12 writer: %v", err)
	}
	reader, err := Init12(cs, nil, key, iv)
	if err != nil {
		t.Fatalf("Init12 reader: %v", err)
	}

	plaintext := []byte("hello over chacha")
	ct, err := writer.Seal(constants.ContentTypeHandshake, plaintext)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	_, pt, err := reader.Open(constants.ContentTypeHandshake, ct)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(pt, plaintext) {
		t.Fatalf("round trip mismatch")
	}
}

func TestAEAD13RoundTripRecoversInnerType(t *testing.T) {
	cs := constants.TLSAES128GCMSHA256
	key := bytes.Repeat([]byte{0x05}, 16)
	iv := bytes.Repeat([]byte{0x06}, 12)

	writer, err := Init13(cs, key, iv)
	if err != nil {
		t.Fatalf("Init13 writer: %v", err)
	}
	reader, err := Init13(cs, key, iv)
	if err != nil {
		t.Fatalf("Init13 reader: %v", err)
	}

	plaintext := []byte("finished message bytes")
	ct, err := writer.Seal(constants.ContentTypeHandshake, plaintext)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	gotType, pt, err := reader.Open(constants.ContentTypeApplicationData, ct)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if gotType != constants.ContentTypeHandshake {
		t.Fatalf("expected recovered type handshake, got %v", gotType)
	}
	if !bytes.Equal(pt, plaintext) {
		t.Fatalf("round trip mismatch")
	}
}

func TestAEAD13SequenceAdvancesNonce(t *testing.T) {
	cs := constants.TLSAES128GCMSHA256
	key := bytes.Repeat([]byte{0x07}, 16)
	iv := bytes.Repeat([]byte{0x08}, 12)

	writer, _ := Init13(cs, key, iv)
	ct1, _ := writer.Seal(constants.ContentTypeApplicationData, []byte("msg one"))
	ct2, _ := writer.Seal(constants.ContentTypeApplicationData, []byte("msg one"))
	if bytes.Equal(ct1, ct2) {
		t.Fatalf("identical plaintexts under advancing sequence numbers must not produce identical ciphertext")
	}
}

func TestCBCHMACRoundTripSHA1(t *testing.T) {
	cs := constants.TLSECDHERSAWithAES128CBCSHA
	macKey := bytes.Repeat([]byte{0x09}, 20)
	key := bytes.Repeat([]byte{0x0a}, 16)

	writer, err := Init12(cs, macKey, key, nil)
	if err != nil {
		t.Fatalf("Init12 writer: %v", err)
	}
	reader, err := Init12(cs, macKey, key, nil)
	if err != nil {
		t.Fatalf("Init12 reader: %v", err)
	}

	plaintext := []byte("a CBC protected handshake finished message")
	ct, err := writer.Seal(constants.ContentTypeHandshake, plaintext)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	_, pt, err := reader.Open(constants.ContentTypeHandshake, ct)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(pt, plaintext) {
		t.Fatalf("round trip mismatch: got %q want %q", pt, plaintext)
	}
}

func TestCBCHMACRoundTripSHA384(t *testing.T) {
	cs := constants.TLSECDHERSAWithAES256CBCSHA384
	macKey := bytes.Repeat([]byte{0x0b}, 48)
	key := bytes.Repeat([]byte{0x0c}, 32)

	writer, err := Init12(cs, macKey, key, nil)
	if err != nil {
		t.Fatalf("Init12 writer: %v", err)
	}
	reader, err := Init12(cs, macKey, key, nil)
	if err != nil {
		t.Fatalf("Init12 reader: %v", err)
	}

	plaintext := []byte("short")
	ct, err := writer.Seal(constants.ContentTypeApplicationData, plaintext)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	_, pt, err := reader.Open(constants.ContentTypeApplicationData, ct)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(pt, plaintext) {
		t.Fatalf("round trip mismatch")
	}
}

func TestCBCHMACDetectsTamperedCiphertext(t *testing.T) {
	cs := constants.TLSECDHERSAWithAES128CBCSHA
	macKey := bytes.Repeat([]byte{0x0d}, 20)
	key := bytes.Repeat([]byte{0x0e}, 16)

	writer, _ := Init12(cs, macKey, key, nil)
	reader, _ := Init12(cs, macKey, key, nil)

	ct, err := writer.Seal(constants.ContentTypeApplicationData, []byte("tamper me"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	ct[len(ct)-1] ^= 0xff

	if _, _, err := reader.Open(constants.ContentTypeApplicationData, ct); err == nil {
		t.Fatalf("expected MAC failure on tampered ciphertext")
	}
}

func TestKeyMaterialSizesMatchSuiteFamily(t *testing.T) {
	mac, key, iv, err := KeyMaterialSizes(constants.TLSECDHERSAWithAES128GCMSHA256)
	if err != nil {
		t.Fatalf("KeyMaterialSizes: %v", err)
	}
	if mac != 0 || key != 16 || iv != 4 {
		t.Fatalf("unexpected GCM sizes: mac=%d key=%d iv=%d", mac, key, iv)
	}

	mac, key, iv, err = KeyMaterialSizes(constants.TLSECDHERSAWithAES256CBCSHA384)
	if err != nil {
		t.Fatalf("KeyMaterialSizes: %v", err)
	}
	if mac != 48 || key != 32 || iv != 16 {
		t.Fatalf("unexpected CBC-SHA384 sizes: mac=%d key=%d iv=%d", mac, key, iv)
	}
}
