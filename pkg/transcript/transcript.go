// Package transcript implements the handshake transcript hash (C4) and the
// two key schedules built on top of it: the TLS 1.2 PRF (RFC 5246 §5) and
// the TLS 1.3 HKDF-Expand-Label / Derive-Secret schedule (RFC 8446 §7.1).
//
// A Transcript is fed every handshake message's wire bytes, in order,
// before the cipher suite is known, so it runs SHA-256 and SHA-384 in
// parallel. Narrow collapses it to the hash the negotiated suite actually
// uses; the other running state is discarded. The two hash families are
// never mixed after that point.
package transcript

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	"golang.org/x/crypto/hkdf"

	"github.com/sara-star-quant/tlsclient/internal/constants"
	tlserrors "github.com/sara-star-quant/tlsclient/internal/errors"
)

// Transcript accumulates handshake message bytes under both candidate
// hashes until Narrow fixes one.
type Transcript struct {
	sha256 hash.Hash
	sha384 hash.Hash
	narrow bool
	use384 bool
}

// New starts a fresh transcript with both hash states empty.
func New() *Transcript {
	return &Transcript{
		sha256: sha256.New(),
		sha384: sha512.New384(),
	}
}

// Update feeds msg (the raw handshake message bytes, header included) into
// the running hash state(s).
func (t *Transcript) Update(msg []byte) {
	if t.narrow {
		if t.use384 {
			t.sha384.Write(msg)
		} else {
			t.sha256.Write(msg)
		}
		return
	}
	t.sha256.Write(msg)
	t.sha384.Write(msg)
}

// Narrow fixes the transcript to the hash implied by suite and discards the
// other running state. Calling Narrow twice is a no-op.
func (t *Transcript) Narrow(suite constants.CipherSuite) {
	if t.narrow {
		return
	}
	t.use384 = suite.UsesSHA384()
	t.narrow = true
	if t.use384 {
		t.sha256 = nil
	} else {
		t.sha384 = nil
	}
}

// Sum returns the running hash over everything fed so far, without
// consuming the transcript (RFC 8446's hash states support exactly this).
func (t *Transcript) Sum() []byte {
	if t.use384 {
		return cloneSum(t.sha384)
	}
	return cloneSum(t.sha256)
}

// HashSize returns the digest size of the narrowed hash (32 or 48). Calling
// this before Narrow returns 0.
func (t *Transcript) HashSize() int {
	if !t.narrow {
		return 0
	}
	if t.use384 {
		return 48
	}
	return 32
}

func (t *Transcript) hashFn() func() hash.Hash {
	if t.use384 {
		return sha512.New384
	}
	return sha256.New
}

func cloneSum(h hash.Hash) []byte {
	return h.Sum(nil)
}

// --- TLS 1.2 PRF (RFC 5246 §5) ---

// PRF12 implements the TLS 1.2 pseudorandom function: P_hash(secret, seed)
// truncated to outputLen bytes, using HMAC with the narrowed hash (SHA-256
// for every suite here except TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA384, which
// uses SHA-384).
func (t *Transcript) PRF12(secret, label, seed []byte, outputLen int) []byte {
	return pHash(t.hashFn(), secret, append(append([]byte{}, label...), seed...), outputLen)
}

func pHash(hashFn func() hash.Hash, secret, seed []byte, outputLen int) []byte {
	h := hmac.New(hashFn, secret)
	h.Write(seed)
	a := h.Sum(nil)

	out := make([]byte, 0, outputLen)
	for len(out) < outputLen {
		h := hmac.New(hashFn, secret)
		h.Write(a)
		h.Write(seed)
		out = append(out, h.Sum(nil)...)

		h = hmac.New(hashFn, secret)
		h.Write(a)
		a = h.Sum(nil)
	}
	return out[:outputLen]
}

// MasterSecret12 derives the 48-byte master_secret from the pre-master
// secret and the two client/server randoms (RFC 5246 §8.1).
func (t *Transcript) MasterSecret12(preMaster, clientRandom, serverRandom []byte) []byte {
	seed := append(append([]byte{}, clientRandom...), serverRandom...)
	return t.PRF12(preMaster, []byte("master secret"), seed, constants.MasterSecretSize)
}

// KeyBlock12 expands masterSecret into the key_material block (client/server
// write MAC keys, write keys, and write IVs as required by the suite),
// RFC 5246 §6.3.
func (t *Transcript) KeyBlock12(masterSecret, clientRandom, serverRandom []byte, length int) []byte {
	seed := append(append([]byte{}, serverRandom...), clientRandom...)
	return t.PRF12(masterSecret, []byte("key expansion"), seed, length)
}

// ClientFinished12 computes the client Finished verify_data (RFC 5246
// §7.4.9): PRF(master_secret, "client finished", Hash(handshake_messages))[0:12].
func (t *Transcript) ClientFinished12(masterSecret []byte) []byte {
	return t.PRF12(masterSecret, []byte("client finished"), t.Sum(), 12)
}

// ServerFinished12 computes the server Finished verify_data the same way,
// with the "server finished" label.
func (t *Transcript) ServerFinished12(masterSecret []byte) []byte {
	return t.PRF12(masterSecret, []byte("server finished"), t.Sum(), 12)
}

// --- TLS 1.3 key schedule (RFC 8446 §7.1) ---

// HkdfExpandLabel implements HKDF-Expand-Label(secret, label, context, length).
func (t *Transcript) HkdfExpandLabel(secret []byte, label string, context []byte, length int) []byte {
	return hkdfExpandLabel(t.hashFn(), secret, label, context, length)
}

func hkdfExpandLabel(hashFn func() hash.Hash, secret []byte, label string, context []byte, length int) []byte {
	w := newHkdfLabelWriter()
	w.putUint16(uint16(length))
	fullLabel := "tls13 " + label
	w.putVector8([]byte(fullLabel))
	w.putVector8(context)

	out := make([]byte, length)
	r := hkdf.Expand(hashFn, secret, w.Bytes())
	_, _ = r.Read(out)
	return out
}

// DeriveSecret implements Derive-Secret(secret, label, messages) where
// messages is the transcript hash over everything fed so far.
func (t *Transcript) DeriveSecret(secret []byte, label string) []byte {
	return t.HkdfExpandLabel(secret, label, t.Sum(), t.HashSize())
}

// DeriveSecretWithHash is DeriveSecret but against an explicit transcript
// hash snapshot rather than the live running state (used to derive a
// secret from a transcript point earlier than "now", including the empty
// transcript the "derived" steps of the TLS 1.3 schedule hash).
func (t *Transcript) DeriveSecretWithHash(secret []byte, label string, transcriptHash []byte) []byte {
	return t.HkdfExpandLabel(secret, label, transcriptHash, t.HashSize())
}

// EarlySecret13 is HKDF-Extract(0, 0) — the root of the TLS 1.3 schedule
// when no PSK is in use.
func (t *Transcript) EarlySecret13() []byte {
	zeros := make([]byte, t.HashSize())
	return hkdfExtract(t.hashFn(), zeros, zeros)
}

// HandshakeSecret13 is HKDF-Extract(derived(earlySecret), ecdhe_secret).
func (t *Transcript) HandshakeSecret13(earlySecret, sharedSecret []byte) []byte {
	derived := t.DeriveSecretWithHash(earlySecret, "derived", t.hashFn()().Sum(nil))
	return hkdfExtract(t.hashFn(), derived, sharedSecret)
}

// MasterSecret13 is HKDF-Extract(derived(handshakeSecret), 0).
func (t *Transcript) MasterSecret13(handshakeSecret []byte) []byte {
	derived := t.DeriveSecretWithHash(handshakeSecret, "derived", t.hashFn()().Sum(nil))
	zeros := make([]byte, t.HashSize())
	return hkdfExtract(t.hashFn(), derived, zeros)
}

func hkdfExtract(hashFn func() hash.Hash, salt, ikm []byte) []byte {
	h := hmac.New(hashFn, salt)
	h.Write(ikm)
	return h.Sum(nil)
}

// TrafficKeyIV derives the AEAD key and IV from a traffic secret
// (RFC 8446 §7.3).
func (t *Transcript) TrafficKeyIV(trafficSecret []byte, keyLen, ivLen int) (key, iv []byte) {
	key = t.HkdfExpandLabel(trafficSecret, "key", nil, keyLen)
	iv = t.HkdfExpandLabel(trafficSecret, "iv", nil, ivLen)
	return key, iv
}

// Finished13 computes the TLS 1.3 Finished verify_data: HMAC(finishedKey,
// transcript_hash) where finishedKey = HKDF-Expand-Label(baseKey,
// "finished", "", Hash.length) (RFC 8446 §4.4.4).
func (t *Transcript) Finished13(baseKey []byte) []byte {
	finishedKey := t.HkdfExpandLabel(baseKey, "finished", nil, t.HashSize())
	h := hmac.New(t.hashFn(), finishedKey)
	h.Write(t.Sum())
	return h.Sum(nil)
}

// CertificateVerifyContext builds the exact byte string a TLS 1.3 server
// signs over for CertificateVerify (RFC 8446 §4.4.3): 64 spaces, the
// context string, a zero byte, then the transcript hash.
func CertificateVerifyContext(transcriptHash []byte) []byte {
	pad := make([]byte, 64)
	for i := range pad {
		pad[i] = 0x20
	}
	buf := append([]byte{}, pad...)
	buf = append(buf, []byte("TLS 1.3, server CertificateVerify")...)
	buf = append(buf, 0x00)
	buf = append(buf, transcriptHash...)
	return buf
}

// hkdfLabelWriter builds the HkdfLabel struct wire encoding
// (length uint16, label vector<1..255>, context vector<0..255>).
type hkdfLabelWriter struct {
	buf []byte
}

func newHkdfLabelWriter() *hkdfLabelWriter { return &hkdfLabelWriter{} }

func (w *hkdfLabelWriter) putUint16(v uint16) {
	w.buf = append(w.buf, byte(v>>8), byte(v))
}

func (w *hkdfLabelWriter) putVector8(v []byte) {
	if len(v) > 255 {
		panic(tlserrors.NewProtocolError(tlserrors.IllegalParameter, "transcript.hkdfLabelWriter", nil))
	}
	w.buf = append(w.buf, byte(len(v)))
	w.buf = append(w.buf, v...)
}

func (w *hkdfLabelWriter) Bytes() []byte { return w.buf }
