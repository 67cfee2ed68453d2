package handshake

import (
	"crypto/subtle"
	"crypto/x509"
	"time"

	"github.com/sara-star-quant/tlsclient/internal/constants"
	tlserrors "github.com/sara-star-quant/tlsclient/internal/errors"
	"github.com/sara-star-quant/tlsclient/pkg/certchain"
	"github.com/sara-star-quant/tlsclient/pkg/cipher"
	"github.com/sara-star-quant/tlsclient/pkg/kex"
	"github.com/sara-star-quant/tlsclient/pkg/record"
	"github.com/sara-star-quant/tlsclient/pkg/sigverify"
	"github.com/sara-star-quant/tlsclient/pkg/transcript"
	"github.com/sara-star-quant/tlsclient/pkg/transport"
)

// runTLS13 drives the rest of a TLS 1.3 handshake after ServerHello has
// been read and fed to tr: it derives the handshake traffic secrets from
// the ECDHE shared secret, reads EncryptedExtensions / Certificate /
// CertificateVerify / Finished (all encrypted, possibly defragmented across
// records), verifies the server's signature and Finished, then derives the
// application traffic secrets and sends the client's own
// ChangeCipherSpec / Finished flight.
func runTLS13(t transport.Transport, cfg *Config, sh *serverHello, keys *kex.Set, tr *transcript.Transcript, fr *flightReader) (*Result, error) {
	kp, ok := keys.Get(sh.keyShareGroup)
	if !ok {
		return nil, tlserrors.NewProtocolError(tlserrors.IllegalParameter, "handshake.runTLS13", nil)
	}
	sharedSecret, err := kp.PreMasterSecret(sh.keyShareEntry)
	if err != nil {
		return nil, err
	}

	_, keyLen, ivLen, err := cipher.KeyMaterialSizes(sh.cipherSuite)
	if err != nil {
		return nil, err
	}

	earlySecret := tr.EarlySecret13()
	handshakeSecret := tr.HandshakeSecret13(earlySecret, sharedSecret)
	clientHSTraffic := tr.DeriveSecret(handshakeSecret, "c hs traffic")
	serverHSTraffic := tr.DeriveSecret(handshakeSecret, "s hs traffic")

	clientHSKey, clientHSIV := tr.TrafficKeyIV(clientHSTraffic, keyLen, ivLen)
	serverHSKey, serverHSIV := tr.TrafficKeyIV(serverHSTraffic, keyLen, ivLen)

	hsWriteCipher, err := cipher.Init13(sh.cipherSuite, clientHSKey, clientHSIV)
	if err != nil {
		return nil, err
	}
	hsReadCipher, err := cipher.Init13(sh.cipherSuite, serverHSKey, serverHSIV)
	if err != nil {
		return nil, err
	}
	fr.enableDecryption(hsReadCipher)

	sigScheme, err := readServerFlight13(fr, tr, cfg)
	if err != nil {
		return nil, err
	}

	expectedServerFinished := tr.Finished13(serverHSTraffic)
	typ, body, raw, err := fr.nextHandshakeMessage()
	if err != nil {
		return nil, err
	}
	if typ != constants.HandshakeTypeFinished {
		return nil, tlserrors.NewProtocolError(tlserrors.UnexpectedMessage, "handshake.runTLS13.server_finished", nil)
	}
	if subtle.ConstantTimeCompare(expectedServerFinished, body) != 1 {
		return nil, tlserrors.NewCryptoError(tlserrors.BadRecordMAC, "handshake.runTLS13.server_finished", nil)
	}
	tr.Update(raw)

	masterSecret := tr.MasterSecret13(handshakeSecret)
	clientAppTraffic := tr.DeriveSecret(masterSecret, "c ap traffic")
	serverAppTraffic := tr.DeriveSecret(masterSecret, "s ap traffic")

	clientFinishedVerifyData := tr.Finished13(clientHSTraffic)
	finMsg := record.NewWriter(4 + 48) // header + largest verify_data (SHA-384)
	finMsg.PutHandshakeHeader(constants.HandshakeTypeFinished, len(clientFinishedVerifyData))
	finMsg.PutBytes(clientFinishedVerifyData)
	if finMsg.Err() != nil {
		return nil, tlserrors.NewResourceError(tlserrors.BufferOverflow, finMsg.Err())
	}
	tr.Update(finMsg.Bytes())

	if err := writePlaintextRecord(t, constants.ContentTypeChangeCipherSpec, []byte{0x01}); err != nil {
		return nil, err
	}

	encFin, err := hsWriteCipher.Seal(constants.ContentTypeHandshake, finMsg.Bytes())
	if err != nil {
		return nil, err
	}
	if err := writePlaintextRecord(t, constants.ContentTypeApplicationData, encFin); err != nil {
		return nil, err
	}

	clientAppKey, clientAppIV := tr.TrafficKeyIV(clientAppTraffic, keyLen, ivLen)
	serverAppKey, serverAppIV := tr.TrafficKeyIV(serverAppTraffic, keyLen, ivLen)

	appWriteCipher, err := cipher.Init13(sh.cipherSuite, clientAppKey, clientAppIV)
	if err != nil {
		return nil, err
	}
	appReadCipher, err := cipher.Init13(sh.cipherSuite, serverAppKey, serverAppIV)
	if err != nil {
		return nil, err
	}

	return &Result{
		Version:         constants.VersionTLS13,
		CipherSuite:     sh.cipherSuite,
		NamedGroup:      sh.keyShareGroup,
		SignatureScheme: sigScheme,
		WriteCipher:     appWriteCipher,
		ReadCipher:      appReadCipher,
	}, nil
}

func writePlaintextRecord(t transport.Transport, ct constants.ContentType, payload []byte) error {
	w := record.NewWriter(len(payload) + constants.RecordHeaderSize)
	w.PutRecordHeader(ct, constants.LegacyRecordVersion, len(payload))
	w.PutBytes(payload)
	if w.Err() != nil {
		return tlserrors.NewResourceError(tlserrors.BufferOverflow, w.Err())
	}
	return t.WriteAll(w.Bytes())
}

// readServerFlight13 consumes EncryptedExtensions, Certificate, and
// CertificateVerify (in that order; CertificateRequest is never sent to a
// client that didn't request client-cert auth and is not expected here),
// verifying the chain and the server's signature, and returns the negotiated
// signature scheme (so the caller can report it on Result).
func readServerFlight13(fr *flightReader, tr *transcript.Transcript, cfg *Config) (constants.SignatureScheme, error) {
	typ, _, raw, err := fr.nextHandshakeMessage()
	if err != nil {
		return 0, err
	}
	if typ != constants.HandshakeTypeEncryptedExtensions {
		return 0, tlserrors.NewProtocolError(tlserrors.UnexpectedMessage, "handshake.readServerFlight13", nil)
	}
	tr.Update(raw)

	typ, body, raw, err := fr.nextHandshakeMessage()
	if err != nil {
		return 0, err
	}
	if typ != constants.HandshakeTypeCertificate {
		return 0, tlserrors.NewProtocolError(tlserrors.UnexpectedMessage, "handshake.readServerFlight13", nil)
	}
	tr.Update(raw)

	certs, err := parseCertificateList13(body)
	if err != nil {
		return 0, err
	}
	result, err := certchain.Validate(certs, cfg.Host, cfg.CABundle, time.Now())
	if err != nil {
		return 0, err
	}

	transcriptHashBeforeCV := tr.Sum()
	typ, body, raw, err = fr.nextHandshakeMessage()
	if err != nil {
		return 0, err
	}
	if typ != constants.HandshakeTypeCertificateVerify {
		return 0, tlserrors.NewProtocolError(tlserrors.UnexpectedMessage, "handshake.readServerFlight13", nil)
	}
	d := record.NewDecoder(body)
	scheme, err := d.Uint16()
	if err != nil {
		return 0, tlserrors.NewProtocolError(tlserrors.DecodeError, "handshake.CertificateVerify", err)
	}
	signature, err := d.Vector16()
	if err != nil {
		return 0, tlserrors.NewProtocolError(tlserrors.DecodeError, "handshake.CertificateVerify", err)
	}
	if err := d.ExpectEOF(); err != nil {
		return 0, err
	}

	sigScheme := constants.SignatureScheme(scheme)
	signedData := transcript.CertificateVerifyContext(transcriptHashBeforeCV)
	if err := sigverify.Verify(sigScheme, result.LeafPublicKey, signedData, signature); err != nil {
		return 0, err
	}
	tr.Update(raw)

	return sigScheme, nil
}

// parseCertificateList13 decodes a TLS 1.3 Certificate message body:
// certificate_request_context vector<0..255> (empty for a server
// Certificate) followed by a vector<0..2^24-1> of CertificateEntry
// (cert_data vector24, extensions vector16, the latter ignored).
func parseCertificateList13(body []byte) ([]*x509.Certificate, error) {
	d := record.NewDecoder(body)
	if _, err := d.Vector8(); err != nil {
		return nil, tlserrors.NewProtocolError(tlserrors.DecodeError, "handshake.parseCertificateList13", err)
	}
	listBytes, err := d.Vector24()
	if err != nil {
		return nil, tlserrors.NewProtocolError(tlserrors.DecodeError, "handshake.parseCertificateList13", err)
	}
	if err := d.ExpectEOF(); err != nil {
		return nil, err
	}

	ld := record.NewDecoder(listBytes)
	var certs []*x509.Certificate
	for ld.Remaining() > 0 {
		der, err := ld.Vector24()
		if err != nil {
			return nil, tlserrors.NewProtocolError(tlserrors.DecodeError, "handshake.parseCertificateList13", err)
		}
		if _, err := ld.Vector16(); err != nil { // per-certificate extensions, ignored
			return nil, tlserrors.NewProtocolError(tlserrors.DecodeError, "handshake.parseCertificateList13", err)
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, tlserrors.NewPKIError(tlserrors.CertificateSignatureInvalid, err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, tlserrors.NewPKIError(tlserrors.CertificateSignatureInvalid, nil)
	}
	return certs, nil
}
