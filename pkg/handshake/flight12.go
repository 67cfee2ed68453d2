package handshake

import (
	"crypto/rsa"
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

// serverFlight12 is the material readServerFlight12 extracts from
// Certificate, the optional ServerKeyExchange, and ServerHelloDone.
type serverFlight12 struct {
	leafPublicKey  interface{}
	group          constants.NamedGroup // 0 for an RSA key-transport suite
	serverShare    []byte
	sigScheme      constants.SignatureScheme // 0 when no ServerKeyExchange was sent
	signature      []byte
	signedPreamble []byte
}

// runTLS12 drives the rest of a TLS 1.2 handshake after ServerHello has
// already been read and fed to tr: Certificate, an optional
// ServerKeyExchange (ECDHE suites only), ServerHelloDone, then the
// client's ClientKeyExchange / ChangeCipherSpec / Finished flight, and
// finally the server's ChangeCipherSpec / Finished.
func runTLS12(t transport.Transport, cfg *Config, sh *serverHello, clientRandom []byte, keys *kex.Set, tr *transcript.Transcript, fr *flightReader) (*Result, error) {
	flight, err := readServerFlight12(fr, tr, sh, clientRandom, cfg)
	if err != nil {
		return nil, err
	}

	if flight.sigScheme != 0 {
		if err := sigverify.Verify(flight.sigScheme, flight.leafPublicKey, flight.signedPreamble, flight.signature); err != nil {
			return nil, err
		}
	}

	preMaster, ckeBody, err := buildClientKeyExchange12(cfg, keys, flight)
	if err != nil {
		return nil, err
	}

	masterSecret := tr.MasterSecret12(preMaster, clientRandom, sh.random)

	writeRecord := func(ct constants.ContentType, payload []byte) error {
		w := record.NewWriter(len(payload) + constants.RecordHeaderSize)
		w.PutRecordHeader(ct, constants.LegacyRecordVersion, len(payload))
		w.PutBytes(payload)
		if w.Err() != nil {
			return tlserrors.NewResourceError(tlserrors.BufferOverflow, w.Err())
		}
		return t.WriteAll(w.Bytes())
	}

	ckeMsg := record.NewWriter(len(ckeBody) + 4)
	ckeMsg.PutHandshakeHeader(constants.HandshakeTypeClientKeyExchange, len(ckeBody))
	ckeMsg.PutBytes(ckeBody)
	if ckeMsg.Err() != nil {
		return nil, tlserrors.NewResourceError(tlserrors.BufferOverflow, ckeMsg.Err())
	}
	tr.Update(ckeMsg.Bytes())
	if err := writeRecord(constants.ContentTypeHandshake, ckeMsg.Bytes()); err != nil {
		return nil, err
	}

	if err := writeRecord(constants.ContentTypeChangeCipherSpec, []byte{0x01}); err != nil {
		return nil, err
	}

	macKeyLen, keyLen, ivLen, err := cipher.KeyMaterialSizes(sh.cipherSuite)
	if err != nil {
		return nil, err
	}
	perDirection := macKeyLen + keyLen + ivLen
	keyBlock := tr.KeyBlock12(masterSecret, clientRandom, sh.random, perDirection*2)

	off := 0
	take := func(n int) []byte { b := keyBlock[off : off+n]; off += n; return b }
	clientMAC := take(macKeyLen)
	serverMAC := take(macKeyLen)
	clientKey := take(keyLen)
	serverKey := take(keyLen)
	clientIV := take(ivLen)
	serverIV := take(ivLen)

	writeCipher, err := cipher.Init12(sh.cipherSuite, clientMAC, clientKey, clientIV)
	if err != nil {
		return nil, err
	}
	readCipher, err := cipher.Init12(sh.cipherSuite, serverMAC, serverKey, serverIV)
	if err != nil {
		return nil, err
	}

	clientFinished := tr.ClientFinished12(masterSecret)
	finMsg := record.NewWriter(16)
	finMsg.PutHandshakeHeader(constants.HandshakeTypeFinished, len(clientFinished))
	finMsg.PutBytes(clientFinished)
	if finMsg.Err() != nil {
		return nil, tlserrors.NewResourceError(tlserrors.BufferOverflow, finMsg.Err())
	}
	tr.Update(finMsg.Bytes())

	encFin, err := writeCipher.Seal(constants.ContentTypeHandshake, finMsg.Bytes())
	if err != nil {
		return nil, err
	}
	if err := writeRecord(constants.ContentTypeHandshake, encFin); err != nil {
		return nil, err
	}

	ccsPayload, err := fr.expectRecord(constants.ContentTypeChangeCipherSpec)
	if err != nil {
		return nil, err
	}
	if len(ccsPayload) != 1 || ccsPayload[0] != 0x01 {
		return nil, tlserrors.NewProtocolError(tlserrors.UnexpectedMessage, "handshake.runTLS12.ccs", nil)
	}

	// From here the server's records are encrypted, but (unlike TLS 1.3)
	// still carry their real content type in the clear-text record header.
	rec, err := fr.r.Next()
	if err != nil {
		return nil, err
	}
	_, plain, err := readCipher.Open(rec.ContentType, rec.Payload)
	if err != nil {
		return nil, err
	}
	if rec.ContentType == constants.ContentTypeAlert {
		alert, aerr := record.DecodeAlert(plain)
		if aerr != nil {
			return nil, aerr
		}
		return nil, alert
	}
	if rec.ContentType != constants.ContentTypeHandshake {
		return nil, tlserrors.NewProtocolError(tlserrors.UnexpectedMessage, "handshake.runTLS12.server_finished", nil)
	}
	serverFinPlain := plain

	d := record.NewDecoder(serverFinPlain)
	typ, err := d.Uint8()
	if err != nil || constants.HandshakeType(typ) != constants.HandshakeTypeFinished {
		return nil, tlserrors.NewProtocolError(tlserrors.UnexpectedMessage, "handshake.runTLS12.server_finished", nil)
	}
	bodyLen, err := d.Uint24()
	if err != nil {
		return nil, tlserrors.NewProtocolError(tlserrors.DecodeError, "handshake.runTLS12.server_finished", err)
	}
	verifyData, err := d.Bytes(int(bodyLen))
	if err != nil {
		return nil, tlserrors.NewProtocolError(tlserrors.DecodeError, "handshake.runTLS12.server_finished", err)
	}

	expected := tr.ServerFinished12(masterSecret)
	if subtle.ConstantTimeCompare(expected, verifyData) != 1 {
		return nil, tlserrors.NewCryptoError(tlserrors.BadRecordMAC, "handshake.runTLS12.server_finished", nil)
	}
	tr.Update(serverFinPlain)

	return &Result{
		Version:         constants.VersionTLS12,
		CipherSuite:     sh.cipherSuite,
		NamedGroup:      flight.group,
		SignatureScheme: flight.sigScheme,
		WriteCipher:     writeCipher,
		ReadCipher:      readCipher,
	}, nil
}

// buildClientKeyExchange12 derives the pre-master secret and serializes the
// ClientKeyExchange body, branching on whether the negotiated suite is
// ECDHE (group != 0, an ephemeral public key) or RSA key transport (an
// encrypted pre-master).
func buildClientKeyExchange12(cfg *Config, keys *kex.Set, flight *serverFlight12) (preMaster, ckeBody []byte, err error) {
	if flight.group != 0 {
		kp, ok := keys.Get(flight.group)
		if !ok {
			return nil, nil, tlserrors.NewProtocolError(tlserrors.IllegalParameter, "handshake.buildClientKeyExchange12", nil)
		}
		preMaster, err = kp.PreMasterSecret(flight.serverShare)
		if err != nil {
			return nil, nil, err
		}
		pub := kp.PublicKeyBytes()
		w := record.NewWriter(len(pub) + 1)
		w.PutVector8(pub)
		return preMaster, w.Bytes(), nil
	}

	rsaPub, ok := flight.leafPublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, nil, tlserrors.NewProtocolError(tlserrors.IllegalParameter, "handshake.buildClientKeyExchange12", nil)
	}
	rnd := cfg.Random
	if rnd == nil {
		rnd = transport.CryptoRandom{}
	}
	preMaster, err = kex.NewRSAPreMaster(rnd)
	if err != nil {
		return nil, nil, err
	}
	encrypted, err := kex.EncryptRSAPreMaster(rsaPub, preMaster)
	if err != nil {
		return nil, nil, err
	}
	w := record.NewWriter(len(encrypted) + 2)
	w.PutVector16(encrypted)
	return preMaster, w.Bytes(), nil
}

// readServerFlight12 consumes Certificate, the optional ServerKeyExchange,
// and ServerHelloDone, validating the certificate chain and returning the
// material needed to verify ServerKeyExchange's signature (if present) and
// to derive the pre-master secret.
func readServerFlight12(fr *flightReader, tr *transcript.Transcript, sh *serverHello, clientRandom []byte, cfg *Config) (*serverFlight12, error) {
	typ, body, raw, err := fr.nextHandshakeMessage()
	if err != nil {
		return nil, err
	}
	if typ != constants.HandshakeTypeCertificate {
		return nil, tlserrors.NewProtocolError(tlserrors.UnexpectedMessage, "handshake.readServerFlight12", nil)
	}
	tr.Update(raw)

	certs, err := parseCertificateList12(body)
	if err != nil {
		return nil, err
	}
	result, err := certchain.Validate(certs, cfg.Host, cfg.CABundle, time.Now())
	if err != nil {
		return nil, err
	}

	flight := &serverFlight12{leafPublicKey: result.LeafPublicKey}

	typ, body, raw, err = fr.nextHandshakeMessage()
	if err != nil {
		return nil, err
	}

	if typ == constants.HandshakeTypeServerKeyExchange {
		tr.Update(raw)
		d := record.NewDecoder(body)
		curveType, err := d.Uint8()
		if err != nil {
			return nil, tlserrors.NewProtocolError(tlserrors.DecodeError, "handshake.ServerKeyExchange", err)
		}
		const curveTypeNamedCurve = 0x03
		if curveType != curveTypeNamedCurve {
			return nil, tlserrors.NewProtocolError(tlserrors.IllegalParameter, "handshake.ServerKeyExchange", nil)
		}
		g, err := d.Uint16()
		if err != nil {
			return nil, tlserrors.NewProtocolError(tlserrors.DecodeError, "handshake.ServerKeyExchange", err)
		}
		pub, err := d.Vector8()
		if err != nil {
			return nil, tlserrors.NewProtocolError(tlserrors.DecodeError, "handshake.ServerKeyExchange", err)
		}
		scheme, err := d.Uint16()
		if err != nil {
			return nil, tlserrors.NewProtocolError(tlserrors.DecodeError, "handshake.ServerKeyExchange", err)
		}
		signature, err := d.Vector16()
		if err != nil {
			return nil, tlserrors.NewProtocolError(tlserrors.DecodeError, "handshake.ServerKeyExchange", err)
		}
		if err := d.ExpectEOF(); err != nil {
			return nil, err
		}

		flight.group = constants.NamedGroup(g)
		flight.serverShare = append([]byte{}, pub...)
		flight.sigScheme = constants.SignatureScheme(scheme)
		flight.signature = append([]byte{}, signature...)
		flight.signedPreamble = sigverify.ServerKeyExchangeSignedData(clientRandom, sh.random, flight.group, flight.serverShare)

		typ, _, raw, err = fr.nextHandshakeMessage()
		if err != nil {
			return nil, err
		}
	}

	if typ != constants.HandshakeTypeServerHelloDone {
		return nil, tlserrors.NewProtocolError(tlserrors.UnexpectedMessage, "handshake.readServerFlight12", nil)
	}
	tr.Update(raw)

	return flight, nil
}

// parseCertificateList12 decodes a TLS 1.2 Certificate message body: a
// vector<0..2^24-1> of vector<0..2^24-1> DER certificates, leaf first.
func parseCertificateList12(body []byte) ([]*x509.Certificate, error) {
	d := record.NewDecoder(body)
	listBytes, err := d.Vector24()
	if err != nil {
		return nil, tlserrors.NewProtocolError(tlserrors.DecodeError, "handshake.parseCertificateList12", err)
	}
	if err := d.ExpectEOF(); err != nil {
		return nil, err
	}

	ld := record.NewDecoder(listBytes)
	var certs []*x509.Certificate
	for ld.Remaining() > 0 {
		der, err := ld.Vector24()
		if err != nil {
			return nil, tlserrors.NewProtocolError(tlserrors.DecodeError, "handshake.parseCertificateList12", err)
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
