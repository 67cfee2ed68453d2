package handshake

import (
	"context"

	"github.com/sara-star-quant/tlsclient/internal/constants"
	tlserrors "github.com/sara-star-quant/tlsclient/internal/errors"
	"github.com/sara-star-quant/tlsclient/internal/metrics"
	"github.com/sara-star-quant/tlsclient/pkg/kex"
	"github.com/sara-star-quant/tlsclient/pkg/record"
	"github.com/sara-star-quant/tlsclient/pkg/transcript"
	"github.com/sara-star-quant/tlsclient/pkg/transport"
)

// randomMaterialSize is the total randomness drawn once at handshake start:
// 32 bytes of client_random plus the 64-byte seed that deterministically
// derives every offered group's ephemeral key pair.
const randomMaterialSize = constants.ClientRandomSize + constants.DHSeedSize

// Run drives one client-side TLS handshake to completion over t, and
// returns the negotiated parameters and the two directional application
// ciphers on success.
func Run(t transport.Transport, cfg *Config) (*Result, error) {
	if len(cfg.CipherSuites) == 0 {
		return nil, tlserrors.NewProtocolError(tlserrors.IllegalParameter, "handshake.Run", nil)
	}
	rnd := cfg.Random
	if rnd == nil {
		rnd = transport.CryptoRandom{}
	}
	tracer := cfg.tracer()

	material := make([]byte, randomMaterialSize)
	if err := rnd.Fill(material); err != nil {
		return nil, err
	}
	clientRandom := material[:constants.ClientRandomSize]
	dhSeed := material[constants.ClientRandomSize:]

	groups := offeredGroups(cfg.DisableHybridKEX)
	keys, err := kex.NewSet(dhSeed, groups)
	if err != nil {
		return nil, err
	}

	_, endSpan := tracer.StartSpan(context.Background(), metrics.SpanClientHello)

	chBytes, err := buildClientHello(cfg, clientRandom, keys, groups)
	if err != nil {
		return nil, err
	}

	tr := transcript.New()
	tr.Update(chBytes)

	if err := writePlaintextRecord(t, constants.ContentTypeHandshake, chBytes); err != nil {
		return nil, err
	}

	reader := record.NewReader(t)
	fr := newFlightReader12(reader)

	typ, body, raw, err := fr.nextHandshakeMessage()
	if err != nil {
		return nil, err
	}
	if typ != constants.HandshakeTypeServerHello {
		return nil, tlserrors.NewProtocolError(tlserrors.UnexpectedMessage, "handshake.Run", nil)
	}
	tr.Update(raw)

	sh, err := parseServerHello(body)
	if err != nil {
		return nil, err
	}
	if !suiteOffered(cfg.CipherSuites, sh.cipherSuite) {
		err := tlserrors.NewProtocolError(tlserrors.IllegalParameter, "handshake.Run", nil)
		metrics.Error("server chose an unoffered cipher suite", metrics.Fields{
			"host":         cfg.Host,
			"cipher_suite": sh.cipherSuite,
		})
		return nil, err
	}
	tr.Narrow(sh.cipherSuite)

	var result *Result
	if sh.negotiatedVersion() == constants.VersionTLS13 {
		result, err = runTLS13(t, cfg, sh, keys, tr, fr)
	} else {
		result, err = runTLS12(t, cfg, sh, clientRandom, keys, tr, fr)
	}
	endSpan(err)
	if err != nil {
		metrics.Error("handshake failed", metrics.Fields{
			"host":  cfg.Host,
			"error": err.Error(),
		})
		return nil, err
	}

	if cfg.StatsSink != nil {
		cfg.StatsSink.RecordHandshake(metrics.NegotiatedStats{
			Version:         result.Version,
			CipherSuite:     result.CipherSuite,
			NamedGroup:      result.NamedGroup,
			SignatureScheme: result.SignatureScheme,
		})
	}
	return result, nil
}

func suiteOffered(offered []constants.CipherSuite, chosen constants.CipherSuite) bool {
	for _, cs := range offered {
		if cs == chosen {
			return true
		}
	}
	return false
}
