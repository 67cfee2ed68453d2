package handshake

import (
	"bytes"

	"github.com/sara-star-quant/tlsclient/internal/constants"
	tlserrors "github.com/sara-star-quant/tlsclient/internal/errors"
	"github.com/sara-star-quant/tlsclient/pkg/record"
)

// helloRetryRandom is the special ServerHello.random value RFC 8446 §4.1.3
// defines for a HelloRetryRequest, masquerading as a normal ServerHello.
var helloRetryRandom = []byte{
	0xCF, 0x21, 0xAD, 0x74, 0xE5, 0x9A, 0x61, 0x11,
	0xBE, 0x1D, 0x8C, 0x02, 0x1E, 0x65, 0xB8, 0x91,
	0xC2, 0xA2, 0x11, 0x16, 0x7A, 0xBB, 0x8C, 0x5E,
	0x07, 0x9E, 0x09, 0xE2, 0xC8, 0xA8, 0x33, 0x9C,
}

type serverHello struct {
	version           constants.ProtocolVersion
	random            []byte
	cipherSuite       constants.CipherSuite
	supportedVersion  constants.ProtocolVersion // 0 if extension absent
	keyShareGroup     constants.NamedGroup
	keyShareEntry     []byte
}

// parseServerHello decodes a ServerHello message body (post handshake
// header) and rejects a HelloRetryRequest, which the engine never handles
// (per the non-goal preserved from the original implementation).
func parseServerHello(body []byte) (*serverHello, error) {
	d := record.NewDecoder(body)

	rawVersion, err := d.Uint16()
	if err != nil {
		return nil, tlserrors.NewProtocolError(tlserrors.DecodeError, "handshake.parseServerHello", err)
	}
	random, err := d.Bytes(constants.ServerRandomSize)
	if err != nil {
		return nil, tlserrors.NewProtocolError(tlserrors.DecodeError, "handshake.parseServerHello", err)
	}
	if bytes.Equal(random, helloRetryRandom) {
		return nil, tlserrors.NewProtocolError(tlserrors.ServerHelloRetryRequest, "handshake.parseServerHello", nil)
	}

	if _, err := d.Vector8(); err != nil { // legacy_session_id_echo: accepted and ignored
		return nil, tlserrors.NewProtocolError(tlserrors.DecodeError, "handshake.parseServerHello", err)
	}
	rawSuite, err := d.Uint16()
	if err != nil {
		return nil, tlserrors.NewProtocolError(tlserrors.DecodeError, "handshake.parseServerHello", err)
	}
	if _, err := d.Uint8(); err != nil { // legacy_compression_method
		return nil, tlserrors.NewProtocolError(tlserrors.DecodeError, "handshake.parseServerHello", err)
	}

	sh := &serverHello{
		version:     constants.ProtocolVersion(rawVersion),
		random:      random,
		cipherSuite: constants.CipherSuite(rawSuite),
	}

	if d.Remaining() == 0 {
		return sh, nil
	}
	extBytes, err := d.Vector16()
	if err != nil {
		return nil, tlserrors.NewProtocolError(tlserrors.DecodeError, "handshake.parseServerHello", err)
	}
	if err := d.ExpectEOF(); err != nil {
		return nil, tlserrors.NewProtocolError(tlserrors.DecodeError, "handshake.parseServerHello", err)
	}

	ed := record.NewDecoder(extBytes)
	for ed.Remaining() > 0 {
		extType, err := ed.Uint16()
		if err != nil {
			return nil, tlserrors.NewProtocolError(tlserrors.DecodeError, "handshake.parseServerHello.ext", err)
		}
		extBody, err := ed.Vector16()
		if err != nil {
			return nil, tlserrors.NewProtocolError(tlserrors.DecodeError, "handshake.parseServerHello.ext", err)
		}
		switch constants.ExtensionType(extType) {
		case constants.ExtSupportedVersions:
			vd := record.NewDecoder(extBody)
			v, err := vd.Uint16()
			if err != nil {
				return nil, tlserrors.NewProtocolError(tlserrors.DecodeError, "handshake.parseServerHello.supported_versions", err)
			}
			sh.supportedVersion = constants.ProtocolVersion(v)
		case constants.ExtKeyShare:
			kd := record.NewDecoder(extBody)
			g, err := kd.Uint16()
			if err != nil {
				return nil, tlserrors.NewProtocolError(tlserrors.DecodeError, "handshake.parseServerHello.key_share", err)
			}
			ks, err := kd.Vector16()
			if err != nil {
				return nil, tlserrors.NewProtocolError(tlserrors.DecodeError, "handshake.parseServerHello.key_share", err)
			}
			sh.keyShareGroup = constants.NamedGroup(g)
			sh.keyShareEntry = ks
		}
	}
	return sh, nil
}

// negotiatedVersion returns 1.3 iff the supported_versions extension named
// it, else 1.2 (the spec's default).
func (sh *serverHello) negotiatedVersion() constants.ProtocolVersion {
	if sh.supportedVersion == constants.VersionTLS13 {
		return constants.VersionTLS13
	}
	return constants.VersionTLS12
}
