package handshake

import (
	"github.com/sara-star-quant/tlsclient/internal/constants"
	tlserrors "github.com/sara-star-quant/tlsclient/internal/errors"
	"github.com/sara-star-quant/tlsclient/pkg/kex"
	"github.com/sara-star-quant/tlsclient/pkg/record"
)

const clientHelloBufferCapacity = 2048

// offeredVersions inspects cfg.CipherSuites and reports whether TLS 1.2
// and/or TLS 1.3 should be offered: all-1.2 suites drop 1.3, all-1.3 suites
// drop 1.2, a mix offers both.
func offeredVersions(suites []constants.CipherSuite) (offer12, offer13 bool) {
	for _, cs := range suites {
		if cs.IsTLS13() {
			offer13 = true
		} else {
			offer12 = true
		}
	}
	return offer12, offer13
}

// offeredGroups returns kex.OfferedGroups, optionally trimmed of the
// trailing hybrid entry.
func offeredGroups(disableHybrid bool) []constants.NamedGroup {
	groups := kex.OfferedGroups
	if disableHybrid {
		return groups[:len(groups)-1]
	}
	return groups
}

// buildClientHello serializes the ClientHello handshake message body
// (excluding the record header) in the exact extension order the
// specification fixes: supported_versions, ec_point_formats,
// renegotiation_info, signed_certificate_timestamp, signature_algorithms,
// supported_groups, key_share (TLS 1.3 offers only), server_name.
func buildClientHello(cfg *Config, clientRandom []byte, keys *kex.Set, groups []constants.NamedGroup) ([]byte, error) {
	offer12, offer13 := offeredVersions(cfg.CipherSuites)

	ext := record.NewWriter(clientHelloBufferCapacity)

	// supported_versions
	versions := record.NewWriter(8)
	if offer13 {
		versions.PutUint16(uint16(constants.VersionTLS13))
	}
	if offer12 {
		versions.PutUint16(uint16(constants.VersionTLS12))
	}
	svBody := record.NewWriter(9)
	svBody.PutVector8(versions.Bytes())
	ext.PutExtension(constants.ExtSupportedVersions, svBody.Bytes())

	// ec_point_formats: uncompressed only
	ext.PutExtension(constants.ExtECPointFormats, []byte{0x01, 0x00})

	// renegotiation_info: empty
	ext.PutExtension(constants.ExtRenegotiationInfo, []byte{0x00})

	// signed_certificate_timestamp: empty
	ext.PutExtension(constants.ExtSignedCertificateTimestamp, nil)

	// signature_algorithms
	sigAlgs := record.NewWriter(64)
	for _, s := range constants.OfferedSignatureSchemes {
		sigAlgs.PutUint16(uint16(s))
	}
	sigBody := record.NewWriter(70)
	sigBody.PutVector16(sigAlgs.Bytes())
	ext.PutExtension(constants.ExtSignatureAlgorithms, sigBody.Bytes())

	// supported_groups
	groupList := record.NewWriter(16)
	for _, g := range groups {
		groupList.PutUint16(uint16(g))
	}
	groupBody := record.NewWriter(20)
	groupBody.PutVector16(groupList.Bytes())
	ext.PutExtension(constants.ExtSupportedGroups, groupBody.Bytes())

	// key_share: only when TLS 1.3 is offered
	if offer13 {
		shares := record.NewWriter(1400)
		for _, g := range groups {
			kp, ok := keys.Get(g)
			if !ok {
				return nil, tlserrors.NewProtocolError(tlserrors.IllegalParameter, "handshake.buildClientHello", nil)
			}
			pub := kp.PublicKeyBytes()
			shares.PutUint16(uint16(g))
			shares.PutVector16(pub)
		}
		ksBody := record.NewWriter(1410)
		ksBody.PutVector16(shares.Bytes())
		ext.PutExtension(constants.ExtKeyShare, ksBody.Bytes())
	}

	// server_name (SNI)
	if cfg.Host != "" {
		nameEntry := record.NewWriter(260)
		nameEntry.PutUint8(0) // host_name
		nameEntry.PutVector16([]byte(cfg.Host))
		snBody := record.NewWriter(264)
		snBody.PutVector16(nameEntry.Bytes())
		ext.PutExtension(constants.ExtServerName, snBody.Bytes())
	}

	if ext.Err() != nil {
		return nil, tlserrors.NewResourceError(tlserrors.BufferOverflow, ext.Err())
	}

	body := record.NewWriter(clientHelloBufferCapacity)
	body.PutUint16(uint16(constants.VersionTLS12)) // legacy_version
	body.PutBytes(clientRandom)
	body.PutVector8(nil) // legacy_session_id: empty, no resumption offered

	suites := record.NewWriter(64)
	for _, cs := range cfg.CipherSuites {
		suites.PutUint16(uint16(cs))
	}
	body.PutVector16(suites.Bytes())

	body.PutVector8([]byte{0x00}) // compression_methods: null only

	body.PutVector16(ext.Bytes())

	if body.Err() != nil {
		return nil, tlserrors.NewResourceError(tlserrors.BufferOverflow, body.Err())
	}

	msg := record.NewWriter(clientHelloBufferCapacity + 16)
	msg.PutHandshakeHeader(constants.HandshakeTypeClientHello, body.Len())
	msg.PutBytes(body.Bytes())
	if msg.Err() != nil {
		return nil, tlserrors.NewResourceError(tlserrors.BufferOverflow, msg.Err())
	}
	return msg.Bytes(), nil
}
