package metrics

import "github.com/sara-star-quant/tlsclient/internal/constants"

// NegotiatedStats is the set of parameters populated on a successful
// handshake, per the stats_sink contract: negotiated_version, cipher_suite,
// named_group (zero for RSA key-transport), and signature_scheme (zero if no
// signature was consumed).
type NegotiatedStats struct {
	Version         constants.ProtocolVersion
	CipherSuite     constants.CipherSuite
	NamedGroup      constants.NamedGroup
	SignatureScheme constants.SignatureScheme
}

// StatsSink receives negotiated parameters after a successful handshake. It
// is optional; a nil sink is simply never called.
type StatsSink interface {
	RecordHandshake(NegotiatedStats)
}

// MapStatsSink is a StatsSink that just remembers the last handshake's
// parameters, useful for tests and simple CLI reporting.
type MapStatsSink struct {
	Last NegotiatedStats
}

// RecordHandshake implements StatsSink.
func (s *MapStatsSink) RecordHandshake(stats NegotiatedStats) {
	s.Last = stats
}
