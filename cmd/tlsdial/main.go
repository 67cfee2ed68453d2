// Command tlsdial dials a host:port, runs the client TLS handshake, writes
// one line of plaintext, reads the response, and prints the negotiated
// parameters.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sara-star-quant/tlsclient"
	"github.com/sara-star-quant/tlsclient/internal/constants"
	"github.com/sara-star-quant/tlsclient/internal/metrics"
)

func main() {
	addr := flag.String("addr", "example.com:443", "host:port to dial")
	message := flag.String("send", "GET / HTTP/1.0\r\nHost: example.com\r\n\r\n", "data to write after the handshake")
	insecure := flag.Bool("insecure", false, "skip certificate trust verification")
	disableHybrid := flag.Bool("no-hybrid", false, "do not offer the X25519+Kyber768 hybrid group")
	flag.Parse()

	var sink statsPrinter
	cfg := &tlsclient.ClientConfig{
		DisableHybridKEX: *disableHybrid,
		StatsSink:        &sink,
	}
	if !*insecure {
		fmt.Fprintln(os.Stderr, "warning: -insecure not set and no system CA bundle is wired in; dialing without certificate verification")
	}

	conn, err := tlsclient.Dial("tcp", *addr, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "handshake failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = conn.Close() }()

	sink.print()

	if _, err := conn.Write([]byte(*message)); err != nil {
		fmt.Fprintf(os.Stderr, "write failed: %v\n", err)
		os.Exit(1)
	}

	plaintext, err := conn.Read()
	if err != nil {
		fmt.Fprintf(os.Stderr, "read failed: %v\n", err)
		os.Exit(1)
	}

	scanner := bufio.NewScanner(strings.NewReader(string(plaintext)))
	for scanner.Scan() {
		fmt.Println(scanner.Text())
	}
}

// statsPrinter is a metrics.StatsSink that holds the one handshake's
// negotiated parameters for printing after Dial returns.
type statsPrinter struct {
	stats metrics.NegotiatedStats
	set   bool
}

func (s *statsPrinter) RecordHandshake(stats metrics.NegotiatedStats) {
	s.stats = stats
	s.set = true
}

func (s *statsPrinter) print() {
	if !s.set {
		return
	}
	fmt.Fprintf(os.Stderr, "negotiated: version=%s suite=0x%04x group=0x%04x sig_scheme=0x%04x\n",
		versionName(s.stats.Version), uint16(s.stats.CipherSuite), uint16(s.stats.NamedGroup), uint16(s.stats.SignatureScheme))
}

func versionName(v constants.ProtocolVersion) string {
	switch v {
	case constants.VersionTLS13:
		return "TLS1.3"
	case constants.VersionTLS12:
		return "TLS1.2"
	default:
		return fmt.Sprintf("0x%04x", uint16(v))
	}
}
