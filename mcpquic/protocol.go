// Package mcpquic carries MCP sessions over QUIC streams.
//
// A connection negotiates ALPNProtocolMCP during the TLS handshake, then the
// client opens a single bidirectional stream and writes MagicBytesMCP before
// any JSON-RPC traffic. The magic prefix lets a shared UDP socket reject
// protocol confusion (e.g. an HTTP/3 client dialing the MCP port) before the
// SDK sees a single byte.
package mcpquic

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/quic-go/quic-go"
)

const (
	// ALPNProtocolMCP is the ALPN token for MCP-over-QUIC.
	ALPNProtocolMCP = "mcp-quic-v1"

	// MagicBytesMCP is written by the client as the first bytes of the
	// stream, before the MCP initialize request.
	MagicBytesMCP = "MCP1"

	// MaxMessageSize bounds a single JSON-RPC message on the wire.
	MaxMessageSize = 10 * 1024 * 1024

	DefaultIdleTimeout = 5 * time.Minute
	DefaultKeepAlive   = 30 * time.Second
)

// QUIC application error codes, sent with CloseWithError.
const (
	ConnErrorNoError           quic.ApplicationErrorCode = 0x00
	ConnErrorUnsupportedALPN   quic.ApplicationErrorCode = 0x02
	ConnErrorProtocolViolation quic.ApplicationErrorCode = 0x03
)

// StreamErrorProtocolConfusion cancels a stream whose first bytes were not
// the MCP magic prefix.
const StreamErrorProtocolConfusion quic.StreamErrorCode = 0x10

var (
	ErrInvalidMagicBytes = errors.New("invalid magic bytes")
	ErrUnsupportedALPN   = errors.New("unsupported ALPN protocol")
	ErrConnectionClosed  = errors.New("connection closed")
)

// ConnectionError wraps a transport failure with the peer address and the
// QUIC application error code that was (or would be) sent.
type ConnectionError struct {
	RemoteAddr string
	Code       quic.ApplicationErrorCode
	Err        error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("mcpquic: %s (code 0x%02x): %v", e.RemoteAddr, uint64(e.Code), e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// SendMagicBytes writes the MCP magic prefix to w.
func SendMagicBytes(w io.Writer) error {
	if _, err := io.WriteString(w, MagicBytesMCP); err != nil {
		return fmt.Errorf("send magic bytes: %w", err)
	}
	return nil
}

// ValidateMagicBytes reads exactly len(MagicBytesMCP) bytes from r and
// checks them against the expected prefix.
func ValidateMagicBytes(r io.Reader) error {
	buf := make([]byte, len(MagicBytesMCP))
	if _, err := io.ReadFull(r, buf); err != nil {
		return fmt.Errorf("%w: read failed: %v", ErrInvalidMagicBytes, err)
	}
	if string(buf) != MagicBytesMCP {
		return fmt.Errorf("%w: got %q", ErrInvalidMagicBytes, buf)
	}
	return nil
}

// ProductionQUICConfig returns the QUIC transport settings used by both
// sides. 0-RTT stays off: replayable early data is not worth the round trip
// for long-lived tool sessions.
func ProductionQUICConfig() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:  DefaultIdleTimeout,
		KeepAlivePeriod: DefaultKeepAlive,
		Allow0RTT:       false,
	}
}

// ClientTLSConfig returns a client-side TLS config negotiating the MCP ALPN.
// insecure skips server certificate verification, for dev servers running on
// a self-signed certificate.
func ClientTLSConfig(insecure bool) *tls.Config {
	return &tls.Config{
		NextProtos:         []string{ALPNProtocolMCP},
		MinVersion:         tls.VersionTLS13,
		InsecureSkipVerify: insecure,
	}
}

// SelfSignedTLSConfig generates an ephemeral ECDSA certificate for local
// development. Not for production use.
func SelfSignedTLSConfig() (*tls.Config, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("generate serial: %w", err)
	}
	tmpl := x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "docsmith-dev"},
		DNSNames:     []string{"localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(90 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("create certificate: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{{
			Certificate: [][]byte{der},
			PrivateKey:  key,
		}},
		NextProtos: []string{ALPNProtocolMCP},
		MinVersion: tls.VersionTLS13,
	}, nil
}

// ServerTLSConfig loads a certificate pair from disk for production serving.
func ServerTLSConfig(certFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load key pair: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{ALPNProtocolMCP},
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// H3TLSConfig clones base with the ALPN list replaced by "h3", for serving
// HTTP/3 next to MCP on the same certificate.
func H3TLSConfig(base *tls.Config) *tls.Config {
	cfg := base.Clone()
	cfg.NextProtos = []string{"h3"}
	return cfg
}
