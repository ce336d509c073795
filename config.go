package ldap

import (
	"crypto/tls"
	"time"

	"github.com/rs/zerolog"
)

// Default connection parameters.
const (
	DefaultPlainPort   = 389
	DefaultTLSPort     = 636
	DefaultHost        = "127.0.0.1"
	DefaultTimeout     = 30 * time.Second
	DefaultSSLProtocol = "TLS"
)

// Infinite is the sentinel accepted by every timeout field to mean "no
// deadline".
const Infinite time.Duration = -1

// BinaryAttributeDetector classifies attribute types as binary. Config
// carries one, but the wire decoder does not consult it: every attribute
// value is decoded as a string.
type BinaryAttributeDetector interface {
	IsBinary(attribute string) bool
}

// binaryAttributeDetectorFunc adapts a function to BinaryAttributeDetector.
type binaryAttributeDetectorFunc func(string) bool

func (f binaryAttributeDetectorFunc) IsBinary(attribute string) bool { return f(attribute) }

// defaultBinaryAttributes is the set every LDAP client treats as binary
// regardless of schema, because their syntax is never valid UTF-8.
var defaultBinaryAttributes = map[string]bool{
	"userpassword":             true,
	"jpegphoto":                true,
	"photo":                    true,
	"objectguid":                true,
	"objectsid":                 true,
	"ms-ds-consistencyguid":     true,
	"certificaterevocationlist": true,
	"authoritycertificate":      true,
	"cacertificate":             true,
	"usercertificate":           true,
}

func defaultBinaryAttributeDetector() BinaryAttributeDetector {
	return binaryAttributeDetectorFunc(func(attr string) bool {
		return defaultBinaryAttributes[normalizeAttrName(attr)]
	})
}

// Config holds connection, timeout, and TLS settings for a Conn. A zero
// Config is not usable; use NewConfig to obtain sane defaults.
type Config struct {
	Host string
	Port int

	UseSSL      bool
	UseStartTLS bool

	// Global and per-phase deadlines. A value of Infinite (-1) is
	// "no deadline". Zero means "inherit timeout/global default".
	Timeout              time.Duration
	ConnectTimeout       time.Duration
	ReadOperationTimeout time.Duration
	WriteOperationTimeout time.Duration
	CloseTimeout         time.Duration
	SendTimeout          time.Duration

	// Default Bind identity, stored for the caller. No function of this
	// package reads these fields: Bind takes its name and password as
	// arguments, and the core never binds automatically.
	Name        string
	Credentials string

	TLSConfig         *tls.Config // caller-supplied base; cloned and amended
	EnabledProtocols  []uint16    // tls.VersionTLS1x constants; empty = default set below
	EnabledCipherSuites []uint16
	SSLProtocol       string

	BinaryAttributeDetector BinaryAttributeDetector

	// SearchChannelSize bounds the per-search streaming sink buffer.
	SearchChannelSize int

	// Logger receives structured diagnostics. The zero value is a
	// disabled logger so the library is silent unless a caller opts in.
	Logger zerolog.Logger

	// Codec is the wire adapter. NewConfig populates it with the
	// asn1-ber-backed implementation; tests may substitute a fake.
	Codec CodecService
}

// NewConfig returns a Config with every field defaulted to a usable value.
func NewConfig() *Config {
	return &Config{
		Host:                  DefaultHost,
		Port:                  DefaultPlainPort,
		Timeout:               DefaultTimeout,
		ConnectTimeout:        0,
		ReadOperationTimeout:  0,
		WriteOperationTimeout: 0,
		CloseTimeout:          0,
		SendTimeout:           0,
		SSLProtocol:           DefaultSSLProtocol,
		BinaryAttributeDetector: defaultBinaryAttributeDetector(),
		SearchChannelSize:     64,
		Logger:                zerolog.Nop(),
		Codec:                 newBERCodec(),
	}
}

// defaultEnabledProtocols returns {TLSv1, TLSv1.1, TLSv1.2} as crypto/tls
// version constants, used whenever EnabledProtocols is empty; the bounds it
// implies apply only where TLSConfig leaves MinVersion/MaxVersion at zero.
func defaultEnabledProtocols() []uint16 {
	return []uint16{tls.VersionTLS10, tls.VersionTLS11, tls.VersionTLS12}
}

// effectivePort returns Port, applying the useSsl default of 636 only when
// the caller left Port at its zero value.
func (c *Config) effectivePort() int {
	if c.Port != 0 {
		return c.Port
	}
	if c.UseSSL {
		return DefaultTLSPort
	}
	return DefaultPlainPort
}
