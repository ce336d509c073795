package ldap

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"time"
)

// handshakeState tracks a StartTLS upgrade in flight on a live connection.
type handshakeState int

const (
	handshakePending handshakeState = iota
	handshakeSecured
	handshakeCancelled
)

// handshakeFuture is a one-shot holder for a handshake outcome: resolve
// records the first result and wait blocks until it is recorded or ctx ends.
// Neither Dial nor StartTLS uses it; both call upgradeTLS directly, and the
// one-handshake-at-a-time rule is enforced by beginExclusive in conn.go.
type handshakeFuture struct {
	mu    sync.Mutex
	state handshakeState
	err   error
	done  chan struct{}
}

func newHandshakeFuture() *handshakeFuture {
	return &handshakeFuture{done: make(chan struct{})}
}

func (h *handshakeFuture) resolve(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != handshakePending {
		return
	}
	h.err = err
	if err != nil {
		h.state = handshakeCancelled
	} else {
		h.state = handshakeSecured
	}
	close(h.done)
}

func (h *handshakeFuture) wait(ctx context.Context) error {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// upgradeTLS performs the client-side handshake over rw and returns the
// resulting *tls.Conn, which satisfies pipelineFilter and is installed into
// the Conn's pipeline in place of the raw socket, completing a StartTLS
// mid-connection upgrade.
func upgradeTLS(ctx context.Context, raw net.Conn, cfg *tls.Config) (*tls.Conn, error) {
	tlsConn := tls.Client(raw, cfg)
	if deadline, ok := ctx.Deadline(); ok {
		_ = raw.SetDeadline(deadline)
		defer raw.SetDeadline(time.Time{})
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return nil, err
	}
	return tlsConn, nil
}

// buildTLSConfig derives the effective *tls.Config for a connection from
// Config. Starting from a copy of any caller-supplied base, it fills in
// ServerName (from Host), MinVersion/MaxVersion (from EnabledProtocols) and
// CipherSuites (from EnabledCipherSuites) only where the base leaves them
// unset.
func buildTLSConfig(cfg *Config) *tls.Config {
	var base tls.Config
	if cfg.TLSConfig != nil {
		base = *cfg.TLSConfig
	}
	if base.ServerName == "" {
		base.ServerName = cfg.Host
	}
	protocols := cfg.EnabledProtocols
	if len(protocols) == 0 {
		protocols = defaultEnabledProtocols()
	}
	if base.MinVersion == 0 {
		base.MinVersion = minUint16(protocols)
	}
	if base.MaxVersion == 0 {
		base.MaxVersion = maxUint16(protocols)
	}
	if len(cfg.EnabledCipherSuites) > 0 && base.CipherSuites == nil {
		base.CipherSuites = cfg.EnabledCipherSuites
	}
	return &base
}

func minUint16(vs []uint16) uint16 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxUint16(vs []uint16) uint16 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
