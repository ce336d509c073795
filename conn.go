package ldap

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// connState is the connection lifecycle state machine:
// Disconnected -> Connecting -> Connected -> [Securing -> Secured] ->
// [Binding -> Bound] -> Closing -> Disconnected.
type connState int32

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
	stateSecuring
	stateSecured
	stateBinding
	stateBound
	stateClosing
)

// Conn is a single connection to a directory server. It owns one reader
// goroutine decoding the byte stream into PDUs and a serialized write path,
// matching the single-reactor design grounded on the historical go-ldap
// conn.go (chanResults/processMessages), adapted here to a mutex-guarded
// pendingRegistry rather than a second goroutine owning the map — see
// registry.go for why.
type Conn struct {
	cfg *Config

	raw      net.Conn
	pipeline *pipeline

	registry *pendingRegistry
	ids      messageIDAllocator

	writeMu sync.Mutex

	state        atomic.Int32
	bindMu       sync.Mutex // serializes Bind/StartTLS, rejecting overlap with InvalidArgument
	bindInFlight bool

	closeOnce sync.Once
	closed    chan struct{}

	spanID string
	log    zerolog.Logger
}

// Dial opens a new connection per Config and starts its reactor. The
// returned Conn is in state Connected (or Secured, if UseSSL); it is not yet
// bound.
func Dial(ctx context.Context, cfg *Config) (*Conn, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	span := uuid.NewString()
	log := cfg.Logger.With().Str("span_id", span).Str("host", cfg.Host).Logger()

	dialer := &net.Dialer{}
	dialCtx, cancel := contextForDeadline(ctx, effectiveDeadline(0, cfg.ConnectTimeout, cfg.Timeout))
	defer cancel()

	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.effectivePort()))
	log.Debug().Str("addr", addr).Msg("dialing")

	raw, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, newErr("Dial", KindTransportFailed, "dial failed", err)
	}

	c := &Conn{
		cfg:      cfg,
		raw:      raw,
		registry: newPendingRegistry(),
		closed:   make(chan struct{}),
		spanID:   span,
		log:      log,
	}
	c.state.Store(int32(stateConnecting))

	if cfg.UseSSL {
		tlsConn, err := upgradeTLS(dialCtx, raw, buildTLSConfig(cfg))
		if err != nil {
			raw.Close()
			return nil, newErr("Dial", KindTLSHandshakeFailed, "implicit TLS handshake failed", err)
		}
		c.pipeline = newPipeline(tlsConn)
		c.state.Store(int32(stateSecured))
	} else {
		c.pipeline = newPipeline(raw)
		c.state.Store(int32(stateConnected))
	}

	c.ids.reset()
	go c.readLoop()

	return c, nil
}

func (c *Conn) setState(s connState) { c.state.Store(int32(s)) }
func (c *Conn) getState() connState  { return connState(c.state.Load()) }

// IsSecured reports whether the pipeline is currently running over TLS
// (implicit TLS at dial time, or a completed StartTLS upgrade).
func (c *Conn) IsSecured() bool {
	if c.getState() == stateDisconnected {
		return false
	}
	c.pipeline.mu.RLock()
	defer c.pipeline.mu.RUnlock()
	_, ok := c.pipeline.reader.(*tls.Conn)
	return ok
}

// IsBound reports whether a Bind has completed successfully.
func (c *Conn) IsBound() bool { return c.getState() == stateBound }

// SpanID returns the identifier this connection stamps on every log line
// it emits, for correlating a connection's lifetime across a log stream.
func (c *Conn) SpanID() string { return c.spanID }

func (c *Conn) readLoop() {
	for {
		msg, err := c.cfg.Codec.ReadMessage(c.pipeline)
		if err != nil {
			c.log.Debug().Err(err).Msg("read loop terminated")
			c.teardown(newErr("readLoop", KindTransportFailed, "connection read failed", err))
			return
		}

		if msg.Kind == kindNoticeOfDisconnect {
			c.log.Warn().Str("oid", msg.Extended.Name).Msg("received unsolicited notice of disconnect")
			c.teardown(directoryError("NoticeOfDisconnect", &msg.Extended.Result))
			return
		}

		if !c.registry.deliver(msg) {
			c.log.Debug().Uint32("message_id", msg.MessageID).Msg("dropping response for unknown or abandoned message id")
		}
	}
}

// teardown fails every pending operation and closes the transport. Safe to
// call from the read loop or from Close; idempotent.
func (c *Conn) teardown(err error) {
	c.closeOnce.Do(func() {
		c.setState(stateClosing)
		c.registry.failAll(err)
		c.raw.Close()
		c.setState(stateDisconnected)
		close(c.closed)
	})
}

// Close gracefully unbinds (best-effort) and tears down the connection.
// UnbindRequest has no response per RFC 4511 §4.3, so Close does not wait
// for one; it writes the request and proceeds straight to teardown.
func (c *Conn) Close() error {
	if c.getState() == stateDisconnected {
		return nil
	}
	_ = c.sendOnly(c.cfg.Codec.EncodeUnbindRequest(c.ids.allocate()))
	c.teardown(newErr("Close", KindCancelled, "connection closed", nil))
	return nil
}

// Done returns a channel closed when the connection has fully torn down.
func (c *Conn) Done() <-chan struct{} { return c.closed }

func (c *Conn) sendOnly(b []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.pipeline.Write(b)
	return err
}

// doRequest registers s under a freshly allocated message id, writes b
// (built from that id via encode), and returns the id for later abandon/
// cancellation. On write failure the sink is failed and the id released.
func (c *Conn) doRequest(encode func(msgID uint32) []byte, s sink) (uint32, error) {
	id := c.ids.allocate()
	if !c.registry.register(id, s) {
		return 0, newErr("doRequest", KindProtocolError, "message id collision", nil)
	}
	b := encode(id)

	c.writeMu.Lock()
	_, err := c.pipeline.Write(b)
	c.writeMu.Unlock()

	if err != nil {
		c.registry.remove(id)
		wrapped := newErr("doRequest", KindTransportFailed, "write failed", err)
		s.fail(wrapped)
		return id, wrapped
	}
	return id, nil
}

// abandon sends an AbandonRequest for targetID and removes its sink locally;
// AbandonRequest has no response per RFC 4511 §4.11.
func (c *Conn) abandon(targetID uint32) error {
	if s := c.registry.remove(targetID); s != nil {
		s.fail(newErr("Abandon", KindCancelled, "operation abandoned", nil))
	}
	id := c.ids.allocate()
	return c.sendOnly(c.cfg.Codec.EncodeAbandonRequest(id, targetID))
}

// beginExclusive marks an exclusive phase (Bind or StartTLS) in progress,
// rejecting a second concurrent attempt with KindInvalidArgument rather
// than queuing it behind the first.
func (c *Conn) beginExclusive(op string) error {
	c.bindMu.Lock()
	defer c.bindMu.Unlock()
	if c.bindInFlight {
		return invalidArgument(op, "a Bind or StartTLS is already in progress on this connection")
	}
	c.bindInFlight = true
	return nil
}

func (c *Conn) endExclusive() {
	c.bindMu.Lock()
	c.bindInFlight = false
	c.bindMu.Unlock()
}

// StartTLS performs the StartTLS extended operation and, on success, swaps
// the pipeline's transport for a *tls.Conn. It must run exclusive of Bind.
// A nil tlsConfig derives one from Config per buildTLSConfig.
func (c *Conn) StartTLS(ctx context.Context, tlsConfig *tls.Config) error {
	if err := c.beginExclusive("StartTLS"); err != nil {
		return err
	}
	defer c.endExclusive()

	prevState := c.getState()
	c.setState(stateSecuring)

	s := newSingleShotSink()
	_, err := c.doRequest(func(id uint32) []byte {
		return c.cfg.Codec.EncodeExtendedRequest(id, &ExtendedRequest{Name: OIDStartTLS})
	}, s)
	if err != nil {
		c.setState(prevState)
		return err
	}

	select {
	case res := <-s.done:
		if res.err != nil {
			c.setState(prevState)
			return res.err
		}
		if err := res.msg.Extended.Result.Err("StartTLS"); err != nil {
			c.setState(prevState)
			return err
		}
	case <-ctx.Done():
		c.setState(prevState)
		return ctx.Err()
	}

	if tlsConfig == nil {
		tlsConfig = buildTLSConfig(c.cfg)
	}
	tlsConn, err := upgradeTLS(ctx, c.raw, tlsConfig)
	if err != nil {
		c.setState(prevState)
		return newErr("StartTLS", KindTLSHandshakeFailed, "handshake failed", err)
	}
	c.pipeline.wrap(tlsConn)
	c.setState(stateSecured)
	return nil
}
