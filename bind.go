package ldap

import (
	"context"
)

// Bind performs a Simple Bind, or an anonymous bind when both name and
// password are empty. It is mutually exclusive with StartTLS and with a
// second concurrent Bind on the same Conn: the second caller receives
// KindInvalidArgument rather than blocking.
func (c *Conn) Bind(ctx context.Context, name, password string) error {
	if err := c.beginExclusive("Bind"); err != nil {
		return err
	}
	defer c.endExclusive()

	prevState := c.getState()
	c.setState(stateBinding)

	deadline := effectiveDeadline(0, 0, c.cfg.Timeout)
	opCtx, cancel := contextForDeadline(ctx, deadline)
	defer cancel()

	s := newSingleShotSink()
	id, err := c.doRequest(func(msgID uint32) []byte {
		return c.cfg.Codec.EncodeBindRequestSimple(msgID, name, password, nil)
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
		if err := res.msg.Result.Err("Bind"); err != nil {
			c.setState(prevState)
			return err
		}
		c.setState(stateBound)
		return nil
	case <-opCtx.Done():
		_ = c.abandon(id)
		c.setState(prevState)
		return newErr("Bind", KindTimeout, "bind timed out", opCtx.Err())
	}
}

// UnauthenticatedBind performs an RFC 4513 §5.1.2 unauthenticated bind: a
// non-empty name with an empty password. Servers are required to treat this
// as an anonymous-equivalent identity and MUST NOT grant it authenticated
// access; it exists for audit-trail purposes only, distinct from a Simple
// Bind carrying an actual password.
func (c *Conn) UnauthenticatedBind(ctx context.Context, name string) error {
	return c.Bind(ctx, name, "")
}

// ExternalBind drives a SASL/EXTERNAL bind with no credentials, for
// sessions where identity was already established by a lower layer —
// a client TLS certificate.
func (c *Conn) ExternalBind(ctx context.Context, authzID string) error {
	return c.SASLBind(ctx, &ExternalMechanism{AuthzID: authzID})
}

// saslMechanism is the state-machine contract every SASL mechanism
// implements. Step is called repeatedly with the server's last challenge
// (nil on the first call) until done is true.
type saslMechanism interface {
	Name() string
	Step(challenge []byte) (response []byte, done bool, err error)
}

// SASLBind drives a generic challenge/response SASL bind to completion using
// mech, issuing one BindRequest per step and feeding each BindResponse's
// serverSaslCreds back into mech.Step until the mechanism reports done.
func (c *Conn) SASLBind(ctx context.Context, mech saslMechanism) error {
	if err := c.beginExclusive("SASLBind"); err != nil {
		return err
	}
	defer c.endExclusive()

	prevState := c.getState()
	c.setState(stateBinding)

	deadline := effectiveDeadline(0, 0, c.cfg.Timeout)
	opCtx, cancel := contextForDeadline(ctx, deadline)
	defer cancel()

	var challenge []byte
	for {
		resp, done, err := mech.Step(challenge)
		if err != nil {
			c.setState(prevState)
			return newErr("SASLBind", KindAuthenticationFailed, "mechanism step failed", err)
		}

		s := newSingleShotSink()
		id, err := c.doRequest(func(msgID uint32) []byte {
			return c.cfg.Codec.EncodeBindRequestSASL(msgID, mech.Name(), resp, nil)
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
			switch res.msg.Result.ResultCode {
			case ResultSuccess:
				if !done {
					c.setState(prevState)
					return newErr("SASLBind", KindProtocolError, "server reported success while the mechanism still expected another step", nil)
				}
				c.setState(stateBound)
				return nil
			case ResultSaslBindInProgress:
				if done {
					c.setState(prevState)
					return newErr("SASLBind", KindProtocolError, "mechanism finished but server expects another step", nil)
				}
				challenge = res.msg.SASLCreds
				continue
			default:
				c.setState(prevState)
				return res.msg.Result.Err("SASLBind")
			}
		case <-opCtx.Done():
			_ = c.abandon(id)
			c.setState(prevState)
			return newErr("SASLBind", KindTimeout, "SASL bind timed out", opCtx.Err())
		}
	}
}
