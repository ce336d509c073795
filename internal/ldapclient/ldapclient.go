// Package ldapclient wraps the core ldap.Conn with the pooling and
// lookup/bind/search shape the CLI tool needs: a lookup (service) connection
// for DN resolution, plus a pool of persistent per-user connections reused
// across operations.
package ldapclient

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	core "github.com/ldapcore/ldapclient"
	"github.com/ldapcore/ldapclient/internal/config"
)

// Client exposes the minimal operations required by the runner.
type Client interface {
	BindLookup() error
	LookupDN(username string) (string, error)
	UserBind(dn, password string) error
	UserSearch(dn, password, filter string) (int, error) // returns entry count
	// Lifecycle provisions, relocates, and tears down a throwaway directory
	// entry for username, exercising Add, ModifyDN (rename and, when ou is
	// non-empty, move), and a subtree delete in one round trip. It uses the
	// lookup connection, not the per-user pool, since the lookup account is
	// the one expected to hold write access under BaseDN.
	Lifecycle(username, ou string) error
	Close()
}

type client struct {
	cfg  *config.Config
	conn *core.Conn // shared lookup connection
	mu   sync.Mutex

	// pool of persistent user connections reused across operations
	pool chan *core.Conn
}

// New creates a new client and establishes the lookup connection.
func New(cfg *config.Config) (Client, error) {
	c := &client{cfg: cfg}

	if err := c.connectLookup(); err != nil {
		return nil, err
	}

	// Initialize user connection pool (lazy). We only create the buffered
	// channel with the target capacity (concurrency * connections) but do not
	// pre-dial all connections at startup to avoid connection storms and
	// server-side limits causing immediate EOFs. Connections are established
	// on demand by workers.
	size := cfg.Concurrency * cfg.Connections
	if size < 1 {
		size = 1
	}

	c.pool = make(chan *core.Conn, size)

	return c, nil
}

// coreConfig translates the CLI's URL-shaped Config into a core.Config,
// deriving Host/Port/UseSSL from the ldap://, ldaps:// scheme.
func coreConfig(cfg *config.Config) (*core.Config, error) {
	u, err := url.Parse(cfg.LDAPURL)
	if err != nil {
		return nil, fmt.Errorf("parsing ldap-url: %w", err)
	}
	if u.Scheme == "ldapi" {
		return nil, fmt.Errorf("ldapi:// (unix domain socket) is not supported by this client core")
	}

	ccfg := core.NewConfig()
	ccfg.Host = u.Hostname()
	if p := u.Port(); p != "" {
		if port, convErr := strconv.Atoi(p); convErr == nil {
			ccfg.Port = port
		}
	}
	ccfg.Timeout = cfg.Timeout
	ccfg.UseSSL = u.Scheme == "ldaps"
	ccfg.UseStartTLS = cfg.StartTLS && u.Scheme == "ldap"
	ccfg.TLSConfig = cfg.TLSConfig()
	return ccfg, nil
}

// dial opens one core.Conn per the CLI config, performing StartTLS when
// requested.
func dial(cfg *config.Config) (*core.Conn, error) {
	ccfg, err := coreConfig(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := core.Dial(context.Background(), ccfg)
	if err != nil {
		return nil, err
	}

	if ccfg.UseStartTLS {
		if err := conn.StartTLS(context.Background(), nil); err != nil {
			conn.Close()
			return nil, err
		}
	}

	return conn, nil
}

// connectLookup dials the server for the service/lookup account.
func (c *client) connectLookup() error {
	conn, err := dial(c.cfg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	return nil
}

// BindLookup performs a simple bind with the lookup account, or a
// SASL/EXTERNAL bind when SaslExternal is set.
func (c *client) BindLookup() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if c.cfg.SaslExternal {
		return conn.ExternalBind(context.Background(), "")
	}
	return conn.Bind(context.Background(), c.cfg.LookupBindDN, c.cfg.LookupBindPass)
}

// LookupDN finds a user's DN using the configured UID attribute.
func (c *client) LookupDN(username string) (string, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	filter := fmt.Sprintf("(&(%s=%s)(objectClass=person))", c.cfg.UIDAttr, core.EscapeFilter(username))
	cur, err := conn.Search(context.Background(), &core.SearchRequest{
		BaseDN:       c.cfg.BaseDN,
		Scope:        core.ScopeWholeSubtree,
		DerefAliases: core.NeverDerefAliases,
		SizeLimit:    1,
		TimeLimit:    int(c.cfg.Timeout.Seconds()),
		Filter:       filter,
		Attributes:   []string{"dn"},
	})
	if err != nil {
		return "", err
	}
	defer cur.Close()

	for cur.Next() {
		if e := cur.Entry(); e != nil {
			return e.DN, nil
		}
	}
	if err := cur.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("user not found")
}

// Lifecycle adds a throwaway inetOrgPerson entry for username under BaseDN,
// renames it, optionally moves it under ou, then deletes it (its subtree, if
// the server advertises the control; a single entry otherwise).
func (c *client) Lifecycle(username, ou string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	ctx := context.Background()
	dn := fmt.Sprintf("%s=%s,%s", c.cfg.UIDAttr, username, c.cfg.BaseDN)

	if _, err := conn.Add(ctx, &core.AddRequest{Entry: core.Entry{
		DN: dn,
		Attributes: map[string][]string{
			"objectClass": {"inetOrgPerson", "organizationalPerson", "person", "top"},
			c.cfg.UIDAttr: {username},
			"sn":          {username},
			"cn":          {username},
		},
	}}); err != nil {
		return fmt.Errorf("add: %w", err)
	}

	renamedRDN := fmt.Sprintf("%s=%s-benchtmp", c.cfg.UIDAttr, username)
	renamedDN := fmt.Sprintf("%s,%s", renamedRDN, c.cfg.BaseDN)
	if _, err := conn.Rename(ctx, dn, renamedRDN, true); err != nil {
		return fmt.Errorf("rename: %w", err)
	}

	if ou != "" {
		if _, err := conn.Move(ctx, renamedDN, ou); err != nil {
			return fmt.Errorf("move: %w", err)
		}
		renamedDN = fmt.Sprintf("%s,%s", renamedRDN, ou)
	}

	if _, err := conn.DeleteTree(ctx, renamedDN); err != nil {
		if kind, ok := core.KindOf(err); ok && kind == core.KindNotSupported {
			if _, err := conn.Delete(ctx, &core.DeleteRequest{DN: renamedDN}); err != nil {
				return fmt.Errorf("delete: %w", err)
			}
			return nil
		}
		return fmt.Errorf("delete tree: %w", err)
	}

	return nil
}

// UserBind performs a bind using the provided DN and password on a pooled
// connection to simulate real-world auth traffic.
func (c *client) UserBind(dn, password string) error {
	conn := c.getConn()
	if conn == nil {
		return fmt.Errorf("no connection available")
	}

	err := conn.Bind(context.Background(), dn, password)
	c.putConn(conn, err)

	return err
}

// UserSearch binds as the user and executes a search; returns entry count.
func (c *client) UserSearch(dn, password, filter string) (int, error) {
	conn := c.getConn()
	if conn == nil {
		return 0, fmt.Errorf("no connection available")
	}

	var bindErr error
	if c.cfg.SaslExternal {
		bindErr = conn.ExternalBind(context.Background(), "")
	} else {
		bindErr = conn.Bind(context.Background(), dn, password)
	}
	if bindErr != nil {
		c.putConn(conn, bindErr)
		return 0, bindErr
	}

	cur, err := conn.Search(context.Background(), &core.SearchRequest{
		BaseDN:       c.cfg.BaseDN,
		Scope:        core.ScopeWholeSubtree,
		DerefAliases: core.NeverDerefAliases,
		TimeLimit:    int(c.cfg.Timeout.Seconds()),
		Filter:       filter,
		Attributes:   []string{"dn"},
	})
	if err != nil {
		c.putConn(conn, err)
		return 0, err
	}
	defer cur.Close()

	count := 0
	for cur.Next() {
		if cur.Entry() != nil {
			count++
		}
	}
	err = cur.Err()
	c.putConn(conn, err)
	return count, err
}

// Close closes the lookup connection and every pooled user connection.
func (c *client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	if c.pool != nil {
		close(c.pool)
		for conn := range c.pool {
			if conn != nil {
				conn.Close()
			}
		}
	}
}

// getConn borrows a user connection from the pool, dialing a new one on
// demand if none is idle.
func (c *client) getConn() *core.Conn {
	select {
	case conn := <-c.pool:
		return conn
	default:
	}

	conn, err := dial(c.cfg)
	if err != nil {
		return nil
	}
	return conn
}

// putConn returns the connection to the pool, or closes it if err suggests
// it is tainted or the pool is full.
func (c *client) putConn(conn *core.Conn, err error) {
	if conn == nil {
		return
	}

	if err != nil {
		conn.Close()
		return
	}

	select {
	case c.pool <- conn:
	default:
		conn.Close()
	}
}
