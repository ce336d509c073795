package runner

import (
	"errors"
	"testing"

	"github.com/ldapcore/ldapclient/internal/config"
	"github.com/ldapcore/ldapclient/internal/csvdata"
	"github.com/ldapcore/ldapclient/internal/metrics"
)

var errLifecycleBoom = errors.New("lifecycle boom")

type fakeClient struct {
	bindErr      error
	searchErr    error
	lifecycleErr error
}

func (f *fakeClient) BindLookup() error                                   { return nil }
func (f *fakeClient) LookupDN(username string) (string, error)            { return "dn-" + username, nil }
func (f *fakeClient) UserBind(dn, password string) error                  { return f.bindErr }
func (f *fakeClient) UserSearch(dn, password, filter string) (int, error) { return 1, f.searchErr }
func (f *fakeClient) Lifecycle(username, ou string) error                 { return f.lifecycleErr }
func (f *fakeClient) Close()                                              {}

func TestPrepareFilter(t *testing.T) {
	cfg := &config.Config{Filter: "(uid=%s)"}
	r := &Runner{cfg: cfg}

	if got := r.prepareFilter("alice"); got != "(uid=alice)" {
		t.Fatalf("unexpected filter: %s", got)
	}

	cfg2 := &config.Config{Filter: "(objectClass=person)"}
	r2 := &Runner{cfg: cfg2}

	if got := r2.prepareFilter("ignored"); got != cfg2.Filter {
		t.Fatalf("unexpected filter passthrough: %s", got)
	}
}

func TestRunOnce_ModeAuth_Success(t *testing.T) {
	cfg := &config.Config{Mode: config.ModeAuth}
	users := &csvdata.Users{All: []csvdata.User{{Username: "bob", Password: "pw"}}}
	m := metrics.New()
	r := &Runner{cfg: cfg, client: &fakeClient{}, users: users, m: m}

	r.runOnce()

	att, suc, fal, _ := m.Snapshot()
	if att != 1 || suc != 1 || fal != 0 {
		t.Fatalf("metrics mismatch: att=%d suc=%d fail=%d", att, suc, fal)
	}
}

func TestRunOnce_ModeLifecycle(t *testing.T) {
	cfg := &config.Config{Mode: config.ModeLifecycle}
	users := &csvdata.Users{All: []csvdata.User{{Username: "bob", Password: "pw", OU: "ou=moved,dc=example,dc=org"}}}
	m := metrics.New()
	r := &Runner{cfg: cfg, client: &fakeClient{}, users: users, m: m}

	r.runOnce()

	att, suc, fal, _ := m.Snapshot()
	if att != 1 || suc != 1 || fal != 0 {
		t.Fatalf("metrics mismatch: att=%d suc=%d fail=%d", att, suc, fal)
	}

	ops := m.Ops.Snapshot()
	if ops["lookup"].Success != 1 || ops["lifecycle"].Success != 1 {
		t.Fatalf("unexpected op breakdown: %+v", ops)
	}
}

func TestRunOnce_ModeLifecycle_Failure(t *testing.T) {
	cfg := &config.Config{Mode: config.ModeLifecycle}
	users := &csvdata.Users{All: []csvdata.User{{Username: "bob", Password: "pw"}}}
	m := metrics.New()
	r := &Runner{cfg: cfg, client: &fakeClient{lifecycleErr: errLifecycleBoom}, users: users, m: m}

	r.runOnce()

	att, suc, fal, _ := m.Snapshot()
	if att != 1 || suc != 0 || fal != 1 {
		t.Fatalf("metrics mismatch: att=%d suc=%d fail=%d", att, suc, fal)
	}

	if got := m.Ops.Snapshot()["lifecycle"].Fail; got != 1 {
		t.Fatalf("expected one recorded lifecycle failure, got %d", got)
	}
}
