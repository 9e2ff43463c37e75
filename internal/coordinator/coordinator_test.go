package coordinator_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fleetd/internal/config"
	"fleetd/internal/coordinator"
	"fleetd/internal/httpapi"
	"fleetd/internal/store"
	"fleetd/pkg/types"
)

func newCoordinator(t *testing.T, mutate func(*config.Config), withDB bool) *coordinator.Coordinator {
	t.Helper()
	cfg := config.Defaults()
	cfg.Admins = []string{"root"}
	if mutate != nil {
		mutate(&cfg)
	}
	opts := coordinator.Options{Config: cfg, Logger: zerolog.Nop()}
	if withDB {
		db, err := store.Open(filepath.Join(t.TempDir(), "fleetd.db"))
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		t.Cleanup(func() { db.Close() })
		opts.DB = db
	}
	c, err := coordinator.New(context.Background(), opts)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for !c.Ready() {
		if time.Now().After(deadline) {
			t.Fatalf("coordinator never became ready")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return c
}

func call(t *testing.T, srv *httptest.Server, method, path, login string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if login != "" {
		req.Header.Set("X-Fleet-Login", login)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func query(t *testing.T, srv *httptest.Server, login string, req types.QueryNodesRequest) types.QueryNodesResponse {
	t.Helper()
	resp := call(t, srv, http.MethodPost, "/api/nodes/query", login, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("query status=%d", resp.StatusCode)
	}
	var out types.QueryNodesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.OnlineMode = "telepathy"
	if _, err := coordinator.New(context.Background(), coordinator.Options{Config: cfg, Logger: zerolog.Nop()}); err == nil {
		t.Fatalf("expected config error")
	}
}

func TestHandlers_ListsEveryCommand(t *testing.T) {
	c := newCoordinator(t, nil, false)
	seen := map[string]bool{}
	generic := 0
	for _, h := range c.Handlers() {
		if h.Kind != "command" {
			continue
		}
		seen[h.Message] = true
		if strings.HasPrefix(h.Message, "entityset.") {
			generic++
		}
	}
	for _, want := range []string{"fleet.QueryNodesCommand", "fleet.ReportNodeCommand", "fleet.RemoveNodeCommand"} {
		if !seen[want] {
			t.Fatalf("missing handler for %s in %v", want, seen)
		}
	}
	// add, update, remove and refresh for four catalogs
	if generic < 12 {
		t.Fatalf("expected catalog command handlers, got %d", generic)
	}
}

func TestEndToEnd_ReportQueryUpdateRemove(t *testing.T) {
	c := newCoordinator(t, nil, true)
	srv := httptest.NewServer(httpapi.NewMux(c))
	defer srv.Close()

	alice, bob := uuid.New(), uuid.New()
	for _, n := range []types.Node{
		{ClientID: alice, LoginName: "alice", MinerName: "rig-a", IsMining: true, MainCoinCode: "ETH", MainCoinSpeed: 30, AESPassword: "k1"},
		{ClientID: bob, LoginName: "bob", MinerName: "rig-b", MainCoinCode: "ETC"},
	} {
		if resp := call(t, srv, http.MethodPost, "/api/nodes/report", "", n); resp.StatusCode != http.StatusNoContent {
			t.Fatalf("report status=%d", resp.StatusCode)
		}
	}

	all := query(t, srv, "root", types.QueryNodesRequest{SortDirection: types.SortAscending, PageIndex: 1, PageSize: 10})
	if all.Total != 2 || all.OnlineCount != 2 || all.MiningCount != 1 {
		t.Fatalf("admin view: %+v", all)
	}
	if all.Nodes[0].AESPassword != "" {
		t.Fatalf("credential leaked through query")
	}
	own := query(t, srv, "alice", types.QueryNodesRequest{PageIndex: 1, PageSize: 10})
	if own.Total != 1 || own.Nodes[0].ClientID != alice {
		t.Fatalf("alice view: %+v", own)
	}

	id := own.Nodes[0].ID
	resp := call(t, srv, http.MethodPatch, "/api/nodes/"+id, "root", types.UpdateNodeFieldRequest{Field: "MinerName", Value: "rig-z"})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("update status=%d", resp.StatusCode)
	}
	if n, _ := c.Fleet().GetByID(id); n.MinerName != "rig-z" || n.AESPassword != "k1" {
		t.Fatalf("after update: %+v", n)
	}
	resp = call(t, srv, http.MethodPatch, "/api/nodes/"+id, "root", types.UpdateNodeFieldRequest{Field: "IsMining", Value: "maybe"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("coerce failure status=%d", resp.StatusCode)
	}

	if resp := call(t, srv, http.MethodDelete, "/api/nodes/"+id, "alice", nil); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-admin delete status=%d", resp.StatusCode)
	}
	if resp := call(t, srv, http.MethodDelete, "/api/nodes/"+id, "root", nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status=%d", resp.StatusCode)
	}
	if got := query(t, srv, "root", types.QueryNodesRequest{PageIndex: 1, PageSize: 10}); got.Total != 1 {
		t.Fatalf("after delete total=%d", got.Total)
	}
	if err := c.Fleet().Validate(); err != nil {
		t.Fatalf("indices: %v", err)
	}
}

func TestGroupRemovalGuardedByNodes(t *testing.T) {
	c := newCoordinator(t, nil, true)
	srv := httptest.NewServer(httpapi.NewMux(c))
	defer srv.Close()

	gid := uuid.New()
	body := map[string]any{"id": gid, "name": "farm-a"}
	if resp := call(t, srv, http.MethodPost, "/api/groups", "root", body); resp.StatusCode != http.StatusCreated {
		t.Fatalf("add group status=%d", resp.StatusCode)
	}
	if resp := call(t, srv, http.MethodPost, "/api/nodes/report", "", types.Node{ClientID: uuid.New(), MinerName: "rig"}); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("report status=%d", resp.StatusCode)
	}
	nodes := query(t, srv, "root", types.QueryNodesRequest{PageIndex: 1, PageSize: 10}).Nodes
	values := map[string]any{nodes[0].ID: gid.String()}
	if resp := call(t, srv, http.MethodPatch, "/api/nodes", "root", types.UpdateNodesFieldRequest{Field: "GroupID", Values: values}); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("batch status=%d", resp.StatusCode)
	}
	if got := query(t, srv, "root", types.QueryNodesRequest{GroupID: gid}); got.Total != 1 {
		t.Fatalf("group filter total=%d", got.Total)
	}

	if resp := call(t, srv, http.MethodDelete, fmt.Sprintf("/api/groups/%s", gid), "root", nil); resp.StatusCode != http.StatusConflict {
		t.Fatalf("guarded delete status=%d", resp.StatusCode)
	}
	if _, ok := c.Catalog().Groups.TryGet(context.Background(), gid); !ok {
		t.Fatalf("group removed despite guard")
	}
}

func TestStatus(t *testing.T) {
	c := newCoordinator(t, nil, false)
	if err := c.Fleet().Report(context.Background(), types.Node{ClientID: uuid.New(), IsMining: true}); err != nil {
		t.Fatalf("report: %v", err)
	}
	st := c.Status()
	if !st.Ready || st.InitedOnUnix == 0 || st.Nodes.Total != 1 || st.Nodes.MiningCount != 1 {
		t.Fatalf("status %+v", st)
	}
}

func TestPullMode_ProbeResultsReachRegistry(t *testing.T) {
	c := newCoordinator(t, func(cfg *config.Config) {
		cfg.OnlineMode = config.OnlinePull
		cfg.PullTimeout = config.Duration(200 * time.Millisecond)
	}, false)
	if c.Pull() == nil {
		t.Fatalf("pull policy not installed")
	}
	ctx := context.Background()
	// 127.0.0.1 on the default agent port is not listening in tests.
	if err := c.Fleet().Report(ctx, types.Node{ClientID: uuid.New(), MinerIP: "127.0.0.1"}); err != nil {
		t.Fatalf("report: %v", err)
	}
	c.Fleet().QueryNodes(nil, types.QueryNodesRequest{PageIndex: 1, PageSize: 10})
	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Pull().Wait(wctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	resp := c.Fleet().QueryNodes(nil, types.QueryNodesRequest{PageIndex: 1, PageSize: 10})
	if resp.Nodes[0].IsOnline {
		t.Fatalf("unreachable agent still online")
	}
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	c := newCoordinator(t, nil, false)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Serve(ctx, "127.0.0.1:0", time.Second) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not return")
	}
}
