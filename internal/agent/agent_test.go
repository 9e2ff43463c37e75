package agent_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fleetd/internal/agent"
	"fleetd/internal/hub"
	"fleetd/internal/uiloop"
	"fleetd/pkg/types"
)

type fakeRunner struct {
	mu      sync.Mutex
	running bool
	starts  []agent.KernelSpec
	err     error
}

func (f *fakeRunner) Start(_ context.Context, spec agent.KernelSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.running = true
	f.starts = append(f.starts, spec)
	return nil
}

func (f *fakeRunner) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
	return nil
}

func (f *fakeRunner) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeRunner) Speeds() (float64, float64) { return 31.5, 0 }

type coordinator struct {
	srv     *httptest.Server
	reports chan types.Node
	logins  chan string
}

func newCoordinator(t *testing.T, status int) *coordinator {
	t.Helper()
	c := &coordinator{reports: make(chan types.Node, 16), logins: make(chan string, 16)}
	c.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/nodes/report" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var n types.Node
		_ = json.NewDecoder(r.Body).Decode(&n)
		c.reports <- n
		c.logins <- r.Header.Get("X-Fleet-Login")
		if status != http.StatusNoContent {
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: "nope", Code: status})
			return
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(c.srv.Close)
	return c
}

func (c *coordinator) next(t *testing.T) types.Node {
	t.Helper()
	select {
	case n := <-c.reports:
		return n
	case <-time.After(5 * time.Second):
		t.Fatalf("no report received")
		return types.Node{}
	}
}

func newAgent(t *testing.T, url string, runner agent.JobRunner) (*agent.Agent, *hub.Hub) {
	t.Helper()
	h := hub.New(zerolog.Nop())
	a := agent.New(agent.Config{
		Hub:         h,
		Runner:      runner,
		Coordinator: url + "/",
		ClientID:    uuid.MustParse("5a1d0c9e-8f2b-4d6a-b3e7-1c4f9a2d8e60"),
		LoginName:   "alice",
		MinerName:   "rig-01",
		Version:     "1.2.3",
		Interval:    time.Hour,
		Logger:      zerolog.Nop(),
	})
	return a, h
}

func TestRun_ReportsImmediatelyAndAfterJobChange(t *testing.T) {
	coord := newCoordinator(t, http.StatusNoContent)
	runner := &fakeRunner{}
	a, h := newAgent(t, coord.srv.URL, runner)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	first := coord.next(t)
	if first.ClientID.String() != "5a1d0c9e-8f2b-4d6a-b3e7-1c4f9a2d8e60" || first.IsMining || first.Version != "1.2.3" {
		t.Fatalf("first report %+v", first)
	}
	if login := <-coord.logins; login != "alice" {
		t.Fatalf("login header %q", login)
	}

	spec := agent.KernelSpec{Kernel: "PhoenixMiner5.5c", Command: "phoenix", CoinCode: "ETH", Pool: "pool:1", DualCoin: "ZIL"}
	if err := h.Execute(ctx, agent.StartMiningCommand{Spec: spec}); err != nil {
		t.Fatalf("start: %v", err)
	}
	second := coord.next(t)
	if !second.IsMining || second.Kernel != "PhoenixMiner5.5c" || second.MainCoinCode != "ETH" ||
		!second.IsDualCoinEnabled || second.DualCoinCode != "ZIL" || second.MainCoinSpeed != 31.5 {
		t.Fatalf("second report %+v", second)
	}

	if err := h.Execute(ctx, agent.StopMiningCommand{}); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if third := coord.next(t); third.IsMining || third.MainCoinCode != "" {
		t.Fatalf("third report %+v", third)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not stop")
	}
}

func TestRun_SurvivesRejectedReports(t *testing.T) {
	coord := newCoordinator(t, http.StatusBadRequest)
	a, h := newAgent(t, coord.srv.URL, &fakeRunner{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Run(ctx)

	coord.next(t)
	// A job change triggers another attempt even though the first failed.
	if err := h.Execute(ctx, agent.StopMiningCommand{}); err != nil {
		t.Fatalf("stop: %v", err)
	}
	coord.next(t)
}

func TestStartMining_RunnerError(t *testing.T) {
	runner := &fakeRunner{err: errors.New("kernel missing")}
	a, h := newAgent(t, "http://127.0.0.1:1", runner)
	rec := hub.Record[agent.MiningStartedEvent](h)
	if err := h.Execute(context.Background(), agent.StartMiningCommand{}); err == nil {
		t.Fatalf("expected runner error")
	}
	if rec.Len() != 0 || a.State().IsMining {
		t.Fatalf("failed start changed state")
	}
}

func TestCloseAgent_RunsOnUILoop(t *testing.T) {
	a, h := newAgent(t, "http://127.0.0.1:1", &fakeRunner{})
	loop := uiloop.New()
	h.SetUIRunner(loop)

	// Posted but not yet run: the loop is not running.
	if err := h.Execute(context.Background(), agent.CloseAgentCommand{Reason: "test"}); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case <-a.Done():
		t.Fatalf("close ran off the UI loop")
	default:
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)
	select {
	case <-a.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("close never ran")
	}
	// Closing twice is harmless.
	if err := h.ExecuteWait(ctx, agent.CloseAgentCommand{}); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestVerify_AgentCommandsWired(t *testing.T) {
	_, h := newAgent(t, "http://127.0.0.1:1", &fakeRunner{})
	if err := h.Verify(agent.Commands()...); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestHandler(t *testing.T) {
	runner := &fakeRunner{}
	a, _ := newAgent(t, "http://127.0.0.1:1", runner)
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %v %v", resp, err)
	}
	resp.Body.Close()

	body, _ := json.Marshal(agent.KernelSpec{Kernel: "k", CoinCode: "ETC"})
	resp, err = http.Post(srv.URL+"/mining/start", "application/json", bytes.NewReader(body))
	if err != nil || resp.StatusCode != http.StatusNoContent {
		t.Fatalf("start: %v %v", resp, err)
	}
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/state")
	if err != nil {
		t.Fatal(err)
	}
	var n types.Node
	_ = json.NewDecoder(resp.Body).Decode(&n)
	resp.Body.Close()
	if !n.IsMining || n.MainCoinCode != "ETC" {
		t.Fatalf("state %+v", n)
	}

	resp, err = http.Post(srv.URL+"/mining/start", "application/json", bytes.NewBufferString("{"))
	if err != nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad body: %v %v", resp, err)
	}
	resp.Body.Close()

	resp, err = http.Post(srv.URL+"/close", "application/json", nil)
	if err != nil || resp.StatusCode != http.StatusNoContent {
		t.Fatalf("close: %v %v", resp, err)
	}
	resp.Body.Close()
	select {
	case <-a.Done():
	default:
		t.Fatalf("headless close should run inline")
	}
}

func TestLoadOrCreateClientID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "client-id")
	id, err := agent.LoadOrCreateClientID(path)
	if err != nil || id == uuid.Nil {
		t.Fatalf("create: %v %v", id, err)
	}
	again, err := agent.LoadOrCreateClientID(path)
	if err != nil || again != id {
		t.Fatalf("reload: %v %v", again, err)
	}
	if err := os.WriteFile(path, []byte("garbage"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := agent.LoadOrCreateClientID(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestExecRunner(t *testing.T) {
	sleep, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not available")
	}
	r := &agent.ExecRunner{}
	if err := r.Start(context.Background(), agent.KernelSpec{}); err == nil {
		t.Fatalf("expected error for empty command")
	}
	if err := r.Start(context.Background(), agent.KernelSpec{Command: sleep, Args: []string{"30"}}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !r.Running() {
		t.Fatalf("not running")
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if r.Running() {
		t.Fatalf("still running after stop")
	}
}
