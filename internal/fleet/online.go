package fleet

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"fleetd/pkg/types"
)

const (
	defaultHeartbeatTimeout = 3 * time.Minute
	defaultProbeTimeout     = 3 * time.Second
	defaultProbeConcurrency = 16
	defaultAgentPort        = 3336
)

// OnlinePolicy decides node liveness. IsOnline is evaluated over the full
// filtered set for counts; CheckIsOnline runs on the returned page only and
// may rewrite IsOnline on the page copies.
type OnlinePolicy interface {
	IsOnline(n *types.Node, now time.Time) bool
	CheckIsOnline(nodes []types.Node, now time.Time)
}

// PushPolicy treats a node as online while its last report is younger than
// Timeout.
type PushPolicy struct {
	Timeout time.Duration
}

func (p PushPolicy) timeout() time.Duration {
	if p.Timeout <= 0 {
		return defaultHeartbeatTimeout
	}
	return p.Timeout
}

func (p PushPolicy) IsOnline(n *types.Node, now time.Time) bool {
	if n.ReportedOn.IsZero() {
		return false
	}
	return now.Sub(n.ReportedOn) < p.timeout()
}

func (p PushPolicy) CheckIsOnline(nodes []types.Node, now time.Time) {
	for i := range nodes {
		nodes[i].IsOnline = p.IsOnline(&nodes[i], now)
	}
}

// PullPolicy actively probes each agent over HTTP. The stored IsOnline flag
// is the answer to IsOnline; probes run in the background and deliver
// their result through OnResult.
type PullPolicy struct {
	Client      *http.Client
	AgentPort   int
	Concurrency int
	OnResult    func(id string, online bool)
	Logger      zerolog.Logger

	once     sync.Once
	sem      chan struct{}
	mu       sync.Mutex
	inflight map[string]bool
}

func (p *PullPolicy) init() {
	p.once.Do(func() {
		if p.Client == nil {
			p.Client = &http.Client{Timeout: defaultProbeTimeout}
		}
		if p.AgentPort <= 0 {
			p.AgentPort = defaultAgentPort
		}
		n := p.Concurrency
		if n <= 0 {
			n = defaultProbeConcurrency
		}
		p.sem = make(chan struct{}, n)
		p.inflight = make(map[string]bool)
	})
}

func (p *PullPolicy) IsOnline(n *types.Node, _ time.Time) bool { return n.IsOnline }

func (p *PullPolicy) CheckIsOnline(nodes []types.Node, _ time.Time) {
	p.init()
	for _, n := range nodes {
		if n.MinerIP == "" {
			continue
		}
		p.mu.Lock()
		busy := p.inflight[n.ID]
		if !busy {
			p.inflight[n.ID] = true
		}
		p.mu.Unlock()
		if busy {
			continue
		}
		go p.probe(n.ID, n.MinerIP)
	}
}

// Wait blocks until no probe is in flight. Used by tests and shutdown.
func (p *PullPolicy) Wait(ctx context.Context) error {
	p.init()
	t := time.NewTicker(5 * time.Millisecond)
	defer t.Stop()
	for {
		p.mu.Lock()
		n := len(p.inflight)
		p.mu.Unlock()
		if n == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (p *PullPolicy) probe(id, ip string) {
	p.sem <- struct{}{}
	defer func() {
		<-p.sem
		p.mu.Lock()
		delete(p.inflight, id)
		p.mu.Unlock()
	}()
	online := p.ping(ip)
	if p.OnResult != nil {
		p.OnResult(id, online)
	}
}

func (p *PullPolicy) ping(ip string) bool {
	url := fmt.Sprintf("http://%s/healthz", net.JoinHostPort(ip, strconv.Itoa(p.AgentPort)))
	resp, err := p.Client.Get(url)
	if err != nil {
		p.Logger.Debug().Err(err).Str("ip", ip).Msg("agent probe failed")
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
