// Package agent is the per-node side of the fleet: it reports the node's
// state to the coordinator and runs mining jobs through a JobRunner.
package agent

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fleetd/internal/hub"
	"fleetd/pkg/types"
)

var (
	startHandlerID = uuid.MustParse("3c2a9e41-5b7d-4f80-a1c3-7e9d2b4f6a01")
	stopHandlerID  = uuid.MustParse("3c2a9e41-5b7d-4f80-a1c3-7e9d2b4f6a02")
	closeHandlerID = uuid.MustParse("3c2a9e41-5b7d-4f80-a1c3-7e9d2b4f6a03")
)

const defaultInterval = 20 * time.Second

// SpeedReporter is optionally implemented by a JobRunner that knows the
// current hash rates.
type SpeedReporter interface {
	Speeds() (main, dual float64)
}

type Config struct {
	Hub    *hub.Hub
	Runner JobRunner
	// Coordinator is the base URL of the coordinator API.
	Coordinator string
	ClientID    uuid.UUID
	LoginName   string
	MinerName   string
	WorkerName  string
	Version     string
	Interval    time.Duration
	Logger      zerolog.Logger
}

type Agent struct {
	hub    *hub.Hub
	runner JobRunner
	cfg    Config
	log    zerolog.Logger
	client *reportClient

	mu   sync.Mutex
	spec *KernelSpec

	kick      chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

// New registers the agent's command handlers on cfg.Hub.
func New(cfg Config) *Agent {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Runner == nil {
		cfg.Runner = &ExecRunner{}
	}
	a := &Agent{
		hub:    cfg.Hub,
		runner: cfg.Runner,
		cfg:    cfg,
		log:    cfg.Logger.With().Str("component", "agent").Logger(),
		kick:   make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
	a.client = newReportClient(cfg.Coordinator, cfg.LoginName)
	hub.Handle(a.hub, startHandlerID, "start mining", hub.LogInfo, a.startMining)
	hub.Handle(a.hub, stopHandlerID, "stop mining", hub.LogInfo, a.stopMining)
	hub.Handle(a.hub, closeHandlerID, "close agent", hub.LogInfo, a.closeAgent)
	return a
}

// Commands lists the commands the agent must handle.
func Commands() []any {
	return []any{StartMiningCommand{}, StopMiningCommand{}, CloseAgentCommand{}}
}

func (a *Agent) startMining(ctx context.Context, c StartMiningCommand) error {
	// The job outlives the request that started it.
	if err := a.runner.Start(context.WithoutCancel(ctx), c.Spec); err != nil {
		return err
	}
	spec := c.Spec
	a.mu.Lock()
	a.spec = &spec
	a.mu.Unlock()
	a.log.Info().Str("kernel", spec.Kernel).Str("coin", spec.CoinCode).Msg("mining started")
	a.hub.Publish(ctx, MiningStartedEvent{Spec: spec})
	a.reportSoon()
	return nil
}

func (a *Agent) stopMining(ctx context.Context, _ StopMiningCommand) error {
	if err := a.runner.Stop(); err != nil {
		return err
	}
	a.mu.Lock()
	a.spec = nil
	a.mu.Unlock()
	a.log.Info().Msg("mining stopped")
	a.hub.Publish(ctx, MiningStoppedEvent{})
	a.reportSoon()
	return nil
}

func (a *Agent) closeAgent(_ context.Context, c CloseAgentCommand) error {
	a.closeOnce.Do(func() {
		a.log.Info().Str("reason", c.Reason).Msg("agent closing")
		close(a.closed)
	})
	return nil
}

// Done is closed once a CloseAgentCommand has run.
func (a *Agent) Done() <-chan struct{} { return a.closed }

func (a *Agent) reportSoon() {
	select {
	case a.kick <- struct{}{}:
	default:
	}
}

// State is the node record the agent reports. The coordinator fills in the
// storage id, the address and the timestamps.
func (a *Agent) State() types.Node {
	n := types.Node{
		ClientID:   a.cfg.ClientID,
		LoginName:  a.cfg.LoginName,
		MinerName:  a.cfg.MinerName,
		WorkerName: a.cfg.WorkerName,
		Version:    a.cfg.Version,
		IsMining:   a.runner.Running(),
	}
	a.mu.Lock()
	spec := a.spec
	a.mu.Unlock()
	if spec != nil {
		n.Kernel = spec.Kernel
		n.MainCoinCode = spec.CoinCode
		n.MainCoinPool = spec.Pool
		n.MainCoinWallet = spec.Wallet
		if spec.DualCoin != "" {
			n.IsDualCoinEnabled = true
			n.DualCoinCode = spec.DualCoin
			n.DualCoinPool = spec.DualPool
			n.DualCoinWallet = spec.DualWallet
		}
	}
	if sr, ok := a.runner.(SpeedReporter); ok && n.IsMining {
		n.MainCoinSpeed, n.DualCoinSpeed = sr.Speeds()
	}
	return n
}

// Run reports the node state right away and then every interval, or sooner
// after a job change. It returns when ctx is done or the agent is closed.
func (a *Agent) Run(ctx context.Context) error {
	t := time.NewTicker(a.cfg.Interval)
	defer t.Stop()
	for {
		if err := a.client.report(ctx, a.State()); err != nil && ctx.Err() == nil {
			a.log.Warn().Err(err).Msg("report failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-a.closed:
			return nil
		case <-t.C:
		case <-a.kick:
		}
	}
}

// Shutdown stops any running job.
func (a *Agent) Shutdown() error {
	if !a.runner.Running() {
		return nil
	}
	return a.runner.Stop()
}
