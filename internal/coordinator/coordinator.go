// Package coordinator wires the hub, the catalogs, the fleet registry and
// their storage into the service behind the HTTP API.
package coordinator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"fleetd/internal/catalog"
	"fleetd/internal/config"
	"fleetd/internal/fleet"
	"fleetd/internal/httpapi"
	"fleetd/internal/hub"
	"fleetd/internal/store"
	"fleetd/pkg/types"
)

// Options configures New. A nil DB keeps all state in memory.
type Options struct {
	Config config.Config
	DB     *sql.DB
	Logger zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

type Coordinator struct {
	hub     *hub.Hub
	fleet   *fleet.Registry
	catalog *catalog.Catalog
	pull    *fleet.PullPolicy
	cfg     config.Config
	log     zerolog.Logger
	started time.Time
}

// New builds every component and verifies that each critical command has a
// handler. ctx bounds the background load of the fleet.
func New(ctx context.Context, opts Options) (*Coordinator, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	c := &Coordinator{
		hub:     hub.New(opts.Logger),
		cfg:     cfg,
		log:     opts.Logger.With().Str("component", "coordinator").Logger(),
		started: now(),
	}

	var policy fleet.OnlinePolicy = fleet.PushPolicy{Timeout: cfg.HeartbeatTimeout.Std()}
	if cfg.OnlineMode == config.OnlinePull {
		c.pull = &fleet.PullPolicy{
			Client:      &http.Client{Timeout: cfg.PullTimeout.Std()},
			Concurrency: cfg.PullConcurrency,
			Logger:      opts.Logger,
			OnResult:    c.onProbe,
		}
		policy = c.pull
	}

	fcfg := fleet.Config{Hub: c.hub, Policy: policy, Logger: opts.Logger, Now: now}
	repos := catalog.MemoryRepositories()
	if opts.DB != nil {
		ns := store.NewNodeStore(opts.DB)
		fcfg.Store = ns
		fcfg.Loader = ns.Loader(ctx, opts.Logger)
		repos = store.Repositories(opts.DB)
	}
	c.fleet = fleet.New(fcfg)
	c.catalog = catalog.New(catalog.Config{
		Hub:          c.hub,
		Repositories: repos,
		References:   c.fleet,
		Logger:       opts.Logger,
	})

	cmds := append(fleet.Commands(), catalog.Commands()...)
	if err := c.hub.Verify(cmds...); err != nil {
		return nil, fmt.Errorf("wiring: %w", err)
	}
	return c, nil
}

// onProbe writes a pull probe result back into the registry.
func (c *Coordinator) onProbe(id string, online bool) {
	ctx := context.Background()
	if err := c.hub.Execute(ctx, fleet.UpdateNodeFieldCommand{ID: id, Field: "IsOnline", Value: online}); err != nil {
		c.log.Warn().Err(err).Str("node", id).Msg("record probe result")
	}
}

func (c *Coordinator) Hub() *hub.Hub             { return c.hub }
func (c *Coordinator) Fleet() *fleet.Registry    { return c.fleet }
func (c *Coordinator) Catalog() *catalog.Catalog { return c.catalog }

// Pull returns the pull policy, or nil in push mode.
func (c *Coordinator) Pull() *fleet.PullPolicy { return c.pull }

func (c *Coordinator) Ready() bool { return c.fleet.IsReady() }

func (c *Coordinator) Status() types.StatusResponse {
	now := time.Now()
	st := types.StatusResponse{
		Ready:          c.fleet.IsReady(),
		UptimeSeconds:  int64(now.Sub(c.started).Seconds()),
		ServerTimeUnix: now.Unix(),
	}
	if st.Ready {
		st.InitedOnUnix = c.fleet.InitedOn().Unix()
		st.Nodes = c.fleet.Count()
	}
	return st
}

// Dispatch executes cmd and waits for it, UI-affine or not.
func (c *Coordinator) Dispatch(ctx context.Context, cmd any) error {
	return c.hub.ExecuteWait(ctx, cmd)
}

func (c *Coordinator) Caller(login string) *fleet.Caller {
	return &fleet.Caller{LoginName: login, IsAdmin: c.cfg.IsAdmin(login)}
}

func (c *Coordinator) Handlers() []types.HandlerInfo {
	regs := c.hub.Registrations()
	out := make([]types.HandlerInfo, 0, len(regs))
	for _, r := range regs {
		out = append(out, types.HandlerInfo{
			ID:          r.ID.String(),
			Kind:        string(r.Kind),
			Message:     r.MessageType.String(),
			Description: r.Description,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Message < out[j].Message
	})
	return out
}

// RunStats refreshes the fleet gauges every interval until ctx is done.
func (c *Coordinator) RunStats(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !c.fleet.IsReady() {
				continue
			}
			c.fleet.ObserveMetrics()
			if err := c.fleet.Validate(); err != nil {
				c.log.Error().Err(err).Msg("fleet index check failed")
			}
		}
	}
}

// Serve runs the HTTP API on addr until ctx is done, then shuts down
// gracefully within shutdownTimeout.
func (c *Coordinator) Serve(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	httpapi.SetLogger(c.log)
	httpapi.SetBaseContext(ctx)
	httpapi.SetMaxBodyBytes(c.cfg.MaxBodyBytes)
	httpapi.SetCORSOptions(c.cfg.CORS.Enabled, c.cfg.CORS.Origins, c.cfg.CORS.Methods, c.cfg.CORS.Headers)

	srv := &http.Server{
		Addr:              addr,
		Handler:           httpapi.NewMux(c),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go c.RunStats(ctx, c.cfg.StatsInterval.Std())

	errc := make(chan error, 1)
	go func() {
		c.log.Info().Str("addr", addr).Str("online_mode", c.cfg.OnlineMode).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
