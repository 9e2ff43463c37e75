package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fleetd/internal/agent"
	"fleetd/internal/config"
	"fleetd/internal/hub"
	"fleetd/internal/uiloop"
)

func newAgentCmd(opts *options) *cobra.Command {
	var coordinatorURL, login, minerName, workerName, listen string
	cmd := &cobra.Command{
		Use:     "agent",
		Short:   "Run the per-node agent",
		Example: "  fleetd agent --coordinator http://10.0.0.2:3339 --login alice --miner-name rig-01",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(func(c *config.Config) {
				set := func(dst *string, v string) {
					if v != "" {
						*dst = v
					}
				}
				set(&c.Agent.Coordinator, coordinatorURL)
				set(&c.Agent.LoginName, login)
				set(&c.Agent.MinerName, minerName)
				set(&c.Agent.WorkerName, workerName)
				set(&c.Agent.Listen, listen)
			})
			if err != nil {
				return err
			}
			log, err := opts.logger(cfg)
			if err != nil {
				return err
			}
			clientID, err := agent.LoadOrCreateClientID(cfg.Agent.ClientIDFile)
			if err != nil {
				return err
			}
			if cfg.Agent.MinerName == "" {
				cfg.Agent.MinerName, _ = os.Hostname()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			h := hub.New(log)
			loop := uiloop.New()
			h.SetUIRunner(loop)
			a := agent.New(agent.Config{
				Hub:         h,
				Coordinator: cfg.Agent.Coordinator,
				ClientID:    clientID,
				LoginName:   cfg.Agent.LoginName,
				MinerName:   cfg.Agent.MinerName,
				WorkerName:  cfg.Agent.WorkerName,
				Version:     version,
				Interval:    cfg.Agent.Interval.Std(),
				Logger:      log,
			})
			if err := h.Verify(agent.Commands()...); err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			go loop.Run(ctx)
			go func() {
				select {
				case <-a.Done():
					cancel()
				case <-ctx.Done():
				}
			}()
			go func() {
				if err := a.Serve(ctx, cfg.Agent.Listen); err != nil {
					log.Error().Err(err).Str("addr", cfg.Agent.Listen).Msg("agent listener failed")
					cancel()
				}
			}()
			log.Info().Str("client_id", clientID.String()).Str("coordinator", cfg.Agent.Coordinator).Msg("agent started")
			err = a.Run(ctx)
			if serr := a.Shutdown(); serr != nil {
				log.Warn().Err(serr).Msg("stop job")
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&coordinatorURL, "coordinator", "", "Coordinator base URL (defaults FLEETD_COORDINATOR)")
	f.StringVar(&login, "login", "", "Owner login reported with every heartbeat")
	f.StringVar(&minerName, "miner-name", "", "Miner name (defaults to the host name)")
	f.StringVar(&workerName, "worker-name", "", "Worker name")
	f.StringVar(&listen, "listen", "", "Local API address probed in pull mode (default :3336)")
	return cmd
}
