package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fleetd/internal/config"
	"fleetd/internal/coordinator"
	"fleetd/internal/httpapi"
	"fleetd/internal/store"
)

func newServeCmd(opts *options) *cobra.Command {
	var (
		addr           string
		onlineMode     string
		admins         string
		corsEnabled    bool
		corsOrigins    string
		commandTimeout time.Duration
	)
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the fleet coordinator",
		Example: "  fleetd serve --addr :3339 --admins root,ops\n  fleetd serve --config /etc/fleetd.yaml --online-mode pull",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(func(c *config.Config) {
				if addr != "" {
					c.Addr = addr
				}
				if onlineMode != "" {
					c.OnlineMode = onlineMode
				}
				if admins != "" {
					c.Admins = splitCSV(admins)
				}
				if corsEnabled {
					c.CORS.Enabled = true
				}
				if corsOrigins != "" {
					c.CORS.Origins = splitCSV(corsOrigins)
				}
			})
			if err != nil {
				return err
			}
			log, err := opts.logger(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			db, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			c, err := coordinator.New(ctx, coordinator.Options{Config: cfg, DB: db, Logger: log})
			if err != nil {
				return err
			}
			httpapi.SetCommandTimeout(commandTimeout)
			err = c.Serve(ctx, cfg.Addr, 5*time.Second)
			if p := c.Pull(); p != nil {
				wctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				_ = p.Wait(wctx)
				cancel()
			}
			log.Info().Msg("coordinator stopped")
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&addr, "addr", "", "HTTP listen address (defaults FLEETD_ADDR or :3339)")
	f.StringVar(&onlineMode, "online-mode", "", "Online detection: push|pull")
	f.StringVar(&admins, "admins", "", "Comma-separated admin logins")
	f.BoolVar(&corsEnabled, "cors-enabled", false, "Enable CORS")
	f.StringVar(&corsOrigins, "cors-origins", "", "Comma-separated allowed CORS origins")
	f.DurationVar(&commandTimeout, "command-timeout", 0, "Per-request command timeout (0 disables)")
	return cmd
}
