// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command overlaycast runs the overlay compositing backend and its headless
// stream preview.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ManuGH/overlaycast/internal/daemon"
	xglog "github.com/ManuGH/overlaycast/internal/log"
	"github.com/ManuGH/overlaycast/internal/version"
)

// envConfigPath names the config file when --config is not given.
const envConfigPath = "OVERLAYCAST_CONFIG"

type rootOptions struct {
	configPath string
}

func (o *rootOptions) resolveConfigPath() string {
	if p := strings.TrimSpace(o.configPath); p != "" {
		return p
	}
	return strings.TrimSpace(os.Getenv(envConfigPath))
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "overlaycast",
		Short:         "Stream overlay backend with a headless preview player",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"path to config file (YAML); defaults to $"+envConfigPath)

	root.AddCommand(
		newServeCmd(opts),
		newConfigCmd(opts),
		newProbeCmd(opts),
		newHealthcheckCmd(),
		newVersionCmd(),
	)
	return root
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API, metrics and preview player until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// safe defaults until the configuration is loaded
			xglog.Configure(xglog.Config{
				Level:   "info",
				Service: daemon.ServiceName,
				Version: version.Version,
			})
			logger := xglog.WithComponent("daemon")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			path := opts.resolveConfigPath()
			rt, err := daemon.Bootstrap(ctx, daemon.Options{
				Version:    version.Version,
				ConfigPath: path,
			})
			if err != nil {
				logger.Error().
					Err(err).
					Str(xglog.FieldEvent, "daemon.bootstrap_failed").
					Str(xglog.FieldPath, path).
					Msg("failed to start")
				return err
			}

			logger = xglog.WithComponent("daemon")
			logger.Info().
				Str(xglog.FieldEvent, "daemon.started").
				Str("version", version.Version).
				Str("config", configSource(path)).
				Msg("overlaycast running")

			if err := rt.App.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			logger.Info().Str(xglog.FieldEvent, "daemon.stopped").Msg("overlaycast stopped")
			return nil
		},
	}
}

func configSource(path string) string {
	if path == "" {
		return "env+defaults"
	}
	return path
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

