// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuGH/overlaycast/internal/config"
	xglog "github.com/ManuGH/overlaycast/internal/log"
	"github.com/ManuGH/overlaycast/internal/player"
	"github.com/ManuGH/overlaycast/internal/preview"
	"github.com/ManuGH/overlaycast/internal/version"
)

// probeFunc is swapped in tests.
var probeFunc = preview.Probe

func newProbeCmd(opts *rootOptions) *cobra.Command {
	var (
		timeout time.Duration
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "probe <url>",
		Short: "Run one headless playback session and report the outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewLoader(opts.resolveConfigPath(), version.Version).Load()
			if err != nil {
				return err
			}
			if timeout > 0 {
				cfg.Player.LoadTimeout = timeout
			}
			// the probe reports through stdout; keep library logs quiet
			xglog.Configure(xglog.Config{Level: "warn", Output: cmd.ErrOrStderr()})

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Player.LoadTimeout+5*time.Second)
			defer cancel()

			snap, err := probeFunc(ctx, cfg, args[0], preview.ProbeDeps{})
			if err != nil {
				return fmt.Errorf("probe %s: %w", args[0], err)
			}
			if err := printProbe(cmd.OutOrStdout(), snap, asJSON); err != nil {
				return err
			}
			if snap.State == player.StateError {
				return fmt.Errorf("playback failed: %s", snap.Message)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "loading timeout (defaults to player.loadTimeout)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the player snapshot as JSON")
	return cmd
}

func printProbe(w io.Writer, snap player.Snapshot, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	_, err := fmt.Fprintf(w, "source:   %s\nstrategy: %s\nstate:    %s\n", snap.Source, snap.Kind, snap.State)
	if err == nil && snap.Error != nil {
		_, err = fmt.Fprintf(w, "error:    %s\n", snap.Message)
	}
	return err
}
