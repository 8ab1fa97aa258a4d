// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

// Command pakloadctl is the operator CLI: it mints bearer tokens, inspects
// and edits a device queue, and drives a running agent.
//
//	pakloadctl token --subject truck-17 --role driver --device truck-17
//	pakloadctl queue ls --path /var/lib/pakload/queue
//	pakloadctl queue discard status 1740823200000-3f2a9c1d
//	pakloadctl sync-now
//	pakloadctl pending
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/awakeelkhan/pakload-sub003/internal/config"
	"github.com/awakeelkhan/pakload-sub003/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "pakloadctl: %v\n", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	agentAddr string
	jsonOut   bool
	verbose   bool
	cfg       *config.Config
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "pakloadctl",
		Short: "PakLoad operator CLI",
		Long: `pakloadctl mints tokens for devices and dispatchers, inspects a stopped
agent's durable queue, and triggers syncs on a running agent.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := "warn"
			if opts.verbose {
				level = "debug"
			}
			logging.Init(logging.Config{Level: level, Format: "console", Output: os.Stderr})

			cfg, err := config.Load(config.ComponentCtl)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			if opts.agentAddr == "" {
				opts.agentAddr = cfg.Agent.ControlAddr
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&opts.agentAddr, "agent", "", "Agent control API address (default from AGENT_CONTROL_ADDR)")
	cmd.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "Print JSON instead of text")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug output to stderr")

	cmd.AddCommand(
		newTokenCmd(opts),
		newQueueCmd(opts),
		newSyncNowCmd(opts),
		newPendingCmd(opts),
	)
	return cmd
}
