// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/awakeelkhan/pakload-sub003/internal/agent"
)

func newSyncNowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-now",
		Short: "Ask the running agent to sync immediately",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := agent.NewControlClient(opts.agentAddr, 0).SyncNow(cmd.Context())
			var ce *agent.ControlError
			if errors.As(err, &ce) && ce.StatusCode == http.StatusTooManyRequests {
				return errors.New("sync was just requested, try again in a moment")
			}
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			if res.Skipped {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "server unreachable, nothing sent")
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "delivered %d of %d (%d failed, %d rejected) in %s\n",
				res.Delivered, res.Attempted, res.Failed, res.Rejected, res.Duration.Round(time.Millisecond))
			return err
		},
	}
}

func newPendingCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "Show the running agent's pending counter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := agent.NewControlClient(opts.agentAddr, 0).Pending(cmd.Context())
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), p)
			}
			online := "offline"
			if p.Online {
				online = "online"
			}
			last := "never"
			if p.LastSync != nil {
				last = p.LastSync.UTC().Format(time.RFC3339)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s (%d location, %d status), %s, last sync %s\n",
				p.Message, p.Pending.Location, p.Pending.Status, online, last)
			return err
		},
	}
}
