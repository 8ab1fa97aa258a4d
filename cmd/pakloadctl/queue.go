// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/awakeelkhan/pakload-sub003/internal/agent"
	"github.com/awakeelkhan/pakload-sub003/internal/models"
	"github.com/awakeelkhan/pakload-sub003/internal/queue"
)

func newQueueCmd(opts *rootOptions) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect or edit a device queue",
		Long: `queue opens the agent's Badger directory directly. Badger allows one process
at a time, so stop the agent first or use --remote for discard.`,
	}
	cmd.PersistentFlags().StringVar(&path, "path", "", "Queue directory (default QUEUE_PATH)")

	openQueue := func() (*queue.Queue, error) {
		qcfg := queue.FromAppConfig(opts.cfg.Queue)
		if path != "" {
			qcfg.Path = path
		}
		return queue.Open(&qcfg)
	}

	cmd.AddCommand(newQueueLsCmd(opts, openQueue), newQueueDiscardCmd(opts, openQueue))
	return cmd
}

func newQueueLsCmd(opts *rootOptions, openQueue func() (*queue.Queue, error)) *cobra.Command {
	var (
		kind   string
		synced bool
	)
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List queued events, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := openQueue()
			if err != nil {
				return err
			}
			defer q.Close()

			ctx := cmd.Context()
			var entries []*queue.Entry
			kinds := models.Kinds
			if kind != "" {
				k, err := models.ParseEventKind(kind)
				if err != nil {
					return err
				}
				kinds = []models.EventKind{k}
			}
			for _, k := range kinds {
				var list []*queue.Entry
				if synced {
					list, err = q.ListSynced(ctx, k)
				} else {
					list, err = q.ListUnsynced(ctx, k)
				}
				if err != nil {
					return err
				}
				entries = append(entries, list...)
			}

			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			pending, err := q.PendingCount(ctx)
			if err != nil {
				return err
			}
			if err := printEntries(cmd.OutOrStdout(), entries); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), agent.StatusLine(pending))
			return err
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "Only this kind: location or status")
	cmd.Flags().BoolVar(&synced, "synced", false, "List acknowledged entries instead of pending ones")
	return cmd
}

func newQueueDiscardCmd(opts *rootOptions, openQueue func() (*queue.Queue, error)) *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "discard KIND ID",
		Short: "Remove an unsynced event the server keeps rejecting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := models.ParseEventKind(args[0])
			if err != nil {
				return err
			}
			id := args[1]

			if remote {
				err = agent.NewControlClient(opts.agentAddr, 0).Discard(cmd.Context(), kind, id)
			} else {
				var q *queue.Queue
				q, err = openQueue()
				if err != nil {
					return err
				}
				defer q.Close()
				err = q.Discard(cmd.Context(), kind, id)
			}
			if err != nil {
				return fmt.Errorf("discard %s %s: %w", kind, id, err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "discarded %s %s\n", kind, id)
			return err
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "Discard through the running agent's control API")
	return cmd
}

func printEntries(w io.Writer, entries []*queue.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tKIND\tID\tSUBJECT\tCREATED\tATTEMPTS\tSTATE\tLAST ERROR")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			e.Seq, e.Kind, e.ID, e.SubjectID,
			e.CreatedAt.UTC().Format(time.RFC3339), e.Attempts, entryState(e), e.LastError)
	}
	return tw.Flush()
}

func entryState(e *queue.Entry) string {
	switch {
	case e.Synced:
		return "synced"
	case e.Rejected:
		return "rejected"
	case e.Attempts > 0:
		return "retrying"
	default:
		return "pending"
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
