// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/awakeelkhan/pakload-sub003/internal/auth"
)

func newTokenCmd(opts *rootOptions) *cobra.Command {
	var (
		subject string
		role    string
		device  string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if subject == "" {
				return fmt.Errorf("--subject is required")
			}
			if !auth.ValidRole(role) {
				return fmt.Errorf("unknown role %q (want %s, %s or %s)", role, auth.RoleDriver, auth.RoleDispatcher, auth.RoleAdmin)
			}
			jm, err := auth.NewJWTManager(&opts.cfg.Security)
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = opts.cfg.Security.TokenTTL
			}
			token, err := jm.GenerateTokenWithTTL(subject, role, device, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Token subject (user or device name)")
	cmd.Flags().StringVar(&role, "role", auth.RoleDriver, "Role: driver, dispatcher or admin")
	cmd.Flags().StringVar(&device, "device", "", "Device id claim for driver tokens")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default TOKEN_TTL)")
	return cmd
}
