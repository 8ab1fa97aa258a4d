// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

// Package authz enforces the role policy with Casbin.
//
// The model and policy are embedded (model.conf, policy.csv) and may be
// replaced by files through security.casbin.model_path and policy_path.
// A request is checked as (role, path, action) where action is read, write
// or delete by HTTP method and the policy paths are keyMatch2 patterns.
package authz
