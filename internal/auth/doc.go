// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

/*
Package auth authenticates server requests with bearer tokens.

Tokens are HS256 JWTs minted by the operator (pakloadctl token). They carry
the standard sub claim plus role and device_id:

	{"sub": "driver-17", "role": "driver", "device_id": "truck-17", "iss": "pakload", "exp": ...}

Roles:

  - driver: a device posting tracking events
  - dispatcher: a dashboard reading projections and hints
  - admin: both

Key Components:

  - JWTManager: token minting and validation
  - Middleware: bearer extraction, claims in the request context,
    security headers

Authentication Modes:

With AUTH_MODE=jwt (default) every protected request needs
"Authorization: Bearer <token>". With AUTH_MODE=none the middleware injects
anonymous admin claims; use it only for local development.

Failures are written as the standard API envelope with code UNAUTHORIZED.
Role checks live in package authz.
*/
package auth
