// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

/*
Package api serves the ingestion and read API over chi.

Routes (all under /api/v1):

	POST /tracking/location-events                   driver      201 new, 200 duplicate, 400 malformed
	POST /tracking/status-events                     driver      same contract
	GET  /tracking/subjects                          dispatcher  subject ids with data
	GET  /tracking/subjects/{subjectID}/projection   dispatcher  200 {found, projection | message}
	GET  /ws                                         dispatcher  projection_updated hints
	GET  /health                                     public      connectivity probe
	GET  /metrics                                    public      Prometheus

Every JSON response is a models.APIResponse envelope. Error codes:

  - VALIDATION_ERROR (400), a malformed event or body
  - UNAUTHORIZED (401) and FORBIDDEN (403) from auth and authz
  - RATE_LIMITED (429)
  - STORE_UNAVAILABLE (500), the event log rejected the append; the device
    keeps the event and retries

Middleware order: request id, recoverer, real IP, CORS, security headers,
metrics, access log; then per group rate limiting, bearer authentication and
the role policy.
*/
package api
