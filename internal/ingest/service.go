// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

// Package ingest accepts tracking events from devices and maintains one
// TrackingProjection per subject.
//
// Accepting is idempotent on (subject, kind, id): a resubmitted event
// returns success with Duplicate set and changes nothing. New events are
// appended to the EventStore before the projection changes, so a store
// failure leaves no trace and the device retries.
//
// Each subject has its own lock; different subjects never contend.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/awakeelkhan/pakload-sub003/internal/logging"
	"github.com/awakeelkhan/pakload-sub003/internal/metrics"
	"github.com/awakeelkhan/pakload-sub003/internal/models"
	"github.com/awakeelkhan/pakload-sub003/internal/validation"
)

// MalformedError wraps a validation failure. The API maps it to 400.
type MalformedError struct {
	Validation *validation.RequestValidationError
}

func (e *MalformedError) Error() string {
	return "malformed event: " + e.Validation.Error()
}

// Unwrap exposes the validation error.
func (e *MalformedError) Unwrap() error { return e.Validation }

// IsMalformed reports whether err is a MalformedError.
func IsMalformed(err error) bool {
	var me *MalformedError
	return errors.As(err, &me)
}

// Result is the outcome of a successful submission.
type Result struct {
	Duplicate  bool
	Projection *models.TrackingProjection
}

// Publisher forwards newly accepted events, for example to a message bus.
type Publisher interface {
	Publish(ctx context.Context, ev models.Event) error
}

// Notifier is told when a subject's projection changed.
type Notifier interface {
	NotifyProjectionUpdated(subjectID string, proj *models.TrackingProjection)
}

type subjectState struct {
	mu   sync.Mutex
	seen map[string]struct{}
	proj *models.TrackingProjection
}

func newSubjectState(subject string) *subjectState {
	return &subjectState{
		seen: make(map[string]struct{}),
		proj: &models.TrackingProjection{
			SubjectID:       subject,
			StatusHistory:   []models.StatusEvent{},
			LocationHistory: []models.LocationEvent{},
		},
	}
}

func seenKey(kind models.EventKind, id string) string {
	return string(kind) + ":" + id
}

// Service is the ingestion and aggregation service.
type Service struct {
	store EventStore
	now   func() time.Time

	subjects sync.Map // subject id -> *subjectState
	count    sync.Mutex
	nSubj    int

	hookMu    sync.RWMutex
	publisher Publisher
	notifier  Notifier
}

// NewService creates a service over store. Call Rebuild before serving if
// the store may already hold events.
func NewService(store EventStore) *Service {
	return &Service{store: store, now: time.Now}
}

// SetClock overrides the server clock used for last_synced_at.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SetPublisher sets the post-accept publisher.
func (s *Service) SetPublisher(p Publisher) {
	s.hookMu.Lock()
	s.publisher = p
	s.hookMu.Unlock()
}

// SetNotifier sets the post-accept projection notifier.
func (s *Service) SetNotifier(n Notifier) {
	s.hookMu.Lock()
	s.notifier = n
	s.hookMu.Unlock()
}

func (s *Service) state(subject string) *subjectState {
	if st, ok := s.subjects.Load(subject); ok {
		return st.(*subjectState)
	}
	st, loaded := s.subjects.LoadOrStore(subject, newSubjectState(subject))
	if !loaded {
		s.count.Lock()
		s.nSubj++
		n := s.nSubj
		s.count.Unlock()
		metrics.SetProjectionSubjects(n)
	}
	return st.(*subjectState)
}

// AcceptLocation validates and accepts a location event.
func (s *Service) AcceptLocation(ctx context.Context, ev *models.LocationEvent) (Result, error) {
	if ev == nil {
		return Result{}, errors.New("nil location event")
	}
	if verr := validation.ValidateStruct(ev); verr != nil {
		metrics.RecordIngest(string(models.KindLocation), "malformed")
		return Result{}, &MalformedError{Validation: verr}
	}
	return s.accept(ctx, ev)
}

// AcceptStatus validates and accepts a status event.
func (s *Service) AcceptStatus(ctx context.Context, ev *models.StatusEvent) (Result, error) {
	if ev == nil {
		return Result{}, errors.New("nil status event")
	}
	if verr := validation.ValidateStruct(ev); verr != nil {
		metrics.RecordIngest(string(models.KindStatus), "malformed")
		return Result{}, &MalformedError{Validation: verr}
	}
	return s.accept(ctx, ev)
}

func (s *Service) accept(ctx context.Context, ev models.Event) (Result, error) {
	kind := string(ev.EventKind())
	st := s.state(ev.EventSubject())
	key := seenKey(ev.EventKind(), ev.EventID())

	st.mu.Lock()
	if _, dup := st.seen[key]; dup {
		proj := st.proj.Clone()
		st.mu.Unlock()
		metrics.RecordIngest(kind, "duplicate")
		return Result{Duplicate: true, Projection: proj}, nil
	}

	now := s.now().UTC()
	rec, err := models.NewAcceptedEvent(ev, now)
	if err != nil {
		st.mu.Unlock()
		metrics.RecordIngest(kind, "error")
		return Result{}, err
	}
	inserted, err := s.store.Append(ctx, &rec)
	if err != nil {
		st.mu.Unlock()
		metrics.RecordIngest(kind, "error")
		return Result{}, fmt.Errorf("append to event log: %w", err)
	}
	st.seen[key] = struct{}{}
	if !inserted {
		// Stored by an earlier process whose projection was not rebuilt.
		proj := st.proj.Clone()
		st.mu.Unlock()
		metrics.RecordIngest(kind, "duplicate")
		return Result{Duplicate: true, Projection: proj}, nil
	}

	fold(st.proj, ev)
	st.proj.LastSyncedAt = now
	st.proj.UpdatedAt = now
	proj := st.proj.Clone()
	st.mu.Unlock()

	metrics.RecordIngest(kind, "accepted")
	logging.Ctx(ctx).Debug().
		Str("kind", kind).
		Str("event_id", ev.EventID()).
		Str("subject_id", ev.EventSubject()).
		Msg("Event accepted")

	s.afterAccept(ctx, ev, proj)
	return Result{Projection: proj}, nil
}

// afterAccept runs the post-accept hooks. Their failures are logged only.
func (s *Service) afterAccept(ctx context.Context, ev models.Event, proj *models.TrackingProjection) {
	s.hookMu.RLock()
	pub, notifier := s.publisher, s.notifier
	s.hookMu.RUnlock()

	if pub != nil {
		if err := pub.Publish(ctx, ev); err != nil {
			logging.Warn().Err(err).Str("event_id", ev.EventID()).Msg("Failed to publish accepted event")
		}
	}
	if notifier != nil {
		notifier.NotifyProjectionUpdated(ev.EventSubject(), proj)
	}
}

// Projection returns a copy of the subject's projection. ok is false when
// no event for the subject has been accepted.
func (s *Service) Projection(ctx context.Context, subjectID string) (*models.TrackingProjection, bool) {
	v, ok := s.subjects.Load(subjectID)
	if !ok {
		return nil, false
	}
	st := v.(*subjectState)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.proj.EventCount == 0 {
		return nil, false
	}
	return st.proj.Clone(), true
}

// Subjects returns the ids of all subjects with at least one event, sorted.
func (s *Service) Subjects() []string {
	var out []string
	s.subjects.Range(func(k, v any) bool {
		st := v.(*subjectState)
		st.mu.Lock()
		if st.proj.EventCount > 0 {
			out = append(out, k.(string))
		}
		st.mu.Unlock()
		return true
	})
	sort.Strings(out)
	return out
}

// Rebuild discards the in-memory projections and recomputes them from the
// event log. last_synced_at becomes the receive time of the subject's most
// recently received event.
func (s *Service) Rebuild(ctx context.Context) error {
	start := time.Now()
	fresh := make(map[string]*subjectState)

	err := s.store.Replay(ctx, func(rec models.AcceptedEvent) error {
		ev, err := rec.Decode()
		if err != nil {
			logging.Warn().Err(err).Int64("seq", rec.Seq).Msg("Skipping undecodable event during rebuild")
			return nil
		}
		st, ok := fresh[rec.SubjectID]
		if !ok {
			st = newSubjectState(rec.SubjectID)
			fresh[rec.SubjectID] = st
		}
		key := seenKey(rec.Kind, rec.ID)
		if _, dup := st.seen[key]; dup {
			return nil
		}
		st.seen[key] = struct{}{}
		fold(st.proj, ev)
		if rec.ReceivedAt.After(st.proj.LastSyncedAt) {
			st.proj.LastSyncedAt = rec.ReceivedAt
			st.proj.UpdatedAt = rec.ReceivedAt
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replay event log: %w", err)
	}

	s.subjects.Range(func(k, _ any) bool {
		s.subjects.Delete(k)
		return true
	})
	events := 0
	for subject, st := range fresh {
		s.subjects.Store(subject, st)
		events += st.proj.EventCount
	}
	s.count.Lock()
	s.nSubj = len(fresh)
	s.count.Unlock()
	metrics.SetProjectionSubjects(len(fresh))

	logging.Info().
		Int("subjects", len(fresh)).
		Int("events", events).
		Dur("duration", time.Since(start)).
		Msg("Projections rebuilt from event log")
	return nil
}
