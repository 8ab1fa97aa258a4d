// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

// Package queue is the durable on-device queue of tracking events.
//
// Events are persisted to BadgerDB before anything else happens to them and
// survive process restarts, crashes and (with SyncWrites) power loss. Each
// event kind has two append-only logs, pending and synced; an acknowledged
// entry moves from the first to the second in one transaction.
//
// Key layout:
//
//	<kind>:pending:<seq>  entry JSON, unsynced
//	<kind>:synced:<seq>   entry JSON, acknowledged by the server
//	<kind>:id:<clientID>  seq, for duplicate detection and lookup
//	meta:seq              badger.Sequence shared by both kinds
//
// seq is zero-padded to 20 digits so key order is insertion order.
package queue

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/awakeelkhan/pakload-sub003/internal/logging"
	"github.com/awakeelkhan/pakload-sub003/internal/metrics"
	"github.com/awakeelkhan/pakload-sub003/internal/models"
)

// Errors
var (
	// ErrQueueClosed is returned when the queue is closed.
	ErrQueueClosed = errors.New("queue is closed")

	// ErrNilEvent is returned when a nil event is enqueued.
	ErrNilEvent = errors.New("event cannot be nil")

	// ErrEmptyID is returned for events or lookups without a client id.
	ErrEmptyID = errors.New("event id cannot be empty")

	// ErrDuplicateEvent is returned when an id is already in the queue.
	ErrDuplicateEvent = errors.New("event id already queued")

	// ErrEntryNotFound is returned when an entry doesn't exist.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrAlreadySynced is returned when discarding an acknowledged entry.
	ErrAlreadySynced = errors.New("entry already synced")

	// ErrUnknownKind is returned for kinds other than location and status.
	ErrUnknownKind = errors.New("unknown event kind")
)

// Entry is one queued event plus its delivery bookkeeping.
type Entry struct {
	Seq       uint64           `json:"seq"`
	Kind      models.EventKind `json:"kind"`
	ID        string           `json:"id"`
	SubjectID string           `json:"subject_id"`

	// Payload is the serialized event (JSON).
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is when the entry was written, on the device clock.
	CreatedAt time.Time `json:"created_at"`

	// Attempts is the number of failed delivery attempts.
	Attempts int `json:"attempts"`

	LastAttemptAt time.Time `json:"last_attempt_at,omitempty"`
	LastError     string    `json:"last_error,omitempty"`

	// Rejected is set when the server refused the event permanently.
	// The entry stays pending until an operator discards it.
	Rejected bool `json:"rejected,omitempty"`

	Synced   bool       `json:"synced"`
	SyncedAt *time.Time `json:"synced_at,omitempty"`
}

// Event decodes the payload into its concrete type with Synced reflecting
// the entry state.
func (e *Entry) Event() (models.Event, error) {
	switch e.Kind {
	case models.KindLocation:
		var ev models.LocationEvent
		if err := json.Unmarshal(e.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode location event %s: %w", e.ID, err)
		}
		ev.Synced = e.Synced
		return &ev, nil
	case models.KindStatus:
		var ev models.StatusEvent
		if err := json.Unmarshal(e.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode status event %s: %w", e.ID, err)
		}
		ev.Synced = e.Synced
		return &ev, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
}

// Pending holds unsynced counts per kind.
type Pending struct {
	Location int `json:"location"`
	Status   int `json:"status"`
}

// Total returns the combined count.
func (p Pending) Total() int {
	return p.Location + p.Status
}

// Stats contains queue counters since Open.
type Stats struct {
	Enqueued    int64     `json:"enqueued"`
	Synced      int64     `json:"synced"`
	Trimmed     int64     `json:"trimmed"`
	Discarded   int64     `json:"discarded"`
	Attempts    int64     `json:"attempts"`
	LastTrim    time.Time `json:"last_trim"`
	DBSizeBytes int64     `json:"db_size_bytes"`
}

// Queue implements the durable queue on BadgerDB.
//
// Every operation takes mu, so enqueue, list, mark, trim and discard never
// interleave. All of them are short local-store operations.
type Queue struct {
	db     *badger.DB
	seq    *badger.Sequence
	config Config
	now    func() time.Time

	mu     sync.Mutex
	closed bool

	totalEnqueued  atomic.Int64
	totalSynced    atomic.Int64
	totalTrimmed   atomic.Int64
	totalDiscarded atomic.Int64
	totalAttempts  atomic.Int64
	lastTrim       atomic.Int64
}

const seqKey = "meta:seq"

// Open opens (or creates) the queue at cfg.Path.
func Open(cfg *Config) (*Queue, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid queue config: %w", err)
	}
	return open(cfg)
}

// OpenForTesting opens a queue without configuration validation.
// WARNING: Do not use in production code.
func OpenForTesting(cfg *Config) (*Queue, error) {
	if cfg.NumCompactors < 2 {
		cfg.NumCompactors = 2
	}
	if cfg.GCRatio == 0 {
		cfg.GCRatio = 0.5
	}
	if cfg.MemTableSize == 0 {
		cfg.MemTableSize = 16 * 1024 * 1024
	}
	if cfg.ValueLogFileSize == 0 {
		cfg.ValueLogFileSize = 16 * 1024 * 1024
	}
	return open(cfg)
}

func open(cfg *Config) (*Queue, error) {
	if cfg.CloseTimeout == 0 {
		cfg.CloseTimeout = 30 * time.Second
	}

	opts := badger.DefaultOptions(cfg.Path)
	opts.SyncWrites = cfg.SyncWrites
	opts.MemTableSize = cfg.MemTableSize
	opts.ValueLogFileSize = cfg.ValueLogFileSize
	opts.NumCompactors = cfg.NumCompactors
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	seq, err := db.GetSequence([]byte(seqKey), 64)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open queue sequence: %w", err)
	}

	q := &Queue{
		db:     db,
		seq:    seq,
		config: *cfg,
		now:    time.Now,
	}

	pending, err := q.PendingCount(context.Background())
	if err != nil {
		_ = q.Close()
		return nil, err
	}
	q.publishPending(pending)

	logging.Info().
		Str("path", cfg.Path).
		Bool("sync_writes", cfg.SyncWrites).
		Int("pending_location", pending.Location).
		Int("pending_status", pending.Status).
		Msg("Queue opened")
	return q, nil
}

// SetClock overrides the clock used for CreatedAt, SyncedAt and retention.
func (q *Queue) SetClock(now func() time.Time) {
	q.mu.Lock()
	q.now = now
	q.mu.Unlock()
}

// Config returns the queue configuration.
func (q *Queue) Config() Config {
	return q.config
}

func pendingPrefix(kind models.EventKind) []byte {
	return []byte(string(kind) + ":pending:")
}

func syncedPrefix(kind models.EventKind) []byte {
	return []byte(string(kind) + ":synced:")
}

func pendingKey(kind models.EventKind, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s:pending:%020d", kind, seq))
}

func syncedKey(kind models.EventKind, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s:synced:%020d", kind, seq))
}

func idKey(kind models.EventKind, id string) []byte {
	return []byte(string(kind) + ":id:" + id)
}

func encodeSeq(seq uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq)
	return b[:]
}

func (q *Queue) checkOpen() error {
	if q.closed {
		return ErrQueueClosed
	}
	return nil
}

// Enqueue appends ev to its kind's pending log. It never overwrites: an id
// already present (pending or synced) yields ErrDuplicateEvent. A storage
// failure is returned as-is; nothing is kept in memory.
func (q *Queue) Enqueue(ctx context.Context, ev models.Event) (*Entry, error) {
	if ev == nil {
		return nil, ErrNilEvent
	}
	kind := ev.EventKind()
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if ev.EventID() == "" {
		return nil, ErrEmptyID
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.checkOpen(); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	entry, err := q.enqueueLocked(kind, ev, payload)
	metrics.RecordEnqueue(string(kind), err)
	if err != nil {
		return nil, err
	}

	q.totalEnqueued.Add(1)
	return entry, nil
}

func (q *Queue) enqueueLocked(kind models.EventKind, ev models.Event, payload []byte) (*Entry, error) {
	ik := idKey(kind, ev.EventID())
	err := q.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(ik)
		if err == nil {
			return ErrDuplicateEvent
		}
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEvent) {
			return nil, err
		}
		return nil, fmt.Errorf("check duplicate: %w", err)
	}

	next, err := q.seq.Next()
	if err != nil {
		return nil, fmt.Errorf("next sequence: %w", err)
	}
	seq := next + 1

	entry := &Entry{
		Seq:       seq,
		Kind:      kind,
		ID:        ev.EventID(),
		SubjectID: ev.EventSubject(),
		Payload:   payload,
		CreatedAt: q.now().UTC(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("marshal entry: %w", err)
	}

	err = q.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(pendingKey(kind, seq), data); err != nil {
			return err
		}
		return txn.Set(ik, encodeSeq(seq))
	})
	if err != nil {
		return nil, fmt.Errorf("write to BadgerDB: %w", err)
	}
	return entry, nil
}

// ListUnsynced returns the pending entries of kind in insertion order.
func (q *Queue) ListUnsynced(ctx context.Context, kind models.EventKind) ([]*Entry, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.checkOpen(); err != nil {
		return nil, err
	}
	return q.scan(ctx, pendingPrefix(kind))
}

// ListSynced returns the acknowledged entries of kind in insertion order.
func (q *Queue) ListSynced(ctx context.Context, kind models.EventKind) ([]*Entry, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.checkOpen(); err != nil {
		return nil, err
	}
	return q.scan(ctx, syncedPrefix(kind))
}

// ListAllUnsynced returns pending entries of both kinds merged by sequence,
// i.e. in capture order across kinds.
func (q *Queue) ListAllUnsynced(ctx context.Context) ([]*Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.checkOpen(); err != nil {
		return nil, err
	}

	var all []*Entry
	for _, kind := range models.Kinds {
		entries, err := q.scan(ctx, pendingPrefix(kind))
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Seq < all[j].Seq })
	return all, nil
}

// scan reads every entry under prefix from one snapshot.
func (q *Queue) scan(ctx context.Context, prefix []byte) ([]*Entry, error) {
	var entries []*Entry
	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			item := it.Item()
			var entry Entry
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				logging.Warn().Err(err).Str("key", string(item.Key())).Msg("Queue failed to unmarshal entry")
				continue
			}
			entries = append(entries, &entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate %s: %w", prefix, err)
	}
	return entries, nil
}

// Get returns the entry for id, pending or synced.
func (q *Queue) Get(ctx context.Context, kind models.EventKind, id string) (*Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.checkOpen(); err != nil {
		return nil, err
	}

	var entry *Entry
	err := q.db.View(func(txn *badger.Txn) error {
		var err error
		entry, _, err = getEntry(txn, kind, id)
		return err
	})
	return entry, err
}

// getEntry resolves id through its index key and returns the entry with the
// key it is stored under.
func getEntry(txn *badger.Txn, kind models.EventKind, id string) (*Entry, []byte, error) {
	if id == "" {
		return nil, nil, ErrEmptyID
	}
	item, err := txn.Get(idKey(kind, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get id index: %w", err)
	}
	var seq uint64
	if err := item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("corrupt id index for %s", id)
		}
		seq = binary.BigEndian.Uint64(val)
		return nil
	}); err != nil {
		return nil, nil, err
	}

	for _, key := range [][]byte{pendingKey(kind, seq), syncedKey(kind, seq)} {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("get entry: %w", err)
		}
		var entry Entry
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		}); err != nil {
			return nil, nil, fmt.Errorf("unmarshal entry: %w", err)
		}
		return &entry, key, nil
	}
	return nil, nil, ErrEntryNotFound
}

// MarkSynced moves the entry for id to the synced log. Unknown ids and
// already-synced entries are a no-op.
func (q *Queue) MarkSynced(ctx context.Context, kind models.EventKind, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.checkOpen(); err != nil {
		return err
	}

	moved := false
	err := q.db.Update(func(txn *badger.Txn) error {
		entry, key, err := getEntry(txn, kind, id)
		if errors.Is(err, ErrEntryNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if entry.Synced {
			return nil
		}

		now := q.now().UTC()
		entry.Synced = true
		entry.SyncedAt = &now
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal synced entry: %w", err)
		}
		if err := txn.Set(syncedKey(kind, entry.Seq), data); err != nil {
			return fmt.Errorf("set synced entry: %w", err)
		}
		if err := txn.Delete(key); err != nil {
			return fmt.Errorf("delete pending entry: %w", err)
		}
		moved = true
		return nil
	})
	if err != nil {
		return err
	}

	if moved {
		q.totalSynced.Add(1)
		metrics.RecordSynced(string(kind))
		q.refreshPendingLocked(ctx)
	}
	return nil
}

// permanent is implemented by delivery errors that will never succeed on
// retry, such as a 4xx from the server.
type permanent interface {
	Permanent() bool
}

// IsPermanent reports whether err, or anything it wraps, is permanent.
func IsPermanent(err error) bool {
	var p permanent
	return errors.As(err, &p) && p.Permanent()
}

// RecordAttempt stores a failed delivery on the pending entry. Permanent
// errors set Rejected. Entries no longer pending are left alone.
func (q *Queue) RecordAttempt(ctx context.Context, kind models.EventKind, id string, deliveryErr error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.checkOpen(); err != nil {
		return err
	}

	err := q.db.Update(func(txn *badger.Txn) error {
		entry, key, err := getEntry(txn, kind, id)
		if err != nil {
			return err
		}
		if entry.Synced {
			return nil
		}
		entry.Attempts++
		entry.LastAttemptAt = q.now().UTC()
		if deliveryErr != nil {
			entry.LastError = deliveryErr.Error()
			entry.Rejected = IsPermanent(deliveryErr)
		}
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal entry: %w", err)
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return err
	}
	q.totalAttempts.Add(1)
	return nil
}

// Discard removes an unsynced entry. It is the operator action for events
// the server will never accept.
func (q *Queue) Discard(ctx context.Context, kind models.EventKind, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.checkOpen(); err != nil {
		return err
	}

	err := q.db.Update(func(txn *badger.Txn) error {
		entry, key, err := getEntry(txn, kind, id)
		if err != nil {
			return err
		}
		if entry.Synced {
			return ErrAlreadySynced
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		return txn.Delete(idKey(kind, id))
	})
	if err != nil {
		return err
	}

	q.totalDiscarded.Add(1)
	metrics.RecordDiscarded(string(kind))
	q.refreshPendingLocked(ctx)
	logging.Warn().Str("kind", string(kind)).Str("event_id", id).Msg("Queue entry discarded by operator")
	return nil
}

// Trim evicts the oldest synced entries of kind while the kind holds more
// than maxEntries entries in total. Unsynced entries are never evicted, so
// the collection may stay above the bound. maxEntries <= 0 means unbounded.
func (q *Queue) Trim(ctx context.Context, kind models.EventKind, maxEntries int) (int, error) {
	if maxEntries <= 0 {
		return 0, nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.checkOpen(); err != nil {
		return 0, err
	}

	pending, err := q.countPrefix(pendingPrefix(kind))
	if err != nil {
		return 0, err
	}
	synced, err := q.countPrefix(syncedPrefix(kind))
	if err != nil {
		return 0, err
	}
	excess := pending + synced - maxEntries
	if excess <= 0 {
		return 0, nil
	}

	removed, err := q.deleteSynced(ctx, kind, excess, func(*Entry) bool { return true })
	q.recordTrim(kind, removed)
	return removed, err
}

// FlushSynced deletes synced entries of kind acknowledged more than
// olderThan ago.
func (q *Queue) FlushSynced(ctx context.Context, kind models.EventKind, olderThan time.Duration) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.checkOpen(); err != nil {
		return 0, err
	}

	cutoff := q.now().Add(-olderThan)
	removed, err := q.deleteSynced(ctx, kind, -1, func(e *Entry) bool {
		return e.SyncedAt != nil && e.SyncedAt.Before(cutoff)
	})
	q.recordTrim(kind, removed)
	return removed, err
}

func (q *Queue) recordTrim(kind models.EventKind, removed int) {
	if removed == 0 {
		return
	}
	q.totalTrimmed.Add(int64(removed))
	q.lastTrim.Store(q.now().UnixNano())
	metrics.RecordTrimmed(string(kind), removed)
}

// deleteBatch keeps a single transaction well under Badger's size limits.
const deleteBatch = 1000

// deleteSynced removes up to limit (all when negative) synced entries of
// kind that satisfy match, oldest first.
func (q *Queue) deleteSynced(ctx context.Context, kind models.EventKind, limit int, match func(*Entry) bool) (int, error) {
	entries, err := q.scan(ctx, syncedPrefix(kind))
	if err != nil {
		return 0, err
	}

	var victims []*Entry
	for _, e := range entries {
		if limit >= 0 && len(victims) >= limit {
			break
		}
		if !match(e) {
			continue
		}
		victims = append(victims, e)
	}

	removed := 0
	for start := 0; start < len(victims); start += deleteBatch {
		end := start + deleteBatch
		if end > len(victims) {
			end = len(victims)
		}
		batch := victims[start:end]
		err := q.db.Update(func(txn *badger.Txn) error {
			for _, e := range batch {
				if err := txn.Delete(syncedKey(kind, e.Seq)); err != nil {
					return err
				}
				if err := txn.Delete(idKey(kind, e.ID)); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return removed, fmt.Errorf("delete synced entries: %w", err)
		}
		removed += len(batch)
	}
	return removed, nil
}

func (q *Queue) countPrefix(prefix []byte) (int, error) {
	count := 0
	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", prefix, err)
	}
	return count, nil
}

// PendingCount returns unsynced counts per kind.
func (q *Queue) PendingCount(ctx context.Context) (Pending, error) {
	if err := ctx.Err(); err != nil {
		return Pending{}, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.checkOpen(); err != nil {
		return Pending{}, err
	}
	return q.pendingLocked()
}

func (q *Queue) pendingLocked() (Pending, error) {
	loc, err := q.countPrefix(pendingPrefix(models.KindLocation))
	if err != nil {
		return Pending{}, err
	}
	st, err := q.countPrefix(pendingPrefix(models.KindStatus))
	if err != nil {
		return Pending{}, err
	}
	return Pending{Location: loc, Status: st}, nil
}

func (q *Queue) refreshPendingLocked(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	p, err := q.pendingLocked()
	if err != nil {
		logging.Warn().Err(err).Msg("Queue failed to count pending entries")
		return
	}
	q.publishPending(p)
}

func (q *Queue) publishPending(p Pending) {
	metrics.SetQueuePending(string(models.KindLocation), p.Location)
	metrics.SetQueuePending(string(models.KindStatus), p.Status)
}

// Stats returns current queue counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return Stats{}
	}

	lsm, vlog := q.db.Size()
	metrics.QueueDBSizeBytes.Set(float64(lsm + vlog))

	var lastTrim time.Time
	if ns := q.lastTrim.Load(); ns > 0 {
		lastTrim = time.Unix(0, ns)
	}
	return Stats{
		Enqueued:    q.totalEnqueued.Load(),
		Synced:      q.totalSynced.Load(),
		Trimmed:     q.totalTrimmed.Load(),
		Discarded:   q.totalDiscarded.Load(),
		Attempts:    q.totalAttempts.Load(),
		LastTrim:    lastTrim,
		DBSizeBytes: lsm + vlog,
	}
}

// RunGC triggers BadgerDB value log garbage collection until nothing is left
// to rewrite.
func (q *Queue) RunGC() error {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return ErrQueueClosed
	}

	start := time.Now()
	defer func() {
		metrics.QueueGCDuration.Observe(time.Since(start).Seconds())
	}()

	for {
		err := q.db.RunValueLogGC(q.config.GCRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Close releases the sequence and closes BadgerDB, giving up after
// CloseTimeout.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	timeout := q.config.CloseTimeout
	q.mu.Unlock()

	if err := q.seq.Release(); err != nil {
		logging.Warn().Err(err).Msg("Queue failed to release sequence")
	}

	done := make(chan error, 1)
	go func() {
		done <- q.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close BadgerDB: %w", err)
		}
		logging.Info().Msg("Queue closed")
		return nil
	case <-time.After(timeout):
		logging.Warn().Dur("timeout", timeout).Msg("BadgerDB close timed out")
		return fmt.Errorf("badgerdb close timeout after %v", timeout)
	}
}
