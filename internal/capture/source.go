// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package capture

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"

	"github.com/awakeelkhan/pakload-sub003/internal/logging"
)

// PositionSource delivers fixes until ctx is canceled or the source runs
// dry, at which point the channel is closed.
type PositionSource interface {
	Watch(ctx context.Context) (<-chan Fix, error)
}

// ChannelSource forwards fixes pushed with Push. It can be watched again
// after a previous watch ended.
type ChannelSource struct {
	fixes chan Fix
}

// NewChannelSource creates a source with the given buffer size.
func NewChannelSource(buffer int) *ChannelSource {
	return &ChannelSource{fixes: make(chan Fix, buffer)}
}

// Push hands f to the current watcher, blocking while the buffer is full.
func (s *ChannelSource) Push(ctx context.Context, f Fix) error {
	select {
	case s.fixes <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Watch implements PositionSource.
func (s *ChannelSource) Watch(ctx context.Context) (<-chan Fix, error) {
	out := make(chan Fix)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case f := <-s.fixes:
				select {
				case out <- f:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// ReplaySource replays a JSON-lines track file, one Fix per line, emitting
// one fix per Interval stamped with the current time. It stands in for GPS
// hardware in development and field tests.
type ReplaySource struct {
	Path     string
	Interval time.Duration
	Loop     bool

	now func() time.Time
}

// NewReplaySource creates a replay source for path.
func NewReplaySource(path string, interval time.Duration, loop bool) *ReplaySource {
	return &ReplaySource{Path: path, Interval: interval, Loop: loop, now: time.Now}
}

// Watch implements PositionSource. The whole file is parsed up front so a
// malformed track fails at start rather than mid-trip.
func (s *ReplaySource) Watch(ctx context.Context) (<-chan Fix, error) {
	track, err := LoadTrack(s.Path)
	if err != nil {
		return nil, err
	}
	if len(track) == 0 {
		return nil, fmt.Errorf("track file %s has no fixes", s.Path)
	}

	interval := s.Interval
	if interval <= 0 {
		interval = time.Second
	}
	now := s.now
	if now == nil {
		now = time.Now
	}

	out := make(chan Fix)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for i := 0; ; i++ {
			if i == len(track) {
				if !s.Loop {
					logging.Info().Str("path", s.Path).Int("fixes", len(track)).Msg("Track replay finished")
					return
				}
				i = 0
			}
			f := track[i]
			f.Time = now()
			select {
			case out <- f:
			case <-ctx.Done():
				return
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// LoadTrack parses a JSON-lines track file. Blank lines and lines starting
// with # are skipped.
func LoadTrack(path string) ([]Fix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open track file: %w", err)
	}
	defer f.Close()

	var track []Fix
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 || raw[0] == '#' {
			continue
		}
		var fix Fix
		if err := json.Unmarshal(raw, &fix); err != nil {
			return nil, fmt.Errorf("track file %s line %d: %w", path, line, err)
		}
		track = append(track, fix)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read track file: %w", err)
	}
	return track, nil
}
