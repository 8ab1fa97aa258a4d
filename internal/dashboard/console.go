// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package dashboard

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/awakeelkhan/pakload-sub003/internal/logging"
)

const clearScreen = "\x1b[H\x1b[2J"

// Console redraws the snapshot after each poll and once a second so the
// age stays current. Input lines "r" refresh and "q" quits.
type Console struct {
	poller *Poller
	out    io.Writer
	in     io.Reader
	now    func() time.Time
	clear  bool

	mu   sync.Mutex
	quit chan struct{}
	once sync.Once
}

// NewConsole creates a console. clear prefixes each frame with an ANSI
// clear-screen sequence.
func NewConsole(p *Poller, in io.Reader, out io.Writer, clear bool) *Console {
	return &Console{
		poller: p,
		out:    out,
		in:     in,
		now:    time.Now,
		clear:  clear,
		quit:   make(chan struct{}),
	}
}

// Quit reports when the operator asked to quit.
func (c *Console) Quit() <-chan struct{} { return c.quit }

func (c *Console) draw(s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clear {
		_, _ = io.WriteString(c.out, clearScreen)
	}
	if err := Render(c.out, s, c.now()); err != nil {
		logging.Debug().Err(err).Msg("Dashboard render failed")
	}
	_, _ = io.WriteString(c.out, "\n[r] refresh  [q] quit\n")
}

// Serve redraws until ctx is done or the operator quits.
func (c *Console) Serve(ctx context.Context) error {
	c.poller.SetOnUpdate(c.draw)
	defer c.poller.SetOnUpdate(nil)

	if c.in != nil {
		go c.readKeys()
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.quit:
			return nil
		case <-ticker.C:
			c.draw(c.poller.Snapshot())
		}
	}
}

func (c *Console) readKeys() {
	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "r":
			c.poller.Refresh()
		case "q":
			c.once.Do(func() { close(c.quit) })
			return
		}
	}
}

// String implements fmt.Stringer for the supervisor.
func (c *Console) String() string { return "dashboard-console" }
