// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package watch implements the debounced Watch Manager of spec §4.G: one
// debounce bucket per path, leading/trailing/both firing modes, a
// max-wait ceiling, smart coalescing that promotes a namespace-change
// event over a content-change event within the same bucket, and
// glob-targeted per-path overrides.
package watch

import (
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dot-do/fsx/internal/clock"
	"github.com/dot-do/fsx/internal/logger"
)

// EventKind mirrors fsfacade.EventKind (duplicated here to avoid an
// import cycle between the facade and the watch manager; keep in sync).
type EventKind int

const (
	EventContentChange EventKind = iota
	EventNamespaceChange
)

func (k EventKind) String() string {
	if k == EventNamespaceChange {
		return "namespace_change"
	}
	return "content_change"
}

// Event is one coalesced, debounced notification delivered to a Sink.
type Event struct {
	Kind EventKind
	Path string
	Time time.Time
}

// Sink receives coalesced events. Implementations must not block.
type Sink interface {
	Notify(Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event)

func (f SinkFunc) Notify(e Event) { f(e) }

// Mode selects which edges of the debounce window fire a notification.
type Mode int

const (
	ModeTrailing Mode = iota // fire once, debounce after the last event
	ModeLeading              // fire immediately on the first event, then suppress
	ModeBoth                 // fire on both edges
)

// Override pins a non-default debounce policy to paths matching Pattern,
// a doublestar glob evaluated relative to the watch root.
type Override struct {
	Pattern  string
	Debounce time.Duration
	MaxWait  time.Duration
	Mode     Mode
}

// Config is the default debounce policy, plus any glob-targeted overrides.
type Config struct {
	Debounce  time.Duration
	MaxWait   time.Duration // 0 disables the max-wait ceiling
	Mode      Mode
	Overrides []Override
}

type resolved struct {
	debounce time.Duration
	maxWait  time.Duration
	mode     Mode
}

// Manager owns one debounce bucket per watched path and dispatches
// coalesced events to a Sink once each bucket's window closes.
type Manager struct {
	clock clock.Clock
	sink  Sink
	cfg   Config

	mu      sync.Mutex
	buckets map[string]*bucket
}

// New builds a Manager. clk is normally clock.RealClock{} in production
// and a clock.SimulatedClock in tests, so debounce/max-wait timing is
// deterministic.
func New(clk clock.Clock, sink Sink, cfg Config) *Manager {
	return &Manager{clock: clk, sink: sink, cfg: cfg, buckets: make(map[string]*bucket)}
}

func (m *Manager) Emit(kind EventKind, path string) {
	m.mu.Lock()
	b, ok := m.buckets[path]
	if !ok {
		b = &bucket{mgr: m, path: path, cfg: m.resolve(path), resetCh: make(chan struct{}, 1)}
		m.buckets[path] = b
	}
	m.mu.Unlock()
	b.record(kind)
}

// Cancel discards any pending (not yet fired) bucket for path, so its
// queued event never reaches the sink. Reports whether a bucket was
// actually pending.
func (m *Manager) Cancel(path string) bool {
	m.mu.Lock()
	b, ok := m.buckets[path]
	m.mu.Unlock()
	if !ok {
		return false
	}
	return b.cancel()
}

// Close stops every pending bucket without flushing it.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.buckets {
		b.cancel()
	}
}

func (m *Manager) resolve(path string) resolved {
	r := resolved{debounce: m.cfg.Debounce, maxWait: m.cfg.MaxWait, mode: m.cfg.Mode}
	for _, o := range m.cfg.Overrides {
		if ok, _ := doublestar.Match(o.Pattern, trimLeadingSlash(path)); ok {
			if o.Debounce > 0 {
				r.debounce = o.Debounce
			}
			r.maxWait = o.MaxWait
			r.mode = o.Mode
		}
	}
	return r
}

func trimLeadingSlash(p string) string {
	if len(p) > 0 && p[0] == '/' {
		return p[1:]
	}
	return p
}

func (m *Manager) forget(path string, gen int, b *bucket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.buckets[path]; ok && cur == b && b.generation() == gen {
		delete(m.buckets, path)
	}
}

// bucket coalesces events for a single path across one debounce window.
type bucket struct {
	mgr     *Manager
	path    string
	cfg     resolved
	resetCh chan struct{}

	mu     sync.Mutex
	active bool
	kind   EventKind
	gen    int
	stopCh chan struct{}
}

func (b *bucket) generation() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gen
}

// record registers one new raw event on the bucket, starting its window
// if not already open, or coalescing into the open window otherwise.
// Smart coalescing promotes namespace_change over content_change: once a
// bucket has seen a namespace change, later content changes in the same
// window don't downgrade it.
func (b *bucket) record(kind EventKind) {
	b.mu.Lock()
	var fireLeading bool
	var fireKind EventKind
	now := b.mgr.clock.Now()
	if !b.active {
		b.active = true
		b.kind = kind
		b.gen++
		gen := b.gen
		b.stopCh = make(chan struct{})
		if b.cfg.mode == ModeLeading || b.cfg.mode == ModeBoth {
			fireLeading = true
			fireKind = kind
		}
		go b.run(gen)
	} else {
		if kind == EventNamespaceChange {
			b.kind = EventNamespaceChange
		}
		select {
		case b.resetCh <- struct{}{}:
		default:
		}
	}
	b.mu.Unlock()
	if fireLeading {
		logger.Debugf("watch: leading fire %s %s", fireKind, b.path)
		b.mgr.sink.Notify(Event{Kind: fireKind, Path: b.path, Time: now})
	}
}

// cancel aborts the bucket's pending window without a trailing flush.
func (b *bucket) cancel() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.active {
		return false
	}
	close(b.stopCh)
	b.active = false
	return true
}

func (b *bucket) run(gen int) {
	debounceCh := b.mgr.clock.After(b.cfg.debounce)
	var maxWaitCh <-chan time.Time
	if b.cfg.maxWait > 0 {
		maxWaitCh = b.mgr.clock.After(b.cfg.maxWait)
	}
	for {
		select {
		case <-b.resetCh:
			debounceCh = b.mgr.clock.After(b.cfg.debounce)
		case <-debounceCh:
			b.flush(gen)
			return
		case <-maxWaitCh:
			b.flush(gen)
			return
		case <-b.stopCh:
			return
		}
	}
}

func (b *bucket) flush(gen int) {
	b.mu.Lock()
	if !b.active || b.gen != gen {
		b.mu.Unlock()
		return
	}
	kind := b.kind
	trailing := b.cfg.mode == ModeTrailing || b.cfg.mode == ModeBoth
	b.active = false
	b.mu.Unlock()
	b.mgr.forget(b.path, gen, b)
	if trailing {
		now := b.mgr.clock.Now()
		logger.Debugf("watch: trailing fire %s %s", kind, b.path)
		b.mgr.sink.Notify(Event{Kind: kind, Path: b.path, Time: now})
	}
}
