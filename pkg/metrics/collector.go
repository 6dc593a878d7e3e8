// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-repokey.
//
// go-repokey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package metrics

import (
	"context"
	"runtime"
	"sync"
	"time"
)

// ResourceCollector samples goroutine count, heap usage and uptime into the
// process gauges on a fixed interval.
type ResourceCollector struct {
	interval time.Duration
	started  time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

// NewResourceCollector returns a collector that samples every interval once
// Run is called.
func NewResourceCollector(interval time.Duration) *ResourceCollector {
	return &ResourceCollector{
		interval: interval,
		started:  time.Now(),
		stop:     make(chan struct{}),
	}
}

// Run samples until ctx is done or Stop is called.
func (rc *ResourceCollector) Run(ctx context.Context) {
	ticker := time.NewTicker(rc.interval)
	defer ticker.Stop()

	for {
		rc.sample()
		select {
		case <-ctx.Done():
			return
		case <-rc.stop:
			return
		case <-ticker.C:
		}
	}
}

// Stop ends Run. It may be called more than once.
func (rc *ResourceCollector) Stop() {
	rc.stopOnce.Do(func() { close(rc.stop) })
}

func (rc *ResourceCollector) sample() {
	if !IsEnabled() {
		return
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	Goroutines.Set(float64(runtime.NumGoroutine()))
	MemoryAllocBytes.Set(float64(ms.Alloc))
	ServerUptime.Set(time.Since(rc.started).Seconds())
}

// StartResourceCollector runs a new collector in its own goroutine.
func StartResourceCollector(ctx context.Context, interval time.Duration) *ResourceCollector {
	rc := NewResourceCollector(interval)
	go rc.Run(ctx)
	return rc
}
