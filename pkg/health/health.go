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

// Package health runs the liveness, readiness and startup probes of the
// repository storage server.
package health

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jeremyhahn/go-repokey/pkg/storage"
)

// Status of a probe.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// CheckResult is the outcome of one probe.
type CheckResult struct {
	Name    string        `json:"name"`
	Status  Status        `json:"status"`
	Message string        `json:"message,omitempty"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// CheckFunc performs one readiness check.
type CheckFunc func(ctx context.Context) CheckResult

type namedCheck struct {
	name string
	fn   CheckFunc
}

// Checker holds the registered readiness checks and the startup state.
type Checker struct {
	created time.Time
	started atomic.Bool

	mu     sync.RWMutex
	checks []namedCheck // sorted by name
}

// NewChecker returns a Checker with no readiness checks.
func NewChecker() *Checker {
	return &Checker{created: time.Now()}
}

// RegisterCheck adds a readiness check, replacing one with the same name.
// A nil check is ignored.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	if check == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	i, found := slices.BinarySearchFunc(c.checks, name, func(nc namedCheck, name string) int {
		return strings.Compare(nc.name, name)
	})
	if found {
		c.checks[i].fn = check
		return
	}
	c.checks = slices.Insert(c.checks, i, namedCheck{name: name, fn: check})
}

// MarkStarted flips the startup probe to healthy.
func (c *Checker) MarkStarted() {
	c.started.Store(true)
}

// Live always succeeds while the process can answer.
func (c *Checker) Live(ctx context.Context) CheckResult {
	return CheckResult{Name: "liveness", Status: StatusHealthy, Message: "alive"}
}

// Ready runs every registered check concurrently and returns the results in
// name order.
func (c *Checker) Ready(ctx context.Context) []CheckResult {
	c.mu.RLock()
	checks := slices.Clone(c.checks)
	c.mu.RUnlock()

	if len(checks) == 0 {
		return []CheckResult{{Name: "default", Status: StatusHealthy, Message: "no readiness checks registered"}}
	}

	results := make([]CheckResult, len(checks))
	var wg sync.WaitGroup
	for i, nc := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			res := nc.fn(ctx)
			res.Latency = time.Since(start)
			if res.Name == "" {
				res.Name = nc.name
			}
			results[i] = res
		}()
	}
	wg.Wait()
	return results
}

// Startup is unhealthy until MarkStarted is called.
func (c *Checker) Startup(ctx context.Context) CheckResult {
	if !c.started.Load() {
		return CheckResult{Name: "startup", Status: StatusUnhealthy, Message: "starting"}
	}
	return CheckResult{
		Name:    "startup",
		Status:  StatusHealthy,
		Message: fmt.Sprintf("started, up %s", c.Uptime().Round(time.Second)),
	}
}

// Uptime returns the time since NewChecker.
func (c *Checker) Uptime() time.Duration {
	return time.Since(c.created)
}

// AggregateStatus folds results into the worst status among them.
func AggregateStatus(results []CheckResult) Status {
	worst := StatusHealthy
	for _, r := range results {
		if r.Status == StatusUnhealthy {
			return StatusUnhealthy
		}
		if r.Status == StatusDegraded {
			worst = StatusDegraded
		}
	}
	return worst
}

// StorageCheck is unhealthy when backend cannot list key files.
func StorageCheck(name string, backend storage.Backend) CheckFunc {
	return func(ctx context.Context) CheckResult {
		res := CheckResult{Name: name, Status: StatusHealthy}
		if _, err := backend.List(string(storage.KeyFile) + "/"); err != nil {
			res.Status = StatusUnhealthy
			res.Message = "storage backend unavailable"
			res.Error = err.Error()
		}
		return res
	}
}
