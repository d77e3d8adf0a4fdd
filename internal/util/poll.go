// Copyright 2024 LatentFS Authors
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

package util

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
	log "github.com/sirupsen/logrus"
)

// PollConfig configures the mount readiness poll.
type PollConfig struct {
	Attempts uint          // Maximum number of checks (default: 10)
	Interval time.Duration // Fixed sleep between checks (default: 1s)
}

// DefaultPollConfig returns the readiness budget used for helper mounts:
// ten checks one second apart.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		Attempts: 10,
		Interval: 1 * time.Second,
	}
}

// Budget returns the worst-case time spent sleeping between checks.
func (c PollConfig) Budget() time.Duration {
	if c.Attempts == 0 {
		return 0
	}
	return time.Duration(c.Attempts-1) * c.Interval
}

// PollResult is the outcome of a readiness poll.
type PollResult int

const (
	PollReady PollResult = iota
	PollTimeout
)

func (r PollResult) String() string {
	switch r {
	case PollReady:
		return "ready"
	case PollTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// PollAttempt records how a poll resolved.
type PollAttempt struct {
	AttemptsMade    uint
	MaxAttempts     uint
	Interval        time.Duration
	DeadlineReached bool
	LastErr         error // Last check failure, nil when ready
}

// Poller checks a path at a fixed interval until it becomes accessible or the
// attempt budget runs out. There is no backoff.
type Poller struct {
	cfg   PollConfig
	check func(path string) error
	timer retry.Timer
}

// PollOption customizes a Poller.
type PollOption func(*Poller)

// WithTimer replaces the sleep between checks. Tests pass a timer that fires
// immediately.
func WithTimer(t retry.Timer) PollOption {
	return func(p *Poller) { p.timer = t }
}

// NewPoller creates a poller. Zero config fields fall back to the defaults.
func NewPoller(cfg PollConfig, check func(path string) error, opts ...PollOption) *Poller {
	def := DefaultPollConfig()
	if cfg.Attempts == 0 {
		cfg.Attempts = def.Attempts
	}
	if cfg.Interval == 0 {
		cfg.Interval = def.Interval
	}
	p := &Poller{cfg: cfg, check: check}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the effective poll configuration.
func (p *Poller) Config() PollConfig {
	return p.cfg
}

// WaitForMount blocks until check(path) succeeds or all attempts fail.
// Timeout is a result, not an error. A cancelled context also resolves as
// Timeout.
func (p *Poller) WaitForMount(ctx context.Context, path string) (PollResult, PollAttempt) {
	attempt := PollAttempt{
		MaxAttempts: p.cfg.Attempts,
		Interval:    p.cfg.Interval,
	}

	log.Infof("[POLL] Waiting for mount: %s (up to %v)", path, p.cfg.Budget())

	if err := ctx.Err(); err != nil {
		attempt.LastErr = err
		return PollTimeout, attempt
	}

	opts := []retry.Option{
		retry.Attempts(p.cfg.Attempts),
		retry.Delay(p.cfg.Interval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			log.Debugf("[POLL] %s not accessible (attempt %d/%d): %v", path, n+1, p.cfg.Attempts, err)
		}),
	}
	if p.timer != nil {
		opts = append(opts, retry.WithTimer(p.timer))
	}

	err := retry.Do(func() error {
		attempt.AttemptsMade++
		return p.check(path)
	}, opts...)

	if err != nil {
		attempt.LastErr = err
		attempt.DeadlineReached = attempt.AttemptsMade >= attempt.MaxAttempts
		log.Warnf("[POLL] Timed out waiting for mount: %s after %d attempts, err: %v", path, attempt.AttemptsMade, err)
		return PollTimeout, attempt
	}

	log.Infof("[POLL] Successfully mounted: %s", path)
	return PollReady, attempt
}

// WaitConfig configures PollUntil.
type WaitConfig struct {
	Timeout  time.Duration // Total timeout (default: 5s)
	Interval time.Duration // Polling interval (default: 50ms)
}

// PollUntil polls until condition returns true or timeout.
// Returns nil on success, context.DeadlineExceeded on timeout.
func PollUntil(ctx context.Context, cfg WaitConfig, condition func() bool) error {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Interval == 0 {
		cfg.Interval = 50 * time.Millisecond
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	// Check immediately before first tick
	if condition() {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if condition() {
				return nil
			}
		}
	}
}
