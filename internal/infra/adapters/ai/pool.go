// File: internal/infra/adapters/ai/pool.go
package ai

import (
	"context"
	"sync"
	"time"

	"classroom-ai-grading/internal/domain"
	"classroom-ai-grading/internal/infra/metrics"
)

// Slot is one rotating API credential with its own cooldown state.
// A slot is claimed by exactly one in-flight call at a time.
type Slot struct {
	Key string

	cooldownUntil time.Time
	failures      int
	busy          bool
}

// SlotState is a read-only view for callers and tests.
type SlotState struct {
	CooldownUntil time.Time
	Failures      int
}

// maxBackoffShift bounds the doubling exponent so the shift cannot wrap
// int64 on a long failure streak; any realistic cap is reached well before.
const maxBackoffShift = 16

// PoolOptions tune rotation behaviour. Zero values get sane defaults from
// config.ApplyDefaults before reaching here.
type PoolOptions struct {
	MinDelay    time.Duration // politeness spacing after a successful call
	BackoffBase time.Duration // first quota cooldown, doubled per consecutive failure
	BackoffCap  time.Duration
	WaitLimit   time.Duration // ceiling on Acquire blocking
}

// Pool hands out credential slots in order, skipping slots in cooldown.
// When every slot is cooling down, Acquire blocks until the earliest
// cooldown expires, bounded by WaitLimit.
type Pool struct {
	mu    sync.Mutex
	slots []*Slot
	wake  chan struct{}
	opts  PoolOptions
}

func NewPool(keys []string, opts PoolOptions) *Pool {
	slots := make([]*Slot, 0, len(keys))
	for _, k := range keys {
		slots = append(slots, &Slot{Key: k})
	}
	return &Pool{slots: slots, wake: make(chan struct{}), opts: opts}
}

func (p *Pool) Size() int { return len(p.slots) }

// Acquire claims the first available slot. It fails with ErrQuotaExhausted
// once WaitLimit has elapsed without a slot becoming available.
func (p *Pool) Acquire(ctx context.Context) (*Slot, error) {
	deadline := time.Now().Add(p.opts.WaitLimit)
	waited := false
	for {
		p.mu.Lock()
		now := time.Now()
		var next time.Time
		for _, s := range p.slots {
			if s.busy {
				continue
			}
			if !s.cooldownUntil.After(now) {
				s.busy = true
				p.mu.Unlock()
				return s, nil
			}
			if next.IsZero() || s.cooldownUntil.Before(next) {
				next = s.cooldownUntil
			}
		}
		wake := p.wake
		p.mu.Unlock()

		if now.After(deadline) {
			return nil, domain.ErrQuotaExhausted
		}
		if !waited {
			waited = true
			metrics.IncCooldownWait()
		}

		wait := deadline.Sub(now)
		if !next.IsZero() && next.Sub(now) < wait {
			wait = next.Sub(now)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// ReleaseSuccess returns a slot to rotation after the politeness interval
// and clears its failure streak.
func (p *Pool) ReleaseSuccess(s *Slot) {
	p.mu.Lock()
	s.busy = false
	s.failures = 0
	s.cooldownUntil = time.Now().Add(p.opts.MinDelay)
	p.notify()
	p.mu.Unlock()
}

// ReleaseQuota puts a slot into exponential-backoff cooldown after a
// rate-limit response.
func (p *Pool) ReleaseQuota(s *Slot) {
	p.mu.Lock()
	s.busy = false
	s.failures++
	shift := s.failures - 1
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	d := p.opts.BackoffBase << shift
	if d > p.opts.BackoffCap || d <= 0 {
		d = p.opts.BackoffCap
	}
	s.cooldownUntil = time.Now().Add(d)
	p.notify()
	p.mu.Unlock()
}

// ReleaseFailure frees a slot after a non-quota error. The failure streak is
// untouched; only the politeness interval applies.
func (p *Pool) ReleaseFailure(s *Slot) {
	p.mu.Lock()
	s.busy = false
	s.cooldownUntil = time.Now().Add(p.opts.MinDelay)
	p.notify()
	p.mu.Unlock()
}

// States reports each slot's cooldown and failure count, in pool order.
func (p *Pool) States() []SlotState {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SlotState, len(p.slots))
	for i, s := range p.slots {
		out[i] = SlotState{CooldownUntil: s.cooldownUntil, Failures: s.failures}
	}
	return out
}

// notify wakes all blocked Acquire calls. Caller holds p.mu.
func (p *Pool) notify() {
	close(p.wake)
	p.wake = make(chan struct{})
}
