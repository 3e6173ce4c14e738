package ratelimit

import (
	"sync"
	"time"
)

const nanosPerToken int64 = int64(time.Second) // 1e9

const maxInt64 = int64(^uint64(0) >> 1)

// TokenBucket is a deterministic token bucket that refills at an integer
// rate (tokens/sec) using a provided Clock.
//
// Accounting is done in fixed-point "nano-tokens" (1 token = 1e9) to avoid
// float rounding: a rate of X tokens/sec adds X nano-tokens per nanosecond.
type TokenBucket struct {
	mu sync.Mutex

	clock Clock

	capacity int64 // tokens
	fillRate int64 // tokens/sec

	available int64 // nano-tokens
	last      time.Time
}

func NewTokenBucket(clock Clock, capacity, fillRate int64) *TokenBucket {
	if clock == nil {
		clock = RealClock{}
	}
	if capacity < 0 {
		capacity = 0
	}
	if fillRate < 0 {
		fillRate = 0
	}
	return &TokenBucket{
		clock:     clock,
		capacity:  capacity,
		fillRate:  fillRate,
		available: toNano(capacity),
		last:      clock.Now(),
	}
}

// Allow consumes the provided number of tokens if available.
//
// tokens <= 0 always succeeds.
func (b *TokenBucket) Allow(tokens int64) bool {
	if tokens <= 0 {
		return true
	}
	cost := toNano(tokens)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	if b.available < cost {
		return false
	}
	b.available -= cost
	return true
}

func (b *TokenBucket) refillLocked() {
	now := b.clock.Now()
	if now.Before(b.last) {
		// Time went backwards. Move the reference point without refilling.
		b.last = now
		return
	}
	elapsed := now.Sub(b.last)
	if elapsed <= 0 {
		return
	}
	b.last = now

	if b.fillRate <= 0 || b.capacity <= 0 {
		return
	}

	capNano := toNano(b.capacity)
	if b.available >= capNano {
		b.available = capNano
		return
	}

	// fillRate tokens/sec equals nano-tokens/ns in the fixed-point form. If
	// enough time elapsed to fill the bucket, clamp instead of multiplying
	// (avoids elapsed*rate overflow).
	need := capNano - b.available
	maxElapsedToFill := need / b.fillRate
	if maxElapsedToFill <= 0 || elapsed.Nanoseconds() >= maxElapsedToFill {
		b.available = capNano
		return
	}

	b.available += elapsed.Nanoseconds() * b.fillRate
	if b.available > capNano {
		b.available = capNano
	}
}

func toNano(tokens int64) int64 {
	if tokens <= 0 {
		return 0
	}
	if tokens > maxInt64/nanosPerToken {
		return maxInt64
	}
	return tokens * nanosPerToken
}
