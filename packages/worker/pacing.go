package worker

import (
	"context"
	"math/rand/v2"
	"slices"
	"time"
)

// JitterDelay returns a delay drawn uniformly from
// [baseMs-jitterMs, baseMs+jitterMs] milliseconds, clamped at zero.
func JitterDelay(baseMs, jitterMs int, rng *rand.Rand) time.Duration {
	if jitterMs < 0 {
		jitterMs = 0
	}
	ms := baseMs - jitterMs + rng.IntN(2*jitterMs+1)
	if ms < 0 {
		ms = 0
	}
	return time.Duration(ms) * time.Millisecond
}

// DelayBand is the closed range JitterDelay draws from, in milliseconds.
func DelayBand(baseMs, jitterMs int) (minMs, maxMs int) {
	if jitterMs < 0 {
		jitterMs = 0
	}
	return max(0, baseMs-jitterMs), max(0, baseMs+jitterMs)
}

// Shuffle returns a uniformly permuted copy of items.
func Shuffle[T any](items []T, rng *rand.Rand) []T {
	out := slices.Clone(items)
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

func newRand() *rand.Rand {
	return rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))
}

// sleepCtx waits for d or until ctx is done. It reports whether the full
// delay elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
