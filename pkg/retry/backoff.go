package retry

import (
	"math"
	"math/rand"
)

const (
	// DefaultBaseDelaySeconds is the minimum backoff delay.
	DefaultBaseDelaySeconds = 8
	// DefaultMaxDelaySeconds caps the backoff delay.
	DefaultMaxDelaySeconds = 64
)

// BackoffConfig parameterizes the jittered exponential backoff. The zero
// value uses the package defaults and the shared math/rand source.
type BackoffConfig struct {
	BaseDelaySeconds int
	MaxDelaySeconds  int

	// Rand returns a uniform float in [0, 1). Injected by tests.
	Rand func() float64
}

func (c BackoffConfig) withDefaults() BackoffConfig {
	if c.BaseDelaySeconds <= 0 {
		c.BaseDelaySeconds = DefaultBaseDelaySeconds
	}
	if c.MaxDelaySeconds <= 0 {
		c.MaxDelaySeconds = DefaultMaxDelaySeconds
	}
	if c.Rand == nil {
		c.Rand = rand.Float64
	}
	return c
}

// JitteredBackoff computes a randomized delay in seconds that grows
// exponentially with the number of tries so far. The random component spans
// the whole exponential spread, so entropy dominates at high try counts and
// independent callers do not retry in lockstep.
func JitteredBackoff(triesSoFar int) int {
	return BackoffConfig{}.Delay(triesSoFar)
}

// Delay computes the jittered delay for the given try count:
// min(max, ceil(base + rand * (base*2^tries - base))).
func (c BackoffConfig) Delay(triesSoFar int) int {
	cfg := c.withDefaults()

	base := float64(cfg.BaseDelaySeconds)
	spread := base*math.Pow(2, float64(triesSoFar)) - base

	delay := int(math.Ceil(base + cfg.Rand()*spread))
	if delay > cfg.MaxDelaySeconds {
		return cfg.MaxDelaySeconds
	}

	return delay
}
