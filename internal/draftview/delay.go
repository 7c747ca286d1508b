package draftview

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// DelayRange is the inclusive window the pre-pick drama delay is drawn from.
// Sampling has millisecond granularity.
type DelayRange struct {
	Min time.Duration
	Max time.Duration
}

var DefaultDelay = DelayRange{Min: 3 * time.Second, Max: 10 * time.Second}

func (d DelayRange) Validate() error {
	if d.Min < 0 || d.Max < d.Min {
		return fmt.Errorf("invalid drama delay range %v..%v", d.Min, d.Max)
	}
	return nil
}

// Sample draws uniformly from [Min, Max].
func (d DelayRange) Sample(r *rand.Rand) time.Duration {
	if d.Max <= d.Min {
		return d.Min
	}
	steps := int64((d.Max - d.Min) / time.Millisecond)
	return d.Min + time.Duration(r.Int64N(steps+1))*time.Millisecond
}

func (d DelayRange) Contains(x time.Duration) bool {
	return x >= d.Min && x <= d.Max
}
