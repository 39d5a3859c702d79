// Package idle tracks last use of long-lived entries and sweeps out the
// ones nobody touched for a while.
package idle

import (
	"context"
	"sync/atomic"
	"time"
)

const (
	minInterval = 10 * time.Millisecond
	maxInterval = time.Minute
)

// Stamp holds the time of last use. The zero value has never been touched.
type Stamp struct {
	nanos atomic.Int64
}

func (s *Stamp) Touch(t time.Time) {
	s.nanos.Store(t.UnixNano())
}

// Since reports how long before now the stamp was last touched.
func (s *Stamp) Since(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.nanos.Load()))
}

// Expired reports whether the stamp is older than ttl at now.
func (s *Stamp) Expired(now time.Time, ttl time.Duration) bool {
	return s.Since(now) > ttl
}

// Interval is the sweep period used for ttl: half of it, kept within
// 10ms and one minute.
func Interval(ttl time.Duration) time.Duration {
	i := ttl / 2
	if i < minInterval {
		return minInterval
	}
	if i > maxInterval {
		return maxInterval
	}
	return i
}

// Sweep calls sweep every interval until ctx is done. It blocks.
func Sweep(ctx context.Context, interval time.Duration, sweep func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}
