package replay

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/banshee-data/scansim/internal/lidar/advisory"
	"github.com/banshee-data/scansim/internal/lidar/beams"
	"github.com/banshee-data/scansim/internal/lidar/raycast"
	"github.com/banshee-data/scansim/internal/monitoring"
	"github.com/banshee-data/scansim/internal/timeutil"
)

// Scanner is the part of scanner.Scanner the player drives.
type Scanner interface {
	Scan(timestamp float64, pose beams.Pose) (raycast.Result, error)
}

// Sink receives every scan in order. seq counts from 0.
type Sink interface {
	RecordScan(ctx context.Context, seq int, res raycast.Result) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, seq int, res raycast.Result) error

// RecordScan calls f.
func (f SinkFunc) RecordScan(ctx context.Context, seq int, res raycast.Result) error {
	return f(ctx, seq, res)
}

// Player scans each waypoint in turn. With a zero Interval it runs as fast
// as possible; otherwise the first waypoint is scanned immediately and each
// later one on the next clock tick.
type Player struct {
	Scanner   Scanner
	Waypoints []Waypoint
	Interval  time.Duration
	Clock     timeutil.Clock
	Sink      Sink
	Logger    *zap.Logger
}

// Summary describes a finished or interrupted replay.
type Summary struct {
	Scans           int
	OutsideBoundary int
	Advisories      int
}

// Run plays the trajectory until it is exhausted, ctx is cancelled or a scan
// or sink fails. The summary covers the scans completed before returning.
func (p *Player) Run(ctx context.Context) (Summary, error) {
	logger := p.Logger
	if logger == nil {
		logger = monitoring.Logger()
	}
	clock := p.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	var ticks <-chan time.Time
	if p.Interval > 0 {
		ticker := clock.NewTicker(p.Interval)
		defer ticker.Stop()
		ticks = ticker.C()
	}

	var sum Summary
	start := clock.Now()
	for i, wp := range p.Waypoints {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if i > 0 && ticks != nil {
			select {
			case <-ctx.Done():
				return sum, ctx.Err()
			case <-ticks:
			}
		}

		res, err := p.Scanner.Scan(wp.Timestamp, wp.Pose)
		if err != nil {
			return sum, fmt.Errorf("waypoint %d: %w", i, err)
		}
		sum.Scans++
		sum.Advisories += len(res.Advisories)
		if advisory.Has(res.Advisories, advisory.OutsideBoundary) {
			sum.OutsideBoundary++
		}

		if p.Sink != nil {
			if err := p.Sink.RecordScan(ctx, i, res); err != nil {
				return sum, fmt.Errorf("record waypoint %d: %w", i, err)
			}
		}
	}

	logger.Info("replay finished",
		zap.Int("scans", sum.Scans),
		zap.Int("outside_boundary", sum.OutsideBoundary),
		zap.Duration("elapsed", clock.Since(start)))
	return sum, nil
}
