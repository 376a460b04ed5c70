// Package progress fabricates a bounded, monotonically increasing percentage
// for work whose only real completion signal is a single network response.
// The backend exposes no streaming progress channel, so the percentage is a
// pure function of elapsed wall-clock time, capped strictly below 100: the
// jump to 100 always corresponds to the real response arriving.
package progress

import (
	"sync"
	"time"

	"github.com/score-analyzer/webapp/internal/models"
)

// Curve shapes one simulated phase. Percent approaches Cap asymptotically
// with HalfLife being the elapsed time at which half the cap is reached.
type Curve struct {
	Cap      float64
	HalfLife time.Duration
	Window   time.Duration // 0 means unbounded
}

// Profile holds the per-stage curves.
type Profile struct {
	Upload  Curve // submit call, pre-parse phase
	Parse   Curve // submit call, after the upload window elapses
	Analyze Curve // analyze call
}

// DefaultProfile mirrors the staged feedback of the original screen: a quick
// ramp to 40 while the file is presumed in transit, a slow crawl toward 92
// while the server parses, and a long crawl toward 95 during analysis.
func DefaultProfile() Profile {
	return Profile{
		Upload:  Curve{Cap: 40, HalfLife: 400 * time.Millisecond, Window: 1200 * time.Millisecond},
		Parse:   Curve{Cap: 92, HalfLife: 3 * time.Second},
		Analyze: Curve{Cap: 95, HalfLife: 20 * time.Second},
	}
}

// Percent returns the simulated percentage for a stage after elapsed time.
// It is monotone in elapsed and never reaches the stage cap.
func (p Profile) Percent(stage models.WorkStage, elapsed time.Duration) float64 {
	if elapsed < 0 {
		elapsed = 0
	}
	switch stage {
	case models.StageUploading:
		if p.Upload.Window <= 0 || elapsed < p.Upload.Window {
			return approach(elapsed, 0, p.Upload.Cap, p.Upload.HalfLife)
		}
		return approach(elapsed-p.Upload.Window, p.Upload.Cap, p.Parse.Cap, p.Parse.HalfLife)
	case models.StageAnalyzing:
		return approach(elapsed, 0, p.Analyze.Cap, p.Analyze.HalfLife)
	default:
		return 0
	}
}

// approach rises from floor toward cap, reaching the midpoint at halfLife.
func approach(elapsed time.Duration, floor, cap float64, halfLife time.Duration) float64 {
	if cap <= floor {
		return floor
	}
	if halfLife <= 0 {
		halfLife = time.Second
	}
	t := float64(elapsed)
	return floor + (cap-floor)*t/(t+float64(halfLife))
}

// Clock abstracts time for testing.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall-clock implementation.
func SystemClock() Clock { return systemClock{} }

// Runner drives a stage's simulated percentage on a periodic tick until
// stopped. Stop is idempotent and must be called the instant the real
// response arrives so a stale timer can never mutate a superseded item.
type Runner struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// StartRunner begins ticking. onTick receives the current simulated percent;
// the callback owns reconciliation (monotonic guards, stale-item checks).
func StartRunner(profile Profile, stage models.WorkStage, interval time.Duration, clock Clock, onTick func(percent float64)) *Runner {
	if clock == nil {
		clock = SystemClock()
	}
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}

	r := &Runner{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	start := clock.Now()

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.stop:
				return
			case <-ticker.C:
				onTick(profile.Percent(stage, clock.Now().Sub(start)))
			}
		}
	}()

	return r
}

// Stop cancels the runner. Safe to call multiple times and from any
// goroutine; returns once the tick loop has exited.
func (r *Runner) Stop() {
	r.once.Do(func() { close(r.stop) })
	<-r.done
}
