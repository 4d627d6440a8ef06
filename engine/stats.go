package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Stats receives engine timing observations. The three phases mirror the
// engine's work split: path generation, calibration (regression training)
// and path replay.
type Stats interface {
	ObservePathGeneration(d time.Duration)
	ObserveCalibration(d time.Duration)
	ObserveReplay(d time.Duration)
}

// NopStats discards all observations.
type NopStats struct{}

func (NopStats) ObservePathGeneration(time.Duration) {}
func (NopStats) ObserveCalibration(time.Duration)   {}
func (NopStats) ObserveReplay(time.Duration)        {}

// PromStats exports engine timings as Prometheus histograms.
type PromStats struct {
	pathGen     prometheus.Histogram
	calibration prometheus.Histogram
	replay      prometheus.Histogram
}

// NewPromStats registers the engine histograms on reg.
func NewPromStats(reg prometheus.Registerer) (*PromStats, error) {
	s := &PromStats{
		pathGen: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "amclib",
			Subsystem: "engine",
			Name:      "path_generation_seconds",
			Help:      "Time spent generating Monte Carlo calibration paths.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		calibration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "amclib",
			Subsystem: "engine",
			Name:      "calibration_seconds",
			Help:      "Time spent on regression training (backward induction).",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		replay: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "amclib",
			Subsystem: "engine",
			Name:      "replay_seconds",
			Help:      "Time spent replaying exposure paths.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
	}
	for _, c := range []prometheus.Collector{s.pathGen, s.calibration, s.replay} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *PromStats) ObservePathGeneration(d time.Duration) { s.pathGen.Observe(d.Seconds()) }
func (s *PromStats) ObserveCalibration(d time.Duration)    { s.calibration.Observe(d.Seconds()) }
func (s *PromStats) ObserveReplay(d time.Duration)         { s.replay.Observe(d.Seconds()) }
