package lim

import (
	"sync"
	"time"

	"pastebin/metrics"
	"pastebin/svc/util"
)

// AnomalyDetector keeps per-minute request and error counts over a five
// minute window and fires onAnomaly when more than 5% of recent requests
// failed.
type AnomalyDetector struct {
	mu           sync.Mutex
	window       []bucket
	windowSize   int
	currentIndex int
	onAnomaly    func()
	done         chan struct{}
}
type bucket struct {
	requests int64
	errors   int64
}

func NewAnomalyDetector(onAnomaly func()) *AnomalyDetector {
	return &AnomalyDetector{
		window:     make([]bucket, 5),
		windowSize: 5,
		onAnomaly:  onAnomaly,
		done:       make(chan struct{}),
	}
}
func (d *AnomalyDetector) Start() {
	ticker := time.NewTicker(1 * time.Minute)
	go func() {
		for {
			select {
			case <-ticker.C:
				d.AdvanceWindow()
			case <-d.done:
				ticker.Stop()
				return
			}
		}
	}()
}
func (d *AnomalyDetector) Stop() {
	close(d.done)
}
func (d *AnomalyDetector) RecordRequest() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.window[d.currentIndex].requests++
}
func (d *AnomalyDetector) RecordError() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.window[d.currentIndex].errors++
}

// ErrorRate returns the failure percentage over the whole window.
func (d *AnomalyDetector) ErrorRate() (rate float64, requests int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.errorRateLocked()
}

func (d *AnomalyDetector) errorRateLocked() (float64, int64) {
	var totalReqs, totalErrs int64
	for _, b := range d.window {
		totalReqs += b.requests
		totalErrs += b.errors
	}
	if totalReqs == 0 {
		return 0, 0
	}
	return float64(totalErrs) / float64(totalReqs) * 100.0, totalReqs
}

func (d *AnomalyDetector) AdvanceWindow() {
	d.mu.Lock()
	errorRate, totalReqs := d.errorRateLocked()
	d.currentIndex = (d.currentIndex + 1) % d.windowSize
	d.window[d.currentIndex] = bucket{}
	d.mu.Unlock()

	metrics.RecentErrorRatePercent.Set(errorRate)
	if totalReqs > 10 && errorRate > 5.0 {
		util.Warn().
			Float64("error_rate", errorRate).
			Int64("total_reqs", totalReqs).
			Msg("high error rate, halving rate limits")
		if d.onAnomaly != nil {
			d.onAnomaly()
		}
	}
}
