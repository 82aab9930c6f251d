package progress

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"mongotable/internal/common"
)

const (
	DefaultUpdateInterval = 1 * time.Second
)

// Status is a snapshot of the rows written so far.
type Status struct {
	Processed  int64
	Total      int64
	Percentage float64
	Rate       float64
	ETA        time.Duration
	Elapsed    time.Duration
}

// Tracker redraws a single progress line on out while rows are written.
type Tracker struct {
	out            io.Writer
	totalItems     int64
	processedItems int64
	startTime      time.Time
	updateInterval time.Duration
	mu             sync.RWMutex

	lastProcessed int64
	lastRateTime  time.Time
	currentRate   float64

	started  atomic.Bool
	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

// NewProgressTracker creates a tracker for totalItems rows.
func NewProgressTracker(out io.Writer, totalItems int64, updateInterval time.Duration) *Tracker {
	if updateInterval <= 0 {
		updateInterval = DefaultUpdateInterval
	}
	now := time.Now()
	return &Tracker{
		out:            out,
		totalItems:     totalItems,
		updateInterval: updateInterval,
		startTime:      now,
		lastRateTime:   now,
		stopChan:       make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// Start redraws the progress line every update interval until Stop or ctx is done.
func (pt *Tracker) Start(ctx context.Context) {
	pt.started.Store(true)
	go pt.displayProgress(ctx)
}

// Stop ends the display and prints the final line. Safe to call more than once.
func (pt *Tracker) Stop() {
	pt.stopOnce.Do(func() {
		close(pt.stopChan)
		if pt.started.Load() {
			<-pt.done
		}
		pt.updateRate()
		pt.displayProgressLine()
		fmt.Fprintln(pt.out)
	})
}

// UpdateProgress adds processed rows.
func (pt *Tracker) UpdateProgress(processed int) {
	atomic.AddInt64(&pt.processedItems, int64(processed))
}

// GetProgressStatus returns the current progress status.
func (pt *Tracker) GetProgressStatus() Status {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	processed := atomic.LoadInt64(&pt.processedItems)
	elapsed := time.Since(pt.startTime)

	var percentage float64
	if pt.totalItems > 0 {
		percentage = float64(processed) / float64(pt.totalItems) * 100
	}

	var eta time.Duration
	if pt.currentRate > 0 {
		if remaining := pt.totalItems - processed; remaining > 0 {
			eta = time.Duration(float64(remaining) / pt.currentRate * float64(time.Second))
		}
	}

	return Status{
		Processed:  processed,
		Total:      pt.totalItems,
		Percentage: percentage,
		Rate:       pt.currentRate,
		ETA:        eta,
		Elapsed:    elapsed,
	}
}

func (pt *Tracker) displayProgress(ctx context.Context) {
	defer close(pt.done)
	ticker := time.NewTicker(pt.updateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pt.stopChan:
			return
		case <-ticker.C:
			pt.updateRate()
			pt.displayProgressLine()
		}
	}
}

// updateRate calculates the rows per second since the last update.
func (pt *Tracker) updateRate() {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	now := time.Now()
	currentProcessed := atomic.LoadInt64(&pt.processedItems)

	if timeDiff := now.Sub(pt.lastRateTime).Seconds(); timeDiff > 0 {
		pt.currentRate = float64(currentProcessed-pt.lastProcessed) / timeDiff
	}
	pt.lastProcessed = currentProcessed
	pt.lastRateTime = now
}

func (pt *Tracker) displayProgressLine() {
	fmt.Fprint(pt.out, "\r\033[K"+pt.line())
}

func (pt *Tracker) line() string {
	status := pt.GetProgressStatus()
	if status.Percentage >= 100.0 && status.Elapsed > 0 {
		status.Rate = float64(status.Total) / status.Elapsed.Seconds()
	}

	eta := common.FormatDuration(status.ETA)
	if status.Rate == 0 && status.Processed < status.Total {
		eta = "N/A"
	}
	return fmt.Sprintf(
		"▶ %s/%s rows (%.1f%%) | %s rows/sec | %s left",
		common.FormatNumber(int(status.Processed)),
		common.FormatNumber(int(status.Total)),
		status.Percentage,
		common.FormatNumber(int(status.Rate)),
		eta,
	)
}
