// Package dashboard drives analytics chart refreshes: filter changes are debounced, a newer
// change cancels the fetch of an older one, and only the newest result is applied.
package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"retailops/internal/model"

	"github.com/benbjohnson/clock"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultDebounce = 150 * time.Millisecond
	DefaultWindow   = 30
)

// Filter selects the chart data.
type Filter struct {
	From    time.Time `json:"from"`
	To      time.Time `json:"to"`
	Branch  string    `json:"branch,omitempty"`
	GroupBy string    `json:"group_by,omitempty"`
	// Horizon and Threshold tune the forecast and delivery charts; zero uses the defaults.
	Horizon   int     `json:"horizon,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
}

// Point is one chart bucket.
type Point struct {
	Label string          `json:"label"`
	Value decimal.Decimal `json:"value"`
	Count int64           `json:"count"`
}

// Charts is every dashboard chart for one filter. Points is the sales series.
type Charts struct {
	Points   []Point                    `json:"points"`
	Forecast []model.ForecastPoint      `json:"forecast"`
	KPIs     *model.KPIResponse         `json:"kpis,omitempty"`
	Delivery *model.DeliveryPerformance `json:"delivery,omitempty"`
	Branches []model.BranchRanking      `json:"branches"`
}

// Result is an applied fetch. Charts that failed to load are left empty and named in Err.
type Result struct {
	Seq    uint64 `json:"seq"`
	Filter Filter `json:"filter"`
	Charts
	Err string `json:"error,omitempty"`
}

// Fetcher loads the charts for f, returning whatever loaded alongside any error. It must
// honour ctx cancellation.
type Fetcher func(ctx context.Context, f Filter) (Charts, error)

type Options struct {
	Debounce time.Duration
	// Window keeps only the last N points of every result; <= 0 keeps everything.
	Window int
	Clock  clock.Clock
	Logger *zap.SugaredLogger
	// OnResult is called with every applied result.
	OnResult func(Result)
}

type Loader struct {
	fetch Fetcher
	opts  Options

	mu     sync.Mutex
	seq    uint64
	timer  *clock.Timer
	cancel context.CancelFunc
	latest *Result
	closed bool
}

func NewLoader(fetch Fetcher, opts Options) *Loader {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	return &Loader{fetch: fetch, opts: opts}
}

// Change schedules a fetch for f after the debounce window, superseding any earlier change.
func (l *Loader) Change(f Filter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.seq++
	seq := l.seq
	l.abort()
	l.timer = l.opts.Clock.AfterFunc(l.opts.Debounce, func() { l.run(seq, f) })
}

// abort stops the pending debounce timer and cancels the in-flight fetch. Callers hold mu.
func (l *Loader) abort() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}

func (l *Loader) run(seq uint64, f Filter) {
	l.mu.Lock()
	if l.closed || seq != l.seq {
		l.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.timer = nil
	l.mu.Unlock()
	defer cancel()

	charts, err := l.fetch(ctx, f)

	l.mu.Lock()
	if l.closed || seq != l.seq || errors.Is(ctx.Err(), context.Canceled) {
		l.mu.Unlock()
		l.opts.Logger.Debugw("discarding stale dashboard fetch", "seq", seq)
		return
	}
	l.cancel = nil
	charts.Points = Window(charts.Points, l.opts.Window)
	res := Result{Seq: seq, Filter: f, Charts: charts}
	if err != nil {
		res.Err = err.Error()
		l.opts.Logger.Errorw("dashboard fetch failed", "seq", seq, "error", err)
	}
	l.latest = &res
	l.mu.Unlock()

	if l.opts.OnResult != nil {
		l.opts.OnResult(res)
	}
}

// Latest returns the most recently applied result.
func (l *Loader) Latest() (Result, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.latest == nil {
		return Result{}, false
	}
	return *l.latest, true
}

// Close cancels pending work; no result is applied afterwards.
func (l *Loader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.abort()
}

// Window returns the last n points (all of them when n <= 0).
func Window(points []Point, n int) []Point {
	if n <= 0 || len(points) <= n {
		return points
	}
	return points[len(points)-n:]
}
