package pricefeed

import (
	"context"
	"sync"
	"time"

	"earnx/internal/metrics"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// Source is anything that can quote a pair.
type Source interface {
	SpotPrice(ctx context.Context, pair Pair) (Quote, error)
}

// Ticker polls a Source on a schedule and keeps the last good quote.
type Ticker struct {
	source   Source
	pair     Pair
	interval time.Duration
	timeout  time.Duration
	log      *logrus.Entry

	mu     sync.RWMutex
	latest Quote
	ok     bool

	sched gocron.Scheduler
}

func NewTicker(source Source, pair Pair, interval, timeout time.Duration, log *logrus.Logger) *Ticker {
	return &Ticker{
		source:   source,
		pair:     pair,
		interval: interval,
		timeout:  timeout,
		log:      log.WithField("component", "pricefeed"),
	}
}

// Start schedules polling, running the first fetch immediately.
func (t *Ticker) Start() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = sched.NewJob(
		gocron.DurationJob(t.interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
			defer cancel()
			t.Refresh(ctx)
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}
	sched.Start()
	t.sched = sched
	return nil
}

func (t *Ticker) Stop() error {
	if t.sched == nil {
		return nil
	}
	return t.sched.Shutdown()
}

// Refresh fetches once. A failed fetch keeps the previous quote.
func (t *Ticker) Refresh(ctx context.Context) {
	q, err := t.source.SpotPrice(ctx, t.pair)
	metrics.RecordPriceFetch(err == nil)
	if err != nil {
		t.log.WithError(err).Warn("price fetch failed")
		return
	}
	t.mu.Lock()
	t.latest, t.ok = q, true
	t.mu.Unlock()
	t.log.WithFields(logrus.Fields{"pair": q.Pair, "price": q.Price.String()}).Debug("price updated")
}

// Latest returns the last good quote, if any.
func (t *Ticker) Latest() (Quote, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.latest, t.ok
}
