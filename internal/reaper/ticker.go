package reaper

import (
	"context"
	"sync"
	"time"

	"github.com/maumercado/task-queue-go/internal/logger"
	"github.com/maumercado/task-queue-go/internal/store"
)

const (
	tickerLockKey = "reaper:lock"
	tickerLockTTL = 5 * time.Second
)

// Ticker drives periodic SweepAll calls (C10), generalized from the
// teacher's Scheduler.schedulerLoop: a SetNX distributed lock ensures only
// one process instance sweeps on a given tick when the service is run with
// more than one replica.
type Ticker struct {
	reaper   *Reaper
	store    *store.Store
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewTicker(r *Reaper, s *store.Store, interval time.Duration) *Ticker {
	return &Ticker{reaper: r, store: s, interval: interval, stopCh: make(chan struct{})}
}

// Start begins the periodic sweep loop in a background goroutine.
func (tk *Ticker) Start(ctx context.Context) {
	tk.wg.Add(1)
	go tk.loop(ctx)
	logger.Info().Dur("interval", tk.interval).Msg("reaper ticker started")
}

// Stop signals the loop to exit and waits for it to return.
func (tk *Ticker) Stop() {
	close(tk.stopCh)
	tk.wg.Wait()
	logger.Info().Msg("reaper ticker stopped")
}

func (tk *Ticker) loop(ctx context.Context) {
	defer tk.wg.Done()

	ticker := time.NewTicker(tk.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.stopCh:
			return
		case <-ticker.C:
			tk.tick(ctx)
		}
	}
}

func (tk *Ticker) tick(ctx context.Context) {
	locked, err := tk.store.Client().SetNX(ctx, tickerLockKey, "1", tickerLockTTL).Result()
	if err != nil || !locked {
		return
	}
	defer tk.store.Client().Del(ctx, tickerLockKey)

	n, err := tk.reaper.SweepAll(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("reaper tick failed")
		return
	}
	if n > 0 {
		logger.Debug().Int("swept", n).Msg("reaper tick completed")
	}
}
