// Package tracker applies click analytics in the background so that redirects never wait for them.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

// ErrClosed is returned by Shutdown when called more than once.
var ErrClosed = errors.New("tracker closed")

type clickRecorder interface {
	RecordClick(ctx context.Context, click entity.Click) error
}

// Config controls the worker pool and the retry policy.
type Config struct {
	Workers    int
	QueueSize  int
	// MaxSpill bounds the clicks applied outside the workers while the queue is full.
	MaxSpill   int
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

var defaultConfig = Config{
	Workers:    4,
	QueueSize:  1024,
	MaxSpill:   256,
	MaxRetries: 3,
	RetryDelay: 100 * time.Millisecond,
	Timeout:    5 * time.Second,
}

type job struct {
	id    string
	click entity.Click
}

// Tracker is a pool of workers applying clicks to the store with at-least-once semantics.
type Tracker struct {
	store  clickRecorder
	cfg    Config
	logger *slog.Logger

	queue      chan job
	spillSlots chan struct{}
	stop       chan struct{}

	mu      sync.RWMutex
	closed  bool
	workers sync.WaitGroup
	spill   sync.WaitGroup
}

// New starts the workers. Zero config fields take their defaults.
func New(store clickRecorder, cfg Config, logger *slog.Logger) *Tracker {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultConfig.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultConfig.QueueSize
	}
	if cfg.MaxSpill <= 0 {
		cfg.MaxSpill = defaultConfig.MaxSpill
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultConfig.RetryDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultConfig.Timeout
	}

	t := &Tracker{
		store:  store,
		cfg:    cfg,
		logger: logger,
		queue:      make(chan job, cfg.QueueSize),
		spillSlots: make(chan struct{}, cfg.MaxSpill),
		stop:       make(chan struct{}),
	}

	t.workers.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go t.work()
	}

	return t
}

// Track submits a click and returns immediately. When the queue is full the click
// is applied on its own goroutine, up to MaxSpill at a time; beyond that it is dropped.
func (t *Tracker) Track(click entity.Click) {
	j := job{
		id:    uuid.NewString(),
		click: click,
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		t.logger.Error("click dropped, tracker is shut down",
			slog.String("job_id", j.id),
			slog.String("short_id", click.ShortID),
		)
		return
	}

	select {
	case t.queue <- j:
		return
	default:
	}

	select {
	case t.spillSlots <- struct{}{}:
		t.spill.Add(1)
		go func() {
			defer func() {
				<-t.spillSlots
				t.spill.Done()
			}()
			t.process(j)
		}()
	default:
		t.logger.Error("click dropped, analytics backlog is full",
			slog.String("job_id", j.id),
			slog.String("short_id", click.ShortID),
		)
	}
}

// Shutdown stops accepting clicks and waits until queued clicks are applied or ctx is done.
func (t *Tracker) Shutdown(ctx context.Context) error {
	const op = "tracker.Tracker.Shutdown"

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return fmt.Errorf("%s: %w", op, ErrClosed)
	}
	t.closed = true
	close(t.queue)
	t.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		t.workers.Wait()
		t.spill.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		close(t.stop)
		return fmt.Errorf("%s: pending clicks abandoned: %w", op, ctx.Err())
	}
}

func (t *Tracker) work() {
	defer t.workers.Done()

	for j := range t.queue {
		t.process(j)
	}
}

func (t *Tracker) process(j job) {
	var err error

	for attempt := 0; attempt <= t.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * t.cfg.RetryDelay):
			case <-t.stop:
				t.logger.Error("click abandoned on shutdown",
					slog.String("job_id", j.id),
					slog.String("short_id", j.click.ShortID),
					slog.Any("err", err),
				)
				return
			}
		}

		if err = t.apply(j.click); err == nil {
			return
		}

		if errors.Is(err, entity.ErrLinkNotFound) {
			t.logger.Warn("click for missing link ignored",
				slog.String("job_id", j.id),
				slog.String("short_id", j.click.ShortID),
			)
			return
		}
	}

	t.logger.Error("failed to record click",
		slog.String("job_id", j.id),
		slog.String("short_id", j.click.ShortID),
		slog.Int("attempts", t.cfg.MaxRetries+1),
		slog.Any("err", err),
	)
}

func (t *Tracker) apply(click entity.Click) error {
	ctx, cancel := context.WithTimeout(context.Background(), t.cfg.Timeout)
	defer cancel()

	return t.store.RecordClick(ctx, click)
}
