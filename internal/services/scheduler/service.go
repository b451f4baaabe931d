package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"cronhub/internal/storage"
	logx "cronhub/pkg/logx"
)

type Service struct {
	store   storage.Store
	handler Handler
	tick    time.Duration
	watch   bool
	log     logx.Logger
	metrics *Metrics
	now     func() time.Time

	mu       sync.Mutex
	state    State
	cancel   context.CancelFunc
	loopDone chan struct{}

	// wake coalesces early-tick requests (CRUD in this process, watcher).
	wake chan struct{}

	flightMu sync.Mutex
	inFlight map[string]struct{}
	runs     sync.WaitGroup

	// Handler failure log throttling: key is job id.
	failMu   sync.Mutex
	failWarn map[string]*rate.Limiter
}

// New returns a stopped Service. Store is required.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("scheduler: store required")
	}
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.Log.IsZero() {
		cfg.Log = logx.Nop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		store:    cfg.Store,
		handler:  cfg.Handler,
		tick:     cfg.Tick,
		watch:    cfg.Watch,
		log:      cfg.Log,
		metrics:  cfg.Metrics,
		now:      cfg.Now,
		wake:     make(chan struct{}, 1),
		inFlight: map[string]struct{}{},
		failWarn: map[string]*rate.Limiter{},
	}, nil
}

// State reports whether the polling loop is running.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start launches the polling loop and returns immediately. The loop also
// stops when ctx is cancelled. Calling Start while running returns
// ErrAlreadyRunning and starts nothing.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning {
		return ErrAlreadyRunning
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.state = StateRunning
	s.cancel = cancel
	s.loopDone = done

	go s.loop(loopCtx, done)
	if s.watch {
		go s.watchStore(loopCtx)
	}
	s.log.Info("service started",
		logx.String("store", s.store.Path()),
		logx.Duration("tick", s.tick),
		logx.Bool("watch", s.watch),
	)
	return nil
}

// Stop cancels future ticks and waits for the loop goroutine to exit. Handler
// invocations already started keep running; use Wait to drain them. Safe to
// call when stopped.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.loopDone
	s.cancel = nil
	s.loopDone = nil
	s.state = StateStopped
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	start := time.Now()
	cancel()
	<-done
	s.log.Info("service stopped", logx.Duration("took", time.Since(start)), logx.Int("in_flight", s.inFlightCount()))
}

// Wait blocks until every dispatched handler has returned and its run-state
// is recorded, or ctx is done. Call it after Stop.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.runs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) loop(ctx context.Context, done chan struct{}) {
	defer func() {
		s.mu.Lock()
		// Only reset state if Stop has not already taken over.
		if s.loopDone == done {
			s.state = StateStopped
			s.cancel = nil
			s.loopDone = nil
		}
		s.mu.Unlock()
		close(done)
	}()

	t := time.NewTicker(s.tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		case <-s.wake:
		}
		if ctx.Err() != nil {
			return
		}
		s.runTick(ctx)
	}
}

// nudge asks a running loop for an early tick. Never blocks.
func (s *Service) nudge() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
