package ingestion_engine

import (
	"context"
	"fmt"
	"time"

	"github.com/markdave123-py/docbundle/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// NewPool constructs a pool of cfg.Size workers. Nothing is initialized until
// Warm is called or the first request arrives.
func NewPool(cfg PoolConfig, newRuntime RuntimeFactory, log *zap.Logger, metrics *Metrics) *Pool {
	if cfg.Size <= 0 {
		cfg.Size = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if log == nil {
		log = zap.NewNop()
	}
	initCtx, initCancel := context.WithCancel(context.Background())
	p := &Pool{
		cfg:        cfg,
		log:        log,
		metrics:    metrics,
		instances:  make([]*instance, cfg.Size),
		initCtx:    initCtx,
		initCancel: initCancel,
		initDone:   make(chan struct{}),
		jobs:       make(chan job, cfg.QueueSize),
		done:       make(chan struct{}),
	}
	for i := range p.instances {
		p.instances[i] = &instance{rt: newRuntime(i)}
	}
	return p
}

// Start launches the workers. Each worker owns exactly one runtime instance.
func (p *Pool) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	for w := range p.instances {
		g.Go(func() error {
			p.work(gctx, w)
			return nil
		})
	}

	p.mu.Lock()
	p.cancel = cancel
	p.group = g
	p.mu.Unlock()

	p.log.Info("extraction pool started", zap.Int("workers", len(p.instances)), zap.Int("queue", cap(p.jobs)))
}

// Warm initializes every runtime instance. The work happens at most once per pool,
// under the pool's own context, so a caller giving up never fails the pool; ctx only
// bounds how long this caller waits. Later calls return the remembered result.
func (p *Pool) Warm(ctx context.Context) error {
	p.initOnce.Do(func() {
		p.initStarted.Store(true)
		go p.initialize()
	})
	select {
	case <-p.initDone:
		return p.initErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) initialize() {
	defer close(p.initDone)
	start := time.Now()

	g, gctx := errgroup.WithContext(p.initCtx)
	for i, inst := range p.instances {
		g.Go(func() error {
			if err := inst.rt.Init(gctx); err != nil {
				return fmt.Errorf("runtime %d: %w", i, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.initErr = fmt.Errorf("initialize extraction runtime: %w", err)
		p.log.Error("extraction pool initialization failed", zap.Error(err))
		return
	}
	p.log.Info("extraction pool warmed", zap.Duration("took", time.Since(start)))
}

// initFailure reports a completed, failed initialization without blocking.
func (p *Pool) initFailure() error {
	select {
	case <-p.initDone:
		return p.initErr
	default:
		return nil
	}
}

// Submit queues req without waiting for extraction. reply is called exactly once,
// from a worker goroutine, for every request Submit accepts.
func (p *Pool) Submit(req models.ExtractionRequest, reply ReplyFunc) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return fmt.Errorf("%w: pool closed", ErrPoolUnavailable)
	}
	if err := p.initFailure(); err != nil {
		return fmt.Errorf("%w: %v", ErrPoolUnavailable, err)
	}

	j := job{req: req, reply: reply}
	p.metrics.inFlight(1)

	select {
	case p.jobs <- j:
	default:
		// Queue full: hand the job off so the caller never blocks.
		p.overflow.Add(1)
		go func() {
			defer p.overflow.Done()
			select {
			case p.jobs <- j:
			case <-p.done:
				p.abandon(j)
			}
		}()
	}
	return nil
}

// Close stops the workers, answers every queued request with an error and
// releases the runtimes.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.done)
	cancel, g := p.cancel, p.group
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if g != nil {
		_ = g.Wait()
	}
	p.overflow.Wait()

	p.initCancel()
	if p.initStarted.Load() {
		<-p.initDone
	}

drain:
	for {
		select {
		case j := <-p.jobs:
			p.abandon(j)
		default:
			break drain
		}
	}

	for i, inst := range p.instances {
		// A hung extraction still holds its instance; leave it alone.
		if !inst.mu.TryLock() {
			p.log.Warn("runtime still busy at shutdown", zap.Int("runtime", i))
			continue
		}
		if err := inst.rt.Close(); err != nil {
			p.log.Warn("failed to close runtime", zap.Int("runtime", i), zap.Error(err))
		}
		inst.mu.Unlock()
	}
	p.log.Info("extraction pool closed")
}

func (p *Pool) abandon(j job) {
	p.metrics.inFlight(-1)
	j.reply(failure(j.req, "extraction pool closed before the request ran"))
}

// work drains the job queue until the pool shuts down.
func (p *Pool) work(ctx context.Context, w int) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case j := <-p.jobs:
			resp, busy := p.process(ctx, w, j.req)
			p.metrics.inFlight(-1)
			j.reply(resp)
			if busy != nil {
				// The instance is only released once the abandoned strategy returns.
				select {
				case <-busy:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

type outcome struct {
	text string
	err  error
}

// process runs one request on the worker's instance. Failures of any kind end up
// in the response; nothing escapes to the worker loop. When the request is given up
// on before the strategy returns, busy is closed once the instance is free again.
func (p *Pool) process(ctx context.Context, w int, req models.ExtractionRequest) (resp models.ExtractionResponse, busy <-chan struct{}) {
	log := p.log.With(zap.Int("worker", w), zap.String("key", req.Key), zap.Int64("version", req.Version))
	format := formatLabel(req.Name)

	if err := p.Warm(ctx); err != nil {
		p.metrics.observe(format, "error", 0)
		return failure(req, err.Error()), nil
	}

	var (
		exCtx  context.Context
		cancel context.CancelFunc
	)
	if p.cfg.ExtractTimeout > 0 {
		exCtx, cancel = context.WithTimeout(ctx, p.cfg.ExtractTimeout)
	} else {
		exCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	inst := p.instances[w]
	start := time.Now()
	result := make(chan outcome, 1)
	released := make(chan struct{})
	go func() {
		defer close(released)
		inst.mu.Lock()
		defer inst.mu.Unlock()
		text, err := safeExtract(exCtx, inst, req)
		result <- outcome{text: text, err: err}
	}()

	select {
	case o := <-result:
		elapsed := time.Since(start)
		if o.err != nil {
			p.metrics.observe(format, "error", elapsed.Seconds())
			log.Warn("extraction failed", zap.String("name", req.Name), zap.Error(o.err))
			return failure(req, fmt.Sprintf("failed to extract %s: %v", req.Name, o.err)), nil
		}
		p.metrics.observe(format, "ok", elapsed.Seconds())
		log.Debug("extraction finished", zap.Duration("took", elapsed), zap.Int("chars", len(o.text)))
		return models.ExtractionResponse{Key: req.Key, Grouped: req.Grouped, Version: req.Version, OK: true, Content: o.text}, nil

	case <-exCtx.Done():
		if ctx.Err() != nil {
			return failure(req, "extraction pool closed before the request finished"), released
		}
		p.metrics.observe(format, "timeout", p.cfg.ExtractTimeout.Seconds())
		log.Warn("extraction timed out", zap.String("name", req.Name), zap.Duration("timeout", p.cfg.ExtractTimeout))
		return failure(req, fmt.Sprintf("extraction of %s timed out after %s", req.Name, p.cfg.ExtractTimeout)), released
	}
}

func safeExtract(ctx context.Context, inst *instance, req models.ExtractionRequest) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extractor panicked: %v", r)
		}
	}()
	return inst.rt.Extract(ctx, req.Name, req.Data)
}

func failure(req models.ExtractionRequest, msg string) models.ExtractionResponse {
	return models.ExtractionResponse{Key: req.Key, Grouped: req.Grouped, Version: req.Version, ErrorMessage: msg}
}
