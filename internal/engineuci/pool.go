package engineuci

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
)

var ErrPoolClosed = errors.New("engine pool closed")

type PoolConfig struct {
	BinaryPath string
	Capacity   int
	Options    Options
}

// Pool keeps up to Capacity engine processes alive and hands them out one
// search at a time. Processes are started lazily.
type Pool struct {
	binaryPath string
	opt        Options

	idle  chan *Session
	slots chan struct{}

	mu     sync.Mutex
	closed bool
}

func NewPool(cfg PoolConfig) (*Pool, error) {
	if cfg.BinaryPath == "" {
		return nil, fmt.Errorf("binary path required")
	}
	if _, err := os.Stat(cfg.BinaryPath); err != nil {
		return nil, fmt.Errorf("engine binary check: %w", err)
	}
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = defaultCapacity()
	}
	return &Pool{
		binaryPath: cfg.BinaryPath,
		opt:        cfg.Options,
		idle:       make(chan *Session, capacity),
		slots:      make(chan struct{}, capacity),
	}, nil
}

func defaultCapacity() int {
	n := runtime.NumCPU() / 2
	if n < 1 {
		return 1
	}
	if n > 4 {
		return 4
	}
	return n
}

// Search runs one analysis on a pooled process. A process that fails is
// discarded and its slot freed.
func (p *Pool) Search(ctx context.Context, fen string, l Limits) (Result, error) {
	s, err := p.acquire(ctx)
	if err != nil {
		return Result{}, err
	}
	res, err := s.Search(ctx, fen, l)
	p.release(s, err)
	return res, err
}

func (p *Pool) acquire(ctx context.Context) (*Session, error) {
	for {
		if p.isClosed() {
			return nil, ErrPoolClosed
		}
		select {
		case s := <-p.idle:
			return s, nil
		default:
		}
		select {
		case s := <-p.idle:
			return s, nil
		case p.slots <- struct{}{}:
			s, err := Start(ctx, p.binaryPath, p.opt)
			if err != nil {
				<-p.slots
				return nil, err
			}
			return s, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (p *Pool) release(s *Session, err error) {
	if err != nil || p.isClosed() {
		_ = s.Close()
		<-p.slots
		return
	}
	p.idle <- s
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close stops idle processes. Sessions in use are stopped when released.
func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	var errs []error
	for {
		select {
		case s := <-p.idle:
			if err := s.Close(); err != nil {
				errs = append(errs, err)
			}
			<-p.slots
		default:
			return errors.Join(errs...)
		}
	}
}
