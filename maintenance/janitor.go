package maintenance

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/hinata-sys/hinata/storage"
)

const (
	defaultInterval    = time.Hour
	defaultRelationTTL = 90 * 24 * time.Hour
	defaultDecayFactor = 0.9
	defaultDecayFloor  = 0.1
)

var (
	// ErrRelationRepositoryRequired is returned when a relation repository is not provided.
	ErrRelationRepositoryRequired = errors.New("relation repository required")

	// ErrTagRepositoryRequired is returned when a tag repository is not provided.
	ErrTagRepositoryRequired = errors.New("tag repository required")
)

// Report summarizes one maintenance sweep.
type Report struct {
	DecayedRelations int
	RemovedRelations int
	RemovedTags      int
}

// Janitor periodically decays and expires stale relations and tags.
type Janitor struct {
	relations storage.RelationRepository
	tags      storage.TagRepository

	interval    time.Duration
	relationTTL time.Duration
	decayFactor float64
	decayFloor  float64

	pool   *ants.Pool
	logger *slog.Logger

	mu     sync.Mutex
	stop   chan struct{}
	ticker *time.Ticker
}

// Option configures a Janitor.
type Option func(*Janitor) error

// WithInterval sets the time between sweeps.
// Default is one hour.
func WithInterval(interval time.Duration) Option {
	return func(j *Janitor) error {
		if interval > 0 {
			j.interval = interval
		}
		return nil
	}
}

// WithRelationTTL sets how long an untouched system relation survives.
// Default is 90 days.
func WithRelationTTL(ttl time.Duration) Option {
	return func(j *Janitor) error {
		if ttl > 0 {
			j.relationTTL = ttl
		}
		return nil
	}
}

// WithDecay sets the multiplicative decay factor and the strength floor
// below which decayed relations are deleted. Defaults are 0.9 and 0.1.
func WithDecay(factor, floor float64) Option {
	return func(j *Janitor) error {
		j.decayFactor = factor
		j.decayFloor = floor
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(j *Janitor) error {
		if logger == nil {
			logger = slog.Default()
		}
		j.logger = logger
		return nil
	}
}

// NewJanitor creates a janitor over the given repositories.
func NewJanitor(
	relations storage.RelationRepository,
	tags storage.TagRepository,
	opts ...Option,
) (*Janitor, error) {
	if relations == nil {
		return nil, ErrRelationRepositoryRequired
	}
	if tags == nil {
		return nil, ErrTagRepositoryRequired
	}

	pool, err := ants.NewPool(1)
	if err != nil {
		return nil, err
	}

	j := &Janitor{
		relations:   relations,
		tags:        tags,
		interval:    defaultInterval,
		relationTTL: defaultRelationTTL,
		decayFactor: defaultDecayFactor,
		decayFloor:  defaultDecayFloor,
		pool:        pool,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if optErr := opt(j); optErr != nil {
			pool.Release()
			return nil, optErr
		}
	}
	return j, nil
}

// RunOnce performs a single sweep. System relations idle for half the TTL
// are decayed, relations idle past the full TTL are deleted, then expired
// tags are removed. The first error aborts the sweep.
func (j *Janitor) RunOnce(ctx context.Context) (Report, error) {
	var report Report
	now := time.Now().UTC()

	decayed, err := j.relations.DecayStrengths(ctx, now.Add(-j.relationTTL/2), j.decayFactor, j.decayFloor)
	if err != nil {
		return report, err
	}
	report.DecayedRelations = decayed

	removed, err := j.relations.CleanupRelations(ctx, now.Add(-j.relationTTL))
	if err != nil {
		return report, err
	}
	report.RemovedRelations = removed

	removedTags, err := j.tags.CleanupTags(ctx, now)
	if err != nil {
		return report, err
	}
	report.RemovedTags = removedTags

	return report, nil
}

// Start begins sweeping on the configured interval. Calling Start on a
// running janitor is a no-op.
func (j *Janitor) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.stop != nil {
		return
	}

	j.stop = make(chan struct{})
	j.ticker = time.NewTicker(j.interval)

	stop := j.stop
	ticker := j.ticker
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := j.pool.Submit(j.sweep); err != nil {
					j.logger.Error("error submitting maintenance sweep", "err", err)
				}
			}
		}
	}()
}

// Stop halts the ticker. In-flight sweeps finish. Calling Stop on a stopped
// janitor is a no-op.
func (j *Janitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.stop == nil {
		return
	}
	close(j.stop)
	j.ticker.Stop()
	j.stop = nil
	j.ticker = nil
}

// Release stops the janitor and releases the worker pool.
// The janitor should not be used after calling Release.
func (j *Janitor) Release() {
	j.Stop()
	j.pool.Release()
}

func (j *Janitor) sweep() {
	report, err := j.RunOnce(context.Background())
	if err != nil {
		j.logger.Error("maintenance sweep failed", "err", err)
		return
	}
	j.logger.Info("maintenance sweep finished",
		"decayedRelations", report.DecayedRelations,
		"removedRelations", report.RemovedRelations,
		"removedTags", report.RemovedTags)
}
