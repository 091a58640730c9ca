// Package recognize matches a face descriptor against registered users.
package recognize

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kozaktomas/face-registry/internal/database"
	"go.uber.org/zap"
)

// ErrEmptyDescriptor is returned when the query descriptor has no values.
var ErrEmptyDescriptor = errors.New("descriptor is empty")

// RecordSource is the part of the record store the recognizer reads from.
type RecordSource interface {
	ListAll(ctx context.Context) ([]database.UserRecord, error)
	Version() uint64
}

// Result is the outcome of a match. Best is nil when nothing comparable is registered.
type Result struct {
	Matched   bool
	Threshold float64
	Best      *Candidate
}

// Recognizer keeps an Index in sync with a RecordSource.
// The index is rebuilt lazily whenever the source version changes.
type Recognizer struct {
	source    RecordSource
	index     *Index
	threshold float64
	logger    *zap.Logger

	mu      sync.Mutex
	built   bool
	version uint64
}

// Option configures a Recognizer.
type Option func(*Recognizer)

// WithLogger sets the logger used for index rebuilds.
func WithLogger(l *zap.Logger) Option {
	return func(r *Recognizer) { r.logger = l }
}

// New creates a recognizer. A threshold <= 0 selects DefaultThreshold.
func New(source RecordSource, metric Metric, threshold float64, opts ...Option) *Recognizer {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	r := &Recognizer{
		source:    source,
		index:     NewIndex(metric),
		threshold: threshold,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Threshold returns the default match threshold.
func (r *Recognizer) Threshold() float64 {
	return r.threshold
}

// Match finds the registered user closest to query. threshold <= 0 uses the default.
func (r *Recognizer) Match(ctx context.Context, query []float64, threshold float64) (Result, error) {
	if len(query) == 0 {
		return Result{}, ErrEmptyDescriptor
	}
	if threshold <= 0 {
		threshold = r.threshold
	}
	if err := r.refresh(ctx); err != nil {
		return Result{}, err
	}

	res := Result{Threshold: threshold}
	candidates := r.index.Search(query, 1, threshold)
	if len(candidates) == 0 {
		return res, nil
	}
	res.Best = &candidates[0]
	res.Matched = res.Best.Distance <= threshold
	return res, nil
}

// Nearest returns up to k closest users regardless of threshold. The first
// result is exact; past ExactScanLimit descriptors the rest may be approximate.
func (r *Recognizer) Nearest(ctx context.Context, query []float64, k int) ([]Candidate, error) {
	if len(query) == 0 {
		return nil, ErrEmptyDescriptor
	}
	if err := r.refresh(ctx); err != nil {
		return nil, err
	}
	return r.index.Search(query, k, r.threshold), nil
}

func (r *Recognizer) refresh(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Read the version first: a write racing with ListAll only causes one extra rebuild.
	v := r.source.Version()
	if r.built && v == r.version {
		return nil
	}

	records, err := r.source.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("loading users for recognition: %w", err)
	}
	r.index.Build(records)
	r.built = true
	r.version = v

	r.logger.Debug("recognition index rebuilt",
		zap.Uint64("version", v),
		zap.Int("users", len(records)),
		zap.Int("descriptors", r.index.Len()),
	)
	return nil
}
