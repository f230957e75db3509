package prediction

import (
	"context"
	"sync"
	"sync/atomic"

	"crimewatch/internal/artifact"
	"crimewatch/internal/metrics"
	"crimewatch/pkg/errors"
	"crimewatch/pkg/logger"
)

// BundleCache loads the model bundle once per process and hands out the same
// read-only instance afterwards. A failed load is not remembered: the next
// call goes back to the store.
type BundleCache struct {
	store artifact.Store
	log   *logger.Logger

	mu     sync.Mutex
	bundle atomic.Pointer[artifact.Bundle]
}

// NewBundleCache creates an empty cache over store
func NewBundleCache(store artifact.Store, log *logger.Logger) *BundleCache {
	return &BundleCache{
		store: store,
		log:   log.With("component", "bundle_cache"),
	}
}

// Get returns the cached bundle, loading it on first use.
// Every failure is reported as ErrModelUnavailable.
func (c *BundleCache) Get(ctx context.Context) (*artifact.Bundle, error) {
	if b := c.bundle.Load(); b != nil {
		return b, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if b := c.bundle.Load(); b != nil {
		return b, nil
	}

	b, err := c.store.Load(ctx)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			metrics.RecordBundleLoad("not_found")
			return nil, errors.Wrap(errors.ErrModelUnavailable, "no model bundle published, run the trainer")
		}
		metrics.RecordBundleLoad("error")
		c.log.Errorw("Failed to load model bundle", "error", err)
		return nil, errors.Wrapf(errors.ErrModelUnavailable, "load bundle: %v", err)
	}

	if !b.Manifest.Compatible() {
		metrics.RecordBundleLoad("incompatible")
		c.log.Warnw("Refusing model bundle built for a different feature contract",
			"version", b.Manifest.Version,
			"contract_hash", b.Manifest.ContractHash,
		)
		return nil, errors.Wrapf(errors.ErrModelUnavailable, "bundle %s has incompatible feature contract", b.Manifest.Version)
	}

	c.bundle.Store(b)
	metrics.RecordBundleLoad("success")
	c.log.Infow("Model bundle loaded",
		"version", b.Manifest.Version,
		"format", b.Manifest.ClassifierFormat,
		"classes", b.Manifest.NumClasses,
		"created_at", b.Manifest.CreatedAt,
	)
	return b, nil
}

// Loaded returns the cached bundle without touching the store
func (c *BundleCache) Loaded() *artifact.Bundle {
	return c.bundle.Load()
}
