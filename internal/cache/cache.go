// Package cache pools idle detector engines across client sessions.
//
// Detector construction loads a model file and is expensive; reuse is cheap.
// The cache keys idle detectors by keyword name and tags each with the
// sensitivity it was built with. Acquire hands out a cached detector only on
// an exact sensitivity match; anything else is a miss that triggers a fresh
// build. A detector is owned by exactly one of {a session, the idle set} at
// any instant — Acquire removes it from the idle set before returning it,
// and it only re-enters via Release.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kestrelaudio/wakeserve/internal/keyword"
	"github.com/kestrelaudio/wakeserve/internal/observe"
	"github.com/kestrelaudio/wakeserve/pkg/detect"
)

// BuildFunc constructs a fresh engine for a keyword at the given
// sensitivity. The call is blocking and CPU/IO-bound; the cache never
// invokes it while holding its lock.
type BuildFunc func(ctx context.Context, kw keyword.Keyword, sensitivity float32) (detect.Engine, error)

// Detector pairs an engine with the sensitivity it was built with. The
// sensitivity tag is what makes configuration-correct reuse possible.
type Detector struct {
	Engine      detect.Engine
	Sensitivity float32
}

// Cache is the process-wide idle-detector pool. Safe for concurrent use.
type Cache struct {
	build   BuildFunc
	metrics *observe.Metrics

	mu   sync.Mutex
	idle map[string][]*Detector
}

// New creates an empty cache that delegates misses to build.
func New(build BuildFunc, metrics *observe.Metrics) *Cache {
	return &Cache{
		build:   build,
		metrics: metrics,
		idle:    make(map[string][]*Detector),
	}
}

// Acquire returns an idle detector for kw whose sensitivity exactly equals
// the requested value, removing it from the idle set. When none exists, a
// fresh engine is built outside the lock so that concurrent first-use of
// distinct keywords does not serialize on model loading. Fresh detectors are
// not inserted into the cache; they only enter the idle set via [Release].
//
// Matching is exact float equality. A request with a slightly different
// sensitivity is a miss and triggers a fresh build.
func (c *Cache) Acquire(ctx context.Context, kw keyword.Keyword, sensitivity float32) (*Detector, error) {
	c.mu.Lock()
	idle := c.idle[kw.Name]
	for i, d := range idle {
		if d.Sensitivity == sensitivity {
			c.idle[kw.Name] = append(idle[:i], idle[i+1:]...)
			remaining := len(c.idle[kw.Name])
			c.mu.Unlock()

			c.metrics.RecordCacheHit(ctx, kw.Name)
			slog.Debug("using detector from cache",
				"keyword", kw.Name,
				"idle", remaining,
			)
			return d, nil
		}
	}
	c.mu.Unlock()

	c.metrics.RecordCacheMiss(ctx, kw.Name)
	slog.Debug("loading detector",
		"keyword", kw.Name,
		"language", kw.Language,
	)

	start := time.Now()
	engine, err := c.build(ctx, kw, sensitivity)
	if err != nil {
		// A failed build never touches the idle set.
		return nil, &detect.BuildError{Keyword: kw.Name, Err: err}
	}
	c.metrics.BuildDuration.Record(ctx, time.Since(start).Seconds())

	return &Detector{Engine: engine, Sensitivity: sensitivity}, nil
}

// Release returns d to the idle set for name, making it eligible for a
// future Acquire. Safe to call concurrently with other Acquire/Release
// calls for the same or different keyword names.
func (c *Cache) Release(name string, d *Detector) {
	c.mu.Lock()
	c.idle[name] = append(c.idle[name], d)
	idle := len(c.idle[name])
	c.mu.Unlock()

	slog.Debug("detector returned to cache",
		"keyword", name,
		"idle", idle,
	)
}

// IdleCount reports the number of idle detectors held for name.
func (c *Cache) IdleCount(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.idle[name])
}

// Close releases every idle engine. Called at process teardown; sessions
// must have returned their detectors first.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, idle := range c.idle {
		for _, d := range idle {
			if err := d.Engine.Close(); err != nil {
				slog.Warn("closing idle detector", "keyword", name, "error", err)
			}
		}
	}
	c.idle = make(map[string][]*Detector)
	return nil
}
