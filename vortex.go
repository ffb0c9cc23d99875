// Package vortex is the main API for running a vortex vector database
// server: one Engine owns one shard per configured core, each shard
// privately recovering its own write-ahead log and serving its own
// listening socket slice via SO_REUSEPORT.
package vortex

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vortexdb/vortex/internal/config"
	"github.com/vortexdb/vortex/internal/engine"
	"github.com/vortexdb/vortex/internal/logging"
)

// Engine owns a fleet of shards and their lifecycle.
type Engine struct {
	cfg    config.Config
	shards []*engine.Shard

	ctx    context.Context
	cancel context.CancelFunc

	// wg is released once per shard, when that shard's Run goroutine
	// returns, so Stop can wait for every reactor to actually observe its
	// stop flag and finish its last flush before tearing down resources.
	wg sync.WaitGroup

	metrics  *Metrics
	observer Observer
}

// Options configures engine-level concerns not already covered by
// config.Config: caller-supplied context and metrics observer.
type Options struct {
	Context  context.Context
	Observer Observer
}

// Start builds one shard per cfg.ShardCount, replays each shard's WAL,
// binds its listening socket, and launches its reactor goroutine. The
// returned Engine is ready to serve traffic; call Stop to shut down.
func Start(cfg config.Config, options *Options) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if options == nil {
		options = &Options{}
	}

	ctx := options.Context
	if ctx == nil {
		ctx = context.Background()
	}

	metrics := NewMetrics()
	var observer Observer = NewMetricsObserver(metrics)
	if options.Observer != nil {
		observer = options.Observer
	}

	e := &Engine{cfg: cfg, metrics: metrics, observer: observer}
	e.ctx, e.cancel = context.WithCancel(ctx)

	if err := os.MkdirAll(cfg.StorageDir, 0o755); err != nil {
		return nil, fmt.Errorf("vortex: storage dir: %w", err)
	}

	e.shards = make([]*engine.Shard, cfg.ShardCount)
	for i := 0; i < cfg.ShardCount; i++ {
		walPath := filepath.Join(cfg.StorageDir, fmt.Sprintf("shard_%d.wal", i))
		cpu := -1
		if cfg.PinCPUs {
			cpu = i
		}

		shard, err := engine.New(engine.Config{
			ShardID:     i,
			Dim:         cfg.Dim,
			Capacity:    cfg.Capacity,
			QueueDepth:  cfg.QueueDepth,
			WALPath:     walPath,
			MaxElements: cfg.MaxElements,
			CPU:         cpu,
			Observer:    observer,
		})
		if err != nil {
			e.closeShards(i)
			return nil, WrapError("engine.new", i, err)
		}
		if err := shard.Listen(cfg.Port); err != nil {
			shard.Close()
			e.closeShards(i)
			return nil, WrapError("engine.listen", i, err)
		}
		e.shards[i] = shard
	}

	e.wg.Add(len(e.shards))
	for i, shard := range e.shards {
		go func(id int, sh *engine.Shard) {
			defer e.wg.Done()
			if err := sh.Run(); err != nil {
				werr := WrapError("engine.run", id, err)
				logging.Default().Error("shard exited with error", "shard", id, "code", werr.Code, "error", werr)
			}
		}(i, shard)
	}

	return e, nil
}

func (e *Engine) closeShards(n int) {
	for i := 0; i < n; i++ {
		if e.shards[i] != nil {
			e.shards[i].Close()
		}
	}
}

// Stop cooperatively shuts down every shard: each finishes any dirty
// batch flush before its reactor goroutine exits (spec §5, "cooperative
// shutdown"). Stop waits for every Run goroutine to actually return
// before releasing any shard's ring/WAL/accumulator resources, since
// those goroutines may still be inside RunTick using them.
func (e *Engine) Stop() error {
	e.cancel()
	for _, shard := range e.shards {
		shard.Shutdown()
	}

	e.wg.Wait()

	var firstErr error
	for _, shard := range e.shards {
		if err := shard.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Metrics returns the engine's atomic counters snapshot source.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// ShardCount returns the number of shards the engine is running.
func (e *Engine) ShardCount() int {
	return len(e.shards)
}
