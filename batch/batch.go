// Package batch fans stamp refinement out over many images at once.
package batch

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/ygzhang/sealkit/observability"
	"github.com/ygzhang/sealkit/stamp"
)

// Processor transforms one image. The default is the full refinement
// pipeline, background removal followed by optimization.
type Processor func(image.Image) (image.Image, error)

// Config controls a Coordinator.
type Config struct {
	// Workers bounds concurrency. Zero or negative runs one goroutine per
	// image with no cap.
	Workers int
	// Processor overrides the per-image pipeline. Nil selects stamp.Refine.
	Processor Processor
	Logger    observability.Logger
}

// Coordinator runs the refinement pipeline over batches of images.
type Coordinator struct {
	workers int
	process Processor
	log     observability.Logger
}

// New constructs a Coordinator from cfg.
func New(cfg Config) *Coordinator {
	p := cfg.Processor
	if p == nil {
		p = stamp.Refine
	}
	return &Coordinator{
		workers: cfg.Workers,
		process: p,
		log:     observability.OrNop(cfg.Logger),
	}
}

// ProcessMany refines every image concurrently and returns the results in
// input order, whatever order the tasks finish in. The first task failure
// fails the whole batch. An empty input returns an empty slice and spawns
// nothing.
func (c *Coordinator) ProcessMany(ctx context.Context, images []image.Image) ([]image.Image, error) {
	out := make([]image.Image, len(images))
	if len(images) == 0 {
		return out, nil
	}

	// A nil semaphore leaves fan-out unbounded.
	var sem chan struct{}
	if c.workers > 0 {
		sem = make(chan struct{}, c.workers)
	}

	type result struct {
		idx int
		img image.Image
		err error
	}
	// Buffered to the batch size so workers never block on an aborted
	// collector.
	results := make(chan result, len(images))

	var wg sync.WaitGroup
	for i, img := range images {
		wg.Add(1)
		go func(idx int, src image.Image) {
			defer wg.Done()

			if sem != nil {
				select {
				case sem <- struct{}{}:
				case <-ctx.Done():
					results <- result{idx: idx, err: ctx.Err()}
					return
				}
				defer func() { <-sem }()
			}

			select {
			case <-ctx.Done():
				results <- result{idx: idx, err: ctx.Err()}
				return
			default:
			}

			start := time.Now()
			refined, err := c.process(src)
			if err != nil {
				results <- result{idx: idx, err: fmt.Errorf("image %d: %w", idx, err)}
				return
			}
			c.log.Debug("image refined",
				observability.Int("index", idx),
				observability.Float64(observability.MetricRefineTime, time.Since(start).Seconds()))
			results <- result{idx: idx, img: refined}
		}(i, img)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		if res.err != nil {
			c.log.Warn("batch aborted", observability.Int("index", res.idx), observability.Error("err", res.err))
			return nil, res.err
		}
		out[res.idx] = res.img
	}

	c.log.Debug("batch refined", observability.Int(observability.MetricBatchSize, len(images)))
	return out, nil
}
