package ingest

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/widesky/widesky-ingest/internal/classify"
	"github.com/widesky/widesky-ingest/internal/firehose"
	"github.com/widesky/widesky-ingest/internal/metrics"
)

// ProcessingPool runs N workers that each dequeue a raw frame, decode
// and classify it, and forward assembled records onto the
// persistence queue (spec.md §4.2).
type ProcessingPool struct {
	frames     <-chan []byte
	persist    chan<- Request
	numWorkers int
	log        *zap.Logger
	metrics    *metrics.Metrics

	wg sync.WaitGroup
}

// NewProcessingPool builds a pool of numWorkers processing workers.
func NewProcessingPool(frames <-chan []byte, persist chan<- Request, numWorkers int, log *zap.Logger, m *metrics.Metrics) *ProcessingPool {
	return &ProcessingPool{frames: frames, persist: persist, numWorkers: numWorkers, log: log, metrics: m}
}

// Start spawns the workers. Each runs until frames is closed.
func (p *ProcessingPool) Start(ctx context.Context) {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// Wait blocks until every worker has exited.
func (p *ProcessingPool) Wait() {
	p.wg.Wait()
}

func (p *ProcessingPool) worker(ctx context.Context) {
	defer p.wg.Done()
	for frame := range p.frames {
		p.metrics.ProcessingQueue.Set(float64(len(p.frames)))
		p.handleFrame(ctx, frame)
	}
}

// handleFrame decodes and classifies a single raw frame. Any failure
// is logged and swallowed at this boundary — a bad frame must never
// take down the worker (spec.md §7).
func (p *ProcessingPool) handleFrame(ctx context.Context, frame []byte) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("panic while processing frame", zap.Any("recover", r))
		}
	}()

	commit, ok, err := firehose.DecodeFrame(frame)
	if err != nil {
		p.metrics.FramesDecodeFail.Inc()
		p.log.Warn("failed to decode frame", zap.Error(err))
		return
	}
	if !ok {
		return
	}

	p.enqueue(ctx, Request{Kind: KindInsertUser, UserDID: commit.Repo})

	for _, op := range commit.Ops {
		// The commit names the op but its record block is absent or
		// undecodable: nothing to assemble, drop it silently.
		if op.Record == nil {
			continue
		}
		switch classify.Of(op) {
		case classify.KindPost:
			p.enqueue(ctx, Request{Kind: KindInsertPost, Post: classify.Post(op, commit.Repo, commit.CommitCID, p.log)})
		case classify.KindRepost:
			p.enqueue(ctx, Request{Kind: KindInsertRepost, Repost: classify.Repost(op, commit.Repo, commit.CommitCID)})
		case classify.KindLike:
			p.enqueue(ctx, Request{Kind: KindInsertLike, Like: classify.Like(op, commit.Repo, commit.CommitCID)})
		}
	}
}

// enqueue pushes onto the persistence queue, blocking under
// back-pressure but remaining cancellable (spec.md §5).
func (p *ProcessingPool) enqueue(ctx context.Context, req Request) {
	select {
	case p.persist <- req:
		p.metrics.PersistenceQueue.Set(float64(len(p.persist)))
	case <-ctx.Done():
	}
}
