// Package lifecycle coordinates startup and ordered shutdown of the
// ingest pipeline (spec.md §4.5).
package lifecycle

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/widesky/widesky-ingest/internal/adminhttp"
	"github.com/widesky/widesky-ingest/internal/config"
	"github.com/widesky/widesky-ingest/internal/database"
	"github.com/widesky/widesky-ingest/internal/directory"
	"github.com/widesky/widesky-ingest/internal/firehose"
	"github.com/widesky/widesky-ingest/internal/ingest"
	"github.com/widesky/widesky-ingest/internal/metrics"
	"github.com/widesky/widesky-ingest/internal/records"
	"github.com/widesky/widesky-ingest/internal/users"

	"github.com/prometheus/client_golang/prometheus"
)

// Coordinator owns every long-lived component and enforces the
// shutdown ordering spec.md §4.5 requires: cancel the supervisor
// first, drain both worker pools, only then close shared resources.
type Coordinator struct {
	cfg *config.Config
	log *zap.Logger

	db        *database.DB
	directory *directory.Client
	admin     *adminhttp.Server

	frameQueue   chan []byte
	requestQueue chan ingest.Request

	supervisor *firehose.Supervisor
	processing *ingest.ProcessingPool
	persistence *ingest.PersistencePool

	supervisorDone chan struct{}
	adminDone      chan struct{}
}

// New wires every component but starts nothing.
func New(cfg *config.Config, log *zap.Logger) (*Coordinator, error) {
	ctx := context.Background()

	db, err := database.Open(ctx, cfg.ConnString(), int32(cfg.PersistenceWorkers+1), cfg.ResetSchema)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: open database: %w", err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	dir := directory.New(cfg.PLCEndpoint, log, m)
	userStore := users.NewStore(db)
	recordStore := records.NewStore(db)

	frameQueue := make(chan []byte, cfg.ProcessingQueueSize)
	requestQueue := make(chan ingest.Request, cfg.PersistenceQueueSize)

	sup := firehose.NewSupervisor(cfg.FirehoseURL, frameQueue, log, m)
	processing := ingest.NewProcessingPool(frameQueue, requestQueue, cfg.ProcessingWorkers, log, m)
	persistence := ingest.NewPersistencePool(
		requestQueue, cfg.PersistenceWorkers, cfg.BatchSize, cfg.BatchTimeout,
		userStore, recordStore, dir, m, log,
	)
	admin := adminhttp.New(cfg.MetricsAddr, reg)

	return &Coordinator{
		cfg:          cfg,
		log:          log,
		db:           db,
		directory:    dir,
		admin:        admin,
		frameQueue:   frameQueue,
		requestQueue: requestQueue,
		supervisor:   sup,
		processing:   processing,
		persistence:  persistence,
	}, nil
}

// Start spawns the persistence workers, the processing workers, the
// supervisor, and the admin HTTP server, in that order (spec.md §4.5).
func (c *Coordinator) Start(ctx context.Context) {
	// The worker pools stop only through Stop's closed frame queue and
	// shutdown sentinels, so they run under a context that cancelling
	// ctx does not cancel.
	workCtx := context.WithoutCancel(ctx)
	c.persistence.Start(workCtx)
	c.processing.Start(workCtx)

	c.supervisorDone = make(chan struct{})
	go func() {
		defer close(c.supervisorDone)
		c.supervisor.Run(ctx)
	}()

	c.adminDone = make(chan struct{})
	go func() {
		defer close(c.adminDone)
		if err := c.admin.Start(ctx); err != nil {
			c.log.Error("admin server exited with error", zap.Error(err))
		}
	}()

	c.log.Info("widesky-ingest started",
		zap.Int("processing_workers", c.cfg.ProcessingWorkers),
		zap.Int("persistence_workers", c.cfg.PersistenceWorkers),
		zap.String("firehose_url", c.cfg.FirehoseURL),
	)
}

// Stop drains the pipeline in order: the supervisor (cancelled via
// ctx by the caller) must already have stopped feeding the processing
// queue; this closes the frame queue so processing workers drain and
// exit, enqueues one shutdown sentinel per persistence worker, waits
// for both pools, then closes the database pool and directory client.
// Closing the database before the workers drain would lose in-flight
// batches, so the ordering here is load-bearing.
func (c *Coordinator) Stop(ctx context.Context) {
	<-c.supervisorDone

	close(c.frameQueue)
	c.processing.Wait()

	for i := 0; i < c.cfg.PersistenceWorkers; i++ {
		c.requestQueue <- ingest.ShutdownRequest
	}
	c.persistence.Wait()

	<-c.adminDone

	c.db.Close()
	c.directory.Close()

	c.log.Info("widesky-ingest stopped cleanly")
}
