package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/widesky/widesky-ingest/internal/metrics"
)

func TestHandleFrameSwallowsBadInput(t *testing.T) {
	persist := make(chan Request, 4)
	p := &ProcessingPool{persist: persist, log: zap.NewNop(), metrics: metrics.New(prometheus.NewRegistry())}

	p.handleFrame(context.Background(), []byte{0xff, 0x00, 0x01})

	select {
	case req := <-persist:
		t.Fatalf("expected no request enqueued for undecodable input, got %+v", req)
	case <-time.After(10 * time.Millisecond):
	}
}

func TestEnqueueRespectsCancellation(t *testing.T) {
	p := &ProcessingPool{persist: make(chan Request), log: zap.NewNop(), metrics: metrics.New(prometheus.NewRegistry())} // unbuffered, no reader

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		p.enqueue(ctx, Request{Kind: KindInsertUser, UserDID: "did:plc:test"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("enqueue did not return after context cancellation")
	}
}
